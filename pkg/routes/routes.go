package routes

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
	"github.com/kabili207/mesh-telegram-bridge/pkg/nodes"
	"github.com/kabili207/mesh-telegram-bridge/pkg/relay"
)

const shutdownTimeout = 5 * time.Second

type StatsSource interface {
	GetStats() (*models.Stats, error)
}

type ConnectionState interface {
	Connected() bool
}

type Options struct {
	Registry *nodes.Registry
	Stats    StatsSource
	Broker   ConnectionState
	Queue    *relay.Queue
	// Gatherer backs /metrics; the endpoint is omitted when nil.
	Gatherer prometheus.Gatherer
	// Heartbeat is the SSE keep-alive interval, 30s when zero.
	Heartbeat time.Duration
}

// WebRouter serves the read-only status API.
type WebRouter struct {
	registry  *nodes.Registry
	stats     StatsSource
	broker    ConnectionState
	queue     *relay.Queue
	gatherer  prometheus.Gatherer
	heartbeat time.Duration
}

func NewWebRouter(opts Options) *WebRouter {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	return &WebRouter{
		registry:  opts.Registry,
		stats:     opts.Stats,
		broker:    opts.Broker,
		queue:     opts.Queue,
		gatherer:  opts.Gatherer,
		heartbeat: opts.Heartbeat,
	}
}

type HealthResponse struct {
	Status        string `json:"status"`
	MqttConnected bool   `json:"mqtt_connected"`
	QueueDepth    int    `json:"queue_depth"`
	KnownNodes    int    `json:"known_nodes"`
}

type NodesResponse struct {
	Nodes []models.MeshNode `json:"nodes"`
}

// Handler builds the router wrapped in proxy header, logging and recovery middleware.
func (wr *WebRouter) Handler() http.Handler {
	// creates a new instance of a mux router
	myRouter := mux.NewRouter().StrictSlash(true)

	myRouter.HandleFunc("/healthz", wr.health).Methods("GET")
	myRouter.HandleFunc("/api/nodes", wr.getNodes).Methods("GET")
	myRouter.HandleFunc("/api/nodes-sse", wr.nodesSSE).Methods("GET")
	myRouter.HandleFunc("/api/nodes/{id}", wr.getNode).Methods("GET")
	myRouter.HandleFunc("/api/stats", wr.getStats).Methods("GET")
	if wr.gatherer != nil {
		myRouter.Handle("/metrics", promhttp.HandlerFor(wr.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	myRouter.Use(handlers.ProxyHeaders)
	myRouter.Use(RequestLogger)
	h := handlers.RecoveryHandler()

	return h(myRouter)
}

// ListenAndServe serves the API on listenAddr until ctx is cancelled.
func (wr *WebRouter) ListenAndServe(ctx context.Context, listenAddr string) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           wr.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status api listening", "addr", listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func RequestLogger(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("endpoint hit", "method", r.Method, "path", r.URL.Path, "remote_host", r.RemoteAddr, "user_agent", r.UserAgent())
		// Call the next handler in the chain.
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("error encoding response", "error", err)
	}
}

func (wr *WebRouter) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		MqttConnected: wr.broker == nil || wr.broker.Connected(),
		KnownNodes:    wr.registry.Len(),
	}
	if wr.queue != nil {
		resp.QueueDepth = wr.queue.Len()
	}

	status := http.StatusOK
	if !resp.MqttConnected {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (wr *WebRouter) getNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NodesResponse{Nodes: wr.registry.Snapshot()})
}

func (wr *WebRouter) getNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n, ok := wr.registry.Get(id)
	if !ok {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (wr *WebRouter) getStats(w http.ResponseWriter, r *http.Request) {
	if wr.stats == nil {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	s, err := wr.stats.GetStats()
	if err != nil {
		slog.Error("error fetching stats", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
