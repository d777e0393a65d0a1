package routes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// SSE endpoint for node updates
func (wr *WebRouter) nodesSSE(w http.ResponseWriter, r *http.Request) {
	// Check if SSE is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	notifier := wr.registry.Notifier()
	notifyCh := notifier.Subscribe()
	defer notifier.Unsubscribe(notifyCh)

	ctx := r.Context()

	ticker := time.NewTicker(wr.heartbeat)
	defer ticker.Stop()

	sendNodesUpdate := func() error {
		data, err := json.Marshal(NodesResponse{Nodes: wr.registry.Snapshot()})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: nodes-update\ndata: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// Send initial data
	if err := sendNodesUpdate(); err != nil {
		slog.Error("error sending initial SSE data", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-notifyCh:
			if err := sendNodesUpdate(); err != nil {
				slog.Debug("error sending SSE update", "error", err)
				return
			}
		case <-ticker.C:
			// Send heartbeat comment to keep connection alive
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
