// Package nodes keeps the last known state of every mesh node seen by the
// bridge. The Registry is the only writer of node state; callers receive
// copies.
package nodes

import (
	"sort"
	"sync"
	"time"

	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
)

type Option func(*Registry)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

type Registry struct {
	mu       sync.RWMutex
	nodes    map[string]*models.MeshNode
	now      func() time.Time
	notifier *Notifier
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		nodes:    make(map[string]*models.MeshNode),
		now:      time.Now,
		notifier: NewNotifier(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Notifier signals every change made to the registry.
func (r *Registry) Notifier() *Notifier {
	return r.notifier
}

// Load seeds the registry with previously persisted nodes. Nodes already
// present are left untouched.
func (r *Registry) Load(nodes []*models.MeshNode) {
	r.mu.Lock()
	for _, n := range nodes {
		if n == nil || n.NodeID == "" {
			continue
		}
		if _, ok := r.nodes[n.NodeID]; ok {
			continue
		}
		c := *n
		r.nodes[n.NodeID] = &c
	}
	r.mu.Unlock()
	r.notifier.Notify()
}

// RecordText notes a text message sent by the node.
func (r *Registry) RecordText(nodeID string) models.MeshNode {
	return r.mutate(nodeID, func(n *models.MeshNode) {
		n.MessageCount++
	})
}

// UpdateIdentity stores the node's names and hardware model. Empty values
// do not overwrite what is already known.
func (r *Registry) UpdateIdentity(nodeID, longName, shortName, hwModel string) models.MeshNode {
	return r.mutate(nodeID, func(n *models.MeshNode) {
		if longName != "" {
			n.LongName = longName
		}
		if shortName != "" {
			n.ShortName = shortName
		}
		if hwModel != "" {
			n.HardwareModel = hwModel
		}
	})
}

func (r *Registry) UpdatePosition(nodeID string, lat, lon, alt float64) models.MeshNode {
	return r.mutate(nodeID, func(n *models.MeshNode) {
		n.Latitude = &lat
		n.Longitude = &lon
		n.Altitude = &alt
	})
}

// UpdateTelemetry stores device metrics. Absent values keep the previous
// reading.
func (r *Registry) UpdateTelemetry(nodeID string, battery *int, voltage *float64) models.MeshNode {
	return r.mutate(nodeID, func(n *models.MeshNode) {
		if battery != nil {
			b := *battery
			n.BatteryLevel = &b
		}
		if voltage != nil {
			v := *voltage
			n.Voltage = &v
		}
	})
}

// mutate applies fn to the node, creating it when unseen, and advances
// LastSeen. LastSeen never moves backwards.
func (r *Registry) mutate(nodeID string, fn func(n *models.MeshNode)) models.MeshNode {
	r.mu.Lock()
	n, ok := r.nodes[nodeID]
	if !ok {
		n = &models.MeshNode{NodeID: nodeID}
		r.nodes[nodeID] = n
	}
	fn(n)
	now := r.now()
	if n.LastSeen == nil || now.After(*n.LastSeen) {
		n.LastSeen = &now
	}
	c := *n
	r.mu.Unlock()

	r.notifier.Notify()
	return c
}

func (r *Registry) Get(nodeID string) (models.MeshNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return models.MeshNode{}, false
	}
	return *n, true
}

// DisplayName resolves the name used when relaying the node's messages.
func (r *Registry) DisplayName(nodeID string) string {
	n, ok := r.Get(nodeID)
	if !ok {
		return models.UnknownNodeName(nodeID)
	}
	return n.DisplayName()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Snapshot returns copies of all nodes, most recently seen first.
func (r *Registry) Snapshot() []models.MeshNode {
	r.mu.RLock()
	out := make([]models.MeshNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, *n)
	}
	r.mu.RUnlock()

	SortNodes(out)
	return out
}

// SortNodes orders nodes by LastSeen descending (never seen last), then by
// NodeID as tiebreaker
func SortNodes(nodes []models.MeshNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i].LastSeen, nodes[j].LastSeen
		if a != nil && b == nil {
			return true
		}
		if a == nil && b != nil {
			return false
		}
		if a != nil && b != nil && !a.Equal(*b) {
			return a.After(*b)
		}
		return nodes[i].NodeID < nodes[j].NodeID
	})
}
