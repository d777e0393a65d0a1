package bridge

import (
	"errors"
	"fmt"

	"github.com/kabili207/mesh-telegram-bridge/pkg/mesh"
	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
	"github.com/kabili207/mesh-telegram-bridge/pkg/relay"
)

// LowBatteryThreshold is the level below which admins are warned.
const LowBatteryThreshold = 20

// HandleMeshMessage is the broker subscription callback. Errors never
// leave this function.
func (b *Bridge) HandleMeshMessage(topic string, payload []byte) {
	defer b.recoverHandler("mesh")

	ev, err := mesh.Decode(topic, payload)
	if err != nil {
		if errors.Is(err, mesh.ErrMalformed) {
			b.metrics.MeshMalformed.Inc()
		}
		b.log.Debug("dropping broker message", "topic", topic, "error", err)
		return
	}
	b.HandleMeshEvent(ev)
}

// HandleMeshEvent applies a decoded event to the registry and queues
// whatever chat notifications it produces.
func (b *Bridge) HandleMeshEvent(ev mesh.Event) {
	defer b.recoverHandler("mesh")

	b.metrics.MeshEvents.WithLabelValues(ev.Kind().String()).Inc()

	switch e := ev.(type) {
	case *mesh.TextEvent:
		b.handleText(e)
	case *mesh.PositionEvent:
		b.handlePosition(e)
	case *mesh.NodeInfoEvent:
		b.handleNodeInfo(e)
	case *mesh.TelemetryEvent:
		b.handleTelemetry(e)
	default:
		b.log.Debug("ignoring unclassified mesh event", "from", ev.Node())
	}
}

func (b *Bridge) handleText(e *mesh.TextEvent) {
	if e.Text == "" {
		return
	}

	name := b.registry.DisplayName(e.From)
	b.enqueue(relay.Broadcast(fmt.Sprintf("📡 %s: %s", name, e.Text)))

	var from *string
	if e.From != "" {
		from = &e.From
		b.saveNode(b.registry.RecordText(e.From))
	}
	b.logMessage(models.DirectionFromMesh, 0, e.Text, from, models.MessageKindText)

	b.log.Info("message from mesh", "from", e.From, "channel", e.Channel)
}

func (b *Bridge) handlePosition(e *mesh.PositionEvent) {
	if e.From == "" || !e.HasPosition() {
		return
	}
	lat, lon := *e.Latitude, *e.Longitude
	alt := 0.0
	if e.Altitude != nil {
		alt = *e.Altitude
	}

	b.saveNode(b.registry.UpdatePosition(e.From, lat, lon, alt))
	b.enqueue(relay.NotifyAdmins(fmt.Sprintf(
		"📍 Position from %s:\nLatitude: %.6f\nLongitude: %.6f\nAltitude: %.0f m",
		e.From, lat, lon, alt,
	)))

	b.log.Info("position from mesh", "from", e.From, "lat", lat, "lon", lon)
}

func (b *Bridge) handleNodeInfo(e *mesh.NodeInfoEvent) {
	if e.From == "" {
		return
	}
	n := b.registry.UpdateIdentity(e.From, e.LongName, e.ShortName, e.HardwareModel)
	b.saveNode(n)

	b.log.Info("node info", "node", e.From, "name", n.DisplayName(), "hardware", n.HardwareModel)
}

func (b *Bridge) handleTelemetry(e *mesh.TelemetryEvent) {
	if e.From == "" {
		return
	}
	b.saveNode(b.registry.UpdateTelemetry(e.From, e.BatteryLevel, e.Voltage))

	if e.BatteryLevel != nil && *e.BatteryLevel < LowBatteryThreshold {
		b.enqueue(relay.NotifyAdmins(fmt.Sprintf("⚠️ Low battery on %s: %d%%", e.From, *e.BatteryLevel)))
	}
}
