package bridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabili207/mesh-telegram-bridge/pkg/mesh"
	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
	"github.com/kabili207/mesh-telegram-bridge/pkg/relay"
)

func TestMeshTextFromUnseenNode(t *testing.T) {
	h := newHarness(t)

	h.bridge.HandleMeshMessage("msh/text", []byte(`{"from":"!ab12","payload":{"text":"hello"}}`))

	assert.Equal(t, []relay.Action{relay.Broadcast("📡 Node !ab12: hello")}, h.queue.Drain())

	n, ok := h.registry.Get("!ab12")
	require.True(t, ok)
	assert.Empty(t, n.LongName)
	assert.Equal(t, "Node !ab12", n.DisplayName())

	records := h.messages.records()
	require.Len(t, records, 1)
	assert.Equal(t, models.DirectionFromMesh, records[0].Direction)
	assert.Equal(t, int64(0), records[0].ChatID)
	assert.Equal(t, "hello", records[0].Content)
	require.NotNil(t, records[0].MeshNode)
	assert.Equal(t, "!ab12", *records[0].MeshNode)
}

func TestMeshTextUsesKnownName(t *testing.T) {
	h := newHarness(t)
	h.registry.UpdateIdentity("!ab12", "Base Camp", "BC", "")

	h.bridge.HandleMeshMessage("msh/US/2/json/text/!ab12", []byte(`{"from":"!ab12","payload":{"text":"hi"}}`))

	assert.Equal(t, []relay.Action{relay.Broadcast("📡 Base Camp: hi")}, h.queue.Drain())
}

func TestMeshTextWithoutSender(t *testing.T) {
	h := newHarness(t)

	h.bridge.HandleMeshMessage("msh/text", []byte(`{"payload":{"text":"anyone?"}}`))

	assert.Equal(t, []relay.Action{relay.Broadcast("📡 unknown: anyone?")}, h.queue.Drain())
	assert.Equal(t, 0, h.registry.Len())
	recs := h.messages.records()
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].MeshNode)
}

func TestMeshTextEmptyIgnored(t *testing.T) {
	h := newHarness(t)

	h.bridge.HandleMeshMessage("msh/text", []byte(`{"from":"!ab12","payload":{"text":""}}`))

	assert.Equal(t, 0, h.queue.Len())
	assert.Empty(t, h.messages.records())
	assert.Equal(t, 0, h.registry.Len())
}

func TestMeshTextLogFailureStillBroadcasts(t *testing.T) {
	h := newHarness(t)
	h.messages.logErr = errBoom

	h.bridge.HandleMeshMessage("msh/text", []byte(`{"from":"!ab12","payload":{"text":"hello"}}`))

	assert.Equal(t, 1, h.queue.Len())
}

func TestMeshPositionNotifiesAdmins(t *testing.T) {
	h := newHarness(t)

	h.bridge.HandleMeshMessage("msh/position", []byte(`{"from":"!ab12","payload":{"latitude":52.5200066,"longitude":13.404954}}`))

	actions := h.queue.Drain()
	require.Len(t, actions, 1)
	assert.Equal(t, relay.ActionNotifyAdmins, actions[0].Kind)
	assert.Contains(t, actions[0].Text, "52.520007")
	assert.Contains(t, actions[0].Text, "13.404954")
	assert.Contains(t, actions[0].Text, "Altitude: 0 m")

	n, ok := h.registry.Get("!ab12")
	require.True(t, ok)
	require.True(t, n.HasLocation())
	assert.InDelta(t, 52.5200066, *n.Latitude, 1e-9)

	saved, ok := h.nodes.saved["!ab12"]
	require.True(t, ok)
	assert.True(t, saved.HasLocation())
}

func TestMeshPositionAltitudeRounded(t *testing.T) {
	h := newHarness(t)

	h.bridge.HandleMeshMessage("msh/position", []byte(`{"from":"!ab12","payload":{"latitude":1,"longitude":2,"altitude":123.6}}`))

	actions := h.queue.Drain()
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0].Text, "Altitude: 124 m")
}

func TestMeshPositionGating(t *testing.T) {
	for name, payload := range map[string]string{
		"latitude only":  `{"from":"!ab12","payload":{"latitude":52.52}}`,
		"longitude only": `{"from":"!ab12","payload":{"longitude":13.4}}`,
		"no payload":     `{"from":"!ab12"}`,
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)

			h.bridge.HandleMeshMessage("msh/position", []byte(payload))

			assert.Equal(t, 0, h.queue.Len())
			assert.Equal(t, 0, h.registry.Len())
			assert.Empty(t, h.nodes.saved)
		})
	}
}

func TestMeshNodeInfo(t *testing.T) {
	h := newHarness(t)

	h.bridge.HandleMeshMessage("msh/nodeinfo", []byte(`{"from":"!ab12","payload":{"user":{"longName":"Alpha","shortName":"A","hwModel":"TBEAM"}}}`))
	h.bridge.HandleMeshMessage("msh/nodeinfo", []byte(`{"from":"!ab12","payload":{"user":{"longName":"Alpha 2"}}}`))

	assert.Equal(t, 0, h.queue.Len())
	n, ok := h.registry.Get("!ab12")
	require.True(t, ok)
	assert.Equal(t, "Alpha 2", n.LongName)
	assert.Equal(t, "A", n.ShortName)
	assert.Equal(t, "TBEAM", n.HardwareModel)
	assert.Equal(t, "Alpha 2", h.nodes.saved["!ab12"].LongName)
	assert.Empty(t, h.messages.records())
}

func TestMeshTelemetry(t *testing.T) {
	h := newHarness(t)

	h.bridge.HandleMeshMessage("msh/telemetry", []byte(`{"from":"!ab12","payload":{"batteryLevel":15}}`))

	n, ok := h.registry.Get("!ab12")
	require.True(t, ok)
	require.NotNil(t, n.BatteryLevel)
	assert.Equal(t, 15, *n.BatteryLevel)

	actions := h.queue.Drain()
	require.Len(t, actions, 1)
	assert.Equal(t, relay.ActionNotifyAdmins, actions[0].Kind)
	assert.Contains(t, actions[0].Text, "!ab12")
	assert.Contains(t, actions[0].Text, "15%")
}

func TestMeshTelemetryThreshold(t *testing.T) {
	for _, tc := range []struct {
		payload string
		warn    bool
	}{
		{`{"batteryLevel":19}`, true},
		{`{"batteryLevel":20}`, false},
		{`{"batteryLevel":100}`, false},
		{`{"voltage":3.7}`, false},
		{`{}`, false},
	} {
		t.Run(tc.payload, func(t *testing.T) {
			h := newHarness(t)

			h.bridge.HandleMeshMessage("msh/telemetry", []byte(`{"from":"!ab12","payload":`+tc.payload+`}`))

			if tc.warn {
				assert.Equal(t, 1, h.queue.Len())
			} else {
				assert.Equal(t, 0, h.queue.Len())
			}
		})
	}
}

func TestMeshUnknownAndMalformed(t *testing.T) {
	h := newHarness(t)

	h.bridge.HandleMeshMessage("msh/stat", []byte(`{"from":"!ab12","type":"neighborinfo"}`))
	h.bridge.HandleMeshMessage("msh/text", []byte(`{not json`))
	h.bridge.HandleMeshMessage("msh/text", []byte(`{"from":"!ab12","payload":{"text":42}}`))

	assert.Equal(t, 0, h.queue.Len())
	assert.Empty(t, h.messages.records())

	// The pipeline keeps working afterwards
	h.bridge.HandleMeshMessage("msh/text", []byte(`{"from":"!ab12","payload":{"text":"still here"}}`))
	assert.Equal(t, 1, h.queue.Len())
}

type panicEvent struct{}

func (panicEvent) Kind() mesh.Kind { panic("bad event") }
func (panicEvent) Node() string    { return "" }

func TestMeshHandlerRecovers(t *testing.T) {
	h := newHarness(t)

	assert.NotPanics(t, func() { h.bridge.HandleMeshEvent(panicEvent{}) })
}

func TestMeshPositionIsNeverBroadcast(t *testing.T) {
	h := newHarness(t)

	h.bridge.HandleMeshEvent(&mesh.PositionEvent{From: "!ab12", Latitude: floatPtr(1), Longitude: floatPtr(2)})

	for _, a := range h.queue.Drain() {
		assert.NotEqual(t, relay.ActionBroadcast, a.Kind)
		assert.True(t, strings.HasPrefix(a.Text, "📍"))
	}
}

func floatPtr(v float64) *float64 { return &v }
