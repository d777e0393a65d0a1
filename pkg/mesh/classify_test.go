package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		env   *Envelope
		want  Kind
	}{
		{"text topic", "msh/text", nil, KindText},
		{"position topic", "msh/EU/2/json/position/!abcd", nil, KindPosition},
		{"telemetry topic", "msh/telemetry", &Envelope{}, KindTelemetry},
		{"nodeinfo topic", "msh/nodeinfo", &Envelope{}, KindNodeInfo},
		{"sendtext type", "msh/json", &Envelope{Type: "sendtext"}, KindText},
		{"position type", "msh/json", &Envelope{Type: "position"}, KindPosition},
		{"uplink nodeinfo type", "msh/json", &Envelope{Type: "nodeinfo"}, KindNodeInfo},
		{"uplink telemetry type", "msh/json", &Envelope{Type: "telemetry"}, KindTelemetry},
		{"unknown type", "msh/json", &Envelope{Type: "neighborinfo"}, KindUnknown},
		{"nil envelope", "msh/json", nil, KindUnknown},
		{"empty", "", &Envelope{}, KindUnknown},
		{"topic beats type", "msh/telemetry", &Envelope{Type: "sendtext"}, KindTelemetry},
		{"text fragment checked first", "msh/text/position", &Envelope{Type: "position"}, KindText},
		{"position before nodeinfo", "nodeinfo/position", nil, KindPosition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.topic, tt.env))
		})
	}
}

func TestClassifyTypeFallback(t *testing.T) {
	known := map[string]Kind{
		"sendtext":  KindText,
		"position":  KindPosition,
		"text":      KindText,
		"nodeinfo":  KindNodeInfo,
		"telemetry": KindTelemetry,
	}
	for typ, want := range known {
		assert.Equal(t, want, Classify("msh/x", &Envelope{Type: typ}), typ)
	}

	for _, typ := range []string{"", "neighborinfo", "traceroute", "routing", "SENDTEXT", "mapreport"} {
		assert.Equal(t, KindUnknown, Classify("msh/x", &Envelope{Type: typ}), typ)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "position", KindPosition.String())
	assert.Equal(t, "nodeinfo", KindNodeInfo.String())
	assert.Equal(t, "telemetry", KindTelemetry.String())
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
