package mesh

import "strings"

// Kind is the semantic class of a broker message.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindPosition
	KindNodeInfo
	KindTelemetry
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPosition:
		return "position"
	case KindNodeInfo:
		return "nodeinfo"
	case KindTelemetry:
		return "telemetry"
	default:
		return "unknown"
	}
}

// Topic substrings are checked in this order before the envelope type.
var topicKinds = []struct {
	fragment string
	kind     Kind
}{
	{"text", KindText},
	{"position", KindPosition},
	{"telemetry", KindTelemetry},
	{"nodeinfo", KindNodeInfo},
}

var typeKinds = map[string]Kind{
	"sendtext":  KindText,
	"text":      KindText,
	"position":  KindPosition,
	"nodeinfo":  KindNodeInfo,
	"telemetry": KindTelemetry,
}

// Classify assigns a Kind using the topic first and the envelope "type"
// field second. env may be nil.
func Classify(topic string, env *Envelope) Kind {
	for _, tk := range topicKinds {
		if strings.Contains(topic, tk.fragment) {
			return tk.kind
		}
	}
	if env == nil {
		return KindUnknown
	}
	if k, ok := typeKinds[env.Type]; ok {
		return k
	}
	return KindUnknown
}
