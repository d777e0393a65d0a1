package broker

import (
	"bytes"
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/kabili207/mesh-telegram-bridge/pkg/config"
)

// AccessHookOptions contains configuration settings for the hook.
type AccessHookOptions struct {
	Users []config.BrokerUser
	// TopicRoot is the only tree remote clients may touch, e.g. "msh".
	TopicRoot string
}

// AccessHook authenticates gateways connecting to the embedded broker and
// keeps them inside the mesh topic tree.
type AccessHook struct {
	mqtt.HookBase
	users  map[string]config.BrokerUser
	filter auth.RString
}

func (h *AccessHook) ID() string {
	return "meshgram-access"
}

func (h *AccessHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mqtt.OnConnectAuthenticate,
		mqtt.OnACLCheck,
		mqtt.OnConnect,
		mqtt.OnDisconnect,
	}, []byte{b})
}

func (h *AccessHook) Init(cfg any) error {
	opts, ok := cfg.(*AccessHookOptions)
	if !ok || opts == nil {
		return mqtt.ErrInvalidConfigType
	}

	h.users = make(map[string]config.BrokerUser, len(opts.Users))
	for _, u := range opts.Users {
		h.users[u.Username] = u
	}

	root := strings.Trim(opts.TopicRoot, "/")
	if root == "" {
		root = "msh"
	}
	h.filter = auth.RString(root + "/#")

	h.Log.Info("initialised", "users", len(h.users), "filter", h.filter)
	return nil
}

// OnConnectAuthenticate accepts clients whose credentials match a
// configured user.
func (h *AccessHook) OnConnectAuthenticate(cl *mqtt.Client, pk packets.Packet) bool {
	user := string(pk.Connect.Username)
	if h.validateUser(user, string(pk.Connect.Password)) {
		h.Log.Info("client authenticated", "username", user, "client", cl.ID)
		return true
	}

	h.Log.Info("client failed authentication check",
		"username", user,
		"client", cl.ID,
		"remote", cl.Net.Remote)
	return false
}

// OnACLCheck limits remote clients to the topic root. The bridge's own
// inline client is unrestricted.
func (h *AccessHook) OnACLCheck(cl *mqtt.Client, topic string, write bool) bool {
	if cl.Net.Inline {
		return true
	}
	if h.filter.FilterMatches(topic) {
		return true
	}

	h.Log.Debug("client failed ACL check",
		"client", cl.ID,
		"username", string(cl.Properties.Username),
		"topic", topic,
		"write", write)
	return false
}

func (h *AccessHook) OnConnect(cl *mqtt.Client, pk packets.Packet) error {
	h.Log.Info("client connected", "client", cl.ID, "remote", cl.Net.Remote)
	return nil
}

func (h *AccessHook) OnDisconnect(cl *mqtt.Client, err error, expire bool) {
	if err != nil {
		h.Log.Info("client disconnected", "client", cl.ID, "expire", expire, "error", err)
	} else {
		h.Log.Info("client disconnected", "client", cl.ID, "expire", expire)
	}
}
