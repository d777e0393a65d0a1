package broker

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabili207/mesh-telegram-bridge/pkg/auth"
	"github.com/kabili207/mesh-telegram-bridge/pkg/config"
)

func newTestHook(t *testing.T, root string) *AccessHook {
	t.Helper()
	hash, salt, err := auth.GenerateHashAndSalt("s3cret")
	require.NoError(t, err)

	h := new(AccessHook)
	h.SetOpts(slog.Default(), nil)
	require.NoError(t, h.Init(&AccessHookOptions{
		Users:     []config.BrokerUser{{Username: "gateway", PasswordHash: hash, Salt: salt}},
		TopicRoot: root,
	}))
	return h
}

func TestAccessHookInitRejectsBadConfig(t *testing.T) {
	h := new(AccessHook)
	h.SetOpts(slog.Default(), nil)
	require.ErrorIs(t, h.Init(nil), mqtt.ErrInvalidConfigType)
	require.ErrorIs(t, h.Init("nope"), mqtt.ErrInvalidConfigType)
}

func TestAccessHookProvides(t *testing.T) {
	h := newTestHook(t, "msh")
	assert.True(t, h.Provides(mqtt.OnConnectAuthenticate))
	assert.True(t, h.Provides(mqtt.OnACLCheck))
	assert.False(t, h.Provides(mqtt.OnPublish))
}

func TestAccessHookAuthenticate(t *testing.T) {
	h := newTestHook(t, "msh")
	cl := &mqtt.Client{ID: "!deadbeef"}

	connect := func(user, pass string) packets.Packet {
		return packets.Packet{Connect: packets.ConnectParams{Username: []byte(user), Password: []byte(pass)}}
	}

	assert.True(t, h.OnConnectAuthenticate(cl, connect("gateway", "s3cret")))
	assert.False(t, h.OnConnectAuthenticate(cl, connect("gateway", "wrong")))
	assert.False(t, h.OnConnectAuthenticate(cl, connect("stranger", "s3cret")))
	assert.False(t, h.OnConnectAuthenticate(cl, connect("", "")))
}

func TestAccessHookACL(t *testing.T) {
	h := newTestHook(t, "/msh/")
	remote := &mqtt.Client{ID: "!deadbeef"}
	inline := &mqtt.Client{ID: "inline", Net: mqtt.ClientConnection{Inline: true}}

	assert.True(t, h.OnACLCheck(remote, "msh/US/2/json/LongFast/!deadbeef", true))
	assert.True(t, h.OnACLCheck(remote, "msh/US/2/json/#", false))
	assert.False(t, h.OnACLCheck(remote, "other/topic", true))
	assert.False(t, h.OnACLCheck(remote, "$SYS/broker/uptime", false))
	assert.True(t, h.OnACLCheck(inline, "other/topic", true))
}

func TestTLSConfig(t *testing.T) {
	cfg := config.MqttSettings{Host: "mqtt.example.org", InsecureSkipVerify: true}
	tlsCfg, err := tlsConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mqtt.example.org", tlsCfg.ServerName)
	assert.True(t, tlsCfg.InsecureSkipVerify)
	assert.Nil(t, tlsCfg.RootCAs)

	cfg.CACert = filepath.Join(t.TempDir(), "missing.pem")
	_, err = tlsConfig(cfg)
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))
	cfg.CACert = bad
	_, err = tlsConfig(cfg)
	require.Error(t, err)
}

func TestClientPublishWhenDisconnected(t *testing.T) {
	c, err := NewClient(config.MqttSettings{Host: "127.0.0.1", Port: 1, ClientID: "test"}, nil)
	require.NoError(t, err)

	assert.False(t, c.Connected())
	require.ErrorIs(t, c.Publish("msh/test", []byte("{}")), ErrNotConnected)
	// Subscribing before the first connection is deferred to onConnect
	require.NoError(t, c.Subscribe([]string{"msh/#"}, func(string, []byte) {}))
	require.NoError(t, c.Close())
}

func TestClientConnectFailsFast(t *testing.T) {
	c, err := NewClient(config.MqttSettings{Host: "127.0.0.1", Port: 1, ClientID: "test"}, nil)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = c.Connect(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, c.Connected())
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestClientKeepsArrivalOrder(t *testing.T) {
	hash, salt, err := auth.GenerateHashAndSalt("s3cret")
	require.NoError(t, err)

	port := freePort(t)
	e, err := NewEmbedded(config.MqttSettings{
		Embedded: config.EmbeddedBroker{
			Enabled:    true,
			ListenAddr: "127.0.0.1:" + strconv.Itoa(port),
			TopicRoot:  "msh",
			Users:      []config.BrokerUser{{Username: "gateway", PasswordHash: hash, Salt: salt}},
		},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, e.Connect(context.Background()))
	defer e.Close()

	c, err := NewClient(config.MqttSettings{
		Host:     "127.0.0.1",
		Port:     port,
		Username: "gateway",
		Password: "s3cret",
		ClientID: "order-test",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	const total = 300
	var mu sync.Mutex
	got := make([]string, 0, total)
	require.NoError(t, c.Subscribe([]string{"msh/#"}, func(_ string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(payload))
	}))

	for i := 0; i < total; i++ {
		require.NoError(t, e.Publish("msh/US/2/json/LongFast/!ab12", []byte(strconv.Itoa(i))))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == total
	}, 10*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, payload := range got {
		require.Equal(t, strconv.Itoa(i), payload)
	}
}

func TestEmbeddedRoundTrip(t *testing.T) {
	e, err := NewEmbedded(config.MqttSettings{
		Embedded: config.EmbeddedBroker{Enabled: true, ListenAddr: "127.0.0.1:0", TopicRoot: "msh"},
	}, nil)
	require.NoError(t, err)

	require.ErrorIs(t, e.Publish("msh/test", []byte("{}")), ErrNotConnected)
	require.NoError(t, e.Connect(context.Background()))
	defer e.Close()
	assert.True(t, e.Connected())

	var mu sync.Mutex
	var got []string
	require.NoError(t, e.Subscribe([]string{"msh/#"}, func(topic string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, topic+" "+string(payload))
	}))

	require.NoError(t, e.Publish("msh/US/2/json/mqtt/", []byte(`{"type":"sendtext"}`)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, `msh/US/2/json/mqtt/ {"type":"sendtext"}`, got[0])
}

func TestNewSelectsImplementation(t *testing.T) {
	b, err := New(config.MqttSettings{Host: "localhost", Port: 1883, ClientID: "x"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Client{}, b)

	b, err = New(config.MqttSettings{Embedded: config.EmbeddedBroker{Enabled: true, ListenAddr: "127.0.0.1:0"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Embedded{}, b)
}
