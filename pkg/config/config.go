package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"
)

var ErrInvalid = errors.New("invalid configuration")

type Configuration struct {
	Mqtt     MqttSettings     `mapstructure:"mqtt"`
	Telegram TelegramSettings `mapstructure:"telegram"`
	Bridge   BridgeSettings   `mapstructure:"bridge"`
	Database struct {
		User        string `mapstructure:"user"`
		Password    string `mapstructure:"password"`
		Host        string `mapstructure:"host"`
		DB          string `mapstructure:"db"`
		SSLMode     string `mapstructure:"sslmode"`
		AutoMigrate bool   `mapstructure:"auto_migrate"`
	} `mapstructure:"database"`
	HTTP struct {
		ListenAddr string `mapstructure:"listen_addr"`
	} `mapstructure:"http"`
}

type MqttSettings struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	ClientID           string `mapstructure:"client_id"`
	UseTLS             bool   `mapstructure:"use_tls"`
	CACert             string `mapstructure:"ca_cert"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	QoS                byte   `mapstructure:"qos"`
	// GatewayNode is the node number put in the "from" field of downlink
	// envelopes. Meshtastic gateways ignore JSON downlink without it.
	GatewayNode uint32 `mapstructure:"gateway_node"`
	Topics      struct {
		Subscribe []string `mapstructure:"subscribe"`
		Publish   string   `mapstructure:"publish"`
	} `mapstructure:"topics"`
	Embedded EmbeddedBroker `mapstructure:"embedded"`
}

// EmbeddedBroker runs an in-process MQTT server instead of dialing Host.
type EmbeddedBroker struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	// TopicRoot limits what remote clients may publish and subscribe to.
	TopicRoot string       `mapstructure:"topic_root"`
	Users     []BrokerUser `mapstructure:"users"`
}

type BrokerUser struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Salt         string `mapstructure:"salt"`
}

type TelegramSettings struct {
	Token          string  `mapstructure:"token"`
	AdminIDs       []int64 `mapstructure:"admin_ids"`
	AllowedChats   []int64 `mapstructure:"allowed_chats"`
	WelcomeMessage string  `mapstructure:"welcome_message"`
	Debug          bool    `mapstructure:"debug"`
	// APIEndpoint overrides the Bot API URL format, for self-hosted
	// Bot API servers.
	APIEndpoint string `mapstructure:"api_endpoint"`
}

// IsAdmin reports whether chatID is in the configured admin set.
func (t TelegramSettings) IsAdmin(chatID int64) bool {
	return slices.Contains(t.AdminIDs, chatID)
}

// IsAllowed reports whether chatID may use the bot. An empty allow-list
// admits everyone.
func (t TelegramSettings) IsAllowed(chatID int64) bool {
	if len(t.AllowedChats) == 0 {
		return true
	}
	return slices.Contains(t.AllowedChats, chatID)
}

type BridgeSettings struct {
	MessageFormat         string        `mapstructure:"message_format"`
	MaxMessageLength      int           `mapstructure:"max_message_length"`
	EnablePositionSharing bool          `mapstructure:"enable_position_sharing"`
	LogLevel              string        `mapstructure:"log_level"`
	QueueInterval         time.Duration `mapstructure:"queue_interval"`
	QueueCapacity         int           `mapstructure:"queue_capacity"`
}

// DatabaseURL builds the PostgreSQL connection URL.
func (c *Configuration) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   c.Database.Host,
		Path:   "/" + c.Database.DB,
	}
	q := u.Query()
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q.Set("sslmode", sslMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Validate checks the settings the bridge cannot start without.
func (c *Configuration) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram.token is required", ErrInvalid)
	}
	if !c.Mqtt.Embedded.Enabled && c.Mqtt.Host == "" {
		return fmt.Errorf("%w: mqtt.host is required unless mqtt.embedded.enabled is set", ErrInvalid)
	}
	if len(c.Mqtt.Topics.Subscribe) == 0 {
		return fmt.Errorf("%w: mqtt.topics.subscribe must list at least one topic", ErrInvalid)
	}
	if c.Mqtt.Topics.Publish == "" {
		return fmt.Errorf("%w: mqtt.topics.publish is required", ErrInvalid)
	}
	if c.Mqtt.QoS > 2 {
		return fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2", ErrInvalid)
	}
	if c.Bridge.MaxMessageLength < 2 {
		return fmt.Errorf("%w: bridge.max_message_length must be at least 2", ErrInvalid)
	}
	if c.Bridge.QueueInterval <= 0 {
		return fmt.Errorf("%w: bridge.queue_interval must be positive", ErrInvalid)
	}
	if c.Bridge.QueueCapacity <= 0 {
		return fmt.Errorf("%w: bridge.queue_capacity must be positive", ErrInvalid)
	}
	if c.Database.Host == "" || c.Database.DB == "" {
		return fmt.Errorf("%w: database.host and database.db are required", ErrInvalid)
	}
	return nil
}
