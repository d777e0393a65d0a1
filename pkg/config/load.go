package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const envPrefix = "MESHGRAM"

const (
	DefaultMessageFormat  = "📱 {user}: {message}"
	DefaultWelcomeMessage = "👋 Welcome to the Meshtastic bridge! Send a message and it will be relayed to the mesh. See /help for commands."
)

// SetDefaults registers the default value of every optional key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.topics.subscribe", []string{"msh/+/2/json/#"})
	v.SetDefault("mqtt.topics.publish", "msh/US/2/json/mqtt/")
	v.SetDefault("mqtt.embedded.listen_addr", ":1883")
	v.SetDefault("mqtt.embedded.topic_root", "msh")

	v.SetDefault("telegram.welcome_message", DefaultWelcomeMessage)
	v.SetDefault("telegram.api_endpoint", "")

	v.SetDefault("bridge.message_format", DefaultMessageFormat)
	v.SetDefault("bridge.max_message_length", 200)
	v.SetDefault("bridge.enable_position_sharing", true)
	v.SetDefault("bridge.log_level", "info")
	v.SetDefault("bridge.queue_interval", time.Second)
	v.SetDefault("bridge.queue_capacity", 1000)

	v.SetDefault("database.host", "localhost:5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("http.listen_addr", "")
}

// Load reads the configuration file at path, or searches the default
// locations when path is empty. Environment variables prefixed with
// MESHGRAM_ override file values.
func Load(path string) (*Configuration, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/meshgram")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var cfg Configuration
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Mqtt.ClientID == "" {
		cfg.Mqtt.ClientID = "meshgram-" + uuid.NewString()[:8]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
