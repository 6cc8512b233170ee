package config

import (
	stderrors "errors"
	"strings"

	"github.com/spf13/viper"

	"github.com/c360/traitstore/errors"
)

// NewViper returns a viper instance seeded with Default() and reading
// TRAITSTORE_ prefixed environment overrides. Callers may bind flags to it
// before passing it to Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every leaf key so AutomaticEnv can see it during
// Unmarshal
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("transport", d.Transport)

	v.SetDefault("nats.urls", d.NATS.URLs)
	v.SetDefault("nats.name", d.NATS.Name)
	v.SetDefault("nats.max_reconnects", d.NATS.MaxReconnects)
	v.SetDefault("nats.reconnect_wait", d.NATS.ReconnectWait)
	v.SetDefault("nats.timeout", d.NATS.Timeout)
	v.SetDefault("nats.username", d.NATS.Username)
	v.SetDefault("nats.password", d.NATS.Password)
	v.SetDefault("nats.token", d.NATS.Token)
	v.SetDefault("nats.circuit_breaker_threshold", d.NATS.CircuitBreakerThreshold)
	v.SetDefault("nats.connect_attempts", d.NATS.ConnectAttempts)
	v.SetDefault("nats.kv_watch_bucket", d.NATS.KVWatchBucket)
	setTLSDefaults(v, "nats.tls", d.NATS.TLS)

	v.SetDefault("subjects.mutate", d.Subjects.Mutate)
	v.SetDefault("subjects.query", d.Subjects.Query)
	v.SetDefault("subjects.watch", d.Subjects.Watch)
	v.SetDefault("subjects.watch_cancel", d.Subjects.WatchCancel)
	v.SetDefault("subjects.query_cancel", d.Subjects.QueryCancel)

	v.SetDefault("websocket.url", d.WebSocket.URL)
	v.SetDefault("websocket.write_timeout", d.WebSocket.WriteTimeout)
	setTLSDefaults(v, "websocket.tls", d.WebSocket.TLS)

	v.SetDefault("priority.use_defaults", d.Priority.UseDefaults)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

func setTLSDefaults(v *viper.Viper, prefix string, d TLSConfig) {
	v.SetDefault(prefix+".enabled", d.Enabled)
	v.SetDefault(prefix+".ca_files", d.CAFiles)
	v.SetDefault(prefix+".cert_file", d.CertFile)
	v.SetDefault(prefix+".key_file", d.KeyFile)
	v.SetDefault(prefix+".insecure_skip_verify", d.InsecureSkipVerify)
	v.SetDefault(prefix+".min_version", d.MinVersion)
}

// Load reads path into v, unmarshals and validates the result. An empty path
// searches the working directory and $HOME/.config/traitstore for a file
// named traitstore in any format viper understands; not finding one is not
// an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}

	if path != "" {
		if err := checkConfigFile(path); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "check config file")
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "read "+path)
		}
	} else {
		v.SetConfigName("traitstore")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/traitstore")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, errors.WrapInvalid(err, "Config", "Load", "read config")
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
