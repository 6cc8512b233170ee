// Package config loads and validates traitstore client configuration.
//
// Configuration is read with github.com/spf13/viper from a JSON, YAML or
// TOML file, with every key overridable through TRAITSTORE_ prefixed
// environment variables (nats.urls becomes TRAITSTORE_NATS_URLS). Values
// missing from both fall back to Default().
//
// # Basic Usage
//
//	v := config.NewViper()
//	_ = v.BindPFlag("nats.urls", cmd.Flags().Lookup("nats-url"))
//
//	cfg, err := config.Load(v, configPath)
//	if err != nil {
//		return err
//	}
//
//	c := client.New(t, client.WithPriorityTable(cfg.Priority.Table()))
//
// Validation failures are classified invalid, so errors.IsInvalid reports
// them and errors.Is matches errors.ErrInvalidConfig.
//
// Viper folds map keys to lower case, so priority overrides for type names
// or entity ids must be written in lower case.
package config
