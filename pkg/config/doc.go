// Package config loads configuration structs from environment variables
// using `env` field tags, with optional .env file support.
//
// Every configurable component in the module declares a Config struct with
// tagged fields (see opqueue.Config, kvstore.RedisConfig,
// kvstore.PostgresConfig); this package turns the process environment into
// those structs:
//
//	var cfg kvstore.RedisConfig
//	config.MustLoad(&cfg)
//	store, err := kvstore.ConnectRedis(ctx, cfg)
//
// The default .env file in the working directory is loaded once per process
// if it exists; LoadEnv loads explicit files, later ones overriding earlier
// ones.
package config
