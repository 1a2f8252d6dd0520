package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/courierhq/courier"
)

// loadConfig reads courierd settings from courierd.yaml (working
// directory or /etc/courierd) and COURIER_-prefixed environment
// variables, falling back to defaults.
func loadConfig() (courier.Config, error) {
	def := courier.DefaultConfig()

	viper.SetDefault("environment", string(def.Environment))
	viper.SetDefault("broker_url", def.BrokerURL)
	viper.SetDefault("queues", def.Queues)
	viper.SetDefault("concurrency", def.Concurrency)
	viper.SetDefault("shutdown_grace", def.ShutdownGrace)
	viper.SetDefault("receive_block", def.ReceiveBlock)
	viper.SetDefault("publish_retries", def.PublishRetries)
	viper.SetDefault("codec", def.Codec)
	viper.SetDefault("metrics_addr", "")
	viper.SetDefault("dlq_archive_dsn", "")

	viper.SetConfigName("courierd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/courierd")
	viper.SetEnvPrefix("courier")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return courier.Config{}, fmt.Errorf("read config: %w", err)
		}
		// No config file: defaults plus environment variables.
	}

	env, err := courier.ParseEnvironment(viper.GetString("environment"))
	if err != nil {
		return courier.Config{}, err
	}

	return courier.Config{
		Environment:    env,
		BrokerURL:      viper.GetString("broker_url"),
		Queues:         viper.GetStringSlice("queues"),
		Concurrency:    viper.GetInt("concurrency"),
		ShutdownGrace:  viper.GetDuration("shutdown_grace"),
		ReceiveBlock:   viper.GetDuration("receive_block"),
		PublishRetries: viper.GetInt("publish_retries"),
		Codec:          viper.GetString("codec"),
		MetricsAddr:    viper.GetString("metrics_addr"),
		DLQArchiveDSN:  viper.GetString("dlq_archive_dsn"),
	}, nil
}
