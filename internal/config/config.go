// Package config loads runtime configuration for the fabric's three
// binaries from defaults, an optional YAML file, and environment
// variables, in that increasing order of precedence.
//
// Grounded on ArthurCRodrigues-transcode-worker/internal/config: one
// viper.New() instance per binary, SetDefault for every spec-mandated
// default, SetEnvPrefix + AutomaticEnv for the env-var surface, and
// Unmarshal into a typed struct.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Coordinator holds the coordinator binary's configuration
// (spec.md §6).
type Coordinator struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	EdgeRouterURL     string        `mapstructure:"edge_router_url"`
	CoordinatorID     string        `mapstructure:"coordinator_id"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	WorkerTTL         time.Duration `mapstructure:"worker_ttl"`
	ProxyTimeout      time.Duration `mapstructure:"proxy_timeout"`
	DHTPort           int           `mapstructure:"dht_port"`
}

// LoadCoordinator loads Coordinator config from an optional file at
// path plus COORDINATOR_* environment variables.
func LoadCoordinator(path string) (*Coordinator, error) {
	v, err := newViper("coordinator", path)
	if err != nil {
		return nil, err
	}

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("heartbeat_interval", "30s")
	v.SetDefault("proxy_timeout", "30s")

	var cfg Coordinator
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode coordinator config: %w", err)
	}
	if cfg.WorkerTTL == 0 {
		cfg.WorkerTTL = 5 * cfg.HeartbeatInterval
	}
	if cfg.CoordinatorID == "" {
		return nil, fmt.Errorf("coordinator_id is required")
	}
	return &cfg, nil
}

// Worker holds the worker agent binary's configuration (spec.md §6).
type Worker struct {
	CoordinatorURL      string        `mapstructure:"coordinator_url"`
	WorkerID            string        `mapstructure:"worker_id"`
	WorkerType          string        `mapstructure:"worker_type"`
	TunnelMode          string        `mapstructure:"tunnel_mode"`
	ServiceReadyTimeout time.Duration `mapstructure:"service_ready_timeout"`
}

// LoadWorker loads Worker config from an optional file at path plus
// WORKER_* environment variables.
func LoadWorker(path string) (*Worker, error) {
	v, err := newViper("worker", path)
	if err != nil {
		return nil, err
	}

	v.SetDefault("worker_type", "auto")
	v.SetDefault("tunnel_mode", "none")
	v.SetDefault("service_ready_timeout", "120s")

	var cfg Worker
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode worker config: %w", err)
	}
	if cfg.CoordinatorURL == "" {
		return nil, fmt.Errorf("coordinator_url is required")
	}
	return &cfg, nil
}

// EdgeRouter holds the edge router binary's configuration (spec.md §6).
type EdgeRouter struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	DBPath         string        `mapstructure:"db_path"`
	CoordinatorTTL time.Duration `mapstructure:"coordinator_ttl"`
}

// LoadEdgeRouter loads EdgeRouter config from an optional file at path
// plus EDGEROUTER_* environment variables.
func LoadEdgeRouter(path string) (*EdgeRouter, error) {
	v, err := newViper("edgerouter", path)
	if err != nil {
		return nil, err
	}

	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("coordinator_ttl", "300s")
	v.SetDefault("db_path", "./edgerouter.db")

	var cfg EdgeRouter
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode edge router config: %w", err)
	}
	return &cfg, nil
}

func newViper(envPrefix, path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(strings.ToUpper(envPrefix))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}
