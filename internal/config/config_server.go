package config

import "time"

// ServerConfig configures the HTTP listener the gateway binds on serve.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
	GRPCPort    int    `yaml:"grpc_port"`
}

// DatabaseConfig is the Postgres connection the RAG store reads from.
// Session/auth persistence is out of scope, so this carries no other
// consumer.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}
