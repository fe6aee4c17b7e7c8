// Package config handles YAML configuration loading, environment
// variable expansion, and structural validation for opsgate.
package config

import (
	"time"

	"github.com/flemzord/opsgate/internal/permission"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Server configures the HTTP transport.
	Server ServerConfig `yaml:"server"`

	// Permissions holds the static agent/group permission rules.
	Permissions permission.Rules `yaml:"permissions"`

	// Audit configures the append-only audit trail.
	Audit AuditConfig `yaml:"audit"`

	// Limits configures per-agent request rate limiting.
	Limits LimitsConfig `yaml:"limits"`

	// Telemetry configures trace export.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP listener. Fields tagged with env can
// be overridden from the environment after the YAML is loaded, which is
// how container deployments inject the listen address.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"OPSGATE_LISTEN_ADDR"`

	// RequestTimeout bounds each operation execution.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"OPSGATE_REQUEST_TIMEOUT"`

	// MaxBodyBytes caps the accepted request body size.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"OPSGATE_MAX_BODY_BYTES"`
}

// AuditConfig configures the audit trail sinks.
type AuditConfig struct {
	// LogPath is the JSONL audit file. Empty disables the file sink.
	LogPath string `yaml:"log_path" env:"OPSGATE_AUDIT_LOG"`

	// StorePath is the SQLite database for queryable history.
	// Empty disables the store.
	StorePath string `yaml:"store_path" env:"OPSGATE_AUDIT_STORE"`

	// RetentionDays prunes stored events older than this many days.
	// Zero keeps everything.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for the retention job.
	PruneSchedule string `yaml:"prune_schedule"`
}

// LimitsConfig configures the per-agent token bucket.
type LimitsConfig struct {
	// RequestsPerSecond is the sustained rate per agent. Zero or
	// negative disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket depth per agent.
	Burst int `yaml:"burst"`
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	// OTLPEndpoint is the collector address (host:port). Empty
	// disables trace export.
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OPSGATE_OTLP_ENDPOINT"`

	// ServiceName overrides the reported service name.
	ServiceName string `yaml:"service_name"`
}

// Defaults applied when the YAML leaves fields unset.
const (
	DefaultListenAddr     = "127.0.0.1:8443"
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
	DefaultPruneSchedule  = "0 3 * * *"
)

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = DefaultPruneSchedule
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "opsgate"
	}
}
