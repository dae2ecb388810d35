package resque

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig is the on-disk shape for a worker's configuration file.
type YAMLConfig struct {
	Redis  RedisYAML  `yaml:"redis"`
	Worker WorkerYAML `yaml:"worker"`
}

// RedisYAML holds the Redis connection settings. TLS is read from the
// file but not applied: toConfig ignores it and connections are plaintext.
type RedisYAML struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// WorkerYAML holds per-worker settings. Queue accepts a single
// comma-separated string (the original Resque QUEUE env var shape);
// Queues accepts a YAML list. Both populate the same field — Queues wins
// if both are given.
type WorkerYAML struct {
	Queue     string   `yaml:"queue"`
	Queues    []string `yaml:"queues"`
	Blocking  bool     `yaml:"blocking"`
	Interval  string   `yaml:"interval"`
	StatusTTL string   `yaml:"status_ttl"`
	Hostname  string   `yaml:"hostname"`
}

// LoadConfig loads configuration from a YAML file, expanding ${VAR} and
// ${VAR:-default} references against the process environment before
// parsing. If path is empty, it defaults to "config.yml" in the current
// directory.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	data = expandEnvVars(data)

	var yc YAMLConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := toConfig(&yc)
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment variable values.
func expandEnvVars(data []byte) []byte {
	re := regexp.MustCompile(`\$\{([^}:\s]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllFunc(data, func(match []byte) []byte {
		submatch := re.FindSubmatch(match)
		if len(submatch) < 2 {
			return match
		}

		varName := string(submatch[1])
		value := os.Getenv(varName)

		if value == "" && len(submatch) >= 3 && len(submatch[2]) > 0 {
			value = string(submatch[2])
		}

		return []byte(value)
	})
}

// toConfig converts a YAMLConfig to a Config, layering parsed values over
// DefaultConfig().
func toConfig(yc *YAMLConfig) Config {
	cfg := DefaultConfig()

	if yc.Redis.Addr != "" {
		cfg.RedisAddr = yc.Redis.Addr
	}
	cfg.RedisPassword = yc.Redis.Password
	cfg.RedisDB = yc.Redis.DB

	switch {
	case len(yc.Worker.Queues) > 0:
		cfg.Queues = yc.Worker.Queues
	case yc.Worker.Queue != "":
		cfg.Queues = splitQueueList(yc.Worker.Queue)
	}

	cfg.Blocking = yc.Worker.Blocking
	cfg.Hostname = yc.Worker.Hostname

	if yc.Worker.Interval != "" {
		if d, err := time.ParseDuration(yc.Worker.Interval); err == nil {
			cfg.Interval = d
		}
	}
	if yc.Worker.StatusTTL != "" {
		if d, err := time.ParseDuration(yc.Worker.StatusTTL); err == nil {
			cfg.StatusTTL = d
		}
	}

	return cfg
}

// splitQueueList splits a comma-separated "queue: high,low" style value,
// trimming whitespace around each name.
func splitQueueList(raw string) []string {
	var out []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
