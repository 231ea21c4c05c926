package connector

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/arc-self/riskstream/internal/config"
)

// LoadSpecsFromFile reads a JSON array of Spec from path, applying
// ${VAR} substitution to every string value.
func LoadSpecsFromFile(path string) ([]Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("connector: read %s: %w", path, err)
	}
	expanded := config.ExpandEnv(string(raw))
	var specs []Spec
	if err := json.Unmarshal([]byte(expanded), &specs); err != nil {
		return nil, fmt.Errorf("connector: parse %s: %w", path, err)
	}
	return specs, nil
}

// LoadSpecsFromEnv builds Specs from ENABLED_CONNECTORS=a,b,c plus
// CONNECTOR_<NAME>_* environment variables, applying
// ${VAR} substitution to each value.
func LoadSpecsFromEnv() []Spec {
	names := os.Getenv("ENABLED_CONNECTORS")
	if names == "" {
		return nil
	}

	var specs []Spec
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		prefix := "CONNECTOR_" + strings.ToUpper(name) + "_"
		spec := Spec{
			Name:             name,
			Type:             config.ExpandEnv(os.Getenv(prefix + "TYPE")),
			Enabled:          envBool(prefix+"ENABLED", true),
			PollIntervalMs:   envInt64(prefix+"POLL_INTERVAL_MS", 60_000),
			RequestTimeoutMs: envInt64(prefix+"REQUEST_TIMEOUT_MS", 10_000),
			MaxRetries:       int(envInt64(prefix+"MAX_RETRIES", 3)),
			OutputStream:     config.ExpandEnv(getOr(os.Getenv(prefix+"OUTPUT_STREAM"), "raw-input-signals")),
			LeaseTTLSeconds:  envInt64(prefix+"LEASE_TTL_SECONDS", 30),
			ProviderConfig:   providerConfigFromEnv(prefix),
		}
		specs = append(specs, spec)
	}
	return specs
}

func providerConfigFromEnv(prefix string) map[string]string {
	cfg := make(map[string]string)
	reserved := map[string]bool{"TYPE": true, "ENABLED": true, "POLL_INTERVAL_MS": true,
		"REQUEST_TIMEOUT_MS": true, "MAX_RETRIES": true, "OUTPUT_STREAM": true, "LEASE_TTL_SECONDS": true}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		suffix := strings.TrimPrefix(parts[0], prefix)
		if reserved[suffix] {
			continue
		}
		cfg[strings.ToLower(suffix)] = config.ExpandEnv(parts[1])
	}
	return cfg
}

func getOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
