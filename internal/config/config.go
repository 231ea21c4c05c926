package config

import (
	"os"
	"regexp"
	"strconv"
)

// Transport holds the event-bus-wide settings every binary shares.
type Transport struct {
	URL             string
	StreamMaxLen    int64
	DedupTTLSeconds int64
	// RetryKeyTTLSeconds bounds the delivery-attempt counters; a separate
	// policy from the dedup TTL, configured independently.
	RetryKeyTTLSeconds int64
	ConsumerBlockMs    int64
	ConsumerBatch      int64
	MaxDeliveries      int
}

// LoadTransport reads transport settings from the environment, applying
// the documented fallbacks.
func LoadTransport() Transport {
	return Transport{
		URL:                getEnv("RISKSTREAM_REDIS_URL", "redis://localhost:6379/0"),
		StreamMaxLen:       getEnvInt64("RISKSTREAM_STREAM_MAX_LEN", 100_000),
		DedupTTLSeconds:    getEnvInt64("RISKSTREAM_DEDUP_TTL_SECONDS", 604_800),
		RetryKeyTTLSeconds: getEnvInt64("RISKSTREAM_RETRY_KEY_TTL_SECONDS", 86_400),
		ConsumerBlockMs:    getEnvInt64("RISKSTREAM_CONSUMER_BLOCK_MS", 5_000),
		ConsumerBatch:      getEnvInt64("RISKSTREAM_CONSUMER_BATCH_SIZE", 50),
		MaxDeliveries:      int(getEnvInt64("RISKSTREAM_MAX_DELIVERIES", 5)),
	}
}

// WorkerConfig holds a worker's consumer-group settings.
type WorkerConfig struct {
	Group        string
	ConsumerName string // empty means the caller should derive a default
}

// LoadWorkerConfig reads a worker's group name and optional consumer
// override from env vars namespaced by role, e.g. "INGESTION".
func LoadWorkerConfig(role string) WorkerConfig {
	return WorkerConfig{
		Group:        getEnv("RISKSTREAM_"+role+"_GROUP", role+"-workers"),
		ConsumerName: os.Getenv("RISKSTREAM_" + role + "_CONSUMER"),
	}
}

// GatewayConfig holds the request-gateway admission settings, shared by
// the ingestion HTTP gateway and the planning gateway.
type GatewayConfig struct {
	Port             string
	BearerToken      string
	MaxConcurrency   int
	MaxQueueSize     int
	RequestTimeoutMs int64
	MaxRequestBytes  int64
}

// LoadGatewayConfig reads a gateway's HTTP/admission settings from env
// vars namespaced by role, e.g. "INGESTION" or "PLANNING".
func LoadGatewayConfig(role string) GatewayConfig {
	return GatewayConfig{
		Port:             getEnv("RISKSTREAM_"+role+"_PORT", "8080"),
		BearerToken:      os.Getenv("RISKSTREAM_" + role + "_BEARER_TOKEN"),
		MaxConcurrency:   int(getEnvInt64("RISKSTREAM_"+role+"_MAX_CONCURRENCY", 32)),
		MaxQueueSize:     int(getEnvInt64("RISKSTREAM_"+role+"_MAX_QUEUE_SIZE", 256)),
		RequestTimeoutMs: getEnvInt64("RISKSTREAM_"+role+"_REQUEST_TIMEOUT_MS", 10_000),
		MaxRequestBytes:  getEnvInt64("RISKSTREAM_"+role+"_MAX_REQUEST_BYTES", 1<<20),
	}
}

// ClassifierConfig holds the classifier settings.
type ClassifierConfig struct {
	Mode                string // RULE_BASED or LLM
	ConfidenceThreshold float64
	ModelVersion        string
	LLMEndpoint         string
	APIKey              string
	Model               string
	TimeoutMs           int64
	MaxConcurrency      int
	MaxQueueSize        int
	MaxRetries          int
	RetryBaseDelayMs    int64
}

// LoadClassifierConfig reads classifier settings from the environment.
func LoadClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Mode:                getEnv("RISKSTREAM_CLASSIFIER_MODE", "RULE_BASED"),
		ConfidenceThreshold: getEnvFloat("RISKSTREAM_CLASSIFIER_CONFIDENCE_THRESHOLD", 0.65),
		ModelVersion:        getEnv("RISKSTREAM_CLASSIFIER_MODEL_VERSION", "v1"),
		LLMEndpoint:         os.Getenv("RISKSTREAM_CLASSIFIER_LLM_ENDPOINT"),
		APIKey:              os.Getenv("RISKSTREAM_CLASSIFIER_API_KEY"),
		Model:               getEnv("RISKSTREAM_CLASSIFIER_MODEL", "gpt-4o-mini"),
		TimeoutMs:           getEnvInt64("RISKSTREAM_CLASSIFIER_TIMEOUT_MS", 8_000),
		MaxConcurrency:      int(getEnvInt64("RISKSTREAM_CLASSIFIER_MAX_CONCURRENCY", 8)),
		MaxQueueSize:        int(getEnvInt64("RISKSTREAM_CLASSIFIER_MAX_QUEUE_SIZE", 500)),
		MaxRetries:          int(getEnvInt64("RISKSTREAM_CLASSIFIER_MAX_RETRIES", 2)),
		RetryBaseDelayMs:    getEnvInt64("RISKSTREAM_CLASSIFIER_RETRY_BASE_DELAY_MS", 150),
	}
}

// NotifierConfig holds the notification-worker's dispatch settings.
type NotifierConfig struct {
	Channel       string // WEBHOOK or LOG_ONLY
	WebhookURL    string
	WebhookSecret string
	PGURL         string
}

// LoadNotifierConfig reads notifier settings from the environment.
func LoadNotifierConfig() NotifierConfig {
	return NotifierConfig{
		Channel:       getEnv("RISKSTREAM_NOTIFIER_CHANNEL", "LOG_ONLY"),
		WebhookURL:    os.Getenv("RISKSTREAM_NOTIFIER_WEBHOOK_URL"),
		WebhookSecret: os.Getenv("RISKSTREAM_NOTIFIER_WEBHOOK_SECRET"),
		PGURL:         os.Getenv("RISKSTREAM_DELIVERY_LOG_PG_URL"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
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

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv substitutes ${VAR} occurrences in s with the corresponding
// environment variable value, used by the connector registry loader for
// both its JSON-file and env-var forms.
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := envVarPattern.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})
}
