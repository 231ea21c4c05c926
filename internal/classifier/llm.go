package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/domain"
	"github.com/arc-self/riskstream/internal/gateway"
)

// ErrNoJSONCandidate is returned when the upstream's completion contains
// no parseable, alias-table-valid structured-risk draft.
var ErrNoJSONCandidate = errors.New("classifier: upstream response contained no valid structured-risk draft")

const defaultSystemPrompt = `You classify supply-chain risk signals. Respond with a single JSON object ` +
	`with exactly these fields: event_type, severity_level, impact_region, ` +
	`expected_duration_hours, classification_confidence, model_version. No prose.`

var userPromptTemplate = template.Must(template.New("classify").Parse(
	`Signal: source_type={{.SourceType}} geographic_scope={{.GeographicScope}} content="{{.RawContent}}"`,
))

// chatCompletionRequest mirrors the OpenAI-compatible chat-completions
// request body.
type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
	Messages       []chatMessage     `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// LLM classifies signals by calling an OpenAI-compatible
// /v1/chat/completions endpoint through the bounded-concurrency request
// gateway. The upstream call is a plain net/http client via the shared
// retry helpers in internal/gateway.
type LLM struct {
	gw          *gateway.Gateway
	client      *http.Client
	upstreamURL string
	apiKey      string
	model       string
	timeout     time.Duration
	maxAttempts int
	retryBaseMs int64
	logger      *zap.Logger
}

// Config configures an LLM classifier.
type Config struct {
	UpstreamBaseURL  string
	APIKey           string
	Model            string
	Timeout          time.Duration
	MaxConcurrency   int
	MaxQueueSize     int
	MaxRetries       int
	RetryBaseDelayMs int64
}

// New builds an LLM classifier bound to its own request gateway instance
// (distinct from the ingestion gateway's — the two are configured
// independently).
func New(cfg Config, logger *zap.Logger) *LLM {
	return &LLM{
		gw:          gateway.New(gateway.Config{MaxConcurrency: cfg.MaxConcurrency, MaxQueueSize: cfg.MaxQueueSize}),
		client:      &http.Client{},
		upstreamURL: cfg.UpstreamBaseURL + "/v1/chat/completions",
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxRetries + 1,
		retryBaseMs: cfg.RetryBaseDelayMs,
		logger:      logger,
	}
}

// Gateway exposes the underlying request gateway so the HTTP /classify
// handler can admit requests and report overflow.
func (l *LLM) Gateway() *gateway.Gateway { return l.gw }

func (l *LLM) Classify(ctx context.Context, signal domain.Signal) (domain.StructuredRisk, error) {
	var result domain.StructuredRisk
	err := l.gw.Do(ctx, func(ctx context.Context) error {
		sr, err := l.callUpstream(ctx, signal)
		if err != nil {
			return err
		}
		result = sr
		return nil
	})
	return result, err
}

func (l *LLM) callUpstream(ctx context.Context, signal domain.Signal) (domain.StructuredRisk, error) {
	var userPrompt bytes.Buffer
	if err := userPromptTemplate.Execute(&userPrompt, signal); err != nil {
		return domain.StructuredRisk{}, fmt.Errorf("classifier: render prompt: %w", err)
	}

	reqBody, err := json.Marshal(chatCompletionRequest{
		Model:          l.model,
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: defaultSystemPrompt},
			{Role: "user", Content: userPrompt.String()},
		},
	})
	if err != nil {
		return domain.StructuredRisk{}, fmt.Errorf("classifier: marshal request: %w", err)
	}

	headers := map[string]string{}
	if l.apiKey != "" {
		headers["Authorization"] = "Bearer " + l.apiKey
	}

	respBody, err := gateway.PostJSON(ctx, l.client, l.upstreamURL, reqBody, headers, l.timeout, l.maxAttempts, l.retryBaseMs)
	if err != nil {
		return domain.StructuredRisk{}, err
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return domain.StructuredRisk{}, fmt.Errorf("classifier: decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return domain.StructuredRisk{}, ErrNoJSONCandidate
	}

	candidate, ok := resolveCompletionJSON(completion.Choices[0].Message.Content)
	if !ok || !domain.ValidateStructuredRiskCandidate(candidate) {
		return domain.StructuredRisk{}, ErrNoJSONCandidate
	}

	sr := domain.ResolveStructuredRisk(candidate)
	if sr.ModelVersion == "" {
		sr.ModelVersion = l.model
	}
	return sr, nil
}
