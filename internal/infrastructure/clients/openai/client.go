package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sorincom/analize-new/internal/domain/providers"
	"github.com/sorincom/analize-new/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements providers.SimilarityMatcher over an OpenAI-compatible
// responses API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *tokenBucket
}

// NewClient creates a new similarity matcher client.
func NewClient(cfg *config.MatcherConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("matcher api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		limiter: newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}, nil
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseOutput struct {
	Content []responseContent `json:"content"`
}

type responseUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type responseEnvelope struct {
	Output []responseOutput `json:"output"`
	Usage  *responseUsage   `json:"usage"`
}

// Resolve asks the model whether the descriptor denotes the same entity as
// one of the shortlist candidates. Transport failures and upstream overload
// surface as providers.ErrMatcherUnavailable; an answer that cannot be acted
// on surfaces as providers.ErrAmbiguousVerdict.
func (c *Client) Resolve(ctx context.Context, descriptor string, shortlist []providers.MatchCandidate) (providers.MatchVerdict, error) {
	var none providers.MatchVerdict

	if len(shortlist) == 0 {
		// Nothing to match against; callers normally short-circuit this, but
		// answering locally keeps the contract total without spending tokens.
		return none, nil
	}

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordMatcherMetric(ctx, c.model, 0, 0, err)
			return none, fmt.Errorf("%w: %v", providers.ErrMatcherUnavailable, err)
		}
		recordMatcherRateLimitWait(ctx, c.model, time.Since(waitStart))
	}

	payload := map[string]interface{}{
		"model": c.model,
		"input": []map[string]string{
			{"role": "system", "content": matcherSystemPrompt},
			{"role": "user", "content": buildMatcherUserPrompt(descriptor, shortlist)},
		},
		"temperature":       0.0,
		"max_output_tokens": 120,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return none, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return none, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordMatcherMetric(ctx, c.model, 0, time.Since(start), err)
		return none, fmt.Errorf("%w: %v", providers.ErrMatcherUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("status %d", resp.StatusCode)
		recordMatcherMetric(ctx, c.model, resp.StatusCode, time.Since(start), statusErr)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return none, fmt.Errorf("%w: matcher request failed with status %d", providers.ErrMatcherUnavailable, resp.StatusCode)
		}
		return none, fmt.Errorf("matcher request failed with status %d", resp.StatusCode)
	}

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		recordMatcherMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
		return none, fmt.Errorf("%w: %v", providers.ErrAmbiguousVerdict, err)
	}

	if envelope.Usage != nil {
		addUsage(ctx, c.model, envelope.Usage.InputTokens, envelope.Usage.OutputTokens)
	}

	var text string
	for _, out := range envelope.Output {
		for _, content := range out.Content {
			if content.Type == "output_text" && content.Text != "" {
				text = content.Text
				break
			}
		}
		if text != "" {
			break
		}
	}

	if text == "" {
		recordMatcherMetric(ctx, c.model, resp.StatusCode, time.Since(start), errors.New("missing output text"))
		return none, fmt.Errorf("%w: response missing output text", providers.ErrAmbiguousVerdict)
	}

	verdict, err := parseVerdict(text, shortlist)
	if err != nil {
		recordMatcherMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
		return none, err
	}

	recordMatcherMetric(ctx, c.model, resp.StatusCode, time.Since(start), nil)
	return verdict, nil
}

func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}

	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}
	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

type tokenBucket struct {
	tokens chan struct{}
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}

type matcherMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
	tokensUsed      metric.Int64Counter
}

var (
	matcherMetricsOnce sync.Once
	matcherMetricsInit bool
	matcherMetricsInst matcherMetrics
)

func ensureMatcherMetrics() {
	matcherMetricsOnce.Do(initMatcherMetrics)
}

func initMatcherMetrics() {
	meter := otel.Meter("github.com/sorincom/analize-new/matcher")

	requestCount, err := meter.Int64Counter(
		"ai.matcher.request.count",
		metric.WithDescription("Number of similarity matcher requests"),
	)
	if err != nil {
		return
	}
	requestDuration, err := meter.Float64Histogram(
		"ai.matcher.request.duration",
		metric.WithDescription("Similarity matcher request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	requestErrors, err := meter.Int64Counter(
		"ai.matcher.request.errors",
		metric.WithDescription("Number of similarity matcher request errors"),
	)
	if err != nil {
		return
	}
	rateLimitWait, err := meter.Float64Histogram(
		"ai.matcher.rate_limit.wait",
		metric.WithDescription("Time spent waiting for the matcher rate limiter in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	tokensUsed, err := meter.Int64Counter(
		"ai.matcher.tokens.used",
		metric.WithDescription("LLM tokens spent on similarity verdicts"),
	)
	if err != nil {
		return
	}

	matcherMetricsInst = matcherMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
		rateLimitWait:   rateLimitWait,
		tokensUsed:      tokensUsed,
	}
	matcherMetricsInit = true
}

func recordMatcherMetric(ctx context.Context, model string, statusCode int, duration time.Duration, err error) {
	ensureMatcherMetrics()
	if !matcherMetricsInit {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	matcherMetricsInst.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	matcherMetricsInst.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		matcherMetricsInst.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordMatcherRateLimitWait(ctx context.Context, model string, wait time.Duration) {
	ensureMatcherMetrics()
	if !matcherMetricsInit {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	matcherMetricsInst.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attrs...))
}

func addUsage(ctx context.Context, model string, inputTokens, outputTokens int64) {
	if rec := providers.UsageRecorderFromContext(ctx); rec != nil {
		rec.Add(model, inputTokens, outputTokens)
	}

	ensureMatcherMetrics()
	if !matcherMetricsInit {
		return
	}
	modelAttr := attribute.String("ai.model", model)
	matcherMetricsInst.tokensUsed.Add(ctx, inputTokens, metric.WithAttributes(modelAttr, attribute.String("ai.token_type", "input")))
	matcherMetricsInst.tokensUsed.Add(ctx, outputTokens, metric.WithAttributes(modelAttr, attribute.String("ai.token_type", "output")))
}
