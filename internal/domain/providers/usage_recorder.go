package providers

import (
	"context"
	"encoding/json"
	"sync"
)

type usageRecorderKey struct{}

// UsageRecorder accumulates per-model LLM token usage. The ingestion flow
// attaches one recorder per document so spend can be attributed to the
// document that caused it; matcher implementations report into whichever
// recorder the context carries.
type UsageRecorder struct {
	mu     sync.Mutex
	models map[string]*ModelUsage
}

// ModelUsage holds token counts for one model.
type ModelUsage struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
}

// NewUsageRecorder creates an empty recorder.
func NewUsageRecorder() *UsageRecorder {
	return &UsageRecorder{models: map[string]*ModelUsage{}}
}

// Add records token usage for a model.
func (r *UsageRecorder) Add(model string, inputTokens, outputTokens int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	usage := r.models[model]
	if usage == nil {
		usage = &ModelUsage{}
		r.models[model] = usage
	}
	usage.Input += inputTokens
	usage.Output += outputTokens
}

// Empty reports whether anything was recorded.
func (r *UsageRecorder) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.models) == 0
}

// JSON renders the accumulated usage, e.g. {"gpt-4o-mini":{"input":120,"output":14}}.
func (r *UsageRecorder) JSON() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := json.Marshal(r.models)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WithUsageRecorder returns a context carrying the recorder.
func WithUsageRecorder(ctx context.Context, rec *UsageRecorder) context.Context {
	return context.WithValue(ctx, usageRecorderKey{}, rec)
}

// UsageRecorderFromContext returns the context's recorder, or nil.
func UsageRecorderFromContext(ctx context.Context) *UsageRecorder {
	rec, _ := ctx.Value(usageRecorderKey{}).(*UsageRecorder)
	return rec
}
