// Package anthropic is the LLM surface for outreach copy generation: one
// direct message call for a single copy, the message-batch API for a full
// contact set, and a cached system prompt shared across both.
package anthropic

import (
	"context"

	"go.uber.org/zap"
)

// Client is the subset of the Anthropic API the copy generator uses.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
	CreateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error)
	GetBatch(ctx context.Context, batchID string) (*BatchResponse, error)
	GetBatchResults(ctx context.Context, batchID string) (BatchResultIterator, error)
}

// MessageRequest is one generation call.
type MessageRequest struct {
	Model     string
	MaxTokens int64
	System    []SystemBlock
	Messages  []Message
}

// SystemBlock is a system prompt block, optionally marked as a cache
// breakpoint.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// CacheControl marks a block for prompt caching.
type CacheControl struct {
	TTL string // "5m" or "1h"
}

// Message is one conversational turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// MessageResponse is the model's reply.
type MessageResponse struct {
	ID      string
	Model   string
	Content []ContentBlock
	Usage   TokenUsage
}

// ContentBlock is one block of reply content; copy text arrives as blocks
// of type "text".
type ContentBlock struct {
	Type string
	Text string
}

// BatchRequest submits many generation calls as one message batch.
type BatchRequest struct {
	Requests []BatchRequestItem
}

// BatchRequestItem is a single batch entry; CustomID ties the result back
// to the contact and channel it was generated for.
type BatchRequestItem struct {
	CustomID string
	Params   MessageRequest
}

// BatchResponse describes a batch and its processing status.
type BatchResponse struct {
	ID               string
	ProcessingStatus string
}

// BatchResultItem is one result drained from a finished batch.
type BatchResultItem struct {
	CustomID string
	Type     string // "succeeded", "errored", "canceled", "expired"
	Message  *MessageResponse
}

// BatchResultIterator streams individual results from a finished batch.
type BatchResultIterator interface {
	Next() bool
	Item() BatchResultItem
	Err() error
	Close() error
}

// BuildCachedSystemBlocks wraps the system prompt in a single block with a
// one-hour cache breakpoint. The first call of a run warms the cache; every
// batch entry after it reads the warm prefix.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{{
		Text:         text,
		CacheControl: &CacheControl{TTL: "1h"},
	}}
}

// TokenUsage tallies the tokens one or more calls consumed.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Add folds another call's usage into the tally.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

// pricePerMTok maps model ID to {input, output} USD per million tokens.
// Cache writes bill at 1.25x input, cache reads at 0.1x.
var pricePerMTok = map[string][2]float64{
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
}

func (u TokenUsage) estimateCost(model string) float64 {
	price, ok := pricePerMTok[model]
	if !ok {
		return 0
	}
	return float64(u.InputTokens)/1e6*price[0] +
		float64(u.OutputTokens)/1e6*price[1] +
		float64(u.CacheCreationInputTokens)/1e6*price[0]*1.25 +
		float64(u.CacheReadInputTokens)/1e6*price[0]*0.1
}

// LogCost emits one structured cost line for the stage. Unknown models log
// zero cost rather than guessing.
func (u TokenUsage) LogCost(model, stage string) {
	zap.L().Info("llm cost",
		zap.String("model", model),
		zap.String("stage", stage),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.estimateCost(model)),
	)
}
