package anthropic

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollCap      = 15 * time.Second
	defaultPollTimeout  = 30 * time.Minute
)

// PollOption tunes batch polling.
type PollOption func(*pollConfig)

type pollConfig struct {
	interval time.Duration
	cap      time.Duration
	timeout  time.Duration
}

// WithPollInterval sets the initial interval between status checks.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) { c.interval = d }
}

// WithPollTimeout bounds the total wait for a batch to finish.
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) { c.timeout = d }
}

// PollBatch checks the batch status until it ends or the deadline passes.
// The interval doubles up to a cap, with jitter so concurrent workers do
// not poll in lockstep. Expired and canceled batches are errors.
func PollBatch(ctx context.Context, client Client, batchID string, opts ...PollOption) (*BatchResponse, error) {
	cfg := pollConfig{
		interval: defaultPollInterval,
		cap:      defaultPollCap,
		timeout:  defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	interval := cfg.interval
	for {
		batch, err := client.GetBatch(ctx, batchID)
		if err != nil {
			return nil, eris.Wrapf(err, "anthropic: poll batch %s", batchID)
		}

		switch batch.ProcessingStatus {
		case "ended":
			return batch, nil
		case "expired":
			return batch, eris.Errorf("anthropic: batch %s expired", batchID)
		case "canceled", "canceling":
			return batch, eris.Errorf("anthropic: batch %s canceled", batchID)
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "anthropic: poll batch %s timed out", batchID)
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}
		if jitter := int64(interval) / 5; jitter > 0 {
			interval += time.Duration(rand.Int64N(2*jitter) - jitter)
		}
	}
}

// CollectBatchResults drains the iterator into succeeded responses keyed by
// custom ID. Failed items are logged and left out; the caller sees them as
// missing keys.
func CollectBatchResults(iter BatchResultIterator) (map[string]*MessageResponse, error) {
	defer iter.Close()

	succeeded := make(map[string]*MessageResponse)
	failed := 0
	for iter.Next() {
		item := iter.Item()
		if item.Type == "succeeded" && item.Message != nil {
			succeeded[item.CustomID] = item.Message
			continue
		}
		failed++
		zap.L().Warn("batch item failed",
			zap.String("custom_id", item.CustomID),
			zap.String("type", item.Type))
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrap(err, "anthropic: read batch results")
	}
	if failed > 0 {
		zap.L().Warn("batch finished with failed items",
			zap.Int("succeeded", len(succeeded)), zap.Int("failed", failed))
	}
	return succeeded, nil
}
