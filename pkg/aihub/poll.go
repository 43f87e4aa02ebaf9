package aihub

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auto-oracle/internal/resilience"
)

const (
	defaultPollInitial = 5 * time.Second
	defaultPollCap     = 30 * time.Second
	defaultPollTimeout = 10 * time.Minute
)

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial time.Duration
	cap     time.Duration
	timeout time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initial: defaultPollInitial,
		cap:     defaultPollCap,
		timeout: defaultPollTimeout,
	}
}

// WithPollInterval overrides the first poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.initial = d
		}
	}
}

// WithPollCap overrides the maximum poll interval.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.cap = d
		}
	}
}

// WithPollTimeout overrides the overall deadline, applied only if the parent
// context has none.
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// PollConversation polls GetConversation until the state leaves the
// in-progress set, then returns that status without polling again. It does
// not judge the terminal state; callers decide what COMPLETE, FAILED or an
// unrecognised state mean. Expiry of the deadline returns an error wrapping
// context.DeadlineExceeded.
func PollConversation(ctx context.Context, client Client, id ID, opts ...PollOption) (*ConversationStatus, error) {
	return poll(ctx, "conversation", id, opts, func(ctx context.Context) (*ConversationStatus, string, error) {
		st, err := client.GetConversation(ctx, id)
		if err != nil {
			return nil, "", err
		}
		return st, st.State, nil
	})
}

// PollQuery polls GetQueryStatus with the same rules as PollConversation.
func PollQuery(ctx context.Context, client Client, id ID, opts ...PollOption) (*QueryStatus, error) {
	return poll(ctx, "query", id, opts, func(ctx context.Context) (*QueryStatus, string, error) {
		st, err := client.GetQueryStatus(ctx, id)
		if err != nil {
			return nil, "", err
		}
		return st, st.Status, nil
	})
}

func poll[T any](ctx context.Context, kind string, id ID, opts []PollOption, fetch func(context.Context) (T, string, error)) (T, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	backoff := resilience.Backoff{Initial: cfg.initial, Max: cfg.cap}
	var zero T
	for attempt := 1; ; attempt++ {
		status, state, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return zero, eris.Wrap(ctx.Err(), fmt.Sprintf("aihub: poll %s %s timed out", kind, id))
			}
			return zero, eris.Wrap(err, fmt.Sprintf("aihub: poll %s %s", kind, id))
		}
		if !InProgress(state) {
			return status, nil
		}

		wait := backoff.Next()
		zap.L().Debug("remote operation still in progress",
			zap.String("kind", kind),
			zap.String("id", string(id)),
			zap.String("state", state),
			zap.Int("attempt", attempt),
			zap.Duration("next_poll", wait),
		)
		if !resilience.Sleep(ctx, wait) {
			return zero, eris.Wrap(ctx.Err(), fmt.Sprintf("aihub: poll %s %s timed out", kind, id))
		}
	}
}
