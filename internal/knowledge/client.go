// Package knowledge answers questions against a hosted knowledge-base chatbot.
package knowledge

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/auto-oracle/internal/model"
	"github.com/sells-group/auto-oracle/pkg/aihub"
)

const (
	// DefaultModel is the query model used when none is configured.
	DefaultModel = "multistep-lite"

	sourceAppType = "CHATBOT"
)

// Handle identifies a submitted query.
type Handle struct {
	QueryID   aihub.ID
	ChatbotID string
	Question  string
}

// Options tunes the client.
type Options struct {
	Model string
	// RatePerSec limits query submissions; 0 disables limiting.
	RatePerSec   float64
	PollInterval time.Duration
	PollCap      time.Duration
	PollTimeout  time.Duration
}

// Client submits questions and waits for their answers.
type Client struct {
	api     aihub.Client
	opts    Options
	limiter *rate.Limiter
}

// NewClient creates a Client over api.
func NewClient(api aihub.Client, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	c := &Client{api: api, opts: opts}
	if opts.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return c
}

// ChatbotID returns the final non-empty path segment of a chatbot link.
// A bare id is returned unchanged.
func ChatbotID(reference string) (string, error) {
	ref := strings.TrimSpace(reference)
	path := ref
	if u, err := url.Parse(ref); err == nil {
		path = u.Path
	}
	segments := strings.Split(strings.TrimRight(path, "/"), "/")
	id := segments[len(segments)-1]
	if id == "" {
		return "", model.Errorf(model.KindValidation, "knowledge: chatbot id", "no chatbot id in %q", reference)
	}
	return id, nil
}

// Answer submits question and waits for the answer.
func (c *Client) Answer(ctx context.Context, question, chatbotReference string) (string, error) {
	h, err := c.Ask(ctx, question, chatbotReference)
	if err != nil {
		return "", err
	}
	return c.AwaitAnswer(ctx, h)
}

// Ask submits a question to the chatbot without waiting for the answer.
func (c *Client) Ask(ctx context.Context, question, chatbotReference string) (*Handle, error) {
	if strings.TrimSpace(question) == "" {
		return nil, model.NewError(model.KindValidation, "knowledge: ask", "question is required")
	}
	chatbotID, err := ChatbotID(chatbotReference)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "knowledge: rate limit wait")
		}
	}

	resp, err := c.api.RunQuery(ctx, aihub.QueryRequest{
		Query:     question,
		SourceApp: aihub.SourceApp{Type: sourceAppType, ID: chatbotID},
		ModelName: c.opts.Model,
	})
	if err != nil {
		return nil, model.WrapRemote(err, model.KindQuery, "knowledge: submit query")
	}
	if resp.QueryID == "" {
		return nil, model.NewError(model.KindQuery, "knowledge: submit query", "service returned no query id")
	}

	zap.L().Debug("query submitted",
		zap.String("chatbot_id", chatbotID),
		zap.String("query_id", string(resp.QueryID)),
	)
	return &Handle{QueryID: resp.QueryID, ChatbotID: chatbotID, Question: question}, nil
}

// AwaitAnswer polls the query until it finishes. COMPLETE yields the first
// result's response; FAILED and undocumented states are QueryErrors carrying
// the remote error text.
func (c *Client) AwaitAnswer(ctx context.Context, h *Handle) (string, error) {
	const op = "knowledge: await answer"

	st, err := aihub.PollQuery(ctx, c.api, h.QueryID,
		aihub.WithPollInterval(c.opts.PollInterval),
		aihub.WithPollCap(c.opts.PollCap),
		aihub.WithPollTimeout(c.opts.PollTimeout),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", model.WrapError(err, model.KindTimeout, op)
		}
		return "", model.WrapRemote(err, model.KindQuery, op)
	}

	switch st.Status {
	case aihub.StateComplete:
		if len(st.Results) == 0 {
			return "", model.NewError(model.KindQuery, op, "no results")
		}
		return st.Results[0].Response, nil
	case aihub.StateFailed:
		detail := st.Error
		if detail == "" {
			detail = "query failed"
		}
		return "", model.NewError(model.KindQuery, op, detail)
	default:
		detail := "unknown query state " + st.Status
		if st.Error != "" {
			detail += ": " + st.Error
		}
		return "", model.NewError(model.KindQuery, op, detail)
	}
}
