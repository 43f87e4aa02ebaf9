package knowledge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auto-oracle/internal/model"
	"github.com/sells-group/auto-oracle/pkg/aihub"
)

type fakeAPI struct {
	mu        sync.Mutex
	requests  []aihub.QueryRequest
	runErr    error
	statusErr error
	statuses  []aihub.QueryStatus
	polls     int
}

func (f *fakeAPI) CreateConversation(context.Context, aihub.CreateConversationRequest) (*aihub.Conversation, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) GetConversation(context.Context, aihub.ID) (*aihub.ConversationStatus, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) Converse(context.Context, aihub.ID, aihub.ConverseRequest) (*aihub.ConverseResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) RunQuery(_ context.Context, req aihub.QueryRequest) (*aihub.QueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runErr != nil {
		return nil, f.runErr
	}
	f.requests = append(f.requests, req)
	return &aihub.QueryResponse{QueryID: "q-1"}, nil
}

func (f *fakeAPI) GetQueryStatus(_ context.Context, id aihub.ID) (*aihub.QueryStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		f.polls++
		return nil, f.statusErr
	}
	i := f.polls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.polls++
	st := f.statuses[i]
	st.QueryID = id
	return &st, nil
}

func fastOptions() Options {
	return Options{
		PollInterval: time.Millisecond,
		PollCap:      2 * time.Millisecond,
		PollTimeout:  time.Second,
	}
}

func TestChatbotID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref  string
		want string
	}{
		{ref: "https://aihub.instabase.com/hub/apps/chatbots/abc123", want: "abc123"},
		{ref: "https://aihub.instabase.com/hub/apps/chatbots/abc123/", want: "abc123"},
		{ref: "https://aihub.instabase.com/chatbot/42?tab=chat", want: "42"},
		{ref: "  abc123 ", want: "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()
			got, err := ChatbotID(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "   ", "https://aihub.instabase.com/", "https://aihub.instabase.com"} {
		_, err := ChatbotID(bad)
		assert.True(t, model.IsKind(err, model.KindValidation), "ref %q", bad)
	}
}

func TestClient_Answer(t *testing.T) {
	api := &fakeAPI{statuses: []aihub.QueryStatus{
		{Status: aihub.StatePending},
		{Status: aihub.StateRunning},
		{Status: aihub.StateComplete, Results: []aihub.QueryResult{{Response: "A1"}, {Response: "ignored"}}},
	}}
	c := NewClient(api, fastOptions())

	answer, err := c.Answer(context.Background(), "Q1", "https://aihub.instabase.com/apps/bot-7")
	require.NoError(t, err)
	assert.Equal(t, "A1", answer)

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, "Q1", req.Query)
	assert.Equal(t, aihub.SourceApp{Type: "CHATBOT", ID: "bot-7"}, req.SourceApp)
	assert.Equal(t, DefaultModel, req.ModelName)
	assert.False(t, req.IncludeSourceInfo)
	assert.Equal(t, 3, api.polls)
}

func TestClient_Ask_ConfiguredModel(t *testing.T) {
	api := &fakeAPI{}
	opts := fastOptions()
	opts.Model = "multistep"

	h, err := NewClient(api, opts).Ask(context.Background(), "Q", "bot")
	require.NoError(t, err)
	assert.Equal(t, aihub.ID("q-1"), h.QueryID)
	assert.Equal(t, "bot", h.ChatbotID)
	assert.Equal(t, "multistep", api.requests[0].ModelName)
}

func TestClient_Ask_ValidatesBeforeRemoteCall(t *testing.T) {
	api := &fakeAPI{}
	c := NewClient(api, fastOptions())

	_, err := c.Ask(context.Background(), " ", "bot")
	assert.True(t, model.IsKind(err, model.KindValidation))

	_, err = c.Ask(context.Background(), "Q", "")
	assert.True(t, model.IsKind(err, model.KindValidation))

	assert.Empty(t, api.requests)
}

func TestClient_Ask_RemoteError(t *testing.T) {
	boom := &aihub.APIError{StatusCode: 404, Body: "chatbot bot not found"}
	_, err := NewClient(&fakeAPI{runErr: eris.Wrap(boom, "aihub: run query")}, fastOptions()).Answer(context.Background(), "Q", "bot")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindQuery), err.Error())
	assert.Equal(t, model.KindQuery.ExitCode(), 6)
	assert.Equal(t, "chatbot bot not found", model.DetailOf(err))

	var apiErr *aihub.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestClient_Ask_TransportErrorUnclassified(t *testing.T) {
	_, err := NewClient(&fakeAPI{runErr: errors.New("dial tcp: connection refused")}, fastOptions()).Ask(context.Background(), "Q", "bot")
	require.Error(t, err)
	_, ok := model.KindOf(err)
	assert.False(t, ok)
}

func TestClient_AwaitAnswer_StatusRejected(t *testing.T) {
	api := &fakeAPI{statusErr: &aihub.APIError{StatusCode: 403}}
	_, err := NewClient(api, fastOptions()).AwaitAnswer(context.Background(), &Handle{QueryID: "q"})
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindQuery), err.Error())
	assert.Equal(t, "HTTP 403 Forbidden", model.DetailOf(err))
	assert.Equal(t, 1, api.polls)
}

func TestClient_AwaitAnswer_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status aihub.QueryStatus
		detail string
	}{
		{name: "failed with remote detail", status: aihub.QueryStatus{Status: aihub.StateFailed, Error: "chatbot not found"}, detail: "chatbot not found"},
		{name: "failed without detail", status: aihub.QueryStatus{Status: aihub.StateFailed}, detail: "query failed"},
		{name: "complete without results", status: aihub.QueryStatus{Status: aihub.StateComplete}, detail: "no results"},
		{name: "unknown state", status: aihub.QueryStatus{Status: "CANCELLED", Error: "stopped"}, detail: "unknown query state CANCELLED: stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{statuses: []aihub.QueryStatus{tt.status}}
			_, err := NewClient(api, fastOptions()).AwaitAnswer(context.Background(), &Handle{QueryID: "q"})
			require.Error(t, err)
			assert.True(t, model.IsKind(err, model.KindQuery), err.Error())
			assert.Equal(t, tt.detail, model.DetailOf(err))
			assert.Equal(t, 1, api.polls)
		})
	}
}

func TestClient_AwaitAnswer_Timeout(t *testing.T) {
	api := &fakeAPI{statuses: []aihub.QueryStatus{{Status: aihub.StateRunning}}}
	opts := fastOptions()
	opts.PollTimeout = 20 * time.Millisecond

	_, err := NewClient(api, opts).AwaitAnswer(context.Background(), &Handle{QueryID: "q"})
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindTimeout), err.Error())
}

func TestClient_RateLimit(t *testing.T) {
	api := &fakeAPI{}
	opts := fastOptions()
	opts.RatePerSec = 20

	c := NewClient(api, opts)
	start := time.Now()
	for range 3 {
		_, err := c.Ask(context.Background(), "Q", "bot")
		require.NoError(t, err)
	}
	// burst 1 at 20/s: the second and third submissions wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Len(t, api.requests, 3)
}

func TestClient_RateLimit_Cancelled(t *testing.T) {
	opts := fastOptions()
	opts.RatePerSec = 0.001
	c := NewClient(&fakeAPI{}, opts)

	_, err := c.Ask(context.Background(), "Q", "bot")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Ask(ctx, "Q", "bot")
	assert.Error(t, err)
}
