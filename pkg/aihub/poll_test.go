package aihub

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements Client for testing poll functions.
type mockClient struct {
	conversationFunc func(ctx context.Context, id ID) (*ConversationStatus, error)
	queryFunc        func(ctx context.Context, id ID) (*QueryStatus, error)
}

func (m *mockClient) CreateConversation(context.Context, CreateConversationRequest) (*Conversation, error) {
	return nil, nil
}

func (m *mockClient) GetConversation(ctx context.Context, id ID) (*ConversationStatus, error) {
	return m.conversationFunc(ctx, id)
}

func (m *mockClient) Converse(context.Context, ID, ConverseRequest) (*ConverseResponse, error) {
	return nil, nil
}

func (m *mockClient) RunQuery(context.Context, QueryRequest) (*QueryResponse, error) {
	return nil, nil
}

func (m *mockClient) GetQueryStatus(ctx context.Context, id ID) (*QueryStatus, error) {
	return m.queryFunc(ctx, id)
}

func TestPollConversation_CompletesAfterRunning(t *testing.T) {
	var calls atomic.Int32
	mock := &mockClient{
		conversationFunc: func(ctx context.Context, id ID) (*ConversationStatus, error) {
			switch calls.Add(1) {
			case 1:
				return &ConversationStatus{ID: id, State: StateCreated}, nil
			case 2:
				return &ConversationStatus{ID: id, State: StateRunning}, nil
			default:
				return &ConversationStatus{ID: id, State: StateComplete, Documents: []Document{{ID: "d1"}}}, nil
			}
		},
	}

	st, err := PollConversation(context.Background(), mock, "c1", WithPollInterval(time.Millisecond), WithPollCap(2*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, StateComplete, st.State)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPollConversation_ReturnsTerminalStateWithoutPollingAgain(t *testing.T) {
	for _, state := range []string{StateFailed, "ARCHIVED"} {
		t.Run(state, func(t *testing.T) {
			var calls atomic.Int32
			mock := &mockClient{
				conversationFunc: func(ctx context.Context, id ID) (*ConversationStatus, error) {
					calls.Add(1)
					return &ConversationStatus{State: state}, nil
				},
			}
			st, err := PollConversation(context.Background(), mock, "c1", WithPollInterval(time.Millisecond))
			require.NoError(t, err)
			assert.Equal(t, state, st.State)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestPollQuery_Timeout(t *testing.T) {
	mock := &mockClient{
		queryFunc: func(ctx context.Context, id ID) (*QueryStatus, error) {
			return &QueryStatus{Status: StateRunning}, nil
		},
	}

	_, err := PollQuery(context.Background(), mock, "q1",
		WithPollInterval(5*time.Millisecond),
		WithPollCap(10*time.Millisecond),
		WithPollTimeout(40*time.Millisecond),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
}

func TestPollQuery_ParentDeadlineWins(t *testing.T) {
	mock := &mockClient{
		queryFunc: func(ctx context.Context, id ID) (*QueryStatus, error) {
			return &QueryStatus{Status: StateRunning}, nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := PollQuery(ctx, mock, "q1", WithPollInterval(5*time.Millisecond), WithPollTimeout(time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPollQuery_ErrorPropagation(t *testing.T) {
	mock := &mockClient{
		queryFunc: func(ctx context.Context, id ID) (*QueryStatus, error) {
			return nil, &APIError{StatusCode: 500, Body: "server error"}
		},
	}

	_, err := PollQuery(context.Background(), mock, "q1", WithPollInterval(time.Millisecond))
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
}

func TestInProgress(t *testing.T) {
	assert.True(t, InProgress(StateCreated))
	assert.True(t, InProgress(StatePending))
	assert.True(t, InProgress(StateRunning))
	assert.False(t, InProgress(StateComplete))
	assert.False(t, InProgress(StateFailed))
	assert.False(t, InProgress(""))
}
