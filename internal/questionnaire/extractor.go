// Package questionnaire turns an uploaded questionnaire document into an
// ordered list of questions using the hosted document-conversation service.
package questionnaire

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/auto-oracle/internal/model"
	"github.com/sells-group/auto-oracle/internal/prompts"
	"github.com/sells-group/auto-oracle/pkg/aihub"
)

const (
	conversationName        = "Questionnaire Conversation"
	conversationDescription = "Conversation for parsing questionnaire"
)

// Session is a conversation created for one uploaded document.
type Session struct {
	ID         aihub.ID
	State      string
	DocumentID aihub.ID
}

// Options tunes extraction.
type Options struct {
	// Prompt is the fixed extraction question sent to the conversation.
	Prompt string
	// MaxQuestions truncates the extracted list; 0 keeps everything.
	MaxQuestions int
	// PollInterval, PollCap and PollTimeout bound AwaitCompletion.
	PollInterval time.Duration
	PollCap      time.Duration
	PollTimeout  time.Duration
}

// Extractor runs the upload, wait and extract steps.
type Extractor struct {
	client aihub.Client
	opts   Options
}

// NewExtractor creates an Extractor. An empty Prompt uses the embedded default.
func NewExtractor(client aihub.Client, opts Options) *Extractor {
	if opts.Prompt == "" {
		opts.Prompt = prompts.Default().Extraction
	}
	return &Extractor{client: client, opts: opts}
}

// Parse uploads documentPath and returns its questions in document order.
func (e *Extractor) Parse(ctx context.Context, documentPath string) ([]model.Question, error) {
	session, err := e.Submit(ctx, documentPath)
	if err != nil {
		return nil, err
	}
	session, err = e.AwaitCompletion(ctx, session)
	if err != nil {
		return nil, err
	}
	return e.Extract(ctx, session)
}

// Submit uploads the document and returns the new session without waiting.
func (e *Extractor) Submit(ctx context.Context, documentPath string) (*Session, error) {
	if documentPath == "" {
		return nil, model.NewError(model.KindValidation, "questionnaire: submit", "document path is required")
	}
	if _, err := os.Stat(documentPath); err != nil {
		return nil, model.WrapError(err, model.KindIO, "questionnaire: submit")
	}

	conv, err := e.client.CreateConversation(ctx, aihub.CreateConversationRequest{
		Name:        conversationName,
		Description: conversationDescription,
		Files:       []string{documentPath},
	})
	if err != nil {
		return nil, model.WrapRemote(err, model.KindProcessing, "questionnaire: create conversation")
	}

	zap.L().Info("questionnaire uploaded",
		zap.String("document", documentPath),
		zap.String("conversation_id", string(conv.ID)),
	)
	return &Session{ID: conv.ID, State: aihub.StateCreated}, nil
}

// AwaitCompletion polls the session until the service stops processing it.
// COMPLETE returns the session with its ingested document id; FAILED and any
// state the service does not document are ProcessingErrors; running past the
// poll deadline is a Timeout.
func (e *Extractor) AwaitCompletion(ctx context.Context, session *Session) (*Session, error) {
	const op = "questionnaire: await conversation"

	if !aihub.InProgress(session.State) {
		return nil, model.Errorf(model.KindProcessing, op, "conversation %s already in terminal state %s", session.ID, session.State)
	}

	st, err := aihub.PollConversation(ctx, e.client, session.ID,
		aihub.WithPollInterval(e.opts.PollInterval),
		aihub.WithPollCap(e.opts.PollCap),
		aihub.WithPollTimeout(e.opts.PollTimeout),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, model.WrapError(err, model.KindTimeout, op)
		}
		return nil, model.WrapRemote(err, model.KindProcessing, op)
	}

	out := &Session{ID: session.ID, State: st.State}
	switch st.State {
	case aihub.StateComplete:
		if len(st.Documents) == 0 {
			return nil, model.Errorf(model.KindProcessing, op, "conversation %s completed without documents", session.ID)
		}
		out.DocumentID = st.Documents[0].ID
		zap.L().Info("questionnaire processed",
			zap.String("conversation_id", string(session.ID)),
			zap.String("document_id", string(out.DocumentID)),
		)
		return out, nil
	case aihub.StateFailed:
		detail := "the conversation could not be processed"
		if st.Status != "" {
			detail += ": " + st.Status
		}
		return nil, model.NewError(model.KindProcessing, op, detail)
	default:
		return nil, model.Errorf(model.KindProcessing, op, "unknown conversation state %q", st.State)
	}
}

// Extract asks the extraction prompt against a completed session.
func (e *Extractor) Extract(ctx context.Context, session *Session) ([]model.Question, error) {
	if session.State != aihub.StateComplete || session.DocumentID == "" {
		return nil, model.Errorf(model.KindProcessing, "questionnaire: extract", "conversation %s is not complete", session.ID)
	}

	resp, err := e.client.Converse(ctx, session.ID, aihub.ConverseRequest{
		Question:    e.opts.Prompt,
		DocumentIDs: []aihub.ID{session.DocumentID},
	})
	if err != nil {
		return nil, model.WrapRemote(err, model.KindProcessing, "questionnaire: converse")
	}

	questions, err := ParseQuestions(prompts.CleanResponse(resp.Answer))
	if err != nil {
		zap.L().Warn("unparseable extraction response",
			zap.String("conversation_id", string(session.ID)),
			zap.String("answer", resp.Answer),
		)
		return nil, err
	}

	if e.opts.MaxQuestions > 0 && len(questions) > e.opts.MaxQuestions {
		questions = questions[:e.opts.MaxQuestions]
	}

	zap.L().Info("questions identified",
		zap.String("conversation_id", string(session.ID)),
		zap.Int("count", len(questions)),
	)
	return questions, nil
}
