// Package pipeline runs a questionnaire end to end: extract the questions,
// answer each one against the knowledge base, then write the answers out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/auto-oracle/internal/knowledge"
	"github.com/sells-group/auto-oracle/internal/model"
	"github.com/sells-group/auto-oracle/internal/output"
)

// QuestionParser extracts questions from a questionnaire document.
type QuestionParser interface {
	Parse(ctx context.Context, documentPath string) ([]model.Question, error)
}

// Answerer answers one question against a chatbot.
type Answerer interface {
	Answer(ctx context.Context, question, chatbotReference string) (string, error)
}

// Filler merges answers into a word document.
type Filler interface {
	FillDocument(ctx context.Context, docPath string, pairs []model.QAPair, outPath string) (string, error)
}

// Pipeline wires the three stages together.
type Pipeline struct {
	parser   QuestionParser
	answerer Answerer
	filler   Filler
	progress io.Writer
}

// New creates a Pipeline. filler may be nil when documents are never
// filled; progress may be nil to discard progress lines.
func New(parser QuestionParser, answerer Answerer, filler Filler, progress io.Writer) *Pipeline {
	if progress == nil {
		progress = io.Discard
	}
	return &Pipeline{parser: parser, answerer: answerer, filler: filler, progress: progress}
}

// RunInput describes one questionnaire run.
type RunInput struct {
	Questionnaire string
	ChatbotLink   string
	OutputPath    string
	// FailFast aborts on the first question that cannot be answered instead
	// of recording it and moving on.
	FailFast bool
}

// Run extracts the questions, answers them one at a time in document order
// and writes the table to OutputPath. Failed questions are listed in the
// result and written beside the table; if every question fails the first
// failure is returned.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (*model.RunResult, error) {
	if strings.TrimSpace(in.Questionnaire) == "" {
		return nil, model.NewError(model.KindValidation, "pipeline: run", "questionnaire path is required")
	}
	if in.OutputPath == "" {
		return nil, model.NewError(model.KindValidation, "pipeline: run", "output path is required")
	}
	if _, err := knowledge.ChatbotID(in.ChatbotLink); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("questionnaire", in.Questionnaire))
	log.Info("pipeline: parsing questionnaire")

	questions, err := p.parser.Parse(ctx, in.Questionnaire)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: parse questionnaire")
	}
	p.printf("Questions identified: %d\n", len(questions))

	result := &model.RunResult{Questions: questions, Pairs: make([]model.QAPair, 0, len(questions))}
	total := len(questions)
	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: run cancelled")
		}

		p.printf("----\n")
		p.printf("Finding answer for question %d/%d: '%s'\n", i+1, total, q.Text)

		answer, err := p.answerer.Answer(ctx, q.Text, in.ChatbotLink)
		if err != nil {
			if in.FailFast || errors.Is(err, context.Canceled) {
				return nil, eris.Wrapf(err, "pipeline: question %d/%d", i+1, total)
			}
			log.Warn("pipeline: question failed",
				zap.Int("index", i),
				zap.String("question", q.Text),
				zap.Error(err),
			)
			p.printf("Failed to answer question %d/%d: %v\n", i+1, total, err)
			result.Failures = append(result.Failures, model.QuestionError{Index: q.Index, Question: q.Text, Err: err})
			continue
		}

		p.printf("Answer found: '%s'\n", answer)
		result.Pairs = append(result.Pairs, model.QAPair{Question: q.Text, Answer: answer})
	}

	if len(result.Failures) > 0 {
		failuresPath := output.FailuresPath(in.OutputPath)
		if err := output.WriteFailures(result.Failures, failuresPath); err != nil {
			log.Warn("pipeline: could not write failures", zap.Error(err))
		} else {
			p.printf("%d question(s) could not be answered, see %s\n", len(result.Failures), failuresPath)
		}
		if len(result.Pairs) == 0 {
			return result, eris.Wrap(result.Failures[0].Err, "pipeline: no question could be answered")
		}
	}

	if err := output.WriteTable(result.Pairs, in.OutputPath); err != nil {
		return result, err
	}
	result.OutputPath = in.OutputPath
	p.printf("Output document generated with %d questions answered.\n", result.Answered())

	log.Info("pipeline: run complete",
		zap.Int("questions", total),
		zap.Int("answered", result.Answered()),
		zap.Int("failed", len(result.Failures)),
		zap.String("output", in.OutputPath),
	)
	return result, nil
}

// BatchAnswer is one entry of an AnswerAll result.
type BatchAnswer struct {
	Question string
	Answer   string
	Err      error
}

// AnswerAll answers questions with at most concurrency in flight. Results
// keep the input order; a failed question carries its error and does not
// stop the others.
func (p *Pipeline) AnswerAll(ctx context.Context, questions []string, chatbotLink string, concurrency int) ([]BatchAnswer, error) {
	if _, err := knowledge.ChatbotID(chatbotLink); err != nil {
		return nil, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]BatchAnswer, len(questions))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for idx, q := range questions {
		g.Go(func() error {
			answer, err := p.answerer.Answer(gCtx, q, chatbotLink)
			results[idx] = BatchAnswer{Question: q, Answer: answer, Err: err}
			if err != nil {
				zap.L().Warn("pipeline: batch question failed",
					zap.Int("index", idx),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Fill merges pairs into the document at docPath.
func (p *Pipeline) Fill(ctx context.Context, docPath string, pairs []model.QAPair, outPath string) (string, error) {
	if p.filler == nil {
		return "", model.NewError(model.KindConfig, "pipeline: fill", "no merge generator configured")
	}
	if len(pairs) == 0 {
		return "", model.NewError(model.KindValidation, "pipeline: fill", "at least one question/answer pair is required")
	}
	return p.filler.FillDocument(ctx, docPath, pairs, outPath)
}

// Parse extracts the questions of a document.
func (p *Pipeline) Parse(ctx context.Context, documentPath string) ([]model.Question, error) {
	return p.parser.Parse(ctx, documentPath)
}

// Answer answers a single question.
func (p *Pipeline) Answer(ctx context.Context, question, chatbotLink string) (string, error) {
	return p.answerer.Answer(ctx, question, chatbotLink)
}

func (p *Pipeline) printf(format string, args ...any) {
	fmt.Fprintf(p.progress, format, args...) //nolint:errcheck
}
