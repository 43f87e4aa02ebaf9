// Package merge writes question/answer pairs into a word document by having
// a language model rewrite the document body.
package merge

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auto-oracle/internal/docx"
	"github.com/sells-group/auto-oracle/internal/model"
	"github.com/sells-group/auto-oracle/internal/prompts"
)

const mergeOp = "merge: rewrite body"

// Merger rewrites document bodies with a Generator.
type Merger struct {
	gen     Generator
	prompts *prompts.Set
}

// New creates a Merger. A nil prompt set uses the embedded defaults.
func New(gen Generator, set *prompts.Set) *Merger {
	if set == nil {
		set = prompts.Default()
	}
	return &Merger{gen: gen, prompts: set}
}

// FormatPairs renders pairs as "Q:<question>\nA:<answer>" blocks separated by
// blank lines.
func FormatPairs(pairs []model.QAPair) string {
	blocks := make([]string, len(pairs))
	for i, p := range pairs {
		blocks[i] = fmt.Sprintf("Q:%s\nA:%s", p.Question, p.Answer)
	}
	return strings.Join(blocks, "\n\n")
}

// BuildPrompt renders the merge prompt for body and pairs.
func (m *Merger) BuildPrompt(body string, pairs []model.QAPair) (string, error) {
	return m.prompts.RenderMerge(prompts.MergeInput{QAPairs: FormatPairs(pairs), Body: body})
}

// MergeAnswers asks the model to place the answers into body and returns the
// rewritten markup. Output that is empty, malformed, uses an undeclared
// namespace prefix or swaps the root element of body is a MergeError.
func (m *Merger) MergeAnswers(ctx context.Context, body string, pairs []model.QAPair) (string, error) {
	root, err := docx.RootName(body)
	if err != nil {
		zap.L().Debug("source body has no usable root, skipping root check", zap.Error(err))
		root = xml.Name{}
	}

	prompt, err := m.BuildPrompt(body, pairs)
	if err != nil {
		return "", model.WrapError(err, model.KindMerge, mergeOp)
	}

	out, err := m.gen.Generate(ctx, m.prompts.MergeSystem, prompt)
	if err != nil {
		return "", eris.Wrap(err, mergeOp)
	}

	out = prompts.CleanResponse(out)
	if err := docx.ValidateXML(out, root); err != nil {
		zap.L().Warn("rejected rewritten body",
			zap.Int("length", len(out)),
			zap.Error(err),
		)
		return "", model.WrapError(err, model.KindMerge, mergeOp)
	}
	return out, nil
}

// FillDocument merges pairs into the document at docPath and saves the result
// to outPath, or next to the input as <name>_filled.docx when outPath is
// empty. It returns the written path.
func (m *Merger) FillDocument(ctx context.Context, docPath string, pairs []model.QAPair, outPath string) (string, error) {
	if _, err := os.Stat(docPath); err != nil {
		return "", model.WrapError(err, model.KindIO, "merge: fill document")
	}
	ok, err := docx.IsWordDocument(docPath)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", model.Errorf(model.KindValidation, "merge: fill document", "%s is not a word document", filepath.Base(docPath))
	}

	c, err := docx.Open(docPath)
	if err != nil {
		return "", err
	}
	defer c.Close() //nolint:errcheck

	body, err := m.MergeAnswers(ctx, c.Body(), pairs)
	if err != nil {
		return "", err
	}
	c.SetBody(body)

	if outPath == "" {
		outPath = docx.FilledPath(docPath)
	}
	if err := c.Save(outPath); err != nil {
		return "", err
	}

	zap.L().Info("document filled",
		zap.String("input", docPath),
		zap.String("output", outPath),
		zap.Int("pairs", len(pairs)),
	)
	return outPath, nil
}
