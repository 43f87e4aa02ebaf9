package model

import (
	"regexp"
	"strings"
)

// Question is one question extracted from a questionnaire document.
type Question struct {
	Text  string `json:"text"`
	Label string `json:"label,omitempty"`
	Index int    `json:"index"`
}

// labelPattern matches a leading numbering such as "1.", "2.3)", "A1." or "b)".
var labelPattern = regexp.MustCompile(`^\s*((?:[A-Za-z]?\d+(?:\.\d+)*)|[A-Za-z])[.)]\s+`)

// NewQuestion builds a Question at position idx, splitting off any leading
// numbering into Label. Text keeps the original wording.
func NewQuestion(idx int, text string) Question {
	text = strings.TrimSpace(text)
	q := Question{Text: text, Index: idx}
	if m := labelPattern.FindStringSubmatch(text); m != nil {
		q.Label = m[1]
	}
	return q
}

// Texts returns the question strings in order.
func Texts(questions []Question) []string {
	out := make([]string, len(questions))
	for i, q := range questions {
		out[i] = q.Text
	}
	return out
}

// QuestionsFromTexts builds ordered Questions from plain strings.
func QuestionsFromTexts(texts []string) []Question {
	out := make([]Question, len(texts))
	for i, t := range texts {
		out[i] = NewQuestion(i, t)
	}
	return out
}
