package questionnaire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auto-oracle/internal/model"
)

func TestParseQuestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "double quoted", in: `["Q1", "Q2"]`, want: []string{"Q1", "Q2"}},
		{name: "single quoted", in: `['Do you use SSO?', 'Who is your DPO?']`, want: []string{"Do you use SSO?", "Who is your DPO?"}},
		{name: "mixed quotes with embedded quote", in: `["It's encrypted?", 'Say "yes"']`, want: []string{"It's encrypted?", `Say "yes"`}},
		{name: "escapes", in: `["line\nbreak", "tab\tstop", "été", "a\\b"]`, want: []string{"line\nbreak", "tab\tstop", "été", `a\b`}},
		{name: "trailing comma", in: "[\n  \"Q1\",\n  \"Q2\",\n]", want: []string{"Q1", "Q2"}},
		{name: "empty list", in: "[]", want: []string{}},
		{name: "blank entries dropped", in: `["Q1", "  ", "Q2"]`, want: []string{"Q1", "Q2"}},
		{name: "entries trimmed", in: `["  Q1  "]`, want: []string{"Q1"}},
		{name: "surrounding whitespace", in: "  [\"Q1\"]  \n", want: []string{"Q1"}},
		{name: "nfc normalised", in: "[\"cafe\u0301\"]", want: []string{"caf\u00e9"}},
		{name: "surrogate pair", in: `["Smile \uD83D\uDE00 please"]`, want: []string{"Smile \U0001F600 please"}},
		{name: "lone surrogate", in: `["a\uD83Db"]`, want: []string{"a\uFFFDb"}},
		{name: "high surrogate then bmp escape", in: `["\uD83D\u0041"]`, want: []string{"\uFFFDA"}},
		{name: "backspace and form feed", in: `["a\bb\fc"]`, want: []string{"a\bb\fc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseQuestions(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, model.Texts(got))
		})
	}
}

func TestParseQuestions_AssignsIndexAndLabel(t *testing.T) {
	t.Parallel()

	got, err := ParseQuestions(`["1. Do you encrypt data?", "", "2) Is MFA enforced?"]`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, "1", got[0].Label)
	assert.Equal(t, 1, got[1].Index)
	assert.Equal(t, "2", got[1].Label)
}

func TestParseQuestions_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		detail string
	}{
		{name: "empty", in: "", detail: "response is empty"},
		{name: "whitespace only", in: "  \n ", detail: "response is empty"},
		{name: "prose", in: "Here are the questions: Q1, Q2", detail: "expected a list"},
		{name: "code", in: `__import__("os").system("rm -rf /")`, detail: "expected a list"},
		{name: "dict", in: `{"q": "Q1"}`, detail: "expected a list"},
		{name: "number element", in: `["Q1", 2]`, detail: "not a string"},
		{name: "nested list", in: `[["Q1"]]`, detail: "not a string"},
		{name: "call inside list", in: `[open("x")]`, detail: "not a string"},
		{name: "unterminated list", in: `["Q1"`, detail: "unterminated list"},
		{name: "unterminated string", in: `["Q1]`, detail: "unterminated string"},
		{name: "missing comma", in: `["Q1" "Q2"]`, detail: "unexpected"},
		{name: "trailing text", in: `["Q1"] and more`, detail: "trailing text"},
		{name: "two lists", in: `["Q1"]["Q2"]`, detail: "trailing text"},
		{name: "raw newline in string", in: "[\"Q1\nQ2\"]", detail: "newline inside string"},
		{name: "bad escape", in: `["\x41"]`, detail: "unknown escape"},
		{name: "bad unicode escape", in: `["\uzzzz"]`, detail: "bad \\u escape"},
		{name: "short unicode escape", in: `["\u12`, detail: "short \\u escape"},
		{name: "lone comma", in: `[,]`, detail: "not a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseQuestions(tt.in)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, model.IsKind(err, model.KindParse), err.Error())
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}
