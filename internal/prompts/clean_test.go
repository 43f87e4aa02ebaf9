package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "xml fence", in: "```xml\n<doc/>\n```", want: "<doc/>"},
		{name: "json fence", in: "```json\n[\"a\",\"b\"]\n```", want: `["a","b"]`},
		{name: "python fence", in: "```python\n['a']\n```", want: `['a']`},
		{name: "bare fence", in: "```\n[]\n```", want: "[]"},
		{name: "inline fence", in: "```[]```", want: "[]"},
		{name: "tag without fence", in: "json [\"a\"]", want: `["a"]`},
		{name: "tag on own line after blank", in: "```\njson\n[\"a\"]\n```", want: `["a"]`},
		{name: "plain", in: `  ["a"]  `, want: `["a"]`},
		{name: "word starting with tag kept", in: "textual answer", want: "textual answer"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanResponse(tt.in))
		})
	}
}
