package prompts

import "strings"

// languageTags are the tokens models put after an opening code fence.
var languageTags = []string{"json", "python", "py", "xml", "text", "plaintext"}

// CleanResponse strips code fences and a leading language tag from a model
// response: "```json\n[\"a\"]\n```" becomes "[\"a\"]" and
// "```xml\n<doc/>\n```" becomes "<doc/>".
func CleanResponse(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "```"))
	s = strings.TrimSpace(stripLanguageTag(s))
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// stripLanguageTag removes a language tag at the start of s when it stands
// alone on its line or runs straight into the payload.
func stripLanguageTag(s string) string {
	lower := strings.ToLower(s)
	for _, tag := range languageTags {
		if !strings.HasPrefix(lower, tag) {
			continue
		}
		rest := s[len(tag):]
		trimmed := strings.TrimLeft(rest, " \t")
		if trimmed == "" || strings.ContainsRune("\r\n[<", rune(trimmed[0])) {
			return rest
		}
	}
	return s
}
