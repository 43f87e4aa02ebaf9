package model

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_ThroughErisWraps(t *testing.T) {
	t.Parallel()

	base := NewError(KindQuery, "knowledge: await answer", "chatbot not found")
	wrapped := eris.Wrap(eris.Wrap(base, "inner"), "outer")

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindQuery, kind)
	assert.True(t, IsKind(wrapped, KindQuery))
	assert.False(t, IsKind(wrapped, KindParse))
	assert.Equal(t, "chatbot not found", DetailOf(wrapped))
}

func TestKindOf_Unclassified(t *testing.T) {
	t.Parallel()

	kind, ok := KindOf(errors.New("boom"))
	assert.False(t, ok)
	assert.Equal(t, KindUnknown, kind)
	assert.Equal(t, 1, kind.ExitCode())
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WrapError(nil, KindIO, "op"))

	cause := errors.New("no such file")
	err := WrapError(cause, KindIO, "docx: open")
	assert.True(t, IsKind(err, KindIO))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "IOError")
	assert.Contains(t, err.Error(), "no such file")

	// An already classified error keeps its kind.
	rewrapped := WrapError(NewError(KindTimeout, "poll", "deadline"), KindIO, "outer")
	assert.True(t, IsKind(rewrapped, KindTimeout))
}

type refusal struct{ body string }

func (r *refusal) Error() string        { return "HTTP 404: " + r.body }
func (r *refusal) RemoteDetail() string { return r.body }

func TestWrapRemote(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WrapRemote(nil, KindQuery, "op"))

	cause := &refusal{body: "chatbot bot not found"}
	err := WrapRemote(eris.Wrap(cause, "retry"), KindQuery, "knowledge: submit query")
	assert.True(t, IsKind(err, KindQuery))
	assert.Equal(t, "chatbot bot not found", DetailOf(err))
	assert.Equal(t, "QueryError: knowledge: submit query: chatbot bot not found", err.Error())
	var target *refusal
	assert.ErrorAs(t, err, &target)

	// Transport failures are not the service's answer.
	netErr := WrapRemote(errors.New("connection refused"), KindQuery, "knowledge: submit query")
	_, ok := KindOf(netErr)
	assert.False(t, ok)
	assert.Contains(t, netErr.Error(), "connection refused")

	already := WrapRemote(NewError(KindTimeout, "poll", "deadline"), KindQuery, "outer")
	assert.True(t, IsKind(already, KindTimeout))
}

func TestKind_ExitCodesDistinct(t *testing.T) {
	t.Parallel()

	kinds := []Kind{KindConfig, KindIO, KindProcessing, KindParse, KindQuery, KindMerge, KindTimeout, KindValidation}
	seen := map[int]Kind{}
	for _, k := range kinds {
		code := k.ExitCode()
		assert.NotEqual(t, 0, code)
		assert.NotEqual(t, 1, code, k.String())
		_, dup := seen[code]
		assert.False(t, dup, "duplicate exit code for %s", k)
		seen[code] = k
	}
}

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := Errorf(KindParse, "questionnaire: parse", "unexpected %q", "x")
	assert.Equal(t, `ParseError: questionnaire: parse: unexpected "x"`, err.Error())
}
