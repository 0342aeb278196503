package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := CorpusNotFound("handbook")
	assert.Equal(t, "[corpus.not_found] corpus not found: handbook", err.Error())
	assert.Equal(t, CodeCorpusNotFound, Code(err))
}

func TestCode_WrappedAndForeign(t *testing.T) {
	inner := NoteNotFound(int64(7))
	wrapped := fmt.Errorf("handler: %w", inner)
	assert.Equal(t, CodeNoteNotFound, Code(wrapped))

	// Foreign errors map to the generic code.
	assert.Equal(t, CodeInternal, Code(fmt.Errorf("plain failure")))
	assert.Equal(t, CodeInternal, Code(nil))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(CorpusNotFound("x")))
	assert.True(t, IsNotFound(WorkspaceNotFound("x")))
	assert.True(t, IsNotFound(QueryNotFound(int64(1))))
	assert.True(t, IsNotFound(NoteNotFound("a.md")))
	assert.False(t, IsNotFound(DuplicateContent("a.md")))
	assert.False(t, IsNotFound(Cancelled()))
	assert.False(t, IsNotFound(fmt.Errorf("other")))
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(Cancelled()))
	assert.True(t, IsCancelled(fmt.Errorf("wrapped: %w", Cancelled())))
	assert.False(t, IsCancelled(NoteExists("a.md")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CorpusNotFound("x")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NoteNotFound(int64(9))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(DuplicateContent("a.md")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(CodeInternal, cause)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")

	assert.Nil(t, Wrap(CodeInternal, nil))
}
