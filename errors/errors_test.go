package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "op only",
			err:  NewError("init", ErrServer),
			want: "upload.init: upload: server error",
		},
		{
			name: "with session",
			err:  NewError("complete", ErrIncomplete).WithUploadID("u-1"),
			want: "upload.complete session u-1: upload: session incomplete",
		},
		{
			name: "with file",
			err:  NewError("chunk", ErrNetwork).WithFile("a.txt"),
			want: "upload.chunk file a.txt: upload: network error",
		},
		{
			name: "with session and file",
			err:  NewError("chunk", ErrNetwork).WithUploadID("u-1").WithFile("a.txt"),
			want: "upload.chunk u-1/a.txt: upload: network error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := NewError("chunk", fmt.Errorf("%w: socket closed", ErrNetwork)).WithUploadID("u-1")
	assert.True(t, errors.Is(err, ErrNetwork))

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "u-1", e.UploadID)
}

func TestWithMessage(t *testing.T) {
	err := NewError("init", ErrValidation).WithMessage("file batch cannot be empty")
	assert.Contains(t, err.Error(), "file batch cannot be empty")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "network", err: ErrNetwork, want: true},
		{name: "server", err: ErrServer, want: true},
		{name: "wrapped network", err: NewError("chunk", ErrNetwork), want: true},
		{name: "validation", err: ErrValidation, want: false},
		{name: "policy", err: ErrPolicy, want: false},
		{name: "not found", err: ErrNotFound, want: false},
		{name: "incomplete", err: ErrIncomplete, want: false},
		{name: "aborted", err: ErrAborted, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestTaxonomyHelpers(t *testing.T) {
	assert.True(t, IsValidation(NewError("init", ErrValidation)))
	assert.True(t, IsNotFound(NewError("chunk", ErrNotFound)))
	assert.True(t, IsAborted(NewError("run", ErrAborted)))
	assert.False(t, IsValidation(ErrServer))
}
