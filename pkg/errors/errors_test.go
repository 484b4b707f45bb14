package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsSentinelInChain(t *testing.T) {
	err := Wrap(ErrNotFound, "session not found")

	assert.True(t, Is(err, ErrNotFound))
	assert.Equal(t, "session not found: resource not found", err.Error())
}

func TestWrapfKeepsSentinelInChain(t *testing.T) {
	err := Wrapf(ErrUnavailable, "failed to ping %s", "postgres")

	assert.True(t, Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "failed to ping postgres")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))
	assert.NoError(t, Wrapf(nil, "ignored %d", 1))
}

type codedError struct {
	code int
}

func (e *codedError) Error() string { return "coded" }

func TestAsFindsTypedErrorInChain(t *testing.T) {
	err := Wrap(&codedError{code: 7}, "backend failed")

	var coded *codedError
	assert.True(t, As(err, &coded))
	assert.Equal(t, 7, coded.code)
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrInternal, ErrUnavailable}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, Is(a, b))
			}
		}
	}
}
