package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels_AreDistinctAndWrappable(t *testing.T) {
	all := []error{
		ErrorNotFound, ErrNotAuthenticated, ErrNoRefreshToken,
		ErrEmptyCredentials, ErrTokenExpired, ErrIncompletePair, ErrCorruptState,
	}
	for i, a := range all {
		wrapped := fmt.Errorf("layer: %w", a)
		assert.True(t, errors.Is(wrapped, a))
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}
