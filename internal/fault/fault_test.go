package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransientClassification(t *testing.T) {
	assert.False(t, IsTransient(errors.New("bad request")))
	assert.True(t, IsTransient(Transient(errors.New("503"))))
	assert.True(t, IsTransient(fmt.Errorf("analyze: %w", Transient(errors.New("timeout")))))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(context.Canceled))
}

func TestExhaustedIsNoLongerTransient(t *testing.T) {
	err := Transient(errors.New("analysis timed out"))
	assert.True(t, IsTransient(err))

	spent := Exhausted(err)
	assert.False(t, IsTransient(spent))
	assert.Equal(t, "analysis timed out", spent.Error())

	// the original error stays reachable through the chain
	assert.ErrorIs(t, spent, err)
}

func TestNilPassthrough(t *testing.T) {
	assert.Nil(t, Transient(nil))
	assert.Nil(t, Exhausted(nil))
}
