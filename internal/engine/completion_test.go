package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletion_SettlesOnce(t *testing.T) {
	c := NewCompletion[int]()
	assert.True(t, c.Resolve(1))
	assert.False(t, c.Resolve(2))
	assert.False(t, c.Reject(errors.New("late")))

	v, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done() not closed after Resolve")
	}
}

func TestCompletion_Reject(t *testing.T) {
	c := NewCompletion[string]()
	want := errors.New("io")
	assert.True(t, c.Reject(want))
	assert.False(t, c.Resolve("x"))

	v, err := c.Wait(context.Background())
	assert.ErrorIs(t, err, want)
	assert.Empty(t, v)
}

func TestCompletion_WaitHonoursContext(t *testing.T) {
	c := NewCompletion[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
