package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	for _, s := range []Status{StatusRunning, StatusDone, StatusError} {
		parsed, ok := ParseStatus(s.String())
		assert.True(t, ok)
		assert.Equal(t, s, parsed)
	}

	_, ok := ParseStatus("paused")
	assert.False(t, ok)
	assert.Equal(t, "status(9)", Status(9).String())

	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusDone.Terminal())
	assert.True(t, StatusError.Terminal())
}

func TestStringHandle(t *testing.T) {
	var h Handle = StringHandle("watch-1")
	assert.Equal(t, "watch-1", h.ID())
}
