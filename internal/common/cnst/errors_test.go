package cnst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorConstants(t *testing.T) {
	assert.Equal(t, "notifier cannot receive updates", ErrNotReceiver.Error())
	assert.Equal(t, "notifier cannot send updates", ErrNotSender.Error())
	assert.Equal(t, "empty session id", ErrEmptySessionID.Error())
	assert.Equal(t, "invalid analytics range", ErrInvalidRange.Error())
}

func TestSentinelsAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range []string{Unknown, Loading, Direct, DeviceMobile, DeviceTablet, DeviceDesktop} {
		assert.False(t, seen[s], s)
		seen[s] = true
	}
}
