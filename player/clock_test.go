package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAudioClockResetPublishesTargetImmediately(t *testing.T) {
	c := newAudioClock(48000, 2)
	c.Reset(5_000_000)
	assert.Equal(t, int64(5_000_000), c.Value())
}

func TestAudioClockNonDecreasingAsSamplesConsumed(t *testing.T) {
	c := newAudioClock(48000, 2)
	c.Reset(0)
	c.SetBase(0)

	bytesPerFrame := 2 * audioBytesPerSample
	prev := c.Value()
	for i := 0; i < 10; i++ {
		c.AdvanceConsumed(bytesPerFrame * 480) // 10ms of audio each call
		cur := c.Value()
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
	// 10 * 480 samples at 48kHz = 100ms
	assert.Equal(t, int64(100_000), c.Value())
}

func TestAudioClockAdvanceConsumedIgnoresPartialFrames(t *testing.T) {
	c := newAudioClock(48000, 2)
	c.Reset(0)
	c.SetBase(0)

	// 3 bytes is less than one full stereo S16 frame (4 bytes).
	c.AdvanceConsumed(3)
	assert.Equal(t, int64(0), c.Value())
}
