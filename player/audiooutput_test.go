package player

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luoseyznl/RealTimeAVPlayer/internal/ring"
)

func newTestAudioOutput(channels int) *AudioOutput {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	a := &AudioOutput{
		logger:     logger,
		sampleRate: 48000,
		channels:   channels,
		ring:       ring.New(4096),
		clock:      newAudioClock(48000, channels),
		scratch:    make([]byte, 4096),
	}
	a.volumePromille.Store(volumeMaxPromille)
	a.streamer = &audioStreamer{out: a}
	return a
}

func pushS16(t *testing.T, a *AudioOutput, samples ...int16) {
	t.Helper()
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	n := a.ring.Push(buf)
	require.Equal(t, len(buf), n)
}

func TestSetVolumeClampsToValidRange(t *testing.T) {
	a := newTestAudioOutput(2)

	a.SetVolume(-1)
	assert.Equal(t, 0.0, a.Volume())

	a.SetVolume(2)
	assert.Equal(t, 1.0, a.Volume())

	a.SetVolume(0.5)
	assert.InDelta(t, 0.5, a.Volume(), 0.01)
}

func TestSetVolumeTreatsNaNAsFullVolume(t *testing.T) {
	a := newTestAudioOutput(2)

	nan := func() float64 { var x float64; return x / x }()
	a.SetVolume(nan)
	assert.Equal(t, 1.0, a.Volume())
}

func TestAudioStreamerStreamStereoConvertsInterleavedSamples(t *testing.T) {
	a := newTestAudioOutput(2)
	// one stereo frame: left=16384 (0.5), right=-16384 (-0.5)
	pushS16(t, a, 16384, -16384)

	samples := make([][2]float64, 1)
	n, ok := a.streamer.Stream(samples)

	assert.Equal(t, 1, n)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, samples[0][0], 0.01)
	assert.InDelta(t, -0.5, samples[0][1], 0.01)
}

func TestAudioStreamerStreamMonoDuplicatesToBothChannels(t *testing.T) {
	a := newTestAudioOutput(1)
	pushS16(t, a, 16384)

	samples := make([][2]float64, 1)
	a.streamer.Stream(samples)

	assert.InDelta(t, samples[0][0], samples[0][1], 1e-9)
	assert.InDelta(t, 0.5, samples[0][0], 0.01)
}

func TestAudioStreamerStreamAppliesVolumeScale(t *testing.T) {
	a := newTestAudioOutput(2)
	a.SetVolume(0.5)
	pushS16(t, a, 16384, 16384)

	samples := make([][2]float64, 1)
	a.streamer.Stream(samples)

	assert.InDelta(t, 0.25, samples[0][0], 0.01)
}

func TestAudioStreamerStreamZeroFillsWhenPaused(t *testing.T) {
	a := newTestAudioOutput(2)
	pushS16(t, a, 16384, 16384)
	a.paused.Store(true)

	samples := [][2]float64{{9, 9}}
	n, ok := a.streamer.Stream(samples)

	assert.Equal(t, 1, n)
	assert.True(t, ok)
	assert.Equal(t, 0.0, samples[0][0])
	assert.Equal(t, 0.0, samples[0][1])
}

func TestAudioStreamerStreamZeroFillsWhenRingEmpty(t *testing.T) {
	a := newTestAudioOutput(2)

	samples := [][2]float64{{9, 9}}
	n, ok := a.streamer.Stream(samples)

	assert.Equal(t, 1, n)
	assert.True(t, ok)
	assert.Equal(t, 0.0, samples[0][0])
}

func TestAudioStreamerStreamAdvancesClock(t *testing.T) {
	a := newTestAudioOutput(2)
	a.clock.SetBase(1_000_000)
	pushS16(t, a, 0, 0, 0, 0) // two stereo frames

	samples := make([][2]float64, 2)
	a.streamer.Stream(samples)

	assert.Greater(t, a.clock.Value(), int64(1_000_000))
}
