package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeDelayWithinToleranceUsesFrameDuration(t *testing.T) {
	p := &VideoPresenter{frameRate: 25}
	audioUs := int64(1_000_000)
	p.audioClock = func() int64 { return audioUs }

	f := &Frame{PTSUs: audioUs + int64(20*time.Millisecond/time.Microsecond), DurationUs: 40_000}
	delay := p.computeDelay(f)

	assert.Equal(t, 40*time.Millisecond, delay)
}

func TestComputeDelayBeyondMaxThresholdAddsDiff(t *testing.T) {
	p := &VideoPresenter{frameRate: 25}
	audioUs := int64(1_000_000)
	p.audioClock = func() int64 { return audioUs }

	// video is 150ms ahead of audio: beyond the 100ms max threshold.
	f := &Frame{PTSUs: audioUs + int64(150*time.Millisecond/time.Microsecond), DurationUs: 40_000}
	delay := p.computeDelay(f)

	assert.Equal(t, 40*time.Millisecond+150*time.Millisecond, delay)
}

func TestComputeDelayBeyondMaxThresholdNeverNegative(t *testing.T) {
	p := &VideoPresenter{frameRate: 25}
	audioUs := int64(1_000_000)
	p.audioClock = func() int64 { return audioUs }

	// video is 150ms behind audio.
	f := &Frame{PTSUs: audioUs - int64(150*time.Millisecond/time.Microsecond), DurationUs: 40_000}
	delay := p.computeDelay(f)

	assert.GreaterOrEqual(t, delay, time.Duration(0))
}

func TestComputeDelayBeyondFramedupThresholdTakesMaxThresholdBranch(t *testing.T) {
	p := &VideoPresenter{frameRate: 25}
	audioUs := int64(1_000_000)
	p.audioClock = func() int64 { return audioUs }

	// video is 250ms ahead of audio: past the framedup threshold (and
	// also past the max-sync threshold, so the max-threshold branch wins
	// since it is checked first in the else-if chain).
	f := &Frame{PTSUs: audioUs + int64(250*time.Millisecond/time.Microsecond), DurationUs: 40_000}
	delay := p.computeDelay(f)

	assert.Equal(t, 40*time.Millisecond+250*time.Millisecond, delay)
}

func TestComputeDelayLowPassSmoothsAcrossCalls(t *testing.T) {
	p := &VideoPresenter{frameRate: 25}
	p.audioClock = nil // no audio stream: sync math is skipped entirely

	first := p.computeDelay(&Frame{DurationUs: 100_000})
	assert.Equal(t, 100*time.Millisecond, first)

	second := p.computeDelay(&Frame{DurationUs: 40_000})
	want := time.Duration(float64(first)*lowPassPrevWeight + float64(40*time.Millisecond)*lowPassCurrentWeight)
	assert.Equal(t, want, second)
}

func TestComputeDelayFallsBackToFrameRateWhenDurationUnknown(t *testing.T) {
	p := &VideoPresenter{frameRate: 25}
	p.audioClock = nil

	delay := p.computeDelay(&Frame{DurationUs: 0})
	assert.Equal(t, time.Duration(float64(time.Second)/25), delay)
}
