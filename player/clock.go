package player

import "sync/atomic"

// audioClock is the three-atomic-scalar publication point from spec.md
// §3: base_pts_us, consumed_samples and the derived audio_clock_us.
//
// audioClockUs is stored with release ordering only after being derived
// from a consistent (basePtsUs, consumedSamples) pair, and read with
// acquire ordering, so spec.md §5's ordering guarantee holds: a reader in
// the presenter either sees the pre-callback snapshot or a fully
// consistent post-callback value, never a torn mix of the two.
type audioClock struct {
	basePtsUs       atomic.Int64
	consumedSamples atomic.Uint64
	audioClockUs    atomic.Int64

	sampleRate int
	channels   int
}

func newAudioClock(sampleRate, channels int) *audioClock {
	return &audioClock{sampleRate: sampleRate, channels: channels}
}

// Reset is the clock-reset operation from spec.md §4.3: called by the
// controller on seek, it pins base_pts_us and audio_clock_us to the seek
// target and zeroes the consumed-sample count.
func (c *audioClock) Reset(targetUs int64) {
	c.consumedSamples.Store(0)
	c.basePtsUs.Store(targetUs)
	c.audioClockUs.Store(targetUs)
}

// SetBase records the PTS of the first sample in the ring since the last
// reset (audio producer loop step 4, spec.md §4.3). The producer tracks
// "is this the first frame since reset" itself (AudioOutput.producerLoop)
// and calls this at most once per reset cycle.
func (c *audioClock) SetBase(ptsUs int64) {
	c.basePtsUs.Store(ptsUs)
}

// AdvanceConsumed is called from the realtime device callback after
// popping a chunk of k bytes from the PCM ring. It advances
// consumed_samples by k / (channels * bytes_per_sample) and republishes
// audio_clock_us (spec.md §3, §4.3 device callback step 2).
func (c *audioClock) AdvanceConsumed(poppedBytes int) {
	if poppedBytes <= 0 {
		return
	}
	bytesPerFrame := c.channels * audioBytesPerSample
	samples := uint64(poppedBytes / bytesPerFrame)
	if samples == 0 {
		return
	}
	total := c.consumedSamples.Add(samples)
	base := c.basePtsUs.Load()
	c.audioClockUs.Store(base + int64(total)*int64(1e6)/int64(c.sampleRate))
}

// Value returns the published audio_clock_us.
func (c *audioClock) Value() int64 {
	return c.audioClockUs.Load()
}
