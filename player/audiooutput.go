package player

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/sirupsen/logrus"

	"github.com/Luoseyznl/RealTimeAVPlayer/internal/ring"
)

// AudioOutput is C3: the audio clock and device sink. It pulls decoded
// frames from an audio StreamSource, resamples them to interleaved S16,
// and runs a producer goroutine that pushes PCM into a ring buffer the
// realtime device callback drains.
//
// Grounded on original_source's AudioPlayer (audio_player.cpp):
// producerThreadLoop/fillAudioData/push|popPCMData map directly onto
// producerLoop/audioStreamer.Stream/internal/ring.Buffer here. The device
// itself is gopxl/beep's speaker rather than SDL, since this is the
// audio backend the teacher repo already depends on.
type AudioOutput struct {
	logger *logrus.Logger
	source *StreamSource

	sampleRate int
	channels   int

	swrCtx *astiav.SoftwareResampleContext
	ring   *ring.Buffer
	clock  *audioClock

	streamer *audioStreamer
	ctrl     *beep.Ctrl

	paused           atomic.Bool
	stopped          atomic.Bool
	playbackFinished atomic.Bool
	basePtsSet       atomic.Bool
	volumePromille   atomic.Int64

	wg sync.WaitGroup

	// scratch is the device callback's reusable conversion buffer; sized
	// once at construction so Stream never allocates.
	scratch []byte
}

// NewAudioOutput opens the audio device for source's format and starts
// the producer goroutine (spec.md §4.3 Open). Device negotiation runs
// through gopxl/beep's speaker, which (unlike SDL) does not report back
// a negotiated "have" spec distinct from what was requested, so a
// negotiation failure surfaces as OpenFailed rather than DeviceMismatch;
// DeviceMismatch is kept in the taxonomy for a future backend that can
// expose one (see DESIGN.md).
func NewAudioOutput(source *StreamSource, logger *logrus.Logger) (*AudioOutput, error) {
	sampleRate, channels := source.AudioFormat()
	if sampleRate <= 0 || channels <= 0 {
		return nil, invalidArgument("NewAudioOutput", nil)
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: channels,
		Precision:   audioBytesPerSample,
	}
	if err := speaker.Init(format.SampleRate, format.SampleRate.N(audioCallbackBufferDuration)); err != nil {
		return nil, openFailed("NewAudioOutput.speaker.Init", err)
	}

	swrCtx := astiav.AllocSoftwareResampleContext()
	if swrCtx == nil {
		return nil, resourceExhausted("NewAudioOutput.AllocSoftwareResampleContext", nil)
	}

	ringBytes := sampleRate * channels * audioBytesPerSample * 2
	if ringBytes < AudioRingMinBytes {
		ringBytes = AudioRingMinBytes
	}

	a := &AudioOutput{
		logger:     logger,
		source:     source,
		sampleRate: sampleRate,
		channels:   channels,
		swrCtx:     swrCtx,
		ring:       ring.New(ringBytes),
		clock:      newAudioClock(sampleRate, channels),
		scratch:    make([]byte, sampleRate*channels*audioBytesPerSample), // 1s scratch
	}
	a.volumePromille.Store(volumeMaxPromille)

	a.streamer = &audioStreamer{out: a}
	a.ctrl = &beep.Ctrl{Streamer: a.streamer}

	logger.WithFields(logrus.Fields{
		"sample_rate": sampleRate,
		"channels":    channels,
		"ring_bytes":  ringBytes,
	}).Info("audio output opened")

	a.wg.Add(1)
	go a.producerLoop()

	speaker.Play(a.ctrl)

	return a, nil
}

// Clock exposes the audio clock for the presenter's A/V sync math.
func (a *AudioOutput) Clock() int64 {
	return a.clock.Value()
}

// Pause mutes the device callback and pauses the producer.
func (a *AudioOutput) Pause() {
	a.paused.Store(true)
}

// Resume un-pauses both the producer and the device callback.
func (a *AudioOutput) Resume() {
	a.paused.Store(false)
}

// ResetClock drains the ring, re-arms the clock at pts, and lets the
// producer pick a new base PTS from the next frame it resamples (spec.md
// §4.3 ResetClock).
func (a *AudioOutput) ResetClock(ptsUs int64) {
	a.paused.Store(true)
	a.ring.Clear()
	a.clock.Reset(ptsUs)
	a.basePtsSet.Store(false)
	a.playbackFinished.Store(false)
	a.paused.Store(false)
}

// SetVolume sets playback volume in [0,1], clamping out-of-range values
// and treating NaN as full volume (spec.md §4.3, mirroring the reference
// implementation's setVolume).
func (a *AudioOutput) SetVolume(norm float64) {
	if norm != norm { // NaN
		norm = 1.0
	}
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	v := int64(norm*float64(volumeMaxPromille) + 0.5)
	a.volumePromille.Store(v)
	a.logger.WithField("volume", norm).Info("audio output volume set")
}

// Volume returns the current volume in [0,1].
func (a *AudioOutput) Volume() float64 {
	return float64(a.volumePromille.Load()) / float64(volumeMaxPromille)
}

// Stop halts the producer and the device callback.
func (a *AudioOutput) Stop() {
	a.stopped.Store(true)
	a.wg.Wait()
}

// Close stops the output and releases the resampler.
func (a *AudioOutput) Close() {
	a.Stop()
	speaker.Clear()
	if a.swrCtx != nil {
		a.swrCtx.Free()
		a.swrCtx = nil
	}
	a.logger.Info("audio output closed")
}

func (a *AudioOutput) producerLoop() {
	defer a.wg.Done()

	for !a.stopped.Load() {
		if a.paused.Load() || a.playbackFinished.Load() {
			time.Sleep(pausePollInterval)
			continue
		}

		f := a.source.NextFrame()
		if f == nil {
			if a.source.EOF() && a.source.QueueLen() == 0 {
				a.playbackFinished.Store(true)
				time.Sleep(pausePollInterval)
				continue
			}
			time.Sleep(emptySourceRetryInterval)
			continue
		}

		ptsUs := f.PTSUs
		pcm, err := a.convertToInterleaved(f)
		f.Release()
		if err != nil {
			a.logger.WithError(err).Warn("audio resample failed, dropping frame")
			continue
		}
		if len(pcm) == 0 {
			continue
		}

		if !a.basePtsSet.Load() && ptsUs >= 0 {
			a.clock.SetBase(ptsUs)
			a.basePtsSet.Store(true)
		}

		a.pushWithBackoff(pcm)
	}
}

func (a *AudioOutput) pushWithBackoff(pcm []byte) {
	deadline := time.Now().Add(ringPushTimeout)
	for len(pcm) > 0 && !a.stopped.Load() && !a.paused.Load() {
		n := a.ring.Push(pcm)
		if n > 0 {
			pcm = pcm[n:]
			continue
		}
		time.Sleep(ringPushRetryInterval)
		if time.Now().After(deadline) {
			a.logger.Warn("audio producer push timeout, dropping remaining PCM")
			return
		}
	}
}

// convertToInterleaved resamples a decoded audio frame to interleaved
// S16 at the output sample rate, mirroring the reference
// implementation's convertPlanarToInterleaved but through astiav's
// frame-level resample API (the same one the teacher already used).
func (a *AudioOutput) convertToInterleaved(f *Frame) ([]byte, error) {
	src := f.Raw()

	out := astiav.AllocFrame()
	if out == nil {
		return nil, resourceExhausted("AudioOutput.convertToInterleaved.AllocFrame", nil)
	}
	defer out.Free()

	out.SetSampleFormat(astiav.SampleFormatS16)
	out.SetSampleRate(a.sampleRate)
	out.SetChannelLayout(a.source.ChannelLayout())
	out.SetNbSamples(src.NbSamples())

	if err := out.AllocBuffer(0); err != nil {
		return nil, resourceExhausted("AudioOutput.convertToInterleaved.AllocBuffer", err)
	}

	if err := a.swrCtx.ConvertFrame(src, out); err != nil {
		return nil, decodeFailed("AudioOutput.convertToInterleaved.ConvertFrame", err)
	}

	byteSize := out.NbSamples() * a.channels * audioBytesPerSample
	data := out.Data()
	plane, err := data.Bytes(0)
	if err != nil {
		return nil, decodeFailed("AudioOutput.convertToInterleaved.Bytes", err)
	}
	if byteSize > len(plane) {
		byteSize = len(plane)
	}

	buf := make([]byte, byteSize)
	copy(buf, plane[:byteSize])
	return buf, nil
}

// audioStreamer is the beep.Streamer the speaker calls back on its own
// realtime thread. It must not allocate, block or log: every buffer it
// touches (scratch) is preallocated by AudioOutput.
type audioStreamer struct {
	out *AudioOutput
}

func (s *audioStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		samples[i][0] = 0
		samples[i][1] = 0
	}

	out := s.out
	if out.paused.Load() || out.stopped.Load() {
		return len(samples), true
	}

	bytesPerFrame := out.channels * audioBytesPerSample
	needed := len(samples) * bytesPerFrame
	if needed > len(out.scratch) {
		needed = len(out.scratch) - len(out.scratch)%bytesPerFrame
	}

	popped := out.ring.Pop(out.scratch[:needed])
	if popped <= 0 {
		return len(samples), true
	}
	out.clock.AdvanceConsumed(popped)

	vol := out.volumePromille.Load()
	scale := float64(vol) / float64(volumeMaxPromille)

	framesFilled := popped / bytesPerFrame
	for i := 0; i < framesFilled && i < len(samples); i++ {
		base := i * bytesPerFrame
		left := int16(out.scratch[base]) | int16(out.scratch[base+1])<<8
		var right int16
		if out.channels >= 2 {
			right = int16(out.scratch[base+2]) | int16(out.scratch[base+3])<<8
		} else {
			right = left
		}
		samples[i][0] = float64(left) / 32768.0 * scale
		samples[i][1] = float64(right) / 32768.0 * scale
	}

	return len(samples), true
}

func (s *audioStreamer) Err() error {
	return nil
}
