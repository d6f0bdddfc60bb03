package player

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/sirupsen/logrus"
)

// StreamSource is C1: it owns one demuxer, one decoder and one bounded
// frame queue for a single media kind, and runs its own decode goroutine.
// Grounded on original_source's StreamSource (stream_source.cpp), whose
// decodingLoop/processPacket/seek this mirrors almost step for step; the
// mutex+cond queue itself comes from Savid-iptv-proxy's CircularBuffer
// idiom (see queue.go).
type StreamSource struct {
	kind   MediaKind
	logger *logrus.Logger

	dm    *demuxer
	dec   *decoder
	queue *frameQueue

	state atomic.Int32 // SourceState
	eof   atomic.Bool

	// fakePtsUs is advanced by the decode goroutine and reset to 0 by
	// Start and Seek; it has no synchronization of its own.
	fakePtsUs int64

	wg sync.WaitGroup

	durationUs int64

	// width/height/frameRate/sampleRate/channels are set once during
	// Open, before any other goroutine can observe the source, so they
	// need no synchronization of their own.
	width, height int
	frameRate     float64
	sampleRate    int
	channels      int
}

// OpenStreamSource opens path as a single-kind stream source (spec.md
// §4.1 Open).
func OpenStreamSource(path string, kind MediaKind, logger *logrus.Logger) (*StreamSource, error) {
	s := &StreamSource{kind: kind, logger: logger}
	s.state.Store(int32(SourceStopped))

	logger.WithFields(logrus.Fields{"kind": kind, "path": path}).Info("opening stream source")

	dm, err := openDemuxer(path, kind)
	if err != nil {
		return nil, err
	}
	s.dm = dm

	dec, err := openDecoder(dm.CodecParameters(), dm.TimeBase(), kind)
	if err != nil {
		dm.Close()
		return nil, err
	}
	s.dec = dec

	params := dm.CodecParameters()
	switch kind {
	case MediaVideo:
		s.width = params.Width()
		s.height = params.Height()
		num, den := dm.FrameRateFraction()
		dec.SetFrameRate(num, den)
		if den != 0 {
			s.frameRate = float64(num) / float64(den)
		}
		s.queue = newFrameQueue(VideoQueueCapacity)
	case MediaAudio:
		s.sampleRate = params.SampleRate()
		s.channels = params.ChannelLayout().Channels()
		s.queue = newFrameQueue(AudioQueueCapacity)
	}

	s.durationUs = dm.DurationUs()

	logger.WithFields(logrus.Fields{
		"kind":        kind,
		"width":       s.width,
		"height":      s.height,
		"frame_rate":  s.frameRate,
		"sample_rate": s.sampleRate,
		"channels":    s.channels,
	}).Info("stream source opened")

	return s, nil
}

// State returns the source's current lifecycle state.
func (s *StreamSource) State() SourceState {
	return SourceState(s.state.Load())
}

// EOF reports whether the underlying container has been fully read.
func (s *StreamSource) EOF() bool {
	return s.eof.Load()
}

// DurationUs returns the container duration in microseconds, 0 if unknown.
func (s *StreamSource) DurationUs() int64 {
	return s.durationUs
}

// Dimensions returns the video frame size. Zero values for an audio
// source.
func (s *StreamSource) Dimensions() (int, int) {
	return s.width, s.height
}

// AudioFormat returns the audio sample rate and channel count. Zero
// values for a video source.
func (s *StreamSource) AudioFormat() (int, int) {
	return s.sampleRate, s.channels
}

// FrameRate returns the video source's frame rate in frames per second,
// 0 if unknown. Meaningless for an audio source.
func (s *StreamSource) FrameRate() float64 {
	return s.frameRate
}

// ChannelLayout returns the decoder's channel layout, for collaborators
// configuring a resampler against this source (AudioOutput).
func (s *StreamSource) ChannelLayout() astiav.ChannelLayout {
	return s.dec.CodecContext().ChannelLayout()
}

// Start begins (or resumes from Stopped) the decode goroutine (spec.md
// §4.1 startDecoding).
func (s *StreamSource) Start() {
	if s.State() == SourceRunning {
		s.logger.WithField("kind", s.kind).Warn("stream source already running")
		return
	}
	if s.State() == SourceStopped {
		s.queue.Clear()
		s.eof.Store(false)
		s.fakePtsUs = 0
	}
	s.state.Store(int32(SourceRunning))
	s.wg.Add(1)
	go s.decodeLoop()
}

// Pause transitions Running -> Paused.
func (s *StreamSource) Pause() {
	s.state.CompareAndSwap(int32(SourceRunning), int32(SourcePaused))
}

// Resume transitions Paused -> Running.
func (s *StreamSource) Resume() {
	s.state.CompareAndSwap(int32(SourcePaused), int32(SourceRunning))
}

// Stop signals the decode goroutine to exit and waits for it to do so.
func (s *StreamSource) Stop() {
	s.state.Store(int32(SourceStopped))
	s.queue.Notify()
	s.wg.Wait()
}

// ClearQueue discards any frames queued but not yet consumed. Used by
// the controller on an explicit Stop, so a subsequent Play starts from a
// clean queue rather than replaying stale frames (spec.md §4.1, a
// deliberate divergence from the original implementation — see
// DESIGN.md).
func (s *StreamSource) ClearQueue() {
	s.queue.Clear()
}

// Close stops the source and releases the demuxer/decoder/queue.
func (s *StreamSource) Close() {
	s.Stop()
	s.queue.Clear()
	if s.dec != nil {
		s.dec.Close()
	}
	if s.dm != nil {
		s.dm.Close()
	}
	s.logger.WithField("kind", s.kind).Info("stream source closed")
}

// NextFrame pops the oldest decoded frame, or nil if none is ready.
func (s *StreamSource) NextFrame() *Frame {
	return s.queue.Pop()
}

// QueueLen reports how many frames are currently buffered.
func (s *StreamSource) QueueLen() int {
	return s.queue.Len()
}

func (s *StreamSource) isRunning() bool {
	return s.State() == SourceRunning
}

func (s *StreamSource) decodeLoop() {
	defer s.wg.Done()

	packetCount := 0
	for s.State() != SourceStopped {
		if s.State() == SourcePaused {
			time.Sleep(pausePollInterval)
			continue
		}

		s.queue.WaitForSpace(s.isRunning)
		if s.State() != SourceRunning {
			continue
		}

		pkt, err := s.dm.ReadPacket()
		if err != nil {
			if err == io.EOF {
				s.eof.Store(true)
				s.logger.WithField("kind", s.kind).Info("stream reached EOF")
				s.processPacket(nil)

				s.queue.WaitDrained(s.isRunning)
				if s.queue.Len() == 0 {
					s.state.Store(int32(SourceStopped))
					s.logger.WithField("kind", s.kind).Info("stream decoding completed")
					break
				}
				time.Sleep(eofDrainPollInterval)
				continue
			}
			s.logger.WithError(err).WithField("kind", s.kind).Error("read packet failed")
			time.Sleep(emptySourceRetryInterval)
			continue
		}

		s.processPacket(pkt)
		pkt.Free()

		packetCount++
		if packetCount%30 == 0 {
			s.logger.WithFields(logrus.Fields{
				"kind":       s.kind,
				"packets":    packetCount,
				"queue_len":  s.queue.Len(),
				"queue_cap":  s.queue.Capacity(),
				"fake_ptsUs": s.fakePtsUs,
			}).Debug("decode progress")
		}
	}
}

// processPacket submits a packet (nil to flush) and drains every frame
// the decoder produces in response, assigning fake timestamps to any
// frame whose PTS could not be determined (spec.md §4.1 step 4).
func (s *StreamSource) processPacket(pkt *astiav.Packet) {
	if err := s.dec.SubmitPacket(pkt); err != nil {
		s.logger.WithError(err).WithField("kind", s.kind).Error("submit packet failed")
		return
	}

	for {
		f, err := s.dec.ReceiveFrame()
		if err != nil {
			if err == io.EOF {
				break
			}
			s.logger.WithError(err).WithField("kind", s.kind).Error("receive frame failed")
			break
		}

		s.assignTimestamps(f)

		if !s.queue.Push(f) {
			s.logger.WithFields(logrus.Fields{"kind": s.kind, "pts_us": f.PTSUs}).
				Warn("frame queue full, dropping frame")
			f.Release()
		}
	}
}

// assignTimestamps fills in a synthetic, monotonically increasing PTS
// for frames the decoder could not timestamp, advancing it by the
// frame's own duration (or a fallback frame interval for the kind).
func (s *StreamSource) assignTimestamps(f *Frame) {
	if f.PTSUs >= 0 {
		return
	}

	f.PTSUs = s.fakePtsUs
	s.logger.WithFields(logrus.Fields{"kind": s.kind, "pts_us": f.PTSUs}).
		Warn("frame has no valid PTS, assigning fake PTS")

	if f.DurationUs > 0 {
		s.fakePtsUs += f.DurationUs
	} else if s.kind == MediaVideo {
		s.fakePtsUs += int64(time.Second / 30 / time.Microsecond)
	} else {
		s.fakePtsUs += int64(time.Second / 50 / time.Microsecond)
	}
}

// Seek repositions the demuxer and decodes forward until at least
// seekSettleFrames frames at or after targetUs have been queued (spec.md
// §4.1 Seek).
func (s *StreamSource) Seek(targetUs int64) error {
	if targetUs < 0 || (s.durationUs > 0 && targetUs > s.durationUs) {
		return invalidArgument("StreamSource.Seek", nil)
	}

	if err := s.dm.Seek(targetUs); err != nil {
		return err
	}

	s.dec.Flush()
	s.queue.Clear()
	s.eof.Store(false)
	s.fakePtsUs = 0

	queued := 0
	for {
		pkt, err := s.dm.ReadPacket()
		if err != nil {
			s.logger.WithField("kind", s.kind).Warn("seek: no packet post-seek")
			break
		}

		if err := s.dec.SubmitPacket(pkt); err != nil {
			pkt.Free()
			return err
		}
		pkt.Free()

		for {
			f, err := s.dec.ReceiveFrame()
			if err != nil {
				break
			}
			if f.PTSUs < 0 {
				f.Release()
				continue
			}
			if f.PTSUs < targetUs {
				f.Release()
				continue
			}
			if !s.queue.Push(f) {
				f.Release()
				continue
			}
			queued++
			if queued >= seekSettleFrames {
				return nil
			}
		}
	}

	return nil
}

// CurrentTimestamp returns the PTS of the oldest queued frame, or 0 if
// the queue is empty (spec.md §4.1).
func (s *StreamSource) CurrentTimestamp() int64 {
	f := s.queue.Peek()
	if f == nil {
		return 0
	}
	return f.PTSUs
}
