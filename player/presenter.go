package player

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// VideoPresenter is C4's sync loop: it pulls decoded video frames off a
// StreamSource, hands them to a Renderer at the right wall-clock moment
// relative to the audio clock, and reports playback position through a
// TimestampObserver.
//
// Grounded on original_source's Player::renderLoop (player.cpp): the
// three sync bands, the one-pole low-pass filter on delay, and the
// EOF-waits-for-audio handoff are all lifted from there.
type VideoPresenter struct {
	logger     *logrus.Logger
	source     *StreamSource
	renderer   Renderer
	audioClock func() int64 // nil when there is no audio stream
	frameRate  float64

	observer TimestampObserver

	// otherFinished reports whether the sibling (audio) stream has also
	// reached EOF; nil when there is no audio stream. onFinished fires
	// once, when both this presenter's video source and otherFinished
	// agree playback is complete (spec.md §4.4, mirroring
	// Player::renderLoop's "both streams finished" handoff to stop()).
	otherFinished func() bool
	onFinished     func()
	finishedFired  atomic.Bool

	running atomic.Bool
	paused  atomic.Bool
	wg      sync.WaitGroup

	lastDelay       time.Duration
	lastTimestampUs atomic.Int64
}

// NewVideoPresenter constructs a presenter over a video source and
// renderer. audioClock may be nil if the file has no audio stream, in
// which case sync falls back to the video's own frame cadence.
func NewVideoPresenter(source *StreamSource, renderer Renderer, frameRate float64, audioClock func() int64, observer TimestampObserver, logger *logrus.Logger) *VideoPresenter {
	return &VideoPresenter{
		logger:     logger,
		source:     source,
		renderer:   renderer,
		audioClock: audioClock,
		frameRate:  frameRate,
		observer:   observer,
	}
}

// SetFinishedHandler wires the "both streams finished" callback: called
// once from the presentation loop when this presenter's source reaches
// EOF and otherFinished (if any) also reports completion.
func (p *VideoPresenter) SetFinishedHandler(otherFinished func() bool, onFinished func()) {
	p.otherFinished = otherFinished
	p.onFinished = onFinished
}

// Start begins the presentation loop. The presenter starts paused:
// nothing is presented until the controller calls Resume.
func (p *VideoPresenter) Start() {
	p.running.Store(true)
	p.paused.Store(true)
	p.wg.Add(1)
	go p.renderLoop()
}

// Pause freezes presentation without tearing down the loop.
func (p *VideoPresenter) Pause() {
	p.paused.Store(true)
}

// Resume un-freezes presentation.
func (p *VideoPresenter) Resume() {
	p.finishedFired.Store(false)
	p.paused.Store(false)
}

// Stop halts the presentation loop and waits for it to exit.
func (p *VideoPresenter) Stop() {
	p.running.Store(false)
	p.wg.Wait()
}

// CurrentTimestamp returns the PTS, in microseconds, of the last frame
// presented.
func (p *VideoPresenter) CurrentTimestamp() int64 {
	return p.lastTimestampUs.Load()
}

func (p *VideoPresenter) renderLoop() {
	defer p.wg.Done()
	p.logger.Info("presenter loop started")

	for p.running.Load() {
		if p.paused.Load() {
			time.Sleep(pausePollInterval)
			continue
		}

		frame := p.source.NextFrame()
		if frame == nil {
			if p.source.EOF() {
				// Video is done; let the audio stream (if any) keep
				// draining so CurrentTimestamp/IsFinished reflect
				// reality until both sides report EOF.
				if p.onFinished != nil && (p.otherFinished == nil || p.otherFinished()) {
					if p.finishedFired.CompareAndSwap(false, true) {
						p.onFinished()
					}
				}
				time.Sleep(pausePollInterval)
				continue
			}
			time.Sleep(emptySourceRetryInterval)
			continue
		}

		delay := p.computeDelay(frame)

		p.renderer.EnqueueFrame(frame)

		p.lastTimestampUs.Store(frame.PTSUs)
		if p.observer != nil {
			p.observer(frame.PTSUs, p.source.DurationUs())
		}

		if delay > 0 {
			time.Sleep(delay)
		}
	}

	p.logger.Info("presenter loop exiting")
}

// computeDelay applies the three-band A/V sync rule and a low-pass
// filter to the frame's natural display duration (spec.md §4.4 step 6).
func (p *VideoPresenter) computeDelay(frame *Frame) time.Duration {
	frameDelay := time.Duration(frame.DurationUs) * time.Microsecond
	if frameDelay <= 0 {
		if p.frameRate > 0 {
			frameDelay = time.Duration(float64(time.Second) / p.frameRate)
		} else {
			frameDelay = time.Second / 30
		}
	}

	delay := frameDelay

	if p.audioClock != nil {
		diff := time.Duration(frame.PTSUs)*time.Microsecond - time.Duration(p.audioClock())*time.Microsecond

		switch {
		case absDuration(diff) < syncThresholdMin:
			// In sync; render at the frame's natural cadence.
		case absDuration(diff) > syncThresholdMax:
			delay = frameDelay + diff
			if delay < 0 {
				delay = 0
			}
		case diff > syncFramedupThresh:
			delay = 0
		}
	}

	if p.lastDelay > 0 {
		delay = time.Duration(float64(p.lastDelay)*lowPassPrevWeight + float64(delay)*lowPassCurrentWeight)
	}
	p.lastDelay = delay

	return delay
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}