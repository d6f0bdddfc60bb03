package player

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Controller is C5: the Playback Controller. It owns a video and an
// audio StreamSource, an AudioOutput, a Renderer and a VideoPresenter,
// and drives them together through a single play/pause/stop/seek state
// machine.
//
// Grounded on original_source's Player (player.cpp): Open/Play/Pause/
// Resume/Stop/Seek/IsFinished/SetVolume/GetVolume/GetWindow all mirror
// its same-named methods, generalized so the concrete Renderer is
// injected rather than hardwired to one GL backend.
type Controller struct {
	logger *logrus.Logger

	mu          sync.Mutex
	videoSource *StreamSource
	audioSource *StreamSource
	audioOutput *AudioOutput
	renderer    Renderer
	presenter   *VideoPresenter

	state         atomic.Int32 // PlayerState
	stateObserver StateObserver

	durationUs int64
	path       string
}

// NewController creates a controller with no stream open.
func NewController(logger *logrus.Logger) *Controller {
	c := &Controller{logger: logger}
	c.state.Store(int32(StateStopped))
	return c
}

// State returns the controller's current playback state.
func (c *Controller) State() PlayerState {
	return PlayerState(c.state.Load())
}

// SetStateObserver installs the callback invoked on every state
// transition (spec.md §4.5 Observers). Must not block.
func (c *Controller) SetStateObserver(obs StateObserver) {
	c.mu.Lock()
	c.stateObserver = obs
	c.mu.Unlock()
}

func (c *Controller) setState(s PlayerState) {
	c.state.Store(int32(s))
	c.mu.Lock()
	obs := c.stateObserver
	c.mu.Unlock()
	if obs != nil {
		obs(s)
	}
}

// Open opens path's video and audio streams, starts the renderer and
// the presentation loop (paused), and leaves the controller in
// StateStopped until Play is called (spec.md §4.5 Open).
//
// Both streams are required, matching the original implementation: a
// file the renderer can present but cannot hear (or vice versa) is
// treated as an open failure rather than a degraded single-stream mode.
func (c *Controller) Open(path string, renderer Renderer, timestampObserver TimestampObserver) error {
	if c.State() != StateStopped || c.videoSource != nil {
		return invalidArgument("Controller.Open", nil)
	}

	c.logger.WithField("path", path).Info("opening playback controller")

	videoSource, err := OpenStreamSource(path, MediaVideo, c.logger)
	if err != nil {
		return err
	}

	audioSource, err := OpenStreamSource(path, MediaAudio, c.logger)
	if err != nil {
		videoSource.Close()
		return err
	}

	width, height := videoSource.Dimensions()
	if err := renderer.Start(width, height); err != nil {
		videoSource.Close()
		audioSource.Close()
		c.setState(StateError)
		return err
	}

	audioOutput, err := NewAudioOutput(audioSource, c.logger)
	if err != nil {
		videoSource.Close()
		audioSource.Close()
		renderer.Stop()
		c.setState(StateError)
		return err
	}

	durationUs := videoSource.DurationUs()
	if durationUs == 0 {
		durationUs = audioSource.DurationUs()
	}

	presenter := NewVideoPresenter(videoSource, renderer, videoSource.FrameRate(), audioOutput.Clock, timestampObserver, c.logger)
	presenter.SetFinishedHandler(audioSource.EOF, func() {
		c.Stop()
	})
	presenter.Start()

	c.videoSource = videoSource
	c.audioSource = audioSource
	c.audioOutput = audioOutput
	c.renderer = renderer
	c.presenter = presenter
	c.durationUs = durationUs
	c.path = path

	c.setState(StateStopped)
	return nil
}

// Play starts playback from Stopped, or resumes from Paused (spec.md
// §4.5 Play).
func (c *Controller) Play() error {
	switch c.State() {
	case StatePlaying:
		return nil
	case StatePaused:
		return c.Resume()
	case StateError:
		return internalError("Controller.Play", nil)
	}

	if c.videoSource == nil || c.audioSource == nil {
		return invalidArgument("Controller.Play", nil)
	}

	c.logger.Info("starting playback")
	c.audioSource.Start()
	c.videoSource.Start()
	c.audioOutput.Resume()
	c.presenter.Resume()
	c.setState(StatePlaying)
	return nil
}

// Pause freezes playback (spec.md §4.5 Pause).
func (c *Controller) Pause() {
	if c.State() != StatePlaying {
		return
	}
	c.logger.Info("pausing playback")
	c.videoSource.Pause()
	c.audioSource.Pause()
	c.audioOutput.Pause()
	c.presenter.Pause()
	c.setState(StatePaused)
}

// Resume un-freezes playback (spec.md §4.5 Resume).
func (c *Controller) Resume() error {
	if c.State() != StatePaused {
		return nil
	}
	c.logger.Info("resuming playback")
	c.audioSource.Resume()
	c.videoSource.Resume()
	c.audioOutput.Resume()
	c.presenter.Resume()
	c.setState(StatePlaying)
	return nil
}

// Stop halts decoding and playback and clears all queued frames (spec.md
// §4.5 Stop). Unlike the original implementation, this does not tear
// down the audio device: Stop is meant to be followed by another Play,
// not only by Close (see DESIGN.md).
func (c *Controller) Stop() {
	if c.State() == StateStopped {
		return
	}
	c.logger.Info("stopping playback")

	c.audioSource.Stop()
	c.videoSource.Stop()
	c.presenter.Pause()
	c.audioOutput.ResetClock(0)
	c.audioOutput.Pause()
	c.audioSource.ClearQueue()
	c.videoSource.ClearQueue()
	c.renderer.ClearFrames()

	c.setState(StateStopped)
}

// Seek repositions both streams to targetUs, pausing playback for the
// duration of the seek to avoid racing the decode threads (spec.md §4.5
// Seek).
func (c *Controller) Seek(targetUs int64) error {
	if c.videoSource == nil || c.audioSource == nil {
		return invalidArgument("Controller.Seek", nil)
	}

	wasPlaying := c.State() == StatePlaying
	c.Pause()

	if targetUs < 0 {
		targetUs = 0
	}
	if c.durationUs > 0 && targetUs > c.durationUs {
		targetUs = c.durationUs
	}

	if err := c.videoSource.Seek(targetUs); err != nil {
		return err
	}
	c.audioOutput.ResetClock(targetUs)
	if err := c.audioSource.Seek(targetUs); err != nil {
		return err
	}
	c.renderer.ClearFrames()

	c.logger.WithField("target_us", targetUs).Info("seeked")

	if wasPlaying {
		return c.Resume()
	}
	return nil
}

// StepFrame advances exactly one video frame while paused, then
// re-freezes. Supplements the original's play/pause-only transport with
// single-frame stepping (not present in the original implementation;
// see SPEC_FULL.md).
func (c *Controller) StepFrame() *Frame {
	if c.State() != StatePaused || c.videoSource == nil {
		return nil
	}
	f := c.videoSource.NextFrame()
	if f == nil {
		return nil
	}
	c.renderer.EnqueueFrame(f)
	if c.presenter != nil {
		c.presenter.lastTimestampUs.Store(f.PTSUs)
	}
	return f
}

// CurrentTimestamp returns the playback position in microseconds,
// preferring the audio clock over the presenter's last-rendered video
// PTS (spec.md §4.5, mirroring Player::getCurrentTimestamp).
func (c *Controller) CurrentTimestamp() int64 {
	if c.audioOutput != nil {
		if ac := c.audioOutput.Clock(); ac > 0 {
			return ac
		}
	}
	if c.presenter != nil {
		if ts := c.presenter.CurrentTimestamp(); ts > 0 {
			return ts
		}
	}
	return 0
}

// Duration returns the stream duration in microseconds, 0 if unknown.
func (c *Controller) Duration() int64 {
	return c.durationUs
}

// IsFinished reports whether playback has stopped because both streams
// reached EOF, as opposed to an explicit Stop (spec.md §4.5, mirroring
// Player::isFinished).
func (c *Controller) IsFinished() bool {
	if c.State() != StateStopped {
		return false
	}
	return (c.videoSource == nil || c.videoSource.EOF()) &&
		(c.audioSource == nil || c.audioSource.EOF())
}

// Window returns the renderer's backend-specific window handle, or nil
// if no renderer is attached (spec.md §4.5, mirroring Player::getWindow).
func (c *Controller) Window() any {
	if c.renderer == nil {
		return nil
	}
	return c.renderer.Window()
}

// SetVolume sets audio volume in [0,1] (spec.md §4.5 SetVolume).
func (c *Controller) SetVolume(norm float64) {
	if c.audioOutput != nil {
		c.audioOutput.SetVolume(norm)
	}
}

// Volume returns the current audio volume in [0,1].
func (c *Controller) Volume() float64 {
	if c.audioOutput == nil {
		return 0
	}
	return c.audioOutput.Volume()
}

// Close stops playback and releases every owned resource (spec.md §4.5
// Close).
func (c *Controller) Close() {
	if c.videoSource == nil {
		return
	}
	c.logger.Info("closing playback controller")

	c.presenter.Stop()
	if c.audioOutput != nil {
		c.audioOutput.Close()
	}
	if c.renderer != nil {
		c.renderer.Stop()
	}
	c.videoSource.Close()
	c.audioSource.Close()

	c.videoSource = nil
	c.audioSource = nil
	c.audioOutput = nil
	c.renderer = nil
	c.presenter = nil

	c.setState(StateStopped)
}
