package player

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestController() *Controller {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewController(logger)
}

func TestNewControllerStartsStopped(t *testing.T) {
	c := newTestController()
	assert.Equal(t, StateStopped, c.State())
}

func TestSetStateObserverIsInvokedOnTransition(t *testing.T) {
	c := newTestController()
	var seen []PlayerState
	c.SetStateObserver(func(s PlayerState) { seen = append(seen, s) })

	c.setState(StatePlaying)
	c.setState(StatePaused)

	assert.Equal(t, []PlayerState{StatePlaying, StatePaused}, seen)
}

func TestOpenRejectsWhenNotStopped(t *testing.T) {
	c := newTestController()
	c.state.Store(int32(StatePlaying))

	err := c.Open("whatever.mp4", nil, nil)
	assert.Error(t, err)
}

func TestOpenRejectsWhenAlreadyOpen(t *testing.T) {
	c := newTestController()
	c.videoSource = &StreamSource{}

	err := c.Open("whatever.mp4", nil, nil)
	assert.Error(t, err)
}

func TestPlayRejectsWhenNoStreamsOpen(t *testing.T) {
	c := newTestController()
	err := c.Play()
	assert.Error(t, err)
}

func TestPlayIsNoopWhenAlreadyPlaying(t *testing.T) {
	c := newTestController()
	c.state.Store(int32(StatePlaying))

	err := c.Play()
	assert.NoError(t, err)
	assert.Equal(t, StatePlaying, c.State())
}

func TestPlayReturnsErrorWhenInErrorState(t *testing.T) {
	c := newTestController()
	c.state.Store(int32(StateError))

	err := c.Play()
	assert.Error(t, err)
}

func TestPauseIsNoopWhenNotPlaying(t *testing.T) {
	c := newTestController()
	c.Pause()
	assert.Equal(t, StateStopped, c.State())
}

func TestResumeIsNoopWhenNotPaused(t *testing.T) {
	c := newTestController()
	err := c.Resume()
	assert.NoError(t, err)
	assert.Equal(t, StateStopped, c.State())
}

func TestStopIsNoopWhenAlreadyStopped(t *testing.T) {
	c := newTestController()
	assert.NotPanics(t, func() { c.Stop() })
	assert.Equal(t, StateStopped, c.State())
}

func TestSeekRejectsWhenNoStreamsOpen(t *testing.T) {
	c := newTestController()
	err := c.Seek(1000)
	assert.Error(t, err)
}

func TestWindowReturnsNilWithoutRenderer(t *testing.T) {
	c := newTestController()
	assert.Nil(t, c.Window())
}

func TestVolumeIsZeroWithoutAudioOutput(t *testing.T) {
	c := newTestController()
	assert.Equal(t, 0.0, c.Volume())
	assert.NotPanics(t, func() { c.SetVolume(0.5) })
}

func TestCurrentTimestampIsZeroWithNothingOpen(t *testing.T) {
	c := newTestController()
	assert.Equal(t, int64(0), c.CurrentTimestamp())
}

func TestIsFinishedFalseWhenPlaying(t *testing.T) {
	c := newTestController()
	c.state.Store(int32(StatePlaying))
	assert.False(t, c.IsFinished())
}

func TestIsFinishedTrueWhenStoppedWithNoStreams(t *testing.T) {
	c := newTestController()
	assert.True(t, c.IsFinished())
}

func TestStepFrameReturnsNilWhenNotPaused(t *testing.T) {
	c := newTestController()
	assert.Nil(t, c.StepFrame())
}

func TestCloseIsNoopWithNothingOpen(t *testing.T) {
	c := newTestController()
	assert.NotPanics(t, func() { c.Close() })
}
