package player

import (
	"time"

	"github.com/asticode/go-astiav"
)

func init() {
	// Suppress FFmpeg log messages; our own logging goes through logrus.
	astiav.SetLogLevel(astiav.LogLevelQuiet)
}

// MediaKind discriminates the two stream types a StreamSource can own.
// Prefer a tagged enum over a type hierarchy; the few kind-specific
// branches (metadata extraction, duration-from-nb-samples vs
// duration-from-frame-rate) are isolated in OpenStreamSource,
// decoder.frameDurationUs and StreamSource.assignTimestamps.
type MediaKind int

const (
	MediaVideo MediaKind = iota
	MediaAudio
)

func (k MediaKind) String() string {
	if k == MediaVideo {
		return "video"
	}
	return "audio"
}

// SourceState is the StreamSource state machine (spec.md §3).
type SourceState int32

const (
	SourceStopped SourceState = iota
	SourcePaused
	SourceRunning
)

func (s SourceState) String() string {
	switch s {
	case SourceStopped:
		return "stopped"
	case SourcePaused:
		return "paused"
	case SourceRunning:
		return "running"
	default:
		return "unknown"
	}
}

// PlayerState is the Playback Controller state machine (spec.md §3).
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StatePaused
	StateError
)

func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	// VideoQueueCapacity and AudioQueueCapacity are the per-kind frame
	// queue bounds (spec.md §3).
	VideoQueueCapacity = 30
	AudioQueueCapacity = 50

	// AudioRingMinBytes is the floor on the PCM ring capacity (spec.md §3).
	AudioRingMinBytes = 4096

	// Sync bands (spec.md §4.4 step 6), lifted from the reference
	// implementation's AV_SYNC_THRESHOLD_MIN/MAX/FRAMEDUP constants.
	// Tunable, but intentionally not exposed as a user-facing API.
	syncThresholdMin     = 40 * time.Millisecond
	syncThresholdMax     = 100 * time.Millisecond
	syncFramedupThresh   = 200 * time.Millisecond
	lowPassPrevWeight    = 0.9
	lowPassCurrentWeight = 0.1

	// audioOutputBufferFrames is the 1024-frame device buffer size of the
	// reference implementation (§4.3). The speaker is not opened with it:
	// NewAudioOutput sizes the device buffer from
	// audioCallbackBufferDuration instead.
	audioOutputBufferFrames = 1024

	// audioCallbackBufferDuration is the device callback's target buffer
	// length, analogous to the reference implementation's 1024-sample
	// SDL "want.samples" but expressed in time since beep's speaker.Init
	// takes a sample count derived from a duration.
	audioCallbackBufferDuration = 50 * time.Millisecond

	// volumeMaxPromille is the fixed-point ceiling volume uses internally
	// (0..volumeMaxPromille), mirroring the reference implementation's
	// SDL_MIX_MAXVOLUME scale but in promille for finer resolution.
	volumeMaxPromille = 1000

	// audioBytesPerSample is fixed by the output format: 16-bit signed,
	// interleaved, system endian (§4.3).
	audioBytesPerSample = 2

	// pausePollInterval is how often a paused decode worker or presenter
	// rechecks its state (§4.1 step 1, §4.4 step 1).
	pausePollInterval = 10 * time.Millisecond
	// emptySourceRetryInterval is the presenter's retry sleep when no
	// frame is available but the source is not EOF (§4.4 step 3).
	emptySourceRetryInterval = 5 * time.Millisecond
	// eofDrainPollInterval is how often decodeLoop polls for queue
	// drain during EOF flush (§4.1 step 3).
	eofDrainPollInterval = 5 * time.Millisecond
	// ringPushRetryInterval and ringPushTimeout bound the audio producer's
	// retrying push into a full ring (§4.3 step 5, §5).
	ringPushRetryInterval = 5 * time.Millisecond
	ringPushTimeout       = 200 * time.Millisecond

	// rendererQueueCapacity is the renderer's own frame queue bound (§6).
	rendererQueueCapacity = 5

	// seekSettleFrames is how many on-or-after-target frames a seek queues
	// before declaring itself converged (§4.1 Seek step 4). spec.md §9
	// Open Question 1 floats a time-based settle instead; we keep the
	// frame-count settle because §8 property 8 is phrased in terms of it.
	seekSettleFrames = 5
)

// TimestampObserver is invoked by the video presenter at every
// presentation (spec.md §4.5 Observers). Implementations must not block.
type TimestampObserver func(currentUs, durationUs int64)

// StateObserver is invoked by the controller on every state transition.
// Implementations must not block.
type StateObserver func(state PlayerState)
