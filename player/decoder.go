package player

import (
	"io"
	"sync"

	"github.com/asticode/go-astiav"
)

// decoder wraps a single astiav.CodecContext for one stream source. Unlike
// the teacher's VideoDecoder/AudioPlayer, it never scales or resamples:
// it only decodes and clones frames, in their native pixel/sample format,
// leaving presentation-format conversion to the renderer (video) and the
// audio output's producer loop (audio) per spec.md §3.
type decoder struct {
	kind     MediaKind
	codecCtx *astiav.CodecContext
	frame    *astiav.Frame
	timeBase astiav.Rational

	// frameRateNum/Den support duration computation for video frames,
	// which (unlike audio) carry no sample count to derive it from.
	// Zero means unknown; the caller falls back to a synthetic duration.
	frameRateNum int
	frameRateDen int

	mu     sync.Mutex
	closed bool
}

func openDecoder(params *astiav.CodecParameters, timeBase astiav.Rational, kind MediaKind) (*decoder, error) {
	codec := astiav.FindDecoder(params.CodecID())
	if codec == nil {
		return nil, openFailed("openDecoder.FindDecoder", nil)
	}

	d := &decoder{kind: kind, timeBase: timeBase}

	d.codecCtx = astiav.AllocCodecContext(codec)
	if d.codecCtx == nil {
		return nil, resourceExhausted("openDecoder.AllocCodecContext", nil)
	}

	if err := params.ToCodecContext(d.codecCtx); err != nil {
		d.Close()
		return nil, openFailed("openDecoder.ToCodecContext", err)
	}

	if err := d.codecCtx.Open(codec, nil); err != nil {
		d.Close()
		return nil, openFailed("openDecoder.Open", err)
	}

	d.frame = astiav.AllocFrame()
	if d.frame == nil {
		d.Close()
		return nil, resourceExhausted("openDecoder.AllocFrame", nil)
	}

	return d, nil
}

// SetFrameRate records the stream's frame rate for video duration
// computation (spec.md §4.1 Open).
func (d *decoder) SetFrameRate(num, den int) {
	d.frameRateNum = num
	d.frameRateDen = den
}

// CodecContext exposes the underlying codec context for collaborators
// that need source format details (sample rate, channel layout, pixel
// format) to configure resampling or scaling.
func (d *decoder) CodecContext() *astiav.CodecContext {
	return d.codecCtx
}

// SubmitPacket sends a packet to the decoder. A nil packet signals EOF,
// flushing any delayed frames the decoder is still holding (spec.md §4.1
// step 3).
func (d *decoder) SubmitPacket(pkt *astiav.Packet) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return decodeFailed("decoder.SubmitPacket", nil)
	}

	if err := d.codecCtx.SendPacket(pkt); err != nil {
		if err == astiav.ErrEagain || err == astiav.ErrEof {
			return nil
		}
		return decodeFailed("decoder.SubmitPacket", err)
	}
	return nil
}

// ReceiveFrame pulls the next decoded frame out of the decoder, cloning
// it into a package Frame with its PTS and duration computed in
// microseconds. Returns io.EOF when the decoder has no frame ready
// (caller should submit another packet, or stop if this followed a
// flush).
func (d *decoder) ReceiveFrame() (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, decodeFailed("decoder.ReceiveFrame", nil)
	}

	if err := d.codecCtx.ReceiveFrame(d.frame); err != nil {
		if err == astiav.ErrEagain || err == astiav.ErrEof {
			return nil, io.EOF
		}
		return nil, decodeFailed("decoder.ReceiveFrame", err)
	}
	defer d.frame.Unref()

	ptsUs := int64(-1)
	if pts := d.frame.Pts(); pts != astiav.NoPtsValue {
		ptsUs = d.tsToUs(pts)
	}
	durationUs := d.frameDurationUs()

	f, err := newFrame(d.kind, d.frame, ptsUs, durationUs)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d *decoder) tsToUs(ts int64) int64 {
	if d.timeBase.Den() == 0 {
		return 0
	}
	return ts * int64(d.timeBase.Num()) * 1_000_000 / int64(d.timeBase.Den())
}

func (d *decoder) frameDurationUs() int64 {
	switch d.kind {
	case MediaAudio:
		sampleRate := d.codecCtx.SampleRate()
		if sampleRate == 0 {
			return 0
		}
		return int64(d.frame.NbSamples()) * 1_000_000 / int64(sampleRate)
	default:
		if d.frameRateNum == 0 || d.frameRateDen == 0 {
			return 0
		}
		return int64(d.frameRateDen) * 1_000_000 / int64(d.frameRateNum)
	}
}

// Flush resets internal decoder state so a subsequent seek can resume
// decoding cleanly (spec.md §4.1 Seek step 2).
func (d *decoder) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.codecCtx.FlushBuffers()
}

// Close releases the decoder's frame buffer and codec context.
func (d *decoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true

	if d.frame != nil {
		d.frame.Free()
		d.frame = nil
	}
	if d.codecCtx != nil {
		d.codecCtx.Free()
		d.codecCtx = nil
	}
}
