package player

import "github.com/asticode/go-astiav"

// Frame is the decoded-frame tuple from spec.md §3: a payload plus its
// presentation timestamp and duration, both in whole microseconds.
//
// The payload is an astiav.Frame cloned off the decoder's working frame
// with Ref (mirroring av_frame_ref, the same pattern the teacher used for
// packet cloning in Demuxer.ReadPacket): the decoder's own frame is
// reused and Unref'd immediately after, but the clone keeps its backing
// buffers alive by reference count until Release is called. This is the
// "frames are cloned ... so the decoder may free its internal buffers at
// will" guarantee from spec.md §3, and it matches how the C++ original
// passes std::shared_ptr<AVFrame> through its queues rather than copying
// pixel data.
type Frame struct {
	Kind       MediaKind
	raw        *astiav.Frame
	PTSUs      int64
	DurationUs int64
}

func newFrame(kind MediaKind, src *astiav.Frame, ptsUs, durationUs int64) (*Frame, error) {
	clone := astiav.AllocFrame()
	if clone == nil {
		return nil, resourceExhausted("newFrame", nil)
	}
	if err := clone.Ref(src); err != nil {
		clone.Free()
		return nil, resourceExhausted("newFrame", err)
	}
	return &Frame{Kind: kind, raw: clone, PTSUs: ptsUs, DurationUs: durationUs}, nil
}

// Release returns the frame's backing storage. Every Frame taken off a
// FrameQueue (or handed to a renderer/audio producer) must be released
// exactly once by whichever component is its current owner.
func (f *Frame) Release() {
	if f == nil || f.raw == nil {
		return
	}
	f.raw.Free()
	f.raw = nil
}

// Raw exposes the underlying astiav.Frame to package-internal consumers
// (the audio producer's resampler, the reference renderer's scaler).
// Callers must not call Free on it directly; use Release.
func (f *Frame) Raw() *astiav.Frame { return f.raw }

// VideoPlanes copies out the plane byte slices, strides, dimensions and
// pixel format of a video frame's payload (spec.md §3's "planar or
// packed YUV image planes with per-plane row strides and width/height").
// It is safe to call any number of times before Release.
func (f *Frame) VideoPlanes() (planes [][]byte, strides []int, width, height int, format astiav.PixelFormat) {
	width = f.raw.Width()
	height = f.raw.Height()
	format = f.raw.PixelFormat()

	data := f.raw.Data()
	for i := 0; ; i++ {
		stride := f.raw.Linesize(i)
		if stride <= 0 {
			break
		}
		plane, err := data.Bytes(i)
		if err != nil || plane == nil {
			break
		}
		planes = append(planes, plane)
		strides = append(strides, stride)
	}
	return planes, strides, width, height, format
}
