package player

import (
	"io"

	"github.com/asticode/go-astiav"
)

// demuxer owns one astiav.FormatContext opened against a single stream of
// one MediaKind. Each StreamSource opens its own demuxer on the same file
// path (spec.md §3 "Each stream source exclusively owns its demuxer and
// decoder"), which is why, unlike the teacher's Demuxer, this one only
// ever tracks a single stream index rather than a video/audio pair.
type demuxer struct {
	kind      MediaKind
	formatCtx *astiav.FormatContext
	stream    *astiav.Stream
	timeBase  astiav.Rational
}

func openDemuxer(path string, kind MediaKind) (*demuxer, error) {
	if path == "" {
		return nil, invalidArgument("openDemuxer", nil)
	}

	d := &demuxer{kind: kind}

	d.formatCtx = astiav.AllocFormatContext()
	if d.formatCtx == nil {
		return nil, resourceExhausted("openDemuxer.AllocFormatContext", nil)
	}

	if err := d.formatCtx.OpenInput(path, nil, nil); err != nil {
		d.formatCtx.Free()
		return nil, openFailed("openDemuxer.OpenInput", err)
	}

	if err := d.formatCtx.FindStreamInfo(nil); err != nil {
		d.Close()
		return nil, openFailed("openDemuxer.FindStreamInfo", err)
	}

	wantType := astiav.MediaTypeVideo
	if kind == MediaAudio {
		wantType = astiav.MediaTypeAudio
	}

	for _, s := range d.formatCtx.Streams() {
		if s.CodecParameters().MediaType() == wantType {
			d.stream = s
			d.timeBase = s.TimeBase()
			break
		}
	}
	if d.stream == nil {
		d.Close()
		return nil, openFailed("openDemuxer.findStream", nil)
	}

	return d, nil
}

// CodecParameters returns the codec parameters of the owned stream.
func (d *demuxer) CodecParameters() *astiav.CodecParameters {
	return d.stream.CodecParameters()
}

// TimeBase returns the owned stream's time base.
func (d *demuxer) TimeBase() astiav.Rational {
	return d.timeBase
}

// StreamIndex returns the owned stream's index within the container.
func (d *demuxer) StreamIndex() int {
	return d.stream.Index()
}

// DurationUs returns the container duration in microseconds, or 0 if
// unknown.
func (d *demuxer) DurationUs() int64 {
	dur := d.formatCtx.Duration()
	if dur < 0 {
		return 0
	}
	return dur
}

// FrameRate computes the stream's frame rate from its average frame rate
// if present, otherwise its real frame rate, otherwise 0 (spec.md §4.1
// Open).
func (d *demuxer) FrameRate() float64 {
	if avg := d.stream.AvgFrameRate(); avg.Den() != 0 && avg.Num() != 0 {
		return float64(avg.Num()) / float64(avg.Den())
	}
	if real := d.stream.RFrameRate(); real.Den() != 0 && real.Num() != 0 {
		return float64(real.Num()) / float64(real.Den())
	}
	return 0
}

// FrameRateFraction returns the same frame rate as FrameRate, as an
// unreduced numerator/denominator pair suitable for decoder duration
// computation. Both are 0 when the container exposes neither rate.
func (d *demuxer) FrameRateFraction() (int, int) {
	if avg := d.stream.AvgFrameRate(); avg.Den() != 0 && avg.Num() != 0 {
		return avg.Num(), avg.Den()
	}
	if real := d.stream.RFrameRate(); real.Den() != 0 && real.Num() != 0 {
		return real.Num(), real.Den()
	}
	return 0, 0
}

// ReadPacket reads the next packet belonging to this demuxer's stream,
// skipping packets belonging to other streams in the same container.
// Returns io.EOF when the container is exhausted.
func (d *demuxer) ReadPacket() (*astiav.Packet, error) {
	for {
		pkt := astiav.AllocPacket()
		if pkt == nil {
			return nil, resourceExhausted("demuxer.ReadPacket.AllocPacket", nil)
		}

		if err := d.formatCtx.ReadFrame(pkt); err != nil {
			pkt.Free()
			if err == astiav.ErrEof {
				return nil, io.EOF
			}
			return nil, decodeFailed("demuxer.ReadPacket", err)
		}

		if pkt.StreamIndex() != d.stream.Index() {
			pkt.Free()
			continue
		}
		return pkt, nil
	}
}

// Seek instructs the demuxer to seek to targetUs, choosing the nearest
// keyframe at or before the target (spec.md §4.1 Seek step 1).
func (d *demuxer) Seek(targetUs int64) error {
	flags := astiav.NewSeekFlags(astiav.SeekFlagBackward)
	if err := d.formatCtx.SeekFrame(d.stream.Index(), targetUs, flags); err != nil {
		return seekFailed("demuxer.Seek", err)
	}
	return nil
}

// Close releases the format context.
func (d *demuxer) Close() {
	if d.formatCtx != nil {
		d.formatCtx.CloseInput()
		d.formatCtx.Free()
		d.formatCtx = nil
	}
}
