package player

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/asticode/go-astiav"
	"github.com/sirupsen/logrus"
)

// Renderer is C4's presentation surface: the GPU/windowing collaborator
// is out of scope for this module (spec.md §1), so this is the seam a
// real display backend plugs into. Frames are handed over in native
// decoded format; a Renderer is responsible for any colorspace
// conversion its backend needs.
type Renderer interface {
	// Start prepares the renderer to receive frames of the given pixel
	// dimensions and begins its presentation loop.
	Start(width, height int) error
	// Stop halts presentation and releases backend resources.
	Stop()
	// EnqueueFrame hands a frame to the renderer. Non-blocking: if the
	// renderer's internal queue is full, the oldest queued frame is
	// dropped to make room (spec.md §6).
	EnqueueFrame(f *Frame)
	// ClearFrames discards any frames queued but not yet presented.
	ClearFrames()
	// IsRunning reports whether the renderer's presentation loop is
	// active.
	IsRunning() bool
	// Window returns a backend-specific handle describing where frames
	// are being presented (a window, a terminal region, ...), or nil if
	// the backend has no such concept.
	Window() any
}

// rendererQueue is EnqueueFrame's bounded, drop-oldest buffer. Unlike
// frameQueue (which rejects a push once full, per the decode path's
// contract), a renderer is expected to always accept the newest frame
// and discard staleness instead (spec.md §6).
type rendererQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []*Frame
}

func newRendererQueue(capacity int) *rendererQueue {
	q := &rendererQueue{items: make([]*Frame, 0, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *rendererQueue) push(f *Frame, capacity int) {
	q.mu.Lock()
	if len(q.items) >= capacity {
		dropped := q.items[0]
		q.items = q.items[1:]
		dropped.Release()
	}
	q.items = append(q.items, f)
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *rendererQueue) waitPop(running func() bool) *Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && running() {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil
	}
	f := q.items[0]
	q.items = q.items[1:]
	return f
}

func (q *rendererQueue) clear() {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	for _, f := range items {
		f.Release()
	}
	q.cond.Broadcast()
}

// KittyRenderer is the reference Renderer, adapted from the teacher's
// terminal image renderer (Kitty graphics protocol escape sequences). It
// owns the sws scale from decoded native format to RGB24 that the
// teacher's decoder used to do inline; here that conversion is the
// renderer's job, since it is the thing that actually needs RGB.
type KittyRenderer struct {
	logger *logrus.Logger

	queue    *rendererQueue
	running  atomic.Bool
	wg       sync.WaitGroup
	observer TimestampObserver

	mu      sync.Mutex
	out     io.Writer
	imageID int
	lastW   int
	lastH   int
	cellRow int
	cellCol int

	dstWidth  int
	dstHeight int

	swsCtx   *astiav.SoftwareScaleContext
	rgbFrame *astiav.Frame
	srcW     int
	srcH     int
	srcFmt   astiav.PixelFormat
}

// NewKittyRenderer creates a renderer that writes Kitty graphics protocol
// escapes to out.
func NewKittyRenderer(out io.Writer, logger *logrus.Logger, observer TimestampObserver) *KittyRenderer {
	return &KittyRenderer{
		out:      out,
		imageID:  1,
		logger:   logger,
		observer: observer,
		queue:    newRendererQueue(rendererQueueCapacity),
	}
}

// SetCellPosition sets the cell position for video placement (1-indexed).
func (r *KittyRenderer) SetCellPosition(row, col int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cellRow = row
	r.cellCol = col
}

// Start implements Renderer.
func (r *KittyRenderer) Start(width, height int) error {
	r.mu.Lock()
	r.dstWidth = width
	r.dstHeight = height
	r.mu.Unlock()

	r.running.Store(true)
	r.wg.Add(1)
	go r.renderLoop()
	return nil
}

// Stop implements Renderer.
func (r *KittyRenderer) Stop() {
	r.running.Store(false)
	r.queue.cond.Broadcast()
	r.wg.Wait()
	r.ClearFrames()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.swsCtx != nil {
		r.swsCtx.Free()
		r.swsCtx = nil
	}
	if r.rgbFrame != nil {
		r.rgbFrame.Free()
		r.rgbFrame = nil
	}
}

// EnqueueFrame implements Renderer.
func (r *KittyRenderer) EnqueueFrame(f *Frame) {
	r.queue.push(f, rendererQueueCapacity)
}

// ClearFrames implements Renderer.
func (r *KittyRenderer) ClearFrames() {
	r.queue.clear()
}

// IsRunning implements Renderer.
func (r *KittyRenderer) IsRunning() bool {
	return r.running.Load()
}

// Window implements Renderer. Kitty draws into the controlling
// terminal, so the "window" is its current geometry.
func (r *KittyRenderer) Window() any {
	cols, rows, wPx, hPx, err := GetTerminalSize()
	if err != nil {
		return nil
	}
	return TerminalWindow{Columns: cols, Rows: rows, WidthPx: wPx, HeightPx: hPx}
}

// TerminalWindow is the window handle KittyRenderer.Window returns.
type TerminalWindow struct {
	Columns  int
	Rows     int
	WidthPx  int
	HeightPx int
}

func (r *KittyRenderer) renderLoop() {
	defer r.wg.Done()
	for r.running.Load() {
		f := r.queue.waitPop(r.running.Load)
		if f == nil {
			continue
		}
		if err := r.present(f); err != nil {
			r.logger.WithError(err).Warn("kitty renderer: present failed")
		}
		if r.observer != nil {
			r.observer(f.PTSUs, f.DurationUs)
		}
		f.Release()
	}
}

func (r *KittyRenderer) present(f *Frame) error {
	rgb, width, height, err := r.scaleToRGB(f)
	if err != nil {
		return err
	}
	return r.renderFrame(rgb, width, height)
}

// scaleToRGB converts a native decoded video frame to RGB24 at the
// renderer's configured output size, lazily (re)creating the sws context
// whenever the source format or destination size changes.
func (r *KittyRenderer) scaleToRGB(f *Frame) ([]byte, int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := f.Raw()
	srcW, srcH, srcFmt := src.Width(), src.Height(), src.PixelFormat()

	if r.swsCtx == nil || srcW != r.srcW || srcH != r.srcH || srcFmt != r.srcFmt {
		if r.swsCtx != nil {
			r.swsCtx.Free()
			r.swsCtx = nil
		}
		swsCtx, err := astiav.CreateSoftwareScaleContext(
			srcW, srcH, srcFmt,
			r.dstWidth, r.dstHeight, astiav.PixelFormatRgb24,
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
		)
		if err != nil {
			return nil, 0, 0, decodeFailed("KittyRenderer.scaleToRGB.CreateSoftwareScaleContext", err)
		}
		r.swsCtx = swsCtx
		r.srcW, r.srcH, r.srcFmt = srcW, srcH, srcFmt

		if r.rgbFrame != nil {
			r.rgbFrame.Free()
		}
		r.rgbFrame = astiav.AllocFrame()
		r.rgbFrame.SetWidth(r.dstWidth)
		r.rgbFrame.SetHeight(r.dstHeight)
		r.rgbFrame.SetPixelFormat(astiav.PixelFormatRgb24)
		if err := r.rgbFrame.AllocBuffer(1); err != nil {
			return nil, 0, 0, resourceExhausted("KittyRenderer.scaleToRGB.AllocBuffer", err)
		}
	}

	if err := r.swsCtx.ScaleFrame(src, r.rgbFrame); err != nil {
		return nil, 0, 0, decodeFailed("KittyRenderer.scaleToRGB.ScaleFrame", err)
	}

	data := r.rgbFrame.Data()
	plane, err := data.Bytes(1)
	if err != nil {
		return nil, 0, 0, decodeFailed("KittyRenderer.scaleToRGB.Bytes", err)
	}
	rgb := make([]byte, len(plane))
	copy(rgb, plane)

	return rgb, r.dstWidth, r.dstHeight, nil
}

// renderFrame writes an RGB24 frame using Kitty's graphics protocol,
// ported verbatim from the teacher's implementation.
func (r *KittyRenderer) renderFrame(rgb []byte, width, height int) error {
	var buf bytes.Buffer

	buf.WriteString("\x1b[?2026h")
	buf.WriteString("\x1b7")

	if r.lastW > 0 {
		fmt.Fprintf(&buf, "\x1b_Ga=d,d=i,i=%d,q=2\x1b\\", r.imageID)
	}

	if r.cellRow > 0 && r.cellCol > 0 {
		fmt.Fprintf(&buf, "\x1b[%d;%dH", r.cellRow, r.cellCol)
	} else {
		buf.WriteString("\x1b[H")
	}

	encoded := base64.StdEncoding.EncodeToString(rgb)
	const chunkSize = 4096
	first := true

	for len(encoded) > 0 {
		chunk := encoded
		more := 0
		if len(chunk) > chunkSize {
			chunk = encoded[:chunkSize]
			encoded = encoded[chunkSize:]
			more = 1
		} else {
			encoded = ""
		}

		if first {
			fmt.Fprintf(&buf, "\x1b_Ga=T,f=24,s=%d,v=%d,i=%d,q=2,m=%d;%s\x1b\\",
				width, height, r.imageID, more, chunk)
			first = false
		} else {
			fmt.Fprintf(&buf, "\x1b_Gm=%d;%s\x1b\\", more, chunk)
		}
	}

	r.lastW = width
	r.lastH = height

	buf.WriteString("\x1b8")
	buf.WriteString("\x1b[?2026l")

	_, err := r.out.Write(buf.Bytes())
	return err
}
