package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ticketpress/sheet-engine/internal/renderer"
	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

// ComposeStats reports how much work one compose call actually did
type ComposeStats struct {
	Rendered int `json:"rendered"` // tickets rendered this frame (cache misses)
	Total    int `json:"total"`    // total grid cells
}

// Compose draws the visible portion of the ticket sheet onto the canvas.
// The page origin sits at (vp.PanX, vp.PanY) in canvas coordinates; cells
// outside the visible extent are neither rendered nor drawn. Tickets come
// from the cache, rendering on miss at template-native resolution, then
// are uniformly scaled and centered into their cells.
//
// A compose call supersedes any previous in-flight compose; the superseded
// call stops with ErrSuperseded instead of drawing stale geometry.
func (e *Engine) Compose(ctx context.Context, canvas *image.RGBA, project *ticketformat.Project, records []ticketformat.Record, vp Viewport) (ComposeStats, error) {
	frame := e.beginFrame(ctx)

	grid, err := computeGrid(&project.Layout, vp.PixelsPerMM)
	if err != nil {
		return ComposeStats{}, err
	}

	// Guard against sub-images and short buffers before writing pixels
	canvasW, canvasH := canvas.Bounds().Dx(), canvas.Bounds().Dy()
	if expected := canvasW * canvasH * 4; len(canvas.Pix) != expected || canvas.Stride != canvasW*4 {
		return ComposeStats{}, &SizeMismatchError{Expected: expected, Actual: len(canvas.Pix)}
	}

	hash, err := configHashFor(project.Stamps, project.Template.ID)
	if err != nil {
		return ComposeStats{}, err
	}
	e.invalidateIfConfigChanged(hash)

	template, err := e.decodeTemplate(project.Template)
	if err != nil {
		return ComposeStats{}, err
	}

	rend := renderer.New(template, project.Stamps, project.Sources, e.fonts)

	visible := image.Rect(0, 0, vp.Width, vp.Height)
	if visible.Empty() {
		visible = canvas.Bounds()
	}

	// Page background
	if pageVisible := grid.pageRect(vp.PanX, vp.PanY).Intersect(canvas.Bounds()); !pageVisible.Empty() {
		draw.Draw(canvas, pageVisible, &image.Uniform{color.White}, image.Point{}, draw.Src)
	}

	stats := ComposeStats{Total: grid.rows * grid.cols}

	cells := stats.Total
	if len(records) < cells {
		cells = len(records)
	}

	for i := 0; i < cells; i++ {
		if err := frameErr(ctx, frame); err != nil {
			return stats, err
		}

		cell := grid.cellRect(i, vp.PanX, vp.PanY)
		if !cell.Overlaps(visible) {
			continue
		}

		ticket, rendered, err := e.ticketFor(rend, records[i], hash)
		if err != nil {
			return stats, err
		}
		if rendered {
			stats.Rendered++
		}

		// The render may have outlived this frame; a superseded ticket
		// is discarded, never drawn
		if err := frameErr(ctx, frame); err != nil {
			return stats, err
		}

		drawTicket(canvas, ticket, cell)
	}

	return stats, nil
}

// ticketFor returns the cached ticket for the record, rendering it on a
// miss. Concurrent requests for the same record and config share a single
// render. The config hash is part of the flight key and fences the cache
// write: a render that began under a since-flushed stamp config is never
// joined by newer frames and never written back into the flushed cache.
func (e *Engine) ticketFor(rend *renderer.Renderer, record ticketformat.Record, hash string) (*CachedTicket, bool, error) {
	key := record.Key()
	if ticket, ok := e.tickets.get(key); ok {
		return ticket, false, nil
	}

	rendered := false
	v, err, _ := e.group.Do(hash+"\x00"+key, func() (interface{}, error) {
		if ticket, ok := e.tickets.get(key); ok {
			return ticket, nil
		}

		img, err := rend.RenderTicket(record)
		if err != nil {
			return nil, err
		}
		rendered = true

		ticket := &CachedTicket{
			Pix:    img.Pix,
			Width:  img.Bounds().Dx(),
			Height: img.Bounds().Dy(),
		}
		if expected := ticket.Width * ticket.Height * 4; len(ticket.Pix) != expected {
			return nil, &SizeMismatchError{Expected: expected, Actual: len(ticket.Pix)}
		}

		if e.configUnchanged(hash) {
			e.tickets.put(key, ticket)
		}
		return ticket, nil
	})
	if err != nil {
		return nil, false, err
	}

	return v.(*CachedTicket), rendered, nil
}

// frameErr distinguishes caller cancellation from frame supersession. A
// cancelled parent context is the caller's own signal and passes through
// unchanged; a cancelled frame context means a newer compose took over.
func frameErr(parent, frame context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if frame.Err() != nil {
		return ErrSuperseded
	}
	return nil
}

// drawTicket uniformly scales a cached ticket into its cell and centers it
func drawTicket(canvas *image.RGBA, ticket *CachedTicket, cell image.Rectangle) {
	drawW, drawH, offsetX, offsetY := fitRect(ticket.Width, ticket.Height, cell.Dx(), cell.Dy())
	if drawW <= 0 || drawH <= 0 {
		return
	}

	src := &image.RGBA{
		Pix:    ticket.Pix,
		Stride: ticket.Width * 4,
		Rect:   image.Rect(0, 0, ticket.Width, ticket.Height),
	}

	var scaled image.Image = src
	if drawW != ticket.Width || drawH != ticket.Height {
		scaled = imaging.Resize(src, drawW, drawH, imaging.Lanczos)
	}

	target := image.Rect(cell.Min.X+offsetX, cell.Min.Y+offsetY, cell.Min.X+offsetX+drawW, cell.Min.Y+offsetY+drawH)
	draw.Draw(canvas, target, scaled, image.Point{}, draw.Over)
}

// RenderSheet renders one full page at the given resolution and returns
// the page-sized RGBA buffer. The buffer length is exactly width*height*4.
func (e *Engine) RenderSheet(ctx context.Context, project *ticketformat.Project, records []ticketformat.Record, pixelsPerMM float64) (*image.RGBA, ComposeStats, error) {
	grid, err := computeGrid(&project.Layout, pixelsPerMM)
	if err != nil {
		return nil, ComposeStats{}, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, grid.pageW, grid.pageH))
	vp := Viewport{
		PixelsPerMM: pixelsPerMM,
		Width:       grid.pageW,
		Height:      grid.pageH,
	}

	stats, err := e.Compose(ctx, canvas, project, records, vp)
	if err != nil {
		return nil, stats, err
	}

	return canvas, stats, nil
}

// RenderSheetPNG renders one full page and encodes it as PNG
func (e *Engine) RenderSheetPNG(ctx context.Context, project *ticketformat.Project, records []ticketformat.Record, pixelsPerMM float64) ([]byte, ComposeStats, error) {
	canvas, stats, err := e.RenderSheet(ctx, project, records, pixelsPerMM)
	if err != nil {
		return nil, stats, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, stats, err
	}

	return buf.Bytes(), stats, nil
}
