package engine

import (
	"fmt"
	"image"
	"math"

	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

// MMPerInch converts between DPI and pixels-per-millimeter resolutions
const MMPerInch = 25.4

// Viewport describes the visible region of the preview canvas. It is a
// rendering-time input only and is never persisted.
type Viewport struct {
	PixelsPerMM float64 // zoom factor
	PanX, PanY  int     // canvas position of the page origin
	Width       int     // visible canvas extent
	Height      int
}

// mmToPx converts millimeters to pixels, rounding half away from zero.
// Every mm-to-px conversion in the engine goes through this function;
// mixing rounding modes between call sites is how buffers end up one
// pixel off from their expected size.
func mmToPx(mm, pixelsPerMM float64) int {
	return int(math.Round(mm * pixelsPerMM))
}

// sheetGrid is a sheet layout converted to pixel units at a fixed zoom
type sheetGrid struct {
	pageW, pageH     int
	ticketW, ticketH int
	marginLeft       int
	marginTop        int
	spacingX         int
	spacingY         int
	rows, cols       int
}

// computeGrid validates the layout and converts it to pixel geometry
func computeGrid(layout *ticketformat.SheetLayout, pixelsPerMM float64) (sheetGrid, error) {
	if pixelsPerMM <= 0 {
		return sheetGrid{}, &InvalidGeometryError{Reason: fmt.Sprintf("pixels per mm must be positive, got %v", pixelsPerMM)}
	}
	if layout.Rows < 1 || layout.Cols < 1 {
		return sheetGrid{}, &InvalidGeometryError{Reason: fmt.Sprintf("grid must be at least 1x1, got %dx%d", layout.Rows, layout.Cols)}
	}

	ticketWMM, ticketHMM := layout.TicketSizeMM()
	if ticketWMM <= 0 || ticketHMM <= 0 {
		return sheetGrid{}, &InvalidGeometryError{Reason: fmt.Sprintf("computed ticket size %vx%vmm is not positive", ticketWMM, ticketHMM)}
	}

	pageWMM, pageHMM := layout.PageSizeMM()

	return sheetGrid{
		pageW:      mmToPx(pageWMM, pixelsPerMM),
		pageH:      mmToPx(pageHMM, pixelsPerMM),
		ticketW:    mmToPx(ticketWMM, pixelsPerMM),
		ticketH:    mmToPx(ticketHMM, pixelsPerMM),
		marginLeft: mmToPx(layout.MarginLeftMM, pixelsPerMM),
		marginTop:  mmToPx(layout.MarginTopMM, pixelsPerMM),
		spacingX:   mmToPx(layout.SpacingXMM, pixelsPerMM),
		spacingY:   mmToPx(layout.SpacingYMM, pixelsPerMM),
		rows:       layout.Rows,
		cols:       layout.Cols,
	}, nil
}

// cellRect returns the canvas-pixel bounds of grid cell i. A zero margin
// or spacing contributes exactly zero pixels of gap.
func (g sheetGrid) cellRect(i, panX, panY int) image.Rectangle {
	row := i / g.cols
	col := i % g.cols

	x := panX + g.marginLeft + col*(g.ticketW+g.spacingX)
	y := panY + g.marginTop + row*(g.ticketH+g.spacingY)
	return image.Rect(x, y, x+g.ticketW, y+g.ticketH)
}

// pageRect returns the canvas-pixel bounds of the whole page
func (g sheetGrid) pageRect(panX, panY int) image.Rectangle {
	return image.Rect(panX, panY, panX+g.pageW, panY+g.pageH)
}

// fitRect uniformly scales a ticket of ticketW x ticketH into a cell of
// cellW x cellH and centers it. X and Y always share one scale factor so
// the template never distorts.
func fitRect(ticketW, ticketH, cellW, cellH int) (drawW, drawH, offsetX, offsetY int) {
	if ticketW <= 0 || ticketH <= 0 {
		return 0, 0, 0, 0
	}

	scale := math.Min(float64(cellW)/float64(ticketW), float64(cellH)/float64(ticketH))
	drawW = int(math.Round(float64(ticketW) * scale))
	drawH = int(math.Round(float64(ticketH) * scale))
	offsetX = (cellW - drawW) / 2
	offsetY = (cellH - drawH) / 2
	return drawW, drawH, offsetX, offsetY
}
