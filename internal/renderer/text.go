package renderer

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/fogleman/gg"

	"github.com/ticketpress/sheet-engine/internal/resolver"
	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

func (r *Renderer) renderText(dc *gg.Context, stamp *ticketformat.TextStamp, record ticketformat.Record) error {
	text := resolver.Resolve(stamp.Template, record, r.sources)
	if text == "" {
		return nil
	}

	face, err := r.fonts.Face(stamp.FontFamily, stamp.FontSize)
	if err != nil {
		return fmt.Errorf("failed to load font face: %w", err)
	}
	dc.SetFontFace(face)
	dc.SetColor(parseColor(stamp.Color))

	textWidth, textHeight := dc.MeasureString(text)

	if stamp.AutoSize {
		// Anchor-point model: (x, y) is the reference the measured text
		// aligns around; the stamp's width/height play no part.
		originX, originY := anchorOrigin(stamp.X, stamp.Y, textWidth, textHeight, stamp.Align, stamp.VerticalAlign)
		dc.DrawString(text, originX, originY+textHeight)
		return nil
	}

	// Fixed-box model: the rect clips the text and alignment happens
	// inside it.
	originX, originY := boxOrigin(stamp.X, stamp.Y, stamp.Width, stamp.Height, textWidth, textHeight, stamp.Align, stamp.VerticalAlign)

	dc.Push()
	dc.DrawRectangle(stamp.X, stamp.Y, stamp.Width, stamp.Height)
	dc.Clip()
	dc.DrawString(text, originX, originY+textHeight)
	dc.Pop()

	return nil
}

// anchorOrigin converts an anchor point and measured text extents into a
// top-left draw origin
func anchorOrigin(x, y, width, height float64, align, verticalAlign string) (originX, originY float64) {
	switch align {
	case "center":
		originX = x - width/2
	case "right":
		originX = x - width
	default: // left
		originX = x
	}

	switch verticalAlign {
	case "middle":
		originY = y - height/2
	case "bottom":
		originY = y - height
	default: // top
		originY = y
	}

	return originX, originY
}

// boxOrigin aligns measured text extents inside a fixed rectangle
func boxOrigin(x, y, boxWidth, boxHeight, textWidth, textHeight float64, align, verticalAlign string) (originX, originY float64) {
	switch align {
	case "center":
		originX = x + (boxWidth-textWidth)/2
	case "right":
		originX = x + boxWidth - textWidth
	default: // left
		originX = x
	}

	switch verticalAlign {
	case "middle":
		originY = y + (boxHeight-textHeight)/2
	case "bottom":
		originY = y + boxHeight - textHeight
	default: // top
		originY = y
	}

	return originX, originY
}

// namedColors covers the handful of CSS names stamp editors emit
var namedColors = map[string]color.NRGBA{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
	"orange":  {255, 165, 0, 255},
	"purple":  {128, 0, 128, 255},
	"magenta": {255, 0, 255, 255},
	"cyan":    {0, 255, 255, 255},
}

// parseColor converts a stamp color string (#rgb, #rrggbb, #rrggbbaa or a
// CSS color name) to an RGBA value. Unparseable input falls back to black.
func parseColor(value string) color.NRGBA {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return color.NRGBA{0, 0, 0, 255}
	}

	if named, ok := namedColors[value]; ok {
		return named
	}

	hex := strings.TrimPrefix(value, "#")
	switch len(hex) {
	case 3:
		expanded := make([]byte, 6)
		for i := 0; i < 3; i++ {
			expanded[i*2] = hex[i]
			expanded[i*2+1] = hex[i]
		}
		hex = string(expanded)
	case 6, 8:
	default:
		return color.NRGBA{0, 0, 0, 255}
	}

	parsed, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return color.NRGBA{0, 0, 0, 255}
	}

	if len(hex) == 8 {
		return color.NRGBA{
			R: uint8(parsed >> 24),
			G: uint8(parsed >> 16),
			B: uint8(parsed >> 8),
			A: uint8(parsed),
		}
	}

	return color.NRGBA{
		R: uint8(parsed >> 16),
		G: uint8(parsed >> 8),
		B: uint8(parsed),
		A: 255,
	}
}
