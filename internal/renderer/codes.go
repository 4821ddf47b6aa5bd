package renderer

import (
	"fmt"
	"math"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/fogleman/gg"
	"github.com/skip2/go-qrcode"

	"github.com/ticketpress/sheet-engine/internal/resolver"
	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

// EncodeError reports a barcode or QR payload that could not be encoded.
// It is contained per stamp: the renderer draws a placeholder instead of
// failing the ticket.
type EncodeError struct {
	StampID string
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode stamp '%s': %v", e.StampID, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func (r *Renderer) renderBarcode(dc *gg.Context, stamp *ticketformat.BarcodeStamp, record ticketformat.Record) error {
	text := resolver.Resolve(stamp.Template, record, r.sources)
	if text == "" {
		r.drawPlaceholder(dc, stamp.X, stamp.Y, stamp.Width, stamp.Height, "no data")
		return nil
	}

	format := stamp.Format
	if format == "" {
		format = "CODE128"
	}

	var code barcode.Barcode
	var err error
	switch format {
	case "CODE128":
		code, err = code128.Encode(text)
	case "CODE39":
		code, err = code39.Encode(text, false, false)
	case "EAN13", "EAN8":
		code, err = ean.Encode(text)
	default:
		code, err = code128.Encode(text)
	}
	if err != nil {
		r.drawPlaceholder(dc, stamp.X, stamp.Y, stamp.Width, stamp.Height,
			"barcode: "+shortReason(&EncodeError{StampID: stamp.ID, Err: err}))
		return nil
	}

	scaled, err := barcode.Scale(code, int(stamp.Width), int(stamp.Height))
	if err != nil {
		r.drawPlaceholder(dc, stamp.X, stamp.Y, stamp.Width, stamp.Height,
			"barcode: "+shortReason(&EncodeError{StampID: stamp.ID, Err: err}))
		return nil
	}

	dc.DrawImage(scaled, int(stamp.X), int(stamp.Y))
	return nil
}

func (r *Renderer) renderQRCode(dc *gg.Context, stamp *ticketformat.QRCodeStamp, record ticketformat.Record) error {
	text := resolver.Resolve(stamp.Template, record, r.sources)
	if text == "" {
		r.drawPlaceholder(dc, stamp.X, stamp.Y, stamp.Width, stamp.Height, "no data")
		return nil
	}

	level := qrcode.Medium
	switch stamp.ErrorCorrection {
	case "L":
		level = qrcode.Low
	case "M":
		level = qrcode.Medium
	case "Q":
		level = qrcode.High
	case "H":
		level = qrcode.Highest
	}

	qr, err := qrcode.New(text, level)
	if err != nil {
		r.drawPlaceholder(dc, stamp.X, stamp.Y, stamp.Width, stamp.Height,
			"qr: "+shortReason(&EncodeError{StampID: stamp.ID, Err: err}))
		return nil
	}

	// QR symbols are square; fit the shorter side of the stamp rect
	side := int(math.Min(stamp.Width, stamp.Height))
	dc.DrawImage(qr.Image(side), int(stamp.X), int(stamp.Y))
	return nil
}

// drawPlaceholder draws a dashed outline with a short diagnostic label so
// a failed or empty code stamp is visibly distinct from a blank area
func (r *Renderer) drawPlaceholder(dc *gg.Context, x, y, w, h float64, label string) {
	dc.Push()
	dc.DrawRectangle(x, y, w, h)
	dc.Clip()

	dc.SetRGBA(1, 1, 1, 0.85)
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()

	dc.SetRGB(0.75, 0.15, 0.15)
	dc.SetLineWidth(2)
	dc.SetDash(6, 4)
	dc.DrawRectangle(x+1, y+1, w-2, h-2)
	dc.Stroke()
	dc.SetDash()

	if face, err := r.fonts.Face("", 11); err == nil {
		dc.SetFontFace(face)
		dc.DrawStringAnchored(label, x+w/2, y+h/2, 0.5, 0.5)
	}

	dc.Pop()
}

func shortReason(err *EncodeError) string {
	msg := err.Err.Error()
	if len(msg) > 24 {
		msg = msg[:24]
	}
	return msg
}
