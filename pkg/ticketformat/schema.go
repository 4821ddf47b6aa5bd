// Package ticketformat defines the types for the .ticket project format
package ticketformat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Project represents the root structure of a .ticket project file
type Project struct {
	Version     string       `json:"version"`
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	CreatedWith string       `json:"created_with,omitempty"`
	Template    TemplateImage `json:"template"`
	Stamps      StampList    `json:"stamps"`
	Layout      SheetLayout  `json:"layout"`
	Sources     []DataSource `json:"sources,omitempty"`
}

// TemplateImage is an encoded template bitmap plus its identity.
// The ID, not the content, is the cache key for decoding.
type TemplateImage struct {
	ID   string `json:"id"`
	Data []byte `json:"data,omitempty"` // PNG/JPEG/BMP bytes, base64 in JSON
}

// SheetLayout describes the print page grid in millimeters
type SheetLayout struct {
	PaperWidthMM  float64 `json:"paper_width_mm"`
	PaperHeightMM float64 `json:"paper_height_mm"`
	Orientation   string  `json:"orientation,omitempty"` // portrait (default) or landscape
	Rows          int     `json:"rows"`
	Cols          int     `json:"cols"`
	MarginTopMM    float64 `json:"margin_top_mm"`
	MarginRightMM  float64 `json:"margin_right_mm"`
	MarginBottomMM float64 `json:"margin_bottom_mm"`
	MarginLeftMM   float64 `json:"margin_left_mm"`
	SpacingXMM     float64 `json:"spacing_x_mm"`
	SpacingYMM     float64 `json:"spacing_y_mm"`
}

// PageSizeMM returns the page size with orientation applied
func (l *SheetLayout) PageSizeMM() (width, height float64) {
	if l.Orientation == "landscape" {
		return l.PaperHeightMM, l.PaperWidthMM
	}
	return l.PaperWidthMM, l.PaperHeightMM
}

// TicketSizeMM returns the computed cell size in millimeters.
// A non-positive result means the layout cannot be rendered.
func (l *SheetLayout) TicketSizeMM() (width, height float64) {
	pageW, pageH := l.PageSizeMM()
	if l.Cols >= 1 {
		width = (pageW - l.MarginLeftMM - l.MarginRightMM - float64(l.Cols-1)*l.SpacingXMM) / float64(l.Cols)
	}
	if l.Rows >= 1 {
		height = (pageH - l.MarginTopMM - l.MarginBottomMM - float64(l.Rows-1)*l.SpacingYMM) / float64(l.Rows)
	}
	return width, height
}

// DataSource describes a named record source configured on the project.
// Record generation itself happens outside the engine; the resolver only
// needs the names and kinds to handle qualified placeholders.
type DataSource struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"` // csv, sequence, random
	Fields []string `json:"fields,omitempty"`
}

// Record is one row of generated data used to personalize one ticket
type Record map[string]string

// Key returns the canonical serialization of the record: fields sorted by
// name, joined with unit separators. Two records with equal contents always
// produce the same key, regardless of map iteration order.
func (r Record) Key() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(r[k])
		b.WriteByte(0x1f)
	}
	return b.String()
}

// Stamp type tags used in the JSON encoding
const (
	StampTypeText    = "text"
	StampTypeBarcode = "barcode"
	StampTypeQRCode  = "qrcode"
)

// Stamp is a positioned overlay element drawn onto a ticket. It is a closed
// union: TextStamp, BarcodeStamp and QRCodeStamp are the only
// implementations, and consumers switch exhaustively over them.
//
// Coordinates are always in pixels of the original, unscaled template image.
type Stamp interface {
	StampID() string
	Rect() (x, y, width, height float64)
	stampType() string
}

// StampBase holds the fields shared by every stamp type
type StampBase struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Template string  `json:"template"`
}

// StampID returns the stamp identifier
func (b StampBase) StampID() string { return b.ID }

// Rect returns the stamp's position and size in template pixels
func (b StampBase) Rect() (x, y, width, height float64) {
	return b.X, b.Y, b.Width, b.Height
}

// TextStamp draws resolved text. With AutoSize set, (X, Y) is an anchor
// point the measured text aligns around and Width/Height are ignored.
// Without it, (X, Y, Width, Height) is a clipping box the text is aligned
// inside of.
type TextStamp struct {
	StampBase
	FontFamily    string  `json:"font_family"`
	FontSize      float64 `json:"font_size"`
	Color         string  `json:"color,omitempty"`
	Align         string  `json:"align,omitempty"`          // left, center, right
	VerticalAlign string  `json:"vertical_align,omitempty"` // top, middle, bottom
	AutoSize      bool    `json:"auto_size,omitempty"`
}

func (s *TextStamp) stampType() string { return StampTypeText }

// BarcodeStamp encodes resolved text as a 1D barcode filling the stamp rect
type BarcodeStamp struct {
	StampBase
	Format string `json:"format,omitempty"` // CODE128 (default), CODE39, EAN13, EAN8
}

func (s *BarcodeStamp) stampType() string { return StampTypeBarcode }

// QRCodeStamp encodes resolved text as a QR symbol inside the stamp rect
type QRCodeStamp struct {
	StampBase
	ErrorCorrection string `json:"error_correction,omitempty"` // L, M, Q, H
}

func (s *QRCodeStamp) stampType() string { return StampTypeQRCode }

// StampList is a slice of stamps with tagged-union JSON encoding
type StampList []Stamp

// stampEnvelope carries the type tag next to the stamp fields
type stampEnvelope struct {
	Type string `json:"type"`
}

// UnmarshalJSON decodes a JSON array of tagged stamp objects
func (s *StampList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	out := make(StampList, 0, len(raws))
	for i, raw := range raws {
		var env stampEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("stamp[%d]: %w", i, err)
		}

		var stamp Stamp
		switch env.Type {
		case StampTypeText:
			var t TextStamp
			if err := json.Unmarshal(raw, &t); err != nil {
				return fmt.Errorf("stamp[%d]: %w", i, err)
			}
			stamp = &t
		case StampTypeBarcode:
			var b BarcodeStamp
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("stamp[%d]: %w", i, err)
			}
			stamp = &b
		case StampTypeQRCode:
			var q QRCodeStamp
			if err := json.Unmarshal(raw, &q); err != nil {
				return fmt.Errorf("stamp[%d]: %w", i, err)
			}
			stamp = &q
		default:
			return fmt.Errorf("stamp[%d]: unknown stamp type: %q", i, env.Type)
		}
		out = append(out, stamp)
	}

	*s = out
	return nil
}

// MarshalJSON encodes the list as a JSON array of tagged stamp objects.
// Field order is fixed by the struct definitions, so the output is stable
// and usable as a cache fingerprint input.
func (s StampList) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, len(s))
	for i, stamp := range s {
		var v interface{}
		switch t := stamp.(type) {
		case *TextStamp:
			v = struct {
				Type string `json:"type"`
				*TextStamp
			}{StampTypeText, t}
		case *BarcodeStamp:
			v = struct {
				Type string `json:"type"`
				*BarcodeStamp
			}{StampTypeBarcode, t}
		case *QRCodeStamp:
			v = struct {
				Type string `json:"type"`
				*QRCodeStamp
			}{StampTypeQRCode, t}
		default:
			return nil, fmt.Errorf("stamp[%d]: unknown stamp type %T", i, stamp)
		}

		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raws[i] = raw
	}
	return json.Marshal(raws)
}
