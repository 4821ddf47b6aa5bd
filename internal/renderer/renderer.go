// Package renderer rasterizes single tickets from a template and stamps
package renderer

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/ticketpress/sheet-engine/internal/fonts"
	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

// Renderer draws personalized tickets at the template's native resolution.
// The template buffer is treated as immutable; every render starts from a
// fresh copy of it, so output depends only on the record and the stamp
// configuration.
type Renderer struct {
	template *image.RGBA
	stamps   ticketformat.StampList
	sources  []ticketformat.DataSource
	fonts    *fonts.Registry
}

// New creates a renderer for one template and stamp configuration.
// The template bounds must start at the origin.
func New(template *image.RGBA, stamps ticketformat.StampList, sources []ticketformat.DataSource, registry *fonts.Registry) *Renderer {
	return &Renderer{
		template: template,
		stamps:   stamps,
		sources:  sources,
		fonts:    registry,
	}
}

// RenderTicket renders one ticket for the record. The returned buffer has
// exactly the template's native width and height; scaling to a sheet cell
// happens later, in the compositor.
func (r *Renderer) RenderTicket(record ticketformat.Record) (*image.RGBA, error) {
	out := image.NewRGBA(r.template.Bounds())
	copy(out.Pix, r.template.Pix)

	dc := gg.NewContextForRGBA(out)

	for _, stamp := range r.stamps {
		var err error
		switch s := stamp.(type) {
		case *ticketformat.TextStamp:
			err = r.renderText(dc, s, record)
		case *ticketformat.BarcodeStamp:
			err = r.renderBarcode(dc, s, record)
		case *ticketformat.QRCodeStamp:
			err = r.renderQRCode(dc, s, record)
		default:
			err = fmt.Errorf("unsupported stamp type %T", stamp)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to render stamp '%s': %w", stamp.StampID(), err)
		}
	}

	return out, nil
}
