package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	// Template images arrive as opaque blobs in any of these formats
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

// decodeTemplate decodes a template blob into an RGBA buffer, cached by
// the template's identity. Content hashing would defeat the point: the
// cache exists to make repeated interactive frames cheap.
func (e *Engine) decodeTemplate(t ticketformat.TemplateImage) (*image.RGBA, error) {
	if t.ID == "" {
		return nil, &DecodeError{TemplateID: t.ID, Err: fmt.Errorf("template has no identity")}
	}

	e.mu.Lock()
	if cached, ok := e.templates[t.ID]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	if len(t.Data) == 0 {
		return nil, &DecodeError{TemplateID: t.ID, Err: fmt.Errorf("template has no image data")}
	}

	decoded, _, err := image.Decode(bytes.NewReader(t.Data))
	if err != nil {
		return nil, &DecodeError{TemplateID: t.ID, Err: err}
	}

	rgba := toRGBA(decoded)

	e.mu.Lock()
	e.templates[t.ID] = rgba
	e.mu.Unlock()

	return rgba, nil
}

// toRGBA normalizes a decoded image to an origin-anchored RGBA buffer
func toRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}
