package renderer

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/ticketpress/sheet-engine/internal/fonts"
	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

func testTemplate(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 230
		img.Pix[i+1] = 230
		img.Pix[i+2] = 240
		img.Pix[i+3] = 255
	}
	return img
}

func testRegistry(t *testing.T) *fonts.Registry {
	t.Helper()
	reg, err := fonts.NewRegistry()
	if err != nil {
		t.Fatalf("Failed to create font registry: %v", err)
	}
	return reg
}

func TestAnchorOrigin(t *testing.T) {
	tests := []struct {
		name          string
		x, y          float64
		width, height float64
		align         string
		verticalAlign string
		wantX, wantY  float64
	}{
		{"center middle", 100, 50, 40, 20, "center", "middle", 80, 40},
		{"left top", 100, 50, 40, 20, "left", "top", 100, 50},
		{"right bottom", 100, 50, 40, 20, "right", "bottom", 60, 30},
		{"default is left top", 100, 50, 40, 20, "", "", 100, 50},
	}

	for _, tt := range tests {
		gotX, gotY := anchorOrigin(tt.x, tt.y, tt.width, tt.height, tt.align, tt.verticalAlign)
		if gotX != tt.wantX || gotY != tt.wantY {
			t.Errorf("%s: expected origin (%v, %v), got (%v, %v)", tt.name, tt.wantX, tt.wantY, gotX, gotY)
		}
	}
}

func TestBoxOrigin(t *testing.T) {
	tests := []struct {
		name          string
		align         string
		verticalAlign string
		wantX, wantY  float64
	}{
		{"left top", "left", "top", 10, 20},
		{"center middle", "center", "middle", 40, 60},
		{"right bottom", "right", "bottom", 70, 100},
	}

	// Box at (10, 20) sized 100x100, text measures 40x20
	for _, tt := range tests {
		gotX, gotY := boxOrigin(10, 20, 100, 100, 40, 20, tt.align, tt.verticalAlign)
		if gotX != tt.wantX || gotY != tt.wantY {
			t.Errorf("%s: expected origin (%v, %v), got (%v, %v)", tt.name, tt.wantX, tt.wantY, gotX, gotY)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		input string
		want  color.NRGBA
	}{
		{"#ff0000", color.NRGBA{255, 0, 0, 255}},
		{"#F00", color.NRGBA{255, 0, 0, 255}},
		{"#00ff0080", color.NRGBA{0, 255, 0, 128}},
		{"black", color.NRGBA{0, 0, 0, 255}},
		{"White", color.NRGBA{255, 255, 255, 255}},
		{"", color.NRGBA{0, 0, 0, 255}},
		{"not-a-color", color.NRGBA{0, 0, 0, 255}},
	}

	for _, tt := range tests {
		if got := parseColor(tt.input); got != tt.want {
			t.Errorf("parseColor(%q): expected %v, got %v", tt.input, tt.want, got)
		}
	}
}

func TestRenderTicket_NativeSize(t *testing.T) {
	template := testTemplate(120, 80)
	r := New(template, nil, nil, testRegistry(t))

	ticket, err := r.RenderTicket(ticketformat.Record{})
	if err != nil {
		t.Fatalf("Failed to render ticket: %v", err)
	}

	if ticket.Bounds().Dx() != 120 || ticket.Bounds().Dy() != 80 {
		t.Errorf("Expected 120x80 ticket, got %dx%d", ticket.Bounds().Dx(), ticket.Bounds().Dy())
	}
}

func TestRenderTicket_Deterministic(t *testing.T) {
	template := testTemplate(160, 90)
	stamps := ticketformat.StampList{
		&ticketformat.TextStamp{
			StampBase: ticketformat.StampBase{ID: "t1", X: 80, Y: 45, Template: "Ticket #{{number}}"},
			FontSize:  16,
			Align:     "center",
			VerticalAlign: "middle",
			AutoSize:  true,
		},
	}
	r := New(template, stamps, nil, testRegistry(t))
	record := ticketformat.Record{"number": "042"}

	first, err := r.RenderTicket(record)
	if err != nil {
		t.Fatalf("Failed to render ticket: %v", err)
	}
	second, err := r.RenderTicket(record)
	if err != nil {
		t.Fatalf("Failed to render ticket: %v", err)
	}

	if !bytes.Equal(first.Pix, second.Pix) {
		t.Error("Expected identical buffers for repeated renders of the same record")
	}
}

func TestRenderTicket_DoesNotMutateTemplate(t *testing.T) {
	template := testTemplate(160, 90)
	before := make([]byte, len(template.Pix))
	copy(before, template.Pix)

	stamps := ticketformat.StampList{
		&ticketformat.TextStamp{
			StampBase: ticketformat.StampBase{ID: "t1", X: 10, Y: 10, Template: "{{name}}"},
			FontSize:  14,
			AutoSize:  true,
		},
	}
	r := New(template, stamps, nil, testRegistry(t))

	if _, err := r.RenderTicket(ticketformat.Record{"name": "Ada"}); err != nil {
		t.Fatalf("Failed to render ticket: %v", err)
	}

	if !bytes.Equal(before, template.Pix) {
		t.Error("Template buffer was mutated during render")
	}
}

func TestRenderTicket_TextChangesOutput(t *testing.T) {
	template := testTemplate(160, 90)
	stamps := ticketformat.StampList{
		&ticketformat.TextStamp{
			StampBase: ticketformat.StampBase{ID: "t1", X: 20, Y: 40, Template: "{{name}}"},
			FontSize:  20,
			AutoSize:  true,
		},
	}
	r := New(template, stamps, nil, testRegistry(t))

	base, err := r.RenderTicket(ticketformat.Record{})
	if err != nil {
		t.Fatalf("Failed to render ticket: %v", err)
	}
	withText, err := r.RenderTicket(ticketformat.Record{"name": "Ada"})
	if err != nil {
		t.Fatalf("Failed to render ticket: %v", err)
	}

	if bytes.Equal(base.Pix, withText.Pix) {
		t.Error("Expected text stamp to change the buffer")
	}
}

func TestRenderTicket_BarcodeEncodeFailurePlaceholder(t *testing.T) {
	template := testTemplate(200, 120)
	stamps := ticketformat.StampList{
		&ticketformat.BarcodeStamp{
			// EAN requires numeric payloads of a specific length
			StampBase: ticketformat.StampBase{ID: "b1", X: 10, Y: 10, Width: 150, Height: 50, Template: "{{code}}"},
			Format:    "EAN13",
		},
	}
	r := New(template, stamps, nil, testRegistry(t))

	plain := New(template, nil, nil, testRegistry(t))
	base, err := plain.RenderTicket(ticketformat.Record{})
	if err != nil {
		t.Fatalf("Failed to render base ticket: %v", err)
	}

	ticket, err := r.RenderTicket(ticketformat.Record{"code": "not-a-number"})
	if err != nil {
		t.Fatalf("Expected encode failure to be contained, got error: %v", err)
	}

	if bytes.Equal(base.Pix, ticket.Pix) {
		t.Error("Expected a visible placeholder for the failed barcode")
	}
}

func TestRenderTicket_EmptyPayloadPlaceholder(t *testing.T) {
	template := testTemplate(200, 120)
	stamps := ticketformat.StampList{
		&ticketformat.QRCodeStamp{
			StampBase: ticketformat.StampBase{ID: "q1", X: 20, Y: 20, Width: 80, Height: 80, Template: "{{missing}}"},
		},
	}
	r := New(template, stamps, nil, testRegistry(t))

	plain := New(template, nil, nil, testRegistry(t))
	base, err := plain.RenderTicket(ticketformat.Record{})
	if err != nil {
		t.Fatalf("Failed to render base ticket: %v", err)
	}

	ticket, err := r.RenderTicket(ticketformat.Record{})
	if err != nil {
		t.Fatalf("Failed to render ticket: %v", err)
	}

	if bytes.Equal(base.Pix, ticket.Pix) {
		t.Error("Expected a visible placeholder for the empty payload")
	}
}

func TestRenderTicket_QRCodeDrawn(t *testing.T) {
	template := testTemplate(200, 120)
	stamps := ticketformat.StampList{
		&ticketformat.QRCodeStamp{
			StampBase:       ticketformat.StampBase{ID: "q1", X: 20, Y: 20, Width: 80, Height: 80, Template: "{{url}}"},
			ErrorCorrection: "H",
		},
	}
	r := New(template, stamps, nil, testRegistry(t))

	plain := New(template, nil, nil, testRegistry(t))
	base, err := plain.RenderTicket(ticketformat.Record{})
	if err != nil {
		t.Fatalf("Failed to render base ticket: %v", err)
	}

	ticket, err := r.RenderTicket(ticketformat.Record{"url": "https://example.com/t/042"})
	if err != nil {
		t.Fatalf("Failed to render ticket: %v", err)
	}

	if bytes.Equal(base.Pix, ticket.Pix) {
		t.Error("Expected QR stamp to change the buffer")
	}
}
