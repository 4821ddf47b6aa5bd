package ticketformat

import (
	"fmt"
)

// Validate validates a Project structure
func Validate(p *Project) error {
	// Validate version
	if p.Version == "" {
		return fmt.Errorf("version is required")
	}
	if p.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected 1.0)", p.Version)
	}

	if err := validateLayout(&p.Layout); err != nil {
		return fmt.Errorf("layout: %w", err)
	}

	// Validate sources
	sourceNames := make(map[string]bool)
	for i, src := range p.Sources {
		if src.Name == "" {
			return fmt.Errorf("source[%d]: 'name' is required", i)
		}
		if sourceNames[src.Name] {
			return fmt.Errorf("source[%d]: duplicate source name '%s'", i, src.Name)
		}
		sourceNames[src.Name] = true

		if err := validateSourceKind(src.Kind); err != nil {
			return fmt.Errorf("source[%d] '%s': %w", i, src.Name, err)
		}
	}

	// Validate stamps
	stampIDs := make(map[string]bool)
	for i, stamp := range p.Stamps {
		id := stamp.StampID()
		if id == "" {
			return fmt.Errorf("stamp[%d]: 'id' is required", i)
		}
		if stampIDs[id] {
			return fmt.Errorf("stamp[%d]: duplicate stamp id '%s'", i, id)
		}
		stampIDs[id] = true

		if err := validateStamp(stamp); err != nil {
			return fmt.Errorf("stamp[%d] '%s': %w", i, id, err)
		}
	}

	return nil
}

func validateLayout(l *SheetLayout) error {
	if l.PaperWidthMM <= 0 || l.PaperHeightMM <= 0 {
		return fmt.Errorf("paper size must be positive")
	}
	if l.Orientation != "" && l.Orientation != "portrait" && l.Orientation != "landscape" {
		return fmt.Errorf("invalid orientation '%s' (must be portrait or landscape)", l.Orientation)
	}
	if l.Rows < 1 {
		return fmt.Errorf("rows must be at least 1")
	}
	if l.Cols < 1 {
		return fmt.Errorf("cols must be at least 1")
	}
	if l.MarginTopMM < 0 || l.MarginRightMM < 0 || l.MarginBottomMM < 0 || l.MarginLeftMM < 0 {
		return fmt.Errorf("margins must not be negative")
	}
	if l.SpacingXMM < 0 || l.SpacingYMM < 0 {
		return fmt.Errorf("spacing must not be negative")
	}
	return nil
}

func validateSourceKind(kind string) error {
	validKinds := []string{"csv", "sequence", "random"}
	for _, k := range validKinds {
		if kind == k {
			return nil
		}
	}
	return fmt.Errorf("invalid source kind '%s' (must be csv, sequence, or random)", kind)
}

func validateStamp(stamp Stamp) error {
	switch s := stamp.(type) {
	case *TextStamp:
		return validateTextStamp(s)
	case *BarcodeStamp:
		return validateBarcodeStamp(s)
	case *QRCodeStamp:
		return validateQRCodeStamp(s)
	default:
		return fmt.Errorf("unknown stamp type %T", stamp)
	}
}

func validateTextStamp(s *TextStamp) error {
	if s.Template == "" {
		return fmt.Errorf("text stamp requires template")
	}
	if s.FontSize <= 0 {
		return fmt.Errorf("font_size must be positive")
	}

	if s.Align != "" {
		validAligns := []string{"left", "center", "right"}
		valid := false
		for _, a := range validAligns {
			if s.Align == a {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid align '%s' (must be left, center, or right)", s.Align)
		}
	}

	if s.VerticalAlign != "" {
		validAligns := []string{"top", "middle", "bottom"}
		valid := false
		for _, a := range validAligns {
			if s.VerticalAlign == a {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid vertical_align '%s' (must be top, middle, or bottom)", s.VerticalAlign)
		}
	}

	// Fixed-box stamps align text inside the rect, so it must have area
	if !s.AutoSize && (s.Width <= 0 || s.Height <= 0) {
		return fmt.Errorf("fixed-box text stamp requires positive width and height")
	}

	return nil
}

func validateBarcodeStamp(s *BarcodeStamp) error {
	if s.Template == "" {
		return fmt.Errorf("barcode stamp requires template")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("barcode stamp requires positive width and height")
	}

	if s.Format != "" {
		validFormats := []string{"CODE128", "CODE39", "EAN13", "EAN8"}
		valid := false
		for _, f := range validFormats {
			if s.Format == f {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid barcode format '%s'", s.Format)
		}
	}

	return nil
}

func validateQRCodeStamp(s *QRCodeStamp) error {
	if s.Template == "" {
		return fmt.Errorf("qrcode stamp requires template")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("qrcode stamp requires positive width and height")
	}

	if s.ErrorCorrection != "" {
		validLevels := []string{"L", "M", "Q", "H"}
		valid := false
		for _, l := range validLevels {
			if s.ErrorCorrection == l {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid error_correction '%s' (must be L, M, Q, or H)", s.ErrorCorrection)
		}
	}

	return nil
}
