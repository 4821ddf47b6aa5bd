// Package fonts manages caller-supplied font data by family name
package fonts

import (
	"fmt"
	"sort"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Registry maps font family names to parsed fonts and caches faces by
// size. Font bytes are supplied by the caller before rendering; the
// registry performs no file or network access. Families that were never
// registered fall back to the embedded Go Regular font.
type Registry struct {
	mu       sync.RWMutex
	families map[string]*truetype.Font
	faces    map[faceKey]font.Face
	fallback *truetype.Font
}

type faceKey struct {
	family string
	size   float64
}

// NewRegistry creates a registry with the embedded fallback font parsed
func NewRegistry() (*Registry, error) {
	fallback, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fallback font: %w", err)
	}

	return &Registry{
		families: make(map[string]*truetype.Font),
		faces:    make(map[faceKey]font.Face),
		fallback: fallback,
	}, nil
}

// Register parses raw TTF bytes and stores them under the family name.
// Re-registering a family replaces it and drops its cached faces.
func (r *Registry) Register(family string, data []byte) error {
	if family == "" {
		return fmt.Errorf("font family name is required")
	}

	parsed, err := truetype.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse font '%s': %w", family, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.families[family] = parsed
	for key := range r.faces {
		if key.family == family {
			delete(r.faces, key)
		}
	}

	return nil
}

// Has reports whether a family has been registered
func (r *Registry) Has(family string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.families[family]
	return ok
}

// Families returns the registered family names, sorted
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Face returns a font face for the family at the given size. Unknown
// families use the fallback font. Faces are cached per family and size.
func (r *Registry) Face(family string, size float64) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %v", size)
	}

	key := faceKey{family: family, size: size}

	r.mu.RLock()
	if face, ok := r.faces[key]; ok {
		r.mu.RUnlock()
		return face, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if face, ok := r.faces[key]; ok {
		return face, nil
	}

	parsed, ok := r.families[family]
	if !ok {
		parsed = r.fallback
	}

	face := truetype.NewFace(parsed, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	r.faces[key] = face

	return face, nil
}
