// Package engine renders personalized ticket sheets with value-keyed caching
package engine

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"image"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ticketpress/sheet-engine/internal/fonts"
	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

// Engine owns the template and ticket caches and performs all sheet
// composition. The caches are mutated only by the compose/render path;
// callers influence them solely through configuration changes, which flush
// via the config hash.
type Engine struct {
	fonts *fonts.Registry

	mu          sync.Mutex
	templates   map[string]*image.RGBA
	configHash  string
	frameCancel context.CancelFunc

	tickets *ticketCache
	group   singleflight.Group
}

// New creates an engine. The font registry is shared with the caller,
// which registers font bytes before rendering text stamps.
func New(registry *fonts.Registry) *Engine {
	return &Engine{
		fonts:     registry,
		templates: make(map[string]*image.RGBA),
		tickets:   newTicketCache(),
	}
}

// SetTicketCapacity bounds the ticket cache to n entries with LRU
// eviction. Zero restores the default unbounded behavior.
func (e *Engine) SetTicketCapacity(n int) {
	e.tickets.setCapacity(n)
}

// Clear drops both caches and the remembered configuration
func (e *Engine) Clear() {
	e.mu.Lock()
	e.templates = make(map[string]*image.RGBA)
	e.configHash = ""
	e.mu.Unlock()

	e.tickets.flush()
}

// TicketCacheLen returns the number of cached tickets
func (e *Engine) TicketCacheLen() int {
	return e.tickets.len()
}

// configHashFor fingerprints the stamp list and template identity. Sheet
// layout is deliberately excluded: moving tickets around the page never
// changes their pixels.
func configHashFor(stamps ticketformat.StampList, templateID string) (string, error) {
	serialized, err := json.Marshal(stamps)
	if err != nil {
		return "", fmt.Errorf("failed to serialize stamps: %w", err)
	}

	sum := md5.Sum(append(serialized, []byte(templateID)...))
	return fmt.Sprintf("%x", sum), nil
}

// invalidateIfConfigChanged flushes the ticket cache when the stamp list
// or template identity changed since the last compose. Invalidation is
// coarse: stamps are shared by every ticket, so a partial flush would
// never help.
func (e *Engine) invalidateIfConfigChanged(hash string) (flushed bool) {
	e.mu.Lock()
	changed := e.configHash != hash
	e.configHash = hash
	e.mu.Unlock()

	if changed {
		e.tickets.flush()
	}
	return changed
}

// configUnchanged reports whether hash is still the active config
// fingerprint. Renders check it before writing to the ticket cache so a
// flush that happened mid-render is not undone by a stale write.
func (e *Engine) configUnchanged(hash string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.configHash == hash
}

// beginFrame supersedes any in-flight compose call. The previous frame's
// context is cancelled so its stale cells are discarded instead of drawn.
func (e *Engine) beginFrame(ctx context.Context) context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.frameCancel != nil {
		e.frameCancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	e.frameCancel = cancel
	return ctx
}
