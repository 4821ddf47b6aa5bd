package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketpress/sheet-engine/internal/fonts"
	"github.com/ticketpress/sheet-engine/internal/renderer"
	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	registry, err := fonts.NewRegistry()
	require.NoError(t, err)
	return New(registry)
}

func templatePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 210, B: 220, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testProject(t *testing.T) *ticketformat.Project {
	t.Helper()
	return &ticketformat.Project{
		Version: "1.0",
		Template: ticketformat.TemplateImage{
			ID:   "tmpl-1",
			Data: templatePNG(t, 40, 30),
		},
		Stamps: ticketformat.StampList{
			&ticketformat.TextStamp{
				StampBase: ticketformat.StampBase{ID: "t1", X: 20, Y: 15, Template: "#{{number}}"},
				FontSize:  10,
				Align:     "center",
				VerticalAlign: "middle",
				AutoSize:  true,
			},
		},
		Layout: ticketformat.SheetLayout{
			PaperWidthMM:  100,
			PaperHeightMM: 80,
			Rows:          1,
			Cols:          2,
			MarginTopMM:   5,
			MarginRightMM: 5,
			MarginBottomMM: 5,
			MarginLeftMM:   5,
			SpacingXMM:     4,
		},
	}
}

func testRecords() []ticketformat.Record {
	return []ticketformat.Record{
		{"number": "001"},
		{"number": "002"},
	}
}

func TestMMToPx_RoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 12, mmToPx(1.15, 10)) // 11.5 -> 12
	assert.Equal(t, 11, mmToPx(1.14, 10)) // 11.4 -> 11
	assert.Equal(t, -12, mmToPx(-1.15, 10))
	assert.Equal(t, 0, mmToPx(0, 10))
}

func TestComputeGrid_ZeroRows(t *testing.T) {
	layout := &ticketformat.SheetLayout{PaperWidthMM: 100, PaperHeightMM: 100, Rows: 0, Cols: 2}

	_, err := computeGrid(layout, 10)
	var geomErr *InvalidGeometryError
	assert.ErrorAs(t, err, &geomErr)
}

func TestComputeGrid_MarginsSwallowPage(t *testing.T) {
	layout := &ticketformat.SheetLayout{
		PaperWidthMM:  100,
		PaperHeightMM: 100,
		Rows:          1,
		Cols:          1,
		MarginLeftMM:  60,
		MarginRightMM: 60,
	}

	_, err := computeGrid(layout, 10)
	var geomErr *InvalidGeometryError
	assert.ErrorAs(t, err, &geomErr)
}

func TestCellRect_ZeroMarginsZeroSpacing(t *testing.T) {
	layout := &ticketformat.SheetLayout{
		PaperWidthMM:  100,
		PaperHeightMM: 100,
		Rows:          2,
		Cols:          2,
	}

	grid, err := computeGrid(layout, 10)
	require.NoError(t, err)

	// With everything zero the first cell starts exactly at the pan offset
	first := grid.cellRect(0, 7, 9)
	assert.Equal(t, image.Pt(7, 9), first.Min)

	// And adjacent cells touch with no implicit gap
	second := grid.cellRect(1, 7, 9)
	assert.Equal(t, first.Max.X, second.Min.X)
}

func TestFitRect_UniformScaleAndCentering(t *testing.T) {
	// Wide ticket into a square cell: width binds
	drawW, drawH, offX, offY := fitRect(200, 100, 100, 100)
	assert.Equal(t, 100, drawW)
	assert.Equal(t, 50, drawH)
	assert.Equal(t, 0, offX)
	assert.Equal(t, 25, offY)

	// Offsets are never negative
	drawW, drawH, offX, offY = fitRect(30, 40, 300, 400)
	assert.Equal(t, 300, drawW)
	assert.Equal(t, 400, drawH)
	assert.GreaterOrEqual(t, offX, 0)
	assert.GreaterOrEqual(t, offY, 0)
}

func TestCompose_InvalidGeometryStats(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)
	project.Layout.Rows = 0

	_, stats, err := e.RenderSheet(context.Background(), project, testRecords(), 4)

	var geomErr *InvalidGeometryError
	assert.ErrorAs(t, err, &geomErr)
	assert.Equal(t, ComposeStats{}, stats)
}

func TestCompose_DecodeError(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)
	project.Template.Data = []byte("definitely not an image")

	_, _, err := e.RenderSheet(context.Background(), project, testRecords(), 4)

	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

func TestCompose_CacheHitOnSecondFrame(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	_, stats, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rendered)
	assert.Equal(t, 2, stats.Total)

	_, stats, err = e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Rendered, "second frame should be served from cache")
}

func TestCompose_LayoutChangeKeepsCache(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	_, _, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)

	// Margins, spacing and grid size are not part of the config hash
	project.Layout.MarginLeftMM = 12
	project.Layout.SpacingXMM = 1

	_, stats, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Rendered, "layout changes must not invalidate tickets")
}

func TestCompose_StampChangeFlushesCache(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	_, _, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)

	project.Stamps[0].(*ticketformat.TextStamp).FontSize = 14

	_, stats, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rendered, "stamp changes must flush the ticket cache")
}

func TestTicketFor_StaleConfigIsNotCached(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	template, err := e.decodeTemplate(project.Template)
	require.NoError(t, err)
	rend := renderer.New(template, project.Stamps, project.Sources, e.fonts)

	oldHash, err := configHashFor(project.Stamps, project.Template.ID)
	require.NoError(t, err)
	e.invalidateIfConfigChanged(oldHash)

	// The stamp config changes while the old render is in flight
	project.Stamps[0].(*ticketformat.TextStamp).FontSize = 14
	newHash, err := configHashFor(project.Stamps, project.Template.ID)
	require.NoError(t, err)
	e.invalidateIfConfigChanged(newHash)

	// The render that began under the flushed config must not poison
	// the cache
	_, rendered, err := e.ticketFor(rend, testRecords()[0], oldHash)
	require.NoError(t, err)
	assert.True(t, rendered)
	assert.Zero(t, e.TicketCacheLen(), "ticket rendered under a flushed config must not be cached")
}

func TestCompose_StampChangeRendersUnderNewConfig(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	_, _, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)

	project.Stamps[0].(*ticketformat.TextStamp).FontSize = 14

	got, stats, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rendered)

	// Pixels after the change match a fresh engine that never saw the
	// old stamp config
	fresh := testEngine(t)
	freshProject := testProject(t)
	freshProject.Stamps[0].(*ticketformat.TextStamp).FontSize = 14

	want, _, err := fresh.RenderSheet(context.Background(), freshProject, testRecords(), 4)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(got.Pix, want.Pix), "post-change frame must carry no pixels from the old config")
}

func TestCompose_TemplateChangeFlushesCache(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	_, _, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)

	project.Template.ID = "tmpl-2"

	_, stats, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rendered, "template replacement must flush the ticket cache")
}

func TestCompose_DistinctRecordsDistinctTickets(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	_, _, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)

	assert.Equal(t, 2, e.TicketCacheLen())
}

func TestRenderSheet_Deterministic(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	first, _, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)
	second, _, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.Pix, second.Pix), "repeated frames must be byte-identical")
}

func TestRenderSheet_BufferLength(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	canvas, _, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)

	w, h := canvas.Bounds().Dx(), canvas.Bounds().Dy()
	assert.Equal(t, w*h*4, len(canvas.Pix))
	assert.Equal(t, mmToPx(100, 4), w)
	assert.Equal(t, mmToPx(80, 4), h)
}

func TestCompose_SizeMismatch(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	full := image.NewRGBA(image.Rect(0, 0, 400, 320))
	sub := full.SubImage(image.Rect(10, 10, 200, 160)).(*image.RGBA)

	_, err := e.Compose(context.Background(), sub, project, testRecords(), Viewport{PixelsPerMM: 4})

	var sizeErr *SizeMismatchError
	assert.ErrorAs(t, err, &sizeErr)
}

func TestCompose_ParentCancellation(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	canvas := image.NewRGBA(image.Rect(0, 0, 400, 320))
	_, err := e.Compose(ctx, canvas, project, testRecords(), Viewport{PixelsPerMM: 4})

	// The caller cancelled, so the caller's error comes back, not ours
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSuperseded)
}

func TestFrameErr(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())
	defer parentCancel()
	frame, frameCancel := context.WithCancel(parent)
	defer frameCancel()

	assert.NoError(t, frameErr(parent, frame))

	// Only the frame cancelled: a newer compose took over
	frameCancel()
	assert.ErrorIs(t, frameErr(parent, frame), ErrSuperseded)

	// Parent cancellation wins over supersession
	parentCancel()
	assert.ErrorIs(t, frameErr(parent, frame), context.Canceled)
}

func TestBeginFrame_CancelsPrevious(t *testing.T) {
	e := testEngine(t)

	first := e.beginFrame(context.Background())
	_ = e.beginFrame(context.Background())

	select {
	case <-first.Done():
	default:
		t.Error("expected the first frame context to be cancelled")
	}
}

func TestCompose_ViewportCulling(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	// Visible extent covers only the left half of the page: one of the
	// two cells is culled and never rendered
	canvas := image.NewRGBA(image.Rect(0, 0, 400, 320))
	vp := Viewport{PixelsPerMM: 4, Width: 120, Height: 320}

	_, err := e.Compose(context.Background(), canvas, project, testRecords(), vp)
	require.NoError(t, err)

	assert.Equal(t, 1, e.TicketCacheLen(), "culled cells must not be rendered")
}

func TestTicketCache_LRUCapacity(t *testing.T) {
	e := testEngine(t)
	e.SetTicketCapacity(1)
	project := testProject(t)

	_, _, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)

	assert.Equal(t, 1, e.TicketCacheLen())
}

func TestClear(t *testing.T) {
	e := testEngine(t)
	project := testProject(t)

	_, _, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)
	require.NotZero(t, e.TicketCacheLen())

	e.Clear()
	assert.Zero(t, e.TicketCacheLen())

	_, stats, err := e.RenderSheet(context.Background(), project, testRecords(), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rendered)
}
