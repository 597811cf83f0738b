package orchestrator_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkazin/difgo/internal/catalog"
	"github.com/nkazin/difgo/internal/config"
	"github.com/nkazin/difgo/internal/i18n"
	"github.com/nkazin/difgo/internal/logx"
	"github.com/nkazin/difgo/internal/orchestrator"
)

func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newTestOrchestrator(t *testing.T, root string) *orchestrator.Orchestrator {
	t.Helper()
	cfg := config.Default()
	cfg.PartA = root
	cfg.DBFile = filepath.Join(root, ".fast_diff.db")
	cfg.ThumbDir = filepath.Join(root, ".temp_thumb")
	cfg.TaskFile = filepath.Join(root, ".task.yaml")
	cfg.CompressionTarget = 8
	cfg.SecondLoop.BatchSize = 2

	store, err := catalog.Open(cfg.DBFile, logx.NewRecording(logx.INFO))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	loc, err := i18n.New("")
	require.NoError(t, err)

	return orchestrator.New(store, cfg, logx.NewRecording(logx.INFO), loc)
}

func TestRun_EndToEnd_DuplicatePairIsSkippedByHashMatch(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 10)
	writePNG(t, filepath.Join(root, "b.png"), 10) // identical to a.png
	writePNG(t, filepath.Join(root, "c.png"), 250)

	o := newTestOrchestrator(t, root)
	require.NoError(t, o.Run(context.Background()))
	require.Equal(t, config.SecondLoopDone, o.Cfg.State)

	pairs, err := o.Store.GetDiffPairs(1.0, true)
	require.NoError(t, err)
	require.NotEmpty(t, pairs)

	var found bool
	for _, p := range pairs {
		if (filepath.Base(p.PathA) == "a.png" && filepath.Base(p.PathB) == "b.png") ||
			(filepath.Base(p.PathA) == "b.png" && filepath.Base(p.PathB) == "a.png") {
			found = true
			require.EqualValues(t, 0, p.Dif)
		}
	}
	require.True(t, found, "expected a.png/b.png pair to be recorded as a hash-match skip")
}

func TestFirstLoop_ResumeResetsClaimedRows(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), 10)
	writePNG(t, filepath.Join(root, "b.png"), 20)

	o := newTestOrchestrator(t, root)
	require.NoError(t, o.FullIndex(context.Background()))

	claimed, err := o.Store.ClaimBatch(10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	// Simulate a crash: rows are stuck at success=-2 (claimed). FirstLoop
	// must reset them to queued before claiming again.
	require.NoError(t, o.FirstLoop(context.Background()))
	require.Equal(t, config.FirstLoopDone, o.Cfg.State)

	remaining, err := o.Store.ClaimBatch(10)
	require.NoError(t, err)
	require.Empty(t, remaining)
}
