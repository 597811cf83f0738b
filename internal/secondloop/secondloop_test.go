package secondloop_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkazin/difgo/internal/blockplan"
	"github.com/nkazin/difgo/internal/catalog"
	"github.com/nkazin/difgo/internal/secondloop"
	"github.com/nkazin/difgo/internal/thumbcache"
)

func writeThumb(t *testing.T, dir string, key int64, shade uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, itoa(key)+".png"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func itoa(k int64) string {
	if k == 0 {
		return "0"
	}
	var buf []byte
	for k > 0 {
		buf = append([]byte{byte('0' + k%10)}, buf...)
		k /= 10
	}
	return string(buf)
}

func TestProcess_HashShortCircuitSkipsDiff(t *testing.T) {
	dir := t.TempDir()
	writeThumb(t, dir, 0, 10)
	writeThumb(t, dir, 1, 10)
	cache := thumbcache.New(dir, 4, 3)
	require.NoError(t, cache.LoadBlock(blockOf(0, 0, 2, 2)))

	args := make(chan secondloop.Arg, 1)
	results := make(chan secondloop.Result, 1)
	args <- secondloop.Arg{
		X:       0,
		XHashes: [4]string{"same", "", "", ""},
		Ys:      []secondloop.Candidate{{Key: 1, Hashes: [4]string{"same", "", "", ""}}},
	}
	close(args)

	opts := secondloop.Options{SkipMatchingHash: true}
	require.NoError(t, secondloop.Run(context.Background(), args, results, 1, opts, cache))
	close(results)

	r := <-results
	require.Len(t, r.Outcomes, 1)
	require.Equal(t, catalog.DiffSkipHashMatch, r.Outcomes[0].Success)
	require.EqualValues(t, 0, r.Outcomes[0].Dif)
}

func TestProcess_AspectMismatchShortCircuits(t *testing.T) {
	dir := t.TempDir()
	writeThumb(t, dir, 0, 10)
	writeThumb(t, dir, 1, 200)
	cache := thumbcache.New(dir, 4, 3)
	require.NoError(t, cache.LoadBlock(blockOf(0, 0, 2, 2)))

	args := make(chan secondloop.Arg, 1)
	results := make(chan secondloop.Result, 1)
	args <- secondloop.Arg{
		X:       0,
		XAspect: 2.0,
		Ys:      []secondloop.Candidate{{Key: 1, Aspect: 1.0}},
	}
	close(args)

	opts := secondloop.Options{MatchAspectByEnabled: true, MatchAspectBy: 0.1}
	require.NoError(t, secondloop.Run(context.Background(), args, results, 1, opts, cache))
	close(results)

	r := <-results
	require.Equal(t, catalog.DiffSkipAspectMismatch, r.Outcomes[0].Success)
	require.EqualValues(t, -1, r.Outcomes[0].Dif)
}

func TestProcess_ComputesDiffFromCache(t *testing.T) {
	dir := t.TempDir()
	writeThumb(t, dir, 0, 10)
	writeThumb(t, dir, 1, 10)
	cache := thumbcache.New(dir, 4, 3)
	require.NoError(t, cache.LoadBlock(blockOf(0, 0, 2, 2)))

	args := make(chan secondloop.Arg, 1)
	results := make(chan secondloop.Result, 1)
	args <- secondloop.Arg{
		X:  0,
		Ys: []secondloop.Candidate{{Key: 1}},
	}
	close(args)

	opts := secondloop.Options{}
	require.NoError(t, secondloop.Run(context.Background(), args, results, 1, opts, cache))
	close(results)

	r := <-results
	require.Equal(t, catalog.DiffComputed, r.Outcomes[0].Success)
	require.InDelta(t, 0, r.Outcomes[0].Dif, 0.01)
}

func writeSourceImage(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestProcess_FallsBackToDecodeWhenThumbnailUncached(t *testing.T) {
	cacheDir := t.TempDir()
	srcDir := t.TempDir()
	writeThumb(t, cacheDir, 0, 10)
	srcPath := filepath.Join(srcDir, "y.png")
	writeSourceImage(t, srcPath, 10)

	cache := thumbcache.New(cacheDir, 4, 3)
	require.NoError(t, cache.LoadBlock(blockOf(0, 0, 1, 1)))

	args := make(chan secondloop.Arg, 1)
	results := make(chan secondloop.Result, 1)
	args <- secondloop.Arg{
		X:  0,
		Ys: []secondloop.Candidate{{Key: 99, Path: srcPath}},
	}
	close(args)

	opts := secondloop.Options{CompressionTarget: 4}
	require.NoError(t, secondloop.Run(context.Background(), args, results, 1, opts, cache))
	close(results)

	r := <-results
	require.Equal(t, catalog.DiffComputed, r.Outcomes[0].Success)
	require.InDelta(t, 0, r.Outcomes[0].Dif, 0.01)
}

func TestProcess_MissingThumbnailRecordsFailure(t *testing.T) {
	dir := t.TempDir()
	writeThumb(t, dir, 0, 10)
	cache := thumbcache.New(dir, 4, 3)
	require.NoError(t, cache.LoadBlock(blockOf(0, 0, 1, 1)))

	args := make(chan secondloop.Arg, 1)
	results := make(chan secondloop.Result, 1)
	args <- secondloop.Arg{
		X:  0,
		Ys: []secondloop.Candidate{{Key: 99}},
	}
	close(args)

	require.NoError(t, secondloop.Run(context.Background(), args, results, 1, secondloop.Options{}, cache))
	close(results)

	r := <-results
	require.Equal(t, catalog.DiffFailed, r.Outcomes[0].Success)
	require.NotEmpty(t, r.Outcomes[0].ErrorMsg)
}

func TestProcess_GroupDistanceThresholdShortCircuitsNearMatches(t *testing.T) {
	dir := t.TempDir()
	writeThumb(t, dir, 0, 10)
	writeThumb(t, dir, 1, 12)
	cache := thumbcache.New(dir, 4, 3)
	require.NoError(t, cache.LoadBlock(blockOf(0, 0, 2, 2)))

	args := make(chan secondloop.Arg, 1)
	results := make(chan secondloop.Result, 1)
	args <- secondloop.Arg{
		X:       0,
		XHashes: [4]string{"hash-a", "", "", ""},
		Ys:      []secondloop.Candidate{{Key: 1, Hashes: [4]string{"hash-b", "", "", ""}}},
	}
	close(args)

	opts := secondloop.Options{SkipMatchingHash: true, GroupDistanceThreshold: 5}
	require.NoError(t, secondloop.Run(context.Background(), args, results, 1, opts, cache))
	close(results)

	r := <-results
	require.Len(t, r.Outcomes, 1)
	require.Equal(t, catalog.DiffSkipHashMatch, r.Outcomes[0].Success)
	require.EqualValues(t, 0, r.Outcomes[0].Dif)
}

func blockOf(xStart, yStart int64, xLen, yLen int) blockplan.Block {
	return blockplan.Block{XStart: xStart, YStart: yStart, XLen: xLen, YLen: yLen}
}
