// Package imageops implements the pure image primitives spec.md §4.2
// delegates to: decode+resize, perceptual hashing with configurable
// quantization, and pixelwise mean-squared diff with rotation search.
//
// Grounded on the teacher's core/processing/dedup/defaultphasher.go
// (goimagehash usage for rotation-insensitive distance comparisons) and
// core/image (resize via nfnt/resize), generalized from "hash one file"
// to "decode once, derive four rotation hashes from the decoded buffer"
// per spec.md §9 ("do not re-decode").
package imageops

import (
	"crypto/sha256"
	"encoding/hex"
	stdimage "image"
	"image/color"

	// Registers the standard decoders the teacher imports.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/corona10/goimagehash"
	"github.com/nfnt/resize"

	"github.com/nkazin/difgo/internal/errs"
)

// Thumbnail is a decoded, resized RGB pixel buffer: target*target*3 bytes,
// row-major, one byte per channel. This is the fixed-size buffer spec.md
// calls "the thumbnail" once first-loop preprocessing has run.
type Thumbnail struct {
	Edge int // both width and height, since thumbnails are always square
	Pix  []byte
}

// NewThumbnail allocates a zeroed square thumbnail buffer of the given edge.
func NewThumbnail(edge int) *Thumbnail {
	return &Thumbnail{Edge: edge, Pix: make([]byte, edge*edge*3)}
}

func (t *Thumbnail) at(x, y int) (r, g, b byte) {
	i := (y*t.Edge + x) * 3
	return t.Pix[i], t.Pix[i+1], t.Pix[i+2]
}

func (t *Thumbnail) set(x, y int, r, g, b byte) {
	i := (y*t.Edge + x) * 3
	t.Pix[i], t.Pix[i+1], t.Pix[i+2] = r, g, b
}

// DecodeAndResize reads an image from r, resizes it to a square target×target
// thumbnail using Lanczos resampling, and returns the thumbnail plus the
// original dimensions. Unreadable or unsupported files surface as
// *errs.DecodeError, recorded on the owning row rather than propagated
// (spec.md §4.2, §7).
func DecodeAndResize(path string, r io.Reader, target int) (*Thumbnail, int, int, error) {
	img, _, err := stdimage.Decode(r)
	if err != nil {
		return nil, 0, 0, &errs.DecodeError{Path: path, Err: err}
	}
	bounds := img.Bounds()
	ox, oy := bounds.Dx(), bounds.Dy()
	if ox == 0 || oy == 0 {
		return nil, 0, 0, &errs.DecodeError{Path: path, Err: errZeroDimension}
	}

	resized := resize.Resize(uint(target), uint(target), img, resize.Lanczos3)
	thumb := NewThumbnail(target)
	rb := resized.Bounds()
	for y := 0; y < target; y++ {
		for x := 0; x < target; x++ {
			sx, sy := rb.Min.X+x, rb.Min.Y+y
			if sx > rb.Max.X-1 {
				sx = rb.Max.X - 1
			}
			if sy > rb.Max.Y-1 {
				sy = rb.Max.Y - 1
			}
			cr, cg, cb, _ := resized.At(sx, sy).RGBA()
			thumb.set(x, y, byte(cr>>8), byte(cg>>8), byte(cb>>8))
		}
	}
	return thumb, ox, oy, nil
}

var errZeroDimension = &dimensionError{}

type dimensionError struct{}

func (*dimensionError) Error() string { return "image has zero width or height" }

// quantize right-shifts a channel value by shift bits to collapse
// near-identical values into the same bucket (spec.md §9). A negative
// shift left-shifts instead, which widens rather than narrows buckets and
// is accepted only for symmetry with the documented [-7,7] range; callers
// in practice use shift >= 0.
func quantize(v byte, shift int) byte {
	if shift >= 0 {
		return v >> uint(shift)
	}
	return v << uint(-shift)
}

// PerceptualHash quantizes every channel of the thumbnail by shift bits and
// returns a stable digest string: two thumbnails collide exactly when their
// quantized buffers are byte-identical, so shift=0 collides only on exact
// byte-identity and larger shifts collide near-identical images at the cost
// of false positives (spec.md §9).
func PerceptualHash(t *Thumbnail, shift int) string {
	buf := make([]byte, len(t.Pix))
	for i, v := range t.Pix {
		buf[i] = quantize(v, shift)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// rotate90 returns a new Thumbnail rotated 90° clockwise from t, operating
// on the already-decoded buffer (spec.md §9: "do not re-decode").
func rotate90(t *Thumbnail) *Thumbnail {
	out := NewThumbnail(t.Edge)
	n := t.Edge
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			r, g, b := t.at(x, y)
			// (x,y) -> (n-1-y, x)
			out.set(n-1-y, x, r, g, b)
		}
	}
	return out
}

// RotatedHashes derives the four rotation-invariant hash strings (0°, 90°,
// 180°, 270°) from a single decoded buffer by rotating it three times (each
// rotation a new buffer; t is not modified) and hashing each result
// (spec.md §4.2, §9).
func RotatedHashes(t *Thumbnail, shift int) [4]string {
	r0 := t
	r90 := rotate90(r0)
	r180 := rotate90(r90)
	r270 := rotate90(r180)
	return [4]string{
		PerceptualHash(r0, shift),
		PerceptualHash(r90, shift),
		PerceptualHash(r180, shift),
		PerceptualHash(r270, shift),
	}
}

// Diff computes the mean squared pixel difference between two equally
// sized thumbnails. When rotate is true, it returns the minimum MSE over
// all four rotations of b against a (spec.md §4.2). Dimensions must match:
// both inputs are always resized to the same compression_target, so a
// mismatch indicates a programming error upstream rather than a runtime
// condition callers need to special-case.
func Diff(a, b *Thumbnail, rotate bool) float32 {
	if !rotate {
		return mse(a, b)
	}
	best := mse(a, b)
	cur := b
	for i := 0; i < 3; i++ {
		cur = rotate90(cur)
		if d := mse(a, cur); d < best {
			best = d
		}
	}
	return best
}

func mse(a, b *Thumbnail) float32 {
	n := len(a.Pix)
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a.Pix[i]) - float64(b.Pix[i])
		sum += d * d
	}
	return float32(sum / float64(n))
}

// AspectRatio returns px/py, matching the aspect-ratio short-circuit input
// in spec.md §4.6.
func AspectRatio(px, py int) float64 {
	if py == 0 {
		return 0
	}
	return float64(px) / float64(py)
}

// ToImage renders a Thumbnail back into a standard image.Image, for
// callers that need to hand a thumbnail to an image-shaped API rather
// than operate on the raw buffer (goimagehash, PNG encoding).
func ToImage(t *Thumbnail) *stdimage.RGBA {
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, t.Edge, t.Edge))
	for y := 0; y < t.Edge; y++ {
		for x := 0; x < t.Edge; x++ {
			r, g, b := t.at(x, y)
			img.Set(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

// DifferenceHashDistance computes goimagehash's own difference-hash
// Hamming distance between two thumbnails. This is a supplementary,
// fuzzier comparator used only as an optional extra second-loop
// short-circuit (spec.md §4.6's skip_matching_hash looks for an exact
// string match; this catches near-matches the string hash misses) — it
// is never the representation stored in the hash table, since that needs
// a stable string key for reference counting (spec.md §3 Hash entry).
func DifferenceHashDistance(a, b *Thumbnail) (int, error) {
	ha, err := goimagehash.DifferenceHash(ToImage(a))
	if err != nil {
		return 0, err
	}
	hb, err := goimagehash.DifferenceHash(ToImage(b))
	if err != nil {
		return 0, err
	}
	return ha.Distance(hb)
}
