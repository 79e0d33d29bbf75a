// Package assets is the content-addressed BMP asset sink. It normalizes
// arbitrary uploaded image bytes to a 480x800 uncompressed BMP and writes
// the result once under its SHA-256 digest. Identical content always
// lands in the same file, so the asset directory is append-only and
// deduplicates for free.
package assets

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoding
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/relabs-tech/photoframe-orchestrator/internal/apierr"
)

// Width and Height are the fixed raster size every normalized asset is
// fit to — the firmware only accepts 480x800 BMP.
const (
	Width  = 480
	Height = 800
)

// Sink writes normalized assets under dir/<sha256>.bmp.
type Sink struct {
	dir string
}

// New returns a Sink rooted at dir, creating dir if necessary.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &Sink{dir: dir}, nil
}

// Store decodes raw, center-crop-and-scales it to 480x800, re-encodes it
// as an uncompressed BMP, and writes it under its digest if not already
// present. It returns the asset's filename and hex digest.
func (s *Sink) Store(raw []byte) (name, digest string, err error) {
	if len(raw) == 0 {
		return "", "", apierr.ClientInput(fmt.Errorf("empty upload"))
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", "", apierr.ClientInput(fmt.Errorf("cannot decode image: %w", err))
	}

	fitted := fit(img, Width, Height)

	var out bytes.Buffer
	if err := bmp.Encode(&out, fitted); err != nil {
		return "", "", apierr.Internal(fmt.Errorf("encode bmp: %w", err))
	}

	sum := sha256.Sum256(out.Bytes())
	digest = hex.EncodeToString(sum[:])
	name = digest + ".bmp"

	path := filepath.Join(s.dir, name)
	if _, statErr := os.Stat(path); statErr == nil {
		return name, digest, nil
	}

	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return "", "", apierr.Internal(fmt.Errorf("write asset: %w", err))
	}
	return name, digest, nil
}

// Path returns the on-disk path for a stored asset name. It does not
// check existence.
func (s *Sink) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Read returns the raw bytes of a previously stored asset, or a NotFound
// apierr if it does not exist.
func (s *Sink) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if os.IsNotExist(err) {
		return nil, apierr.NotFound(fmt.Errorf("no such asset %q", name))
	}
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("read asset: %w", err))
	}
	return data, nil
}

// fit center-crops src to the target aspect ratio, then scales it to
// exactly w x h with draw.CatmullRom, the highest-quality kernel
// golang.org/x/image/draw offers.
func fit(src image.Image, w, h int) *image.RGBA {
	bounds := src.Bounds()
	sw, sh := bounds.Dx(), bounds.Dy()

	if sw == w && sh == h {
		// already the target raster: copy verbatim so re-normalizing a
		// normalized asset is a true no-op, not a resampling round-trip
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
		return dst
	}

	targetRatio := float64(w) / float64(h)
	srcRatio := float64(sw) / float64(sh)

	cropRect := bounds
	if srcRatio > targetRatio {
		// source is wider than target: crop the sides
		cropWidth := int(float64(sh) * targetRatio)
		offset := (sw - cropWidth) / 2
		cropRect = image.Rect(bounds.Min.X+offset, bounds.Min.Y, bounds.Min.X+offset+cropWidth, bounds.Max.Y)
	} else if srcRatio < targetRatio {
		// source is taller than target: crop top and bottom
		cropHeight := int(float64(sw) / targetRatio)
		offset := (sh - cropHeight) / 2
		cropRect = image.Rect(bounds.Min.X, bounds.Min.Y+offset, bounds.Max.X, bounds.Min.Y+offset+cropHeight)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, cropRect, draw.Src, nil)
	return dst
}
