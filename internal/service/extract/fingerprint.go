package extract

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	"strings"

	"TradeMynd/internal/service/media"
)

// Fingerprint derives a stable cache key from normalized input content.
// Identical evidence resubmitted by any user maps to the same key, so a
// repeated screenshot or message skips the model round-trip. Text is
// lowercased and whitespace-collapsed before hashing; images use a
// perceptual 8x8 average hash so a re-captured or re-encoded screenshot of
// the same chart still hits.
func Fingerprint(in *media.NormalizedInput) string {
	if in.Kind == media.KindImage {
		if key, ok := imageFingerprint(in.Data); ok {
			return key
		}
	}

	h := sha256.New()
	h.Write([]byte(in.Kind))
	h.Write([]byte{0})
	if in.Text != "" {
		h.Write([]byte(canonicalText(in.Text)))
	} else {
		h.Write(in.Data)
	}
	return "extract:" + hex.EncodeToString(h.Sum(nil))
}

func canonicalText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func imageFingerprint(data []byte) (string, bool) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("extract:img:%016x", averageHash(img)), true
}

// averageHash block-averages luma into an 8x8 grid and sets a bit for each
// cell brighter than the global mean.
func averageHash(img image.Image) uint64 {
	b := img.Bounds()
	var cells [64]float64
	for cy := 0; cy < 8; cy++ {
		y0 := b.Min.Y + cy*b.Dy()/8
		y1 := b.Min.Y + (cy+1)*b.Dy()/8
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for cx := 0; cx < 8; cx++ {
			x0 := b.Min.X + cx*b.Dx()/8
			x1 := b.Min.X + (cx+1)*b.Dx()/8
			if x1 <= x0 {
				x1 = x0 + 1
			}
			var sum float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					r, g, bl, _ := img.At(x, y).RGBA()
					sum += 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)
				}
			}
			cells[cy*8+cx] = sum / float64((y1-y0)*(x1-x0))
		}
	}

	var mean float64
	for _, c := range cells {
		mean += c
	}
	mean /= 64

	var bits uint64
	for i, c := range cells {
		if c > mean {
			bits |= 1 << uint(63-i)
		}
	}
	return bits
}
