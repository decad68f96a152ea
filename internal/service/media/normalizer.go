package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"TradeMynd/internal/domain/models"
	applogger "TradeMynd/pkg/logger"
)

// Kind is the canonical media class after normalization.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindText  Kind = "text"
)

// NormalizedInput is what the extraction engine consumes: text is trimmed,
// images are canonical JPEG within the edge limit, audio is size-checked
// passthrough.
type NormalizedInput struct {
	Kind Kind
	Text string
	Data []byte
	MIME string
}

type Config struct {
	MaxBytes     int
	MaxImageEdge int
	JPEGQuality  int
}

// Normalizer validates and canonicalizes inbound attachments before any
// quota token is spent on them.
type Normalizer struct {
	cfg    Config
	logger *applogger.Logger
}

func NewNormalizer(cfg Config, logger *applogger.Logger) *Normalizer {
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize classifies the message by its declared MIME type and produces a
// canonical input. Oversized or unclassifiable media is rejected before
// normalization work starts.
func (n *Normalizer) Normalize(msg *models.InboundMessage) (*NormalizedInput, error) {
	if msg.InputType == models.InputText {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			return nil, &models.ExtractionFailedError{Reason: "empty text message"}
		}
		return &NormalizedInput{Kind: KindText, Text: text, MIME: "text/plain"}, nil
	}

	if len(msg.Payload) > n.cfg.MaxBytes {
		return nil, &models.MediaTooLargeError{Size: len(msg.Payload), Limit: n.cfg.MaxBytes}
	}
	if len(msg.Payload) == 0 {
		return nil, &models.ExtractionFailedError{Reason: "empty attachment"}
	}

	switch {
	case strings.HasPrefix(msg.DeclaredMIME, "image/"):
		data, err := n.normalizeImage(msg.Payload)
		if err != nil {
			return nil, err
		}
		return &NormalizedInput{Kind: KindImage, Data: data, MIME: "image/jpeg"}, nil
	case strings.HasPrefix(msg.DeclaredMIME, "audio/"):
		return &NormalizedInput{Kind: KindAudio, Data: msg.Payload, MIME: msg.DeclaredMIME}, nil
	default:
		return nil, &models.UnsupportedMediaKindError{MIME: msg.DeclaredMIME}
	}
}

// normalizeImage decodes the attachment, downscales it so the longest edge
// fits MaxImageEdge, and re-encodes as JPEG. Smaller images are never
// upscaled.
func (n *Normalizer) normalizeImage(payload []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, &models.UnsupportedMediaKindError{MIME: fmt.Sprintf("image (undecodable: %v)", err)}
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > longest {
		longest = h
	}

	if longest > n.cfg.MaxImageEdge {
		scale := float64(n.cfg.MaxImageEdge) / float64(longest)
		nw := int(float64(w) * scale)
		nh := int(float64(h) * scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		n.logger.Debug("downscaling image",
			applogger.String("format", format),
			applogger.Int("from_w", w), applogger.Int("from_h", h),
			applogger.Int("to_w", nw), applogger.Int("to_h", nh))
		img = resizeBilinear(img, nw, nh)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.cfg.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// resizeBilinear samples the source with bilinear interpolation. Good enough
// for chart screenshots headed to a vision model.
func resizeBilinear(src image.Image, w, h int) image.Image {
	sb := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	sx := float64(sb.Dx()) / float64(w)
	sy := float64(sb.Dy()) / float64(h)

	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		y0 := int(fy)
		if y0 < 0 {
			y0 = 0
		}
		y1 := y0 + 1
		if y1 >= sb.Dy() {
			y1 = sb.Dy() - 1
		}
		wy := fy - float64(y0)
		if wy < 0 {
			wy = 0
		}

		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			x0 := int(fx)
			if x0 < 0 {
				x0 = 0
			}
			x1 := x0 + 1
			if x1 >= sb.Dx() {
				x1 = sb.Dx() - 1
			}
			wx := fx - float64(x0)
			if wx < 0 {
				wx = 0
			}

			r00, g00, b00, a00 := src.At(sb.Min.X+x0, sb.Min.Y+y0).RGBA()
			r10, g10, b10, a10 := src.At(sb.Min.X+x1, sb.Min.Y+y0).RGBA()
			r01, g01, b01, a01 := src.At(sb.Min.X+x0, sb.Min.Y+y1).RGBA()
			r11, g11, b11, a11 := src.At(sb.Min.X+x1, sb.Min.Y+y1).RGBA()

			lerp := func(v00, v10, v01, v11 uint32) uint8 {
				top := float64(v00)*(1-wx) + float64(v10)*wx
				bot := float64(v01)*(1-wx) + float64(v11)*wx
				return uint8(uint32(top*(1-wy)+bot*wy) >> 8)
			}

			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = lerp(r00, r10, r01, r11)
			dst.Pix[i+1] = lerp(g00, g10, g01, g11)
			dst.Pix[i+2] = lerp(b00, b10, b01, b11)
			dst.Pix[i+3] = lerp(a00, a10, a01, a11)
		}
	}
	return dst
}
