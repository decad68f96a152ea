package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"TradeMynd/internal/domain/models"
	applogger "TradeMynd/pkg/logger"
)

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	lg, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewNormalizer(Config{MaxBytes: 8 << 20, MaxImageEdge: 1024, JPEGQuality: 85}, lg)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeTextTrims(t *testing.T) {
	n := testNormalizer(t)
	out, err := n.Normalize(&models.InboundMessage{
		UserID:     "u1",
		InputType:  models.InputText,
		Text:       "  long gold at 2300  ",
		ReceivedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != KindText || out.Text != "long gold at 2300" {
		t.Fatalf("got kind=%s text=%q", out.Kind, out.Text)
	}
}

func TestNormalizeEmptyTextFails(t *testing.T) {
	n := testNormalizer(t)
	_, err := n.Normalize(&models.InboundMessage{InputType: models.InputText, Text: "   "})
	var ef *models.ExtractionFailedError
	if !errors.As(err, &ef) {
		t.Fatalf("expected ExtractionFailedError, got %v", err)
	}
}

func TestNormalizeRejectsOversized(t *testing.T) {
	lg, _ := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	n := NewNormalizer(Config{MaxBytes: 10, MaxImageEdge: 1024, JPEGQuality: 85}, lg)
	_, err := n.Normalize(&models.InboundMessage{
		InputType:    models.InputScreenshot,
		Payload:      make([]byte, 11),
		DeclaredMIME: "image/png",
	})
	var tooLarge *models.MediaTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected MediaTooLargeError, got %v", err)
	}
	if tooLarge.Size != 11 || tooLarge.Limit != 10 {
		t.Fatalf("got size=%d limit=%d", tooLarge.Size, tooLarge.Limit)
	}
}

func TestNormalizeRejectsUnknownMIME(t *testing.T) {
	n := testNormalizer(t)
	_, err := n.Normalize(&models.InboundMessage{
		InputType:    models.InputScreenshot,
		Payload:      []byte{0x01},
		DeclaredMIME: "application/pdf",
	})
	var unsupported *models.UnsupportedMediaKindError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedMediaKindError, got %v", err)
	}
}

func TestNormalizeDownscalesLargeImage(t *testing.T) {
	n := testNormalizer(t)
	out, err := n.Normalize(&models.InboundMessage{
		InputType:    models.InputScreenshot,
		Payload:      pngBytes(t, 2048, 512),
		DeclaredMIME: "image/png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != KindImage || out.MIME != "image/jpeg" {
		t.Fatalf("got kind=%s mime=%s", out.Kind, out.MIME)
	}
	img, _, err := image.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode normalized image: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 1024 || b.Dy() != 256 {
		t.Fatalf("expected 1024x256, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeKeepsSmallImageSize(t *testing.T) {
	n := testNormalizer(t)
	out, err := n.Normalize(&models.InboundMessage{
		InputType:    models.InputScreenshot,
		Payload:      pngBytes(t, 320, 200),
		DeclaredMIME: "image/png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode normalized image: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 320 || b.Dy() != 200 {
		t.Fatalf("expected 320x200, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeAudioPassthrough(t *testing.T) {
	n := testNormalizer(t)
	payload := []byte{0x4f, 0x67, 0x67, 0x53}
	out, err := n.Normalize(&models.InboundMessage{
		InputType:    models.InputVoice,
		Payload:      payload,
		DeclaredMIME: "audio/ogg",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != KindAudio || !bytes.Equal(out.Data, payload) || out.MIME != "audio/ogg" {
		t.Fatalf("unexpected normalized audio: kind=%s mime=%s", out.Kind, out.MIME)
	}
}
