package extract

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"TradeMynd/internal/service/media"
)

func textInput(s string) *media.NormalizedInput {
	return &media.NormalizedInput{Kind: media.KindText, Text: s, MIME: "text/plain"}
}

func TestFingerprintCollapsesCaseAndSpacing(t *testing.T) {
	a := Fingerprint(textInput("Long  GOLD\t2301.5   win"))
	b := Fingerprint(textInput("long gold 2301.5 win"))
	if a != b {
		t.Fatalf("case/spacing variants must share a key: %s vs %s", a, b)
	}

	c := Fingerprint(textInput("short gold 2301.5 win"))
	if c == a {
		t.Fatal("different content must not collide")
	}
}

func TestFingerprintSeparatesKinds(t *testing.T) {
	audio := &media.NormalizedInput{Kind: media.KindAudio, Data: []byte("payload"), MIME: "audio/ogg"}
	text := textInput("payload")
	if Fingerprint(audio) == Fingerprint(text) {
		t.Fatal("same bytes under different kinds must not collide")
	}
}

func halvesJPEG(t *testing.T, w, h int, leftBright bool, quality int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bright := x < w/2 == leftBright
			if bright {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestImageFingerprintSurvivesReencode(t *testing.T) {
	a := Fingerprint(&media.NormalizedInput{Kind: media.KindImage, Data: halvesJPEG(t, 320, 160, true, 85), MIME: "image/jpeg"})
	b := Fingerprint(&media.NormalizedInput{Kind: media.KindImage, Data: halvesJPEG(t, 320, 160, true, 55), MIME: "image/jpeg"})
	if a != b {
		t.Fatalf("re-encoded capture of the same content must hit the same key: %s vs %s", a, b)
	}

	// a rescaled capture of the same content also maps to the same key
	c := Fingerprint(&media.NormalizedInput{Kind: media.KindImage, Data: halvesJPEG(t, 640, 320, true, 85), MIME: "image/jpeg"})
	if c != a {
		t.Fatalf("rescaled capture must hit the same key: %s vs %s", c, a)
	}

	d := Fingerprint(&media.NormalizedInput{Kind: media.KindImage, Data: halvesJPEG(t, 320, 160, false, 85), MIME: "image/jpeg"})
	if d == a {
		t.Fatal("mirrored content must not collide")
	}
}
