package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"testing"
)

// JPEGBytes encodes a small solid-shade JPEG. The shade varies with seed so
// page fixtures are distinguishable.
func JPEGBytes(t testing.TB, seed int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 32, 44))
	shade := uint8(40 + (seed*37)%180)
	for y := 0; y < 44; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode fixture jpeg: %v", err)
	}
	return buf.Bytes()
}

// WriteJPEG writes a JPEG fixture file.
func WriteJPEG(t testing.TB, path string, seed int) {
	t.Helper()
	if err := os.WriteFile(path, JPEGBytes(t, seed), 0644); err != nil {
		t.Fatalf("write fixture jpeg %s: %v", path, err)
	}
}
