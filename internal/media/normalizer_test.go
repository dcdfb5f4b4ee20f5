package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 10 {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.Black)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("result is not a valid JPEG: %v", err)
	}
	return img
}

func TestNormalizeDownscalesWideImages(t *testing.T) {
	n := NewNormalizer(nil)

	out, err := n.Normalize(encodePNG(t, 4000, 3000), "receipt.png")
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}

	img := decodeJPEG(t, out)
	if got := img.Bounds().Dx(); got != 2000 {
		t.Errorf("width = %d, want 2000", got)
	}
	// Aspect ratio preserved: 3000 * 2000/4000.
	if got := img.Bounds().Dy(); got != 1500 {
		t.Errorf("height = %d, want 1500", got)
	}
}

func TestNormalizeKeepsSmallImages(t *testing.T) {
	n := NewNormalizer(nil)

	out, err := n.Normalize(encodePNG(t, 1200, 1600), "receipt.png")
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}

	img := decodeJPEG(t, out)
	if got := img.Bounds().Dx(); got != 1200 {
		t.Errorf("width = %d, want 1200 (no resize at or below limit)", got)
	}
	if got := img.Bounds().Dy(); got != 1600 {
		t.Errorf("height = %d, want 1600", got)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize([]byte("not an image at all"), "receipt.jpg")
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("Normalize() error = %v, want ErrUnsupportedImage", err)
	}
}

func TestIsHEICSniffing(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		filename string
		want     bool
	}{
		{"heic extension", nil, "photo.HEIC", true},
		{"heif extension", nil, "photo.heif", true},
		{"ftyp heic brand", []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00"), "photo.bin", true},
		{"ftyp mif1 brand", []byte("\x00\x00\x00\x18ftypmif1\x00\x00\x00\x00"), "photo.bin", true},
		{"png bytes", encodePNGHeader(), "photo.bin", false},
		{"short data", []byte("abc"), "photo.bin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isHEIC(tt.data, tt.filename); got != tt.want {
				t.Errorf("isHEIC() = %v, want %v", got, tt.want)
			}
		})
	}
}

func encodePNGHeader() []byte {
	return []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
}

func TestIsPDF(t *testing.T) {
	if !isPDF([]byte("%PDF-1.7 ..."), "scan.bin") {
		t.Error("magic bytes should be detected")
	}
	if !isPDF(nil, "scan.PDF") {
		t.Error("extension should be detected")
	}
	if isPDF([]byte("plain"), "scan.jpg") {
		t.Error("plain data should not be detected as PDF")
	}
}
