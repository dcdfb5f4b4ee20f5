// Package media prepares uploaded receipt files for OCR submission:
// decode, downscale oversized photos and re-encode as compact JPEG.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	"go.uber.org/zap"
)

const (
	// maxWidth is the widest image the OCR service is sent. Phone photos
	// routinely exceed this and only add payload size, not accuracy.
	maxWidth = 2000

	jpegQuality = 85
)

// ErrUnsupportedImage indicates the bytes could not be decoded as a
// raster image (or rendered from a PDF). Fatal for that receipt.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Normalizer decodes, downsizes and re-encodes receipt uploads.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a Normalizer. A nil logger disables logging.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize decodes data, scales it down to at most maxWidth pixels wide
// (preserving aspect ratio) and re-encodes it as JPEG. PDF uploads are
// rasterized from their first page; HEIC photos are decoded directly.
func (n *Normalizer) Normalize(data []byte, filename string) ([]byte, error) {
	img, err := n.decode(data, filename)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", filename, err, ErrUnsupportedImage)
	}

	width := img.Bounds().Dx()
	if width > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
		n.logger.Debug("downscaled receipt image",
			zap.String("file", filename),
			zap.Int("original_width", width),
			zap.Int("width", maxWidth))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", filename, err)
	}
	return buf.Bytes(), nil
}

func (n *Normalizer) decode(data []byte, filename string) (image.Image, error) {
	switch {
	case isPDF(data, filename):
		return renderPDFPage(data)
	case isHEIC(data, filename):
		return heic.Decode(bytes.NewReader(data))
	default:
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, err
		}
		return img, nil
	}
}

// renderPDFPage rasterizes the first page. Receipts are single-page in
// practice; later pages are terms and copies.
func renderPDFPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("render pdf page: %w", err)
	}
	return img, nil
}

func isPDF(data []byte, filename string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// isHEIC sniffs the ISO base media ftyp box brands used by iPhone photos.
func isHEIC(data []byte, filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".heic" || ext == ".heif" {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "heix", "mif1", "msf1":
		return true
	}
	return false
}
