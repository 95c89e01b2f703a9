// Package media provides image decoding, bounded resizing and data-URI
// transcoding for thumbnails embedded in exported documents.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/rmaffei/rotafoto/internal/errors"
)

// jpegQuality matches the quality used for every JPEG we re-encode.
const jpegQuality = 85

// DecodeDataURI splits a base64 data URI into raw bytes and MIME type.
// A bare base64 payload without the data: prefix is accepted as well,
// in which case the MIME type is sniffed from the decoded bytes.
func DecodeDataURI(uri string) ([]byte, string, error) {
	mime := ""
	payload := uri
	if strings.HasPrefix(uri, "data:") {
		meta, rest, ok := strings.Cut(uri[len("data:"):], ",")
		if !ok {
			return nil, "", errors.New(errors.ErrDecodeFailed, "malformed data URI")
		}
		mime = strings.TrimSuffix(meta, ";base64")
		payload = rest
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrDecodeFailed, "decoding base64 payload", err)
	}
	if mime == "" {
		if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			mime = "image/" + format
		} else {
			mime = "application/octet-stream"
		}
	}
	return data, mime, nil
}

// EncodeDataURI wraps raw bytes into a base64 data URI.
func EncodeDataURI(data []byte, mime string) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

// FitWithin computes the resized dimensions for a w×h image bounded by
// maxW×maxH: a landscape image is scaled by the width ratio, a portrait
// or square one by the height ratio. Aspect ratio is always preserved
// and images inside the bounds are never upscaled.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	if w > h {
		if w > maxW {
			return maxW, int(float64(h)*float64(maxW)/float64(w) + 0.5)
		}
	} else {
		if h > maxH {
			return int(float64(w)*float64(maxH)/float64(h) + 0.5), maxH
		}
	}
	return w, h
}

// Resize decodes a data URI, proportionally resizes the image within
// maxW×maxH and re-encodes it as a data URI. The source encoding is
// kept when Go can write it back; formats with no encoder (webp, tiff)
// come back as JPEG. An undecodable source is an error.
func Resize(dataURI string, maxW, maxH int) (string, error) {
	data, _, err := DecodeDataURI(dataURI)
	if err != nil {
		return "", err
	}
	out, mime, err := ResizeBytes(data, maxW, maxH)
	if err != nil {
		return "", err
	}
	return EncodeDataURI(out, mime), nil
}

// ResizeBytes is the byte-level variant of Resize: it returns the
// re-encoded image bytes and their MIME type.
func ResizeBytes(data []byte, maxW, maxH int) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrDecodeFailed, "decoding image", err)
	}

	bounds := img.Bounds()
	w, h := FitWithin(bounds.Dx(), bounds.Dy(), maxW, maxH)
	if w != bounds.Dx() || h != bounds.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	return encode(img, format)
}

// ToJPEG decodes any supported image and re-encodes it as JPEG. Bytes
// that already are JPEG pass through untouched.
func ToJPEG(data []byte) ([]byte, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrDecodeFailed, "decoding image", err)
	}
	if format == "jpeg" {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrDecodeFailed, "decoding image", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "encoding jpeg", err)
	}
	return buf.Bytes(), nil
}

// Dimensions reports the pixel size of an encoded image.
func Dimensions(data []byte) (w, h int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, errors.Wrap(errors.ErrDecodeFailed, "decoding image", err)
	}
	return cfg.Width, cfg.Height, nil
}

// encode writes img in the requested source format, falling back to
// JPEG for formats Go cannot encode.
func encode(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", errors.Wrap(errors.ErrInternal, "encoding png", err)
		}
		return buf.Bytes(), "image/png", nil
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, "", errors.Wrap(errors.ErrInternal, "encoding gif", err)
		}
		return buf.Bytes(), "image/gif", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", errors.Wrap(errors.ErrInternal, "encoding jpeg", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}
