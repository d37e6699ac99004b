package tile

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"strings"
)

var (
	errNotDataURI = errors.New("tile: not a PNG data URI")
	errNotImage   = errors.New("tile: not an image data URI")
)

// Parse returns the media type and raw bytes carried by s, which can be any
// base64 encoded image data URI.
func Parse(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, errNotImage
	}
	mediaType, data, ok := strings.Cut(rest, ";base64,")
	if !ok || !strings.HasPrefix(mediaType, "image/") || len(mediaType) == len("image/") {
		return "", nil, errNotImage
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", nil, err
	}
	return mediaType, b, nil
}

// Extension returns a file extension for the image media type mediaType,
// such as ".png" or ".svg" for "image/svg+xml".
func Extension(mediaType string) string {
	sub := strings.TrimPrefix(mediaType, "image/")
	sub, _, _ = strings.Cut(sub, "+")
	return "." + sub
}

// Bytes returns the raw PNG bytes carried by the data URI s.
func Bytes(s string) ([]byte, error) {
	if !strings.HasPrefix(s, prefix) {
		return nil, errNotDataURI
	}
	return base64.StdEncoding.DecodeString(s[len(prefix):])
}

// Decode reads a tile from the data URI s and returns it as an image.Image.
func Decode(s string) (image.Image, error) {
	b, err := Bytes(s)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(b))
}

// DecodeConfig returns the color model and dimensions of a tile without
// decoding the entire tile.
func DecodeConfig(s string) (image.Config, error) {
	b, err := Bytes(s)
	if err != nil {
		return image.Config{}, err
	}
	return png.DecodeConfig(bytes.NewReader(b))
}
