package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"strconv"
	"strings"
)

// ParseResolution parses a "WIDTHxHEIGHT" string.
func ParseResolution(resolution string) (int, int, error) {
	parts := strings.Split(resolution, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid resolution %q", resolution)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution width %q: %w", resolution, err)
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution height %q: %w", resolution, err)
	}
	return width, height, nil
}

// CenterCrop crops the image to the target aspect ratio, preserving whichever
// dimension is limiting, and re-encodes it as PNG. The crop area is centered.
func CenterCrop(data []byte, resolution string) ([]byte, error) {
	targetWidth, targetHeight, err := ParseResolution(resolution)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}

	bounds := img.Bounds()
	originalWidth, originalHeight := bounds.Dx(), bounds.Dy()

	targetRatio := float64(targetWidth) / float64(targetHeight)
	originalRatio := float64(originalWidth) / float64(originalHeight)

	var newWidth, newHeight int
	if originalRatio > targetRatio {
		newHeight = originalHeight
		newWidth = int(targetRatio * float64(newHeight))
	} else {
		newWidth = originalWidth
		newHeight = int(float64(newWidth) / targetRatio)
	}

	left := bounds.Min.X + (originalWidth-newWidth)/2
	top := bounds.Min.Y + (originalHeight-newHeight)/2

	cropped := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.Draw(cropped, cropped.Bounds(), img, image.Pt(left, top), draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("error encoding cropped image: %w", err)
	}
	return buf.Bytes(), nil
}
