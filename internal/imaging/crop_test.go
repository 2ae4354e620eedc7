package imaging

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func TestParseResolution(t *testing.T) {
	width, height, err := ParseResolution("1024x1400")
	require.NoError(t, err)
	assert.Equal(t, 1024, width)
	assert.Equal(t, 1400, height)

	_, _, err = ParseResolution("1024")
	assert.Error(t, err)

	_, _, err = ParseResolution("widexhigh")
	assert.Error(t, err)
}

func TestCenterCropTallerSource(t *testing.T) {
	data := pngBytes(t, 1024, 1792)

	cropped, err := CenterCrop(data, "1024x1400")
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(cropped))
	require.NoError(t, err)
	assert.Equal(t, 1024, img.Bounds().Dx())
	assert.Equal(t, 1400, img.Bounds().Dy())
}

func TestCenterCropWiderSource(t *testing.T) {
	data := pngBytes(t, 1792, 1024)

	cropped, err := CenterCrop(data, "1792x1400")
	require.NoError(t, err)

	// The source is wider than the target ratio, so the height is preserved
	// and the width shrinks to match.
	img, _, err := image.Decode(bytes.NewReader(cropped))
	require.NoError(t, err)
	assert.Equal(t, 1024, img.Bounds().Dy())
	wantDx := float64(1792) / float64(1400) * 1024
	assert.Equal(t, int(wantDx), img.Bounds().Dx())
}

func TestCenterCropRejectsGarbage(t *testing.T) {
	_, err := CenterCrop([]byte("not an image"), "1024x1400")
	assert.Error(t, err)
}
