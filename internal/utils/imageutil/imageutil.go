package imageutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/anthonynsimon/bild/transform"
	_ "golang.org/x/image/webp"
)

// Decode handles the formats generation providers actually return: png,
// jpeg and webp.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Thumbnail renders a jpeg preview whose longest edge is maxEdge pixels.
// Images already within bounds are re-encoded without resizing.
func Thumbnail(data []byte, maxEdge int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > maxEdge || height > maxEdge {
		if width >= height {
			height = height * maxEdge / width
			width = maxEdge
		} else {
			width = width * maxEdge / height
			height = maxEdge
		}
		img = transform.Resize(img, width, height, transform.Linear)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}
