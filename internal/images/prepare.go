package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Prepared is an image ready to be inlined into a vision request
type Prepared struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
	Resized  bool
}

// Prepare downscales images whose longest side exceeds maxDimension and
// re-encodes them as JPEG. Images Go cannot decode are passed through with a
// sniffed content type so the provider can still try them.
func Prepare(data []byte, maxDimension int) (*Prepared, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return &Prepared{Data: data, MIMEType: http.DetectContentType(data)}, nil
	}

	prepared := &Prepared{
		Data:     data,
		MIMEType: "image/" + format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}

	if maxDimension <= 0 || (cfg.Width <= maxDimension && cfg.Height <= maxDimension) {
		return prepared, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	width, height := scaledSize(cfg.Width, cfg.Height, maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return &Prepared{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Width:    width,
		Height:   height,
		Resized:  true,
	}, nil
}

func scaledSize(width, height, maxDimension int) (int, int) {
	if width >= height {
		h := height * maxDimension / width
		if h < 1 {
			h = 1
		}
		return maxDimension, h
	}
	w := width * maxDimension / height
	if w < 1 {
		w = 1
	}
	return w, maxDimension
}
