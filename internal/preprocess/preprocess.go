package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Brownie44l1/leaf-api/pkg/xerr"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Channels is fixed: the classifier was trained on RGB input only.
const Channels = 3

// DefaultMaxPixels bounds decoded width x height. Compressed formats can
// declare dimensions far larger than their payload.
const DefaultMaxPixels = 40_000_000

var ErrEmptyImage = errors.New("empty image payload")

// Tensor is a single-image NHWC batch of shape (1, H, W, 3).
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Preprocessor turns encoded image bytes into the classifier's input tensor.
// Resizing uses bilinear interpolation, so identical bytes always produce an
// identical tensor.
type Preprocessor struct {
	width     int
	height    int
	scale     float32
	maxPixels int64
}

// New returns a preprocessor for a width x height input. Each 8-bit channel
// sample is multiplied by scale.
func New(width, height int, scale float32) *Preprocessor {
	if scale == 0 {
		scale = 1
	}
	return &Preprocessor{width: width, height: height, scale: scale, maxPixels: DefaultMaxPixels}
}

// WithMaxPixels replaces the decoded size limit. n <= 0 keeps the default.
func (p *Preprocessor) WithMaxPixels(n int64) *Preprocessor {
	if n > 0 {
		p.maxPixels = n
	}
	return p
}

// Shape is the tensor shape this preprocessor produces.
func (p *Preprocessor) Shape() []int64 {
	return []int64{1, int64(p.height), int64(p.width), Channels}
}

// Process decodes raw, forces RGB, resizes and lays out the tensor.
func (p *Preprocessor) Process(raw []byte) (*Tensor, error) {
	img, _, err := Decode(raw, p.maxPixels)
	if err != nil {
		return nil, err
	}
	return p.ToTensor(img), nil
}

// Decode parses any registered format (JPEG, PNG, GIF, BMP, WebP). The
// header is checked first so images over maxPixels are rejected before any
// pixel buffer is allocated.
func Decode(raw []byte, maxPixels int64) (image.Image, string, error) {
	if len(raw) == 0 {
		return nil, "", xerr.Decode(ErrEmptyImage, "invalid image")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", xerr.Decode(err, "invalid image format. supported: JPEG, PNG, GIF, BMP, WebP")
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", xerr.Decode(nil, "image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", xerr.Decode(err, "invalid image format. supported: JPEG, PNG, GIF, BMP, WebP")
	}
	return img, format, nil
}

// ToTensor converts a decoded image into the input tensor.
func (p *Preprocessor) ToTensor(img image.Image) *Tensor {
	rgb := ToRGB(img)
	resized := resize.Resize(uint(p.width), uint(p.height), rgb, resize.Bilinear)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	data := make([]float32, height*width*Channels)

	if rgba, ok := resized.(*image.RGBA); ok {
		for y := 0; y < height; y++ {
			row := rgba.Pix[y*rgba.Stride:]
			for x := 0; x < width; x++ {
				src := row[x*4:]
				dst := data[(y*width+x)*Channels:]
				dst[0] = float32(src[0]) * p.scale
				dst[1] = float32(src[1]) * p.scale
				dst[2] = float32(src[2]) * p.scale
			}
		}
	} else {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				dst := data[(y*width+x)*Channels:]
				dst[0] = float32(r>>8) * p.scale
				dst[1] = float32(g>>8) * p.scale
				dst[2] = float32(b>>8) * p.scale
			}
		}
	}

	return &Tensor{
		Shape: []int64{1, int64(height), int64(width), Channels},
		Data:  data,
	}
}

// ToRGB flattens img onto an opaque white canvas with origin (0, 0).
// Alpha is composited over white; greyscale and palette sources are expanded.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// String describes the tensor layout for logs.
func (t *Tensor) String() string {
	return fmt.Sprintf("tensor%v (%d values)", t.Shape, len(t.Data))
}
