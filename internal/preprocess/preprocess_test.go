package preprocess_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/Brownie44l1/leaf-api/internal/preprocess"
	"github.com/Brownie44l1/leaf-api/pkg/xerr"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestProcessShapeAndValues(t *testing.T) {
	p := preprocess.New(128, 128, 1)
	raw := encodePNG(t, solid(300, 200, color.NRGBA{R: 40, G: 160, B: 60, A: 255}))

	tensor, err := p.Process(raw)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []int64{1, 128, 128, 3}
	for i := range want {
		if tensor.Shape[i] != want[i] {
			t.Fatalf("shape: got %v, want %v", tensor.Shape, want)
		}
	}
	if len(tensor.Data) != 128*128*3 {
		t.Fatalf("data length: got %d", len(tensor.Data))
	}
	// NHWC: first pixel's three channels are adjacent.
	if tensor.Data[0] != 40 || tensor.Data[1] != 160 || tensor.Data[2] != 60 {
		t.Errorf("first pixel: got %v", tensor.Data[:3])
	}
	last := tensor.Data[len(tensor.Data)-3:]
	if last[0] != 40 || last[1] != 160 || last[2] != 60 {
		t.Errorf("last pixel: got %v", last)
	}
}

func TestProcessScale(t *testing.T) {
	p := preprocess.New(4, 4, 1.0/255)
	tensor, err := p.Process(encodePNG(t, solid(8, 8, color.White)))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range tensor.Data {
		if v < 0.999 || v > 1.001 {
			t.Fatalf("value %d: got %v, want 1", i, v)
		}
	}
}

func TestProcessForcesRGB(t *testing.T) {
	p := preprocess.New(16, 16, 1)

	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range gray.Pix {
		gray.Pix[i] = 90
	}

	palette := image.NewPaletted(image.Rect(0, 0, 10, 10), color.Palette{color.RGBA{R: 200, G: 10, B: 10, A: 255}})

	transparent := solid(10, 10, color.NRGBA{R: 0, G: 0, B: 0, A: 0})

	tests := []struct {
		name string
		img  image.Image
		want [3]float32
	}{
		{"greyscale", gray, [3]float32{90, 90, 90}},
		{"palette", palette, [3]float32{200, 10, 10}},
		{"transparent composited over white", transparent, [3]float32{255, 255, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor, err := p.Process(encodePNG(t, tt.img))
			if err != nil {
				t.Fatal(err)
			}
			got := [3]float32{tensor.Data[0], tensor.Data[1], tensor.Data[2]}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(64, 48, color.NRGBA{R: 30, G: 140, B: 50, A: 255}), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}

	tensor, err := preprocess.New(128, 128, 1).Process(buf.Bytes())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(tensor.Data) != 128*128*3 {
		t.Errorf("data length: got %d", len(tensor.Data))
	}
}

func TestProcessDeterministic(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 97, 61))
	for y := 0; y < 61; y++ {
		for x := 0; x < 97; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 2), G: uint8(y * 4), B: uint8(x + y), A: 255})
		}
	}
	raw := encodePNG(t, img)
	p := preprocess.New(128, 128, 1)

	a, err := p.Process(raw)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Process(raw)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("value %d differs: %v vs %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestProcessRejectsCorruptPayload(t *testing.T) {
	p := preprocess.New(128, 128, 1)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"text", []byte("this is definitely not an image")},
		{"truncated png", encodePNG(t, solid(8, 8, color.Black))[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Process(tt.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if xerr.KindOf(err) != xerr.KindDecode {
				t.Errorf("kind: got %v, want decode", xerr.KindOf(err))
			}
		})
	}
}

// oversizedPNG returns a small, valid-looking PNG whose IHDR declares
// width x height pixels.
func oversizedPNG(t *testing.T, width, height uint32) []byte {
	t.Helper()
	raw := encodePNG(t, image.NewGray(image.Rect(0, 0, 1, 1)))
	// 8-byte signature, then IHDR: length(4) type(4) data(13) crc(4).
	binary.BigEndian.PutUint32(raw[16:20], width)
	binary.BigEndian.PutUint32(raw[20:24], height)
	binary.BigEndian.PutUint32(raw[29:33], crc32.ChecksumIEEE(raw[12:29]))
	return raw
}

func TestProcessRejectsOversizedImage(t *testing.T) {
	tests := []struct {
		name string
		p    *preprocess.Preprocessor
		raw  []byte
	}{
		{"declared dimensions over default", preprocess.New(128, 128, 1), oversizedPNG(t, 40000, 40000)},
		{"real image over configured limit", preprocess.New(16, 16, 1).WithMaxPixels(1000), encodePNG(t, image.NewGray(image.Rect(0, 0, 100, 100)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Process(tt.raw)
			if xerr.KindOf(err) != xerr.KindDecode {
				t.Fatalf("got %v, want decode error", err)
			}
			if xerr.HTTPStatus(err) != 400 {
				t.Errorf("status: got %d, want 400", xerr.HTTPStatus(err))
			}
		})
	}

	p := preprocess.New(16, 16, 1).WithMaxPixels(10000)
	if _, err := p.Process(encodePNG(t, image.NewGray(image.Rect(0, 0, 100, 100)))); err != nil {
		t.Errorf("image at the limit: %v", err)
	}
}

func TestToRGBNormalizesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 15, 25))
	out := preprocess.ToRGB(src)
	if out.Bounds() != image.Rect(0, 0, 10, 20) {
		t.Errorf("bounds: got %v", out.Bounds())
	}
}

func TestShape(t *testing.T) {
	got := preprocess.New(224, 160, 1).Shape()
	if got[0] != 1 || got[1] != 160 || got[2] != 224 || got[3] != 3 {
		t.Errorf("got %v", got)
	}
}
