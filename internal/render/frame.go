package render

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
)

// Frame is a float RGB pixel buffer with (0,0) at the top left.
type Frame struct {
	W, H int
	pix  []Real // flat: (y*W + x)*3 + c
}

func NewFrame(w, h int) *Frame {
	if w <= 0 || h <= 0 {
		panic("frame dimensions must be positive")
	}
	return &Frame{W: w, H: h, pix: make([]Real, w*h*3)}
}

func (f *Frame) idx(x, y int) int { return (y*f.W + x) * 3 }

func (f *Frame) SetPixel(x, y int, c [3]Real) {
	i := f.idx(x, y)
	f.pix[i], f.pix[i+1], f.pix[i+2] = c[0], c[1], c[2]
}

func (f *Frame) GetPixel(x, y int) [3]Real {
	i := f.idx(x, y)
	return [3]Real{f.pix[i], f.pix[i+1], f.pix[i+2]}
}

// WritePNG encodes the frame as a lossless 16-bit PNG. Values are clamped
// to [0,1] and gamma-mapped (gamma 1 leaves them linear).
func (f *Frame) WritePNG(path string, gamma Real) error {
	toU16 := func(v Real) uint16 {
		if !isFinite(v) {
			v = 0
		}
		n := clamp01(v)
		if gamma != 1 && gamma > 0 {
			n = math.Pow(n, 1.0/gamma)
		}
		x := math.Round(n * 65535.0)
		if x < 0 {
			return 0
		}
		if x > 65535 {
			return 65535
		}
		return uint16(x)
	}

	img := image.NewNRGBA64(image.Rect(0, 0, f.W, f.H))
	const pxBytes = 8 // 4 channels * 2 bytes/channel
	for y := 0; y < f.H; y++ {
		rowOff := y * img.Stride
		for x := 0; x < f.W; x++ {
			c := f.GetPixel(x, y)
			r := toU16(c[0])
			g := toU16(c[1])
			b := toU16(c[2])
			a := uint16(0xFFFF)

			p := rowOff + x*pxBytes
			// NRGBA64 stores big-endian uint16 per channel: R, G, B, A.
			img.Pix[p+0] = uint8(r >> 8)
			img.Pix[p+1] = uint8(r)
			img.Pix[p+2] = uint8(g >> 8)
			img.Pix[p+3] = uint8(g)
			img.Pix[p+4] = uint8(b >> 8)
			img.Pix[p+5] = uint8(b)
			img.Pix[p+6] = uint8(a >> 8)
			img.Pix[p+7] = uint8(a)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
