package render

// PixelVariationAOV records how much a pixel's sample estimates disagreed
// during rendering. PostProcess normalizes the recorded variation by its
// maximum and maps it onto a blue (stable) to red (noisy) ramp, for
// visual inspection of where more samples would help.
type PixelVariationAOV struct {
	w, h      int
	variation []Real
}

func NewPixelVariationAOV(w, h int) *PixelVariationAOV {
	return &PixelVariationAOV{w: w, h: h, variation: make([]Real, w*h)}
}

// Record keeps the largest variation seen for the pixel.
func (a *PixelVariationAOV) Record(x, y int, variation Real) {
	if variation < 0 {
		variation = -variation
	}
	i := y*a.w + x
	if variation > a.variation[i] {
		a.variation[i] = variation
	}
}

// PostProcess bakes the normalized variation into a frame. With no
// variation anywhere the whole frame is blue.
func (a *PixelVariationAOV) PostProcess() *Frame {
	blue := [3]Real{0, 0, 1}
	red := [3]Real{1, 0, 0}

	maxVariation := Real(0)
	for _, v := range a.variation {
		if v > maxVariation {
			maxVariation = v
		}
	}

	frame := NewFrame(a.w, a.h)
	for y := 0; y < a.h; y++ {
		for x := 0; x < a.w; x++ {
			if maxVariation == 0 {
				frame.SetPixel(x, y, blue)
				continue
			}
			c := clamp01(a.variation[y*a.w+x] / maxVariation)
			frame.SetPixel(x, y, [3]Real{
				blue[0] + (red[0]-blue[0])*c,
				blue[1] + (red[1]-blue[1])*c,
				blue[2] + (red[2]-blue[2])*c,
			})
		}
	}
	return frame
}
