package avatar

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

// Size is the edge length of a stylised avatar.
const Size = 512

var (
	accent     = color.NRGBA{R: 242, G: 101, B: 34, A: 255}
	shadowTint = color.NRGBA{R: 12, G: 8, B: 22, A: 255}
	backdrop   = color.NRGBA{R: 6, G: 6, B: 11, A: 255}
)

var edgeKernel = [9]float64{
	-1, -1, -1,
	-1, 8, -1,
	-1, -1, -1,
}

// Stylize applies a dark cinematic grade with an accent edge glow, a
// circular vignette, and a thin accent ring. The output is a 512x512 PNG.
func Stylize(photo []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(photo), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}

	img := imaging.Fill(src, Size, Size, imaging.Center, imaging.Lanczos)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.AdjustSaturation(img, -25)
	img = imaging.AdjustBrightness(img, -15)
	img = imaging.Overlay(img, imaging.New(Size, Size, shadowTint), image.Pt(0, 0), 0.25)

	edges := imaging.Convolve3x3(img, edgeKernel, nil)
	edges = imaging.AdjustBrightness(edges, -60)
	glow := imaging.Overlay(edges, imaging.New(Size, Size, accent), image.Pt(0, 0), 0.6)
	glow = imaging.Blur(glow, 6)

	out := imaging.New(Size, Size, backdrop)
	center := float64(Size) / 2
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			d := math.Hypot(float64(x)+0.5-center, float64(y)+0.5-center) / center
			var px color.NRGBA
			if d <= 1 {
				px = img.NRGBAAt(x, y)
			} else {
				px = glow.NRGBAAt(x, y)
			}
			out.SetNRGBA(x, y, mix(out.NRGBAAt(x, y), px, vignette(d)))
		}
	}
	drawRing(out)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}

// vignette is the opacity of the portrait at normalised radius d: opaque in
// the middle, fading out toward the rim.
func vignette(d float64) float64 {
	switch {
	case d <= 0.8:
		return 1
	case d >= 1:
		return 0
	default:
		return math.Pow((1-d)/0.2, 1.8)
	}
}

func drawRing(img *image.NRGBA) {
	center := float64(Size) / 2
	for t := 0; t < 4; t++ {
		opacity := math.Max(float64(60-t*15), 10) / 255
		r := center - 0.5 - float64(t)
		for y := 0; y < Size; y++ {
			for x := 0; x < Size; x++ {
				d := math.Hypot(float64(x)+0.5-center, float64(y)+0.5-center)
				if math.Abs(d-r) < 0.5 {
					img.SetNRGBA(x, y, mix(img.NRGBAAt(x, y), accent, opacity))
				}
			}
		}
	}
}

func mix(dst, src color.NRGBA, a float64) color.NRGBA {
	blend := func(d, s uint8) uint8 {
		return uint8(math.Round(float64(d)*(1-a) + float64(s)*a))
	}
	return color.NRGBA{R: blend(dst.R, src.R), G: blend(dst.G, src.G), B: blend(dst.B, src.B), A: 255}
}
