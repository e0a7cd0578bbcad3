package redaction

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Style selects how redacted regions are painted.
type Style string

const (
	// StyleSolid fills the region with an opaque black box.
	StyleSolid Style = "solid"
	// StyleBlur applies a repeated box blur, approximating Gaussian.
	StyleBlur Style = "blur"
	// StylePixelate replaces the region with coarse blocks.
	StylePixelate Style = "pixelate"
	// StylePattern fills the region with diagonal hatching.
	StylePattern Style = "pattern"
)

// Region padding in pixels applied around each detected bounding box,
// so anti-aliased glyph edges do not survive redaction.
const regionPadding = 2

const (
	blurRadius    = 15
	blurPasses    = 3
	pixelateBlock = 12
	hatchSpacing  = 8
)

var (
	patternBackground = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	patternForeground = color.RGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}
)

// ImageRedactor paints sensitive regions out of screenshots. The style
// changes only the appearance of a redacted region, never its extent.
type ImageRedactor struct {
	style Style
}

// NewImageRedactor creates an ImageRedactor with the given style.
// An empty style defaults to StyleSolid.
func NewImageRedactor(style Style) (*ImageRedactor, error) {
	switch style {
	case "":
		style = StyleSolid
	case StyleSolid, StyleBlur, StylePixelate, StylePattern:
	default:
		return nil, fmt.Errorf("unknown redaction style: %s", style)
	}
	return &ImageRedactor{style: style}, nil
}

// Style returns the configured style.
func (r *ImageRedactor) Style() Style { return r.style }

// RedactRegions returns a copy of img with every region painted over.
// Regions are expanded by the standard padding and clipped to the
// image bounds; empty regions are skipped.
func (r *ImageRedactor) RedactRegions(img image.Image, regions []image.Rectangle) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	for _, region := range regions {
		rect := pad(region, regionPadding).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		switch r.style {
		case StyleBlur:
			blurRegion(out, rect)
		case StylePixelate:
			pixelateRegion(out, rect)
		case StylePattern:
			hatchRegion(out, rect)
		default:
			draw.Draw(out, rect, image.NewUniform(color.Black), image.Point{}, draw.Src)
		}
	}
	return out
}

// pad expands rect by p pixels on every side.
func pad(rect image.Rectangle, p int) image.Rectangle {
	return image.Rect(rect.Min.X-p, rect.Min.Y-p, rect.Max.X+p, rect.Max.Y+p)
}

// blurRegion applies repeated horizontal+vertical box blurs in place.
func blurRegion(img *image.RGBA, rect image.Rectangle) {
	for pass := 0; pass < blurPasses; pass++ {
		boxBlurHorizontal(img, rect, blurRadius)
		boxBlurVertical(img, rect, blurRadius)
	}
}

func boxBlurHorizontal(img *image.RGBA, rect image.Rectangle, radius int) {
	row := make([]color.RGBA, rect.Dx())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			var rs, gs, bs, n uint32
			for dx := -radius; dx <= radius; dx++ {
				sx := x + dx
				if sx < rect.Min.X || sx >= rect.Max.X {
					continue
				}
				c := img.RGBAAt(sx, y)
				rs += uint32(c.R)
				gs += uint32(c.G)
				bs += uint32(c.B)
				n++
			}
			row[x-rect.Min.X] = color.RGBA{
				R: uint8(rs / n),
				G: uint8(gs / n),
				B: uint8(bs / n),
				A: 0xff,
			}
		}
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, row[x-rect.Min.X])
		}
	}
}

func boxBlurVertical(img *image.RGBA, rect image.Rectangle, radius int) {
	col := make([]color.RGBA, rect.Dy())
	for x := rect.Min.X; x < rect.Max.X; x++ {
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			var rs, gs, bs, n uint32
			for dy := -radius; dy <= radius; dy++ {
				sy := y + dy
				if sy < rect.Min.Y || sy >= rect.Max.Y {
					continue
				}
				c := img.RGBAAt(x, sy)
				rs += uint32(c.R)
				gs += uint32(c.G)
				bs += uint32(c.B)
				n++
			}
			col[y-rect.Min.Y] = color.RGBA{
				R: uint8(rs / n),
				G: uint8(gs / n),
				B: uint8(bs / n),
				A: 0xff,
			}
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			img.SetRGBA(x, y, col[y-rect.Min.Y])
		}
	}
}

// pixelateRegion downscales the region to coarse blocks and scales it
// back with nearest-neighbor, destroying glyph detail.
func pixelateRegion(img *image.RGBA, rect image.Rectangle) {
	smallW := rect.Dx() / pixelateBlock
	if smallW < 1 {
		smallW = 1
	}
	smallH := rect.Dy() / pixelateBlock
	if smallH < 1 {
		smallH = 1
	}

	small := image.NewRGBA(image.Rect(0, 0, smallW, smallH))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), img, rect, xdraw.Src, nil)
	xdraw.NearestNeighbor.Scale(img, rect, small, small.Bounds(), xdraw.Src, nil)
}

// hatchRegion fills the region with a dark background and lighter
// diagonal lines.
func hatchRegion(img *image.RGBA, rect image.Rectangle) {
	draw.Draw(img, rect, image.NewUniform(patternBackground), image.Point{}, draw.Src)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if (x+y)%hatchSpacing == 0 {
				img.SetRGBA(x, y, patternForeground)
			}
		}
	}
}
