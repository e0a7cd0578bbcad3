package redaction

import (
	"image"
	"image/color"
	"testing"
)

// testImage builds a white image with black "text" pixels in the
// target region so every style visibly changes it.
func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x%3 == 0 && y >= 20 && y < 40 {
				img.SetRGBA(x, y, color.RGBA{A: 0xff})
			} else {
				img.SetRGBA(x, y, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
			}
		}
	}
	return img
}

func regionChanged(before, after *image.RGBA, rect image.Rectangle) bool {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if before.RGBAAt(x, y) != after.RGBAAt(x, y) {
				return true
			}
		}
	}
	return false
}

func TestRedactRegions_AllStyles(t *testing.T) {
	region := image.Rect(10, 20, 90, 40)

	for _, style := range []Style{StyleSolid, StyleBlur, StylePixelate, StylePattern} {
		t.Run(string(style), func(t *testing.T) {
			r, err := NewImageRedactor(style)
			if err != nil {
				t.Fatalf("NewImageRedactor(%v) error = %v", style, err)
			}

			src := testImage(100, 60)
			out := r.RedactRegions(src, []image.Rectangle{region})

			if !regionChanged(src, out, region) {
				t.Errorf("style %v left region untouched", style)
			}

			// Pixels well outside the padded region stay intact.
			outside := image.Rect(0, 0, 5, 10)
			if regionChanged(src, out, outside) {
				t.Errorf("style %v modified pixels outside the region", style)
			}
		})
	}
}

func TestRedactRegions_SolidIsOpaque(t *testing.T) {
	r, err := NewImageRedactor(StyleSolid)
	if err != nil {
		t.Fatal(err)
	}

	region := image.Rect(10, 20, 90, 40)
	out := r.RedactRegions(testImage(100, 60), []image.Rectangle{region})

	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			c := out.RGBAAt(x, y)
			if c.R != 0 || c.G != 0 || c.B != 0 {
				t.Fatalf("pixel (%d,%d) = %v, want black", x, y, c)
			}
		}
	}
}

func TestRedactRegions_PaddingApplied(t *testing.T) {
	r, err := NewImageRedactor(StyleSolid)
	if err != nil {
		t.Fatal(err)
	}

	region := image.Rect(40, 25, 60, 35)
	out := r.RedactRegions(testImage(100, 60), []image.Rectangle{region})

	// One pixel above the box falls inside the padding.
	c := out.RGBAAt(50, region.Min.Y-1)
	if c.R != 0 || c.G != 0 || c.B != 0 {
		t.Errorf("padded pixel = %v, want black", c)
	}
}

func TestRedactRegions_ClippedToBounds(t *testing.T) {
	r, err := NewImageRedactor(StyleSolid)
	if err != nil {
		t.Fatal(err)
	}

	// Region extends past the image; must not panic.
	out := r.RedactRegions(testImage(50, 50), []image.Rectangle{image.Rect(40, 40, 200, 200)})
	if out.Bounds() != image.Rect(0, 0, 50, 50) {
		t.Errorf("output bounds = %v", out.Bounds())
	}
}

func TestRedactRegions_OriginalUntouched(t *testing.T) {
	r, err := NewImageRedactor(StyleSolid)
	if err != nil {
		t.Fatal(err)
	}

	src := testImage(100, 60)
	before := testImage(100, 60)
	_ = r.RedactRegions(src, []image.Rectangle{image.Rect(10, 20, 90, 40)})

	if regionChanged(before, src, src.Bounds()) {
		t.Error("RedactRegions() mutated the source image")
	}
}

func TestNewImageRedactor_UnknownStyle(t *testing.T) {
	if _, err := NewImageRedactor("mosaic"); err == nil {
		t.Error("NewImageRedactor() accepted unknown style")
	}
}

func TestNewImageRedactor_DefaultStyle(t *testing.T) {
	r, err := NewImageRedactor("")
	if err != nil {
		t.Fatal(err)
	}
	if r.Style() != StyleSolid {
		t.Errorf("Style() = %v, want %v", r.Style(), StyleSolid)
	}
}
