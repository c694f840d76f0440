package preprocess

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func noisy(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func mustNew(t *testing.T, kernel string) *Preprocessor {
	t.Helper()
	p, err := New(64, 50, kernel)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRejectsSmallImages(t *testing.T) {
	p := mustNew(t, KernelBilinear)

	tests := []struct {
		w, h int
		ok   bool
	}{
		{40, 40, false},
		{49, 200, false},
		{200, 49, false},
		{50, 50, true},
		{51, 400, true},
	}
	for _, tt := range tests {
		_, err := p.Features(noisy(tt.w, tt.h, 1))
		if tt.ok && err != nil {
			t.Errorf("%dx%d: unexpected error %v", tt.w, tt.h, err)
		}
		if !tt.ok && !errors.Is(err, ErrImageTooSmall) {
			t.Errorf("%dx%d: expected ErrImageTooSmall, got %v", tt.w, tt.h, err)
		}
	}
}

func TestFeatureLengthIsFixed(t *testing.T) {
	kernels := []string{KernelNearest, KernelBilinear, KernelBicubic, KernelLanczos3, KernelCatmullRom}
	sizes := [][2]int{{64, 64}, {50, 300}, {1000, 60}, {333, 777}, {50, 50}}

	for _, k := range kernels {
		p := mustNew(t, k)
		for _, s := range sizes {
			vec, err := p.Features(noisy(s[0], s[1], int64(s[0]*s[1])))
			if err != nil {
				t.Fatalf("%s %v: %v", k, s, err)
			}
			if len(vec) != 4096 {
				t.Errorf("%s %v: len = %d, want 4096", k, s, len(vec))
			}
		}
	}
}

func TestFeaturesAreDeterministic(t *testing.T) {
	p := mustNew(t, KernelBilinear)
	img := noisy(120, 90, 42)

	a, err := p.Features(img)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Features(img)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("feature %d differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestBlackImageIsAllZero(t *testing.T) {
	p := mustNew(t, KernelBilinear)
	vec, err := p.Features(solid(64, 64, color.Black))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("feature %d = %v, want 0", i, v)
		}
	}
}

func TestFeaturesStayInByteRange(t *testing.T) {
	p := mustNew(t, KernelLanczos3)
	vec, err := p.Features(noisy(300, 200, 7))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vec {
		if v < 0 || v > 255 || v != float64(int(v)) {
			t.Fatalf("feature %d = %v, want integer in [0,255]", i, v)
		}
	}
}

func TestUniformGrayPassesThrough(t *testing.T) {
	p := mustNew(t, KernelBilinear)
	vec, err := p.Features(solid(100, 80, color.RGBA{128, 128, 128, 255}))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vec {
		if v < 127 || v > 128 {
			t.Fatalf("feature %d = %v, want ~128", i, v)
		}
	}
}

func TestRowMajorOrder(t *testing.T) {
	// Top half white, bottom half black: the first half of the vector must
	// be bright and the second half dark.
	img := solid(64, 64, color.Black)
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}
	p := mustNew(t, KernelNearest)
	vec, err := p.Features(img)
	if err != nil {
		t.Fatal(err)
	}
	if vec[0] != 255 || vec[64*31+63] != 255 {
		t.Errorf("top rows not white: %v %v", vec[0], vec[64*31+63])
	}
	if vec[64*32] != 0 || vec[4095] != 0 {
		t.Errorf("bottom rows not black: %v %v", vec[64*32], vec[4095])
	}
}

func TestLuma(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    uint8
	}{
		{0, 0, 0, 0},
		{255, 255, 255, 255},
		{255, 0, 0, 76},
		{0, 255, 0, 150},
		{0, 0, 255, 29},
		{100, 150, 200, 141},
	}
	for _, tt := range tests {
		if got := Luma(tt.r, tt.g, tt.b); got != tt.want {
			t.Errorf("Luma(%d,%d,%d) = %d, want %d", tt.r, tt.g, tt.b, got, tt.want)
		}
	}
}

func TestToRGBDropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 12, 11))
	src.SetNRGBA(10, 10, color.NRGBA{200, 100, 50, 0})
	src.SetNRGBA(11, 10, color.NRGBA{1, 2, 3, 128})

	out := ToRGB(src)
	if out.Bounds() != image.Rect(0, 0, 2, 1) {
		t.Fatalf("bounds = %v, want origin-anchored 2x1", out.Bounds())
	}
	if got := out.RGBAAt(0, 0); got != (color.RGBA{200, 100, 50, 255}) {
		t.Errorf("pixel 0 = %v", got)
	}
	if got := out.RGBAAt(1, 0); got != (color.RGBA{1, 2, 3, 255}) {
		t.Errorf("pixel 1 = %v", got)
	}
}

func TestGrayscaleInputIsAccepted(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 80, 80))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	vec, err := mustNew(t, KernelBilinear).Features(img)
	if err != nil {
		t.Fatal(err)
	}
	if vec[100] < 199 || vec[100] > 200 {
		t.Fatalf("feature = %v, want ~200", vec[100])
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(0, 50, KernelBilinear); err == nil {
		t.Error("size 0 accepted")
	}
	if _, err := New(64, 50, "area"); err == nil {
		t.Error("unknown kernel accepted")
	}
	p, err := New(32, 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if p.FeatureCount() != 1024 || p.Size() != 32 {
		t.Errorf("FeatureCount = %d, Size = %d", p.FeatureCount(), p.Size())
	}
}

// Shrinking 640 to 64 maps output column dx to source x = 10*dx + 4.5, so
// a two-pixel stripe at x%10 in {4, 5} must survive at full intensity
// instead of being averaged into the surrounding black.
func TestBilinearSamplesLikeOpenCV(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 640, 640))
	for y := 0; y < 640; y++ {
		for x := 0; x < 640; x++ {
			if m := x % 10; m == 4 || m == 5 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	for _, kernel := range []string{KernelBilinear, ""} {
		vec, err := mustNew(t, kernel).Features(img)
		if err != nil {
			t.Fatal(err)
		}
		for i, v := range vec {
			if v != 255 {
				t.Fatalf("kernel %q: feature %d = %v, want 255", kernel, i, v)
			}
		}
	}
}
