// Package preprocess turns decoded leaf photos into the flat grayscale
// vectors the classifier was trained on.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// ErrImageTooSmall is returned for images with a side shorter than the
// configured minimum.
var ErrImageTooSmall = errors.New("image too small")

// Kernel names accepted by New.
const (
	KernelNearest    = "nearest"
	KernelBilinear   = "bilinear"
	KernelBicubic    = "bicubic"
	KernelLanczos3   = "lanczos3"
	KernelCatmullRom = "catmullrom"
)

// Preprocessor resizes, grayscales and flattens images. It holds no mutable
// state and is safe for concurrent use.
type Preprocessor struct {
	size    int
	minSide int
	scale   func(src image.Image, size int) image.Image
}

// New returns a Preprocessor producing size*size vectors and rejecting
// images with either side below minSide.
func New(size, minSide int, kernel string) (*Preprocessor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("preprocess: size must be positive, got %d", size)
	}
	scale, err := scaler(kernel)
	if err != nil {
		return nil, err
	}
	return &Preprocessor{size: size, minSide: minSide, scale: scale}, nil
}

func scaler(kernel string) (func(image.Image, int) image.Image, error) {
	nfnt := func(interp resize.InterpolationFunction) func(image.Image, int) image.Image {
		return func(src image.Image, size int) image.Image {
			return resize.Resize(uint(size), uint(size), src, interp)
		}
	}

	xdraw := func(sc draw.Scaler) func(image.Image, int) image.Image {
		return func(src image.Image, size int) image.Image {
			dst := image.NewRGBA(image.Rect(0, 0, size, size))
			sc.Scale(dst, dst.Rect, src, src.Bounds(), draw.Src, nil)
			return dst
		}
	}

	// bilinear samples the 2x2 neighbourhood of each pixel-center mapped
	// source point without widening the filter when shrinking, like
	// cv2.resize INTER_LINEAR. nfnt's Bilinear averages the whole footprint.
	switch kernel {
	case KernelNearest:
		return nfnt(resize.NearestNeighbor), nil
	case KernelBilinear, "":
		return xdraw(draw.ApproxBiLinear), nil
	case KernelBicubic:
		return nfnt(resize.Bicubic), nil
	case KernelLanczos3:
		return nfnt(resize.Lanczos3), nil
	case KernelCatmullRom:
		return xdraw(draw.CatmullRom), nil
	default:
		return nil, fmt.Errorf("preprocess: unknown resize kernel %q", kernel)
	}
}

// Size is the side length of the resized image.
func (p *Preprocessor) Size() int { return p.size }

// FeatureCount is the length of every vector Features returns.
func (p *Preprocessor) FeatureCount() int { return p.size * p.size }

// Check rejects images smaller than the minimum on either side.
func (p *Preprocessor) Check(img image.Image) error {
	b := img.Bounds()
	if b.Dx() < p.minSide || b.Dy() < p.minSide {
		return fmt.Errorf("%w: %dx%d, minimum is %dx%d", ErrImageTooSmall, b.Dx(), b.Dy(), p.minSide, p.minSide)
	}
	return nil
}

// Features returns the row-major grayscale intensities (0-255) of img
// resized to Size x Size.
func (p *Preprocessor) Features(img image.Image) ([]float64, error) {
	if err := p.Check(img); err != nil {
		return nil, err
	}

	resized := p.scale(ToRGB(img), p.size)
	bounds := resized.Bounds()

	out := make([]float64, 0, p.FeatureCount())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			out = append(out, float64(Luma(uint8(r>>8), uint8(g>>8), uint8(b>>8))))
		}
	}
	if len(out) != p.FeatureCount() {
		return nil, fmt.Errorf("preprocess: resized to %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), p.size, p.size)
	}
	return out, nil
}

// ToRGB copies img into an opaque RGBA image anchored at the origin.
// Alpha is dropped, not composited, so transparent pixels keep their color.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := out.PixOffset(x-b.Min.X, y-b.Min.Y)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, 0xff
		}
	}
	return out
}

// Luma is the 8-bit BT.601 luma of an RGB pixel, computed with the same
// 14-bit fixed-point weights and rounding as cv2.COLOR_RGB2GRAY.
func Luma(r, g, b uint8) uint8 {
	const (
		wr    = 4899
		wg    = 9617
		wb    = 1868
		shift = 14
	)
	return uint8((uint32(r)*wr + uint32(g)*wg + uint32(b)*wb + 1<<(shift-1)) >> shift)
}
