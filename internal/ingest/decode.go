package ingest

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/Brownie44l1/plant-api/internal/model"
)

// Decoder turns stored images into classifier input tensors.
type Decoder struct {
	// Size is the square spatial size the classifier expects.
	Size int
	// Layout is the tensor memory order.
	Layout model.Layout
}

// DecodeFile reads and converts the image at path.
func (d Decoder) DecodeFile(path string) (model.ImageTensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.ImageTensor{}, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	t, err := d.Decode(f)
	if err != nil {
		return model.ImageTensor{}, &DecodeError{Path: path, Err: err}
	}
	return t, nil
}

// Decode reads a JPEG or PNG stream and converts it.
func (d Decoder) Decode(r io.Reader) (model.ImageTensor, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return model.ImageTensor{}, errors.Wrap(err, "invalid image")
	}
	if img.Bounds().Empty() {
		return model.ImageTensor{}, errors.New("image has no pixels")
	}
	return d.FromImage(img), nil
}

// FromImage converts img to RGB, resizes it to Size x Size, scales values to
// [0,1] and adds a leading batch dimension.
func (d Decoder) FromImage(img image.Image) model.ImageTensor {
	size := d.Size
	resized := resize.Resize(uint(size), uint(size), toRGB(img), resize.Bicubic)

	shape := model.InputShape(d.Layout, size)
	data := make([]float32, 3*size*size)
	plane := size * size
	origin := resized.Bounds().Min

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(origin.X+x, origin.Y+y).RGBA()
			rv := float32(r>>8) / 255.0
			gv := float32(g>>8) / 255.0
			bv := float32(b>>8) / 255.0

			pixel := y*size + x
			if d.Layout == model.LayoutNCHW {
				data[pixel] = rv
				data[plane+pixel] = gv
				data[2*plane+pixel] = bv
				continue
			}
			data[pixel*3] = rv
			data[pixel*3+1] = gv
			data[pixel*3+2] = bv
		}
	}

	return model.ImageTensor{Data: data, Shape: shape}
}

// toRGB drops alpha without premultiplying, so transparent pixels keep
// their stored colour, and returns an opaque image.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
	return out
}
