package perception

import (
	"bytes"
	"encoding/base64"
	"image"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/hireloop/proctor/internal/utils"
)

// DecodeBase64Frame decodes a client-supplied still frame. Data-URL prefixes
// ("data:image/png;base64,...") and stray whitespace from chunked transports
// are tolerated.
func DecodeBase64Frame(s string) (image.Image, error) {
	const op = "perception.DecodeBase64Frame"

	if i := strings.IndexByte(s, ','); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, utils.E(utils.CodeInvalidArgument, op, "invalid base64 image payload", err)
		}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "undecodable image data", err)
	}
	return img, nil
}

// resizeRGBA scales img to w x h with bicubic filtering.
func resizeRGBA(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

// chwTensor lays the frame out as normalized CHW float32, the input format
// shared by the vision models.
func chwTensor(img image.Image, w, h int, mean, std [3]float32) []float32 {
	rgba := resizeRGBA(img, w, h)
	out := make([]float32, 3*w*h)
	plane := w * h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := rgba.PixOffset(x, y)
			r := float32(rgba.Pix[i]) / 255
			g := float32(rgba.Pix[i+1]) / 255
			b := float32(rgba.Pix[i+2]) / 255
			out[y*w+x] = (r - mean[0]) / std[0]
			out[plane+y*w+x] = (g - mean[1]) / std[1]
			out[2*plane+y*w+x] = (b - mean[2]) / std[2]
		}
	}
	return out
}

// grayTensor is chwTensor's single-channel variant for the emotion
// classifier, which takes raw 0-255 luminance.
func grayTensor(img image.Image, w, h int) []float32 {
	rgba := resizeRGBA(img, w, h)
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := rgba.PixOffset(x, y)
			r := float32(rgba.Pix[i])
			g := float32(rgba.Pix[i+1])
			b := float32(rgba.Pix[i+2])
			out[y*w+x] = 0.299*r + 0.587*g + 0.114*b
		}
	}
	return out
}

func cropImage(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, r.Min, xdraw.Src)
	return dst
}
