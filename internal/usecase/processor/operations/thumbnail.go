package operations

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

type Thumbnailer struct {
	cropToFit bool
}

func NewThumbnailer(cropToFit bool) *Thumbnailer {
	return &Thumbnailer{cropToFit: cropToFit}
}

// Fit scales img into a width x height box. By default the aspect ratio is
// kept and images already inside the box are not upscaled. In crop mode the
// centre of img is cut to the box ratio and scaled, up if needed, to fill the
// box exactly.
func (t *Thumbnailer) Fit(img image.Image, width, height int) image.Image {
	if t.cropToFit {
		return t.cropAndResize(img, width, height)
	}

	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()

	if origWidth <= width && origHeight <= height {
		return resizeImage(img, origWidth, origHeight)
	}

	scaleW := float64(width) / float64(origWidth)
	scaleH := float64(height) / float64(origHeight)
	scale := min(scaleW, scaleH)

	newWidth := max(1, int(float64(origWidth)*scale+0.5))
	newHeight := max(1, int(float64(origHeight)*scale+0.5))

	return resizeImage(img, newWidth, newHeight)
}

func (t *Thumbnailer) cropAndResize(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()

	cropWidth := origWidth
	cropHeight := max(1, origWidth*height/width)
	if cropHeight > origHeight {
		cropHeight = origHeight
		cropWidth = max(1, origHeight*width/height)
	}

	cropX := bounds.Min.X + (origWidth-cropWidth)/2
	cropY := bounds.Min.Y + (origHeight-cropHeight)/2

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img,
		image.Rect(cropX, cropY, cropX+cropWidth, cropY+cropHeight), xdraw.Over, nil)

	return dst
}

func resizeImage(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}
