package operations

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"image-server/internal/domain"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const watermarkMargin = 4

type Watermarker struct {
	font     *truetype.Font
	text     string
	size     float64
	position string
	alpha    float64
}

// NewWatermarker returns nil when text is empty, which disables stamping.
func NewWatermarker(text string, size float64, position string) (*Watermarker, error) {
	if text == "" {
		return nil, nil
	}

	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	if size <= 0 {
		size = 12
	}
	if position == "" {
		position = domain.WatermarkBottomRight
	}

	return &Watermarker{
		font:     f,
		text:     text,
		size:     size,
		position: position,
		alpha:    domain.DefaultWatermarkAlpha,
	}, nil
}

// Stamp draws the watermark text onto a copy of img.
func (w *Watermarker) Stamp(img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(w.font)
	c.SetFontSize(w.size)
	c.SetClip(result.Bounds())
	c.SetDst(result)
	c.SetSrc(image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: uint8(255 * w.alpha)}))
	c.SetHinting(font.HintingFull)

	if _, err := c.DrawString(w.text, w.origin(result.Bounds())); err != nil {
		return nil, fmt.Errorf("failed to draw watermark text: %w", err)
	}

	return result, nil
}

func (w *Watermarker) origin(bounds image.Rectangle) fixed.Point26_6 {
	face := truetype.NewFace(w.font, &truetype.Options{Size: w.size, DPI: 72})
	defer face.Close()

	textWidth := font.MeasureString(face, w.text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()

	left := watermarkMargin
	right := bounds.Dx() - textWidth - watermarkMargin
	top := watermarkMargin + ascent
	bottom := bounds.Dy() - watermarkMargin

	switch w.position {
	case domain.WatermarkTopLeft:
		return freetype.Pt(left, top)
	case domain.WatermarkTopRight:
		return freetype.Pt(right, top)
	case domain.WatermarkBottomLeft:
		return freetype.Pt(left, bottom)
	case domain.WatermarkCenter:
		return freetype.Pt((bounds.Dx()-textWidth)/2, (bounds.Dy()+ascent)/2)
	default:
		return freetype.Pt(right, bottom)
	}
}
