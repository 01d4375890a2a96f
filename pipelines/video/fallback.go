package video

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"slide_video_studio/common"
)

const (
	fallbackWrapChars = 28
	fallbackMaxScale  = 8
)

// FallbackImage draws a vertical gradient from the topic's primary colour to its
// background colour with the heading centred on it. Output depends only on the
// arguments.
func FallbackImage(heading string, style common.TopicStyle, width, height int) ([]byte, error) {
	top, err := common.ParseHexColor(style.Primary)
	if err != nil {
		return nil, err
	}
	bottom, err := common.ParseHexColor(style.Background)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		t := 0.0
		if height > 1 {
			t = float64(y) / float64(height-1)
		}
		c := lerpColor(top, bottom, t)
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			row[x*4+0] = c.R
			row[x*4+1] = c.G
			row[x*4+2] = c.B
			row[x*4+3] = 0xff
		}
	}

	drawCenteredText(img, wrapWords(heading, fallbackWrapChars))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode fallback image: %w", err)
	}
	return buf.Bytes(), nil
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}

// drawCenteredText renders lines with the 7x13 bitmap face and scales them up by
// the largest whole factor that fits 85% of the canvas width.
func drawCenteredText(dst *image.RGBA, lines []string) {
	if len(lines) == 0 {
		return
	}
	face := basicfont.Face7x13
	lineHeight := face.Height

	textW := 0
	for _, l := range lines {
		if w := font.MeasureString(face, l).Ceil(); w > textW {
			textW = w
		}
	}
	textH := lineHeight * len(lines)
	if textW == 0 {
		return
	}

	canvas := image.NewRGBA(image.Rect(0, 0, textW, textH))
	d := &font.Drawer{Dst: canvas, Src: image.NewUniform(color.White), Face: face}
	for i, l := range lines {
		w := font.MeasureString(face, l).Ceil()
		d.Dot = fixed.P((textW-w)/2, i*lineHeight+face.Ascent)
		d.DrawString(l)
	}

	b := dst.Bounds()
	scale := (b.Dx() * 85 / 100) / textW
	if maxH := (b.Dy() * 80 / 100) / textH; maxH < scale {
		scale = maxH
	}
	if scale > fallbackMaxScale {
		scale = fallbackMaxScale
	}
	if scale < 1 {
		scale = 1
	}
	w, h := textW*scale, textH*scale
	x0 := b.Min.X + (b.Dx()-w)/2
	y0 := b.Min.Y + (b.Dy()-h)/2
	xdraw.NearestNeighbor.Scale(dst, image.Rect(x0, y0, x0+w, y0+h), canvas, canvas.Bounds(), draw.Over, nil)
}

func wrapWords(s string, width int) []string {
	words := strings.Fields(s)
	var lines []string
	var cur []rune
	for _, w := range words {
		wr := []rune(w)
		if len(cur) > 0 && len(cur)+1+len(wr) > width {
			lines = append(lines, string(cur))
			cur = cur[:0]
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, wr...)
		// break words that do not fit on a line by themselves
		for len(cur) > width {
			lines = append(lines, string(cur[:width]))
			cur = append([]rune(nil), cur[width:]...)
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}
