package report

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Chart layout in pixels.
const (
	chartWidth  = 640
	chartHeight = 360
	marginLeft  = 64
	marginRight = 24
	marginTop   = 40
	marginBot   = 48
	fontSize    = 13
)

var (
	chartBackground = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	chartAxis       = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	chartBar        = color.RGBA{R: 0x2b, G: 0x6c, B: 0xb0, A: 0xff}
)

// Chart renders one bar per result, scaled to the fastest bandwidth.
func Chart(title string, results []Result) (*image.RGBA, error) {
	face, err := chartFace()
	if err != nil {
		return nil, err
	}
	defer face.Close()

	mbps := make([]float64, len(results))
	var top float64
	for i, r := range results {
		s, err := r.Stats()
		if err != nil {
			return nil, err
		}
		mbps[i] = s.MBps
		top = max(top, s.MBps)
	}

	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(chartBackground), image.Point{}, draw.Src)

	plotH := chartHeight - marginTop - marginBot
	plotW := chartWidth - marginLeft - marginRight
	baseY := chartHeight - marginBot

	fill(img, image.Rect(marginLeft, marginTop, marginLeft+1, baseY+1), chartAxis)
	fill(img, image.Rect(marginLeft, baseY, chartWidth-marginRight, baseY+1), chartAxis)
	label(img, face, marginLeft, marginTop-16, title)
	label(img, face, 4, marginTop+fontSize, "MB/s")

	if len(results) == 0 {
		return img, nil
	}
	slot := plotW / len(results)
	barW := slot * 3 / 5
	for i, r := range results {
		h := 0
		if top > 0 {
			h = int(float64(plotH) * mbps[i] / top)
		}
		x0 := marginLeft + i*slot + (slot-barW)/2
		fill(img, image.Rect(x0, baseY-h, x0+barW, baseY), chartBar)
		label(img, face, x0, baseY+fontSize+6, r.Function)
		label(img, face, x0, baseY-h-4, fmt.Sprintf("%.0f", mbps[i]))
	}
	return img, nil
}

// WriteChart encodes the chart as PNG to w.
func WriteChart(w io.Writer, title string, results []Result) error {
	img, err := Chart(title, results)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SaveChart writes the chart to a PNG file.
func SaveChart(path, title string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create chart: %w", err)
	}
	if err := WriteChart(f, title, results); err != nil {
		f.Close()
		return fmt.Errorf("report: write chart: %w", err)
	}
	return f.Close()
}

func chartFace() (font.Face, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("report: parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("report: create face: %w", err)
	}
	return face, nil
}

func fill(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func label(img draw.Image, face font.Face, x, y int, s string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(chartAxis),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
