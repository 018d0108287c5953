// Package chart renders skill frequency tables as PNG bar charts.
package chart

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/skills"
)

const (
	Title   = "The most frequently mentioned nouns and verbs in job descriptions"
	TopN    = 15
	width   = 2000
	height  = 900
	barGap  = 20
	rotated = 30.0
)

// BarRenderer draws the leading rows of a table, one bar per skill.
type BarRenderer struct {
	top int
}

func NewBarRenderer() *BarRenderer {
	return &BarRenderer{top: TopN}
}

// Render returns PNG bytes. An empty table yields a blank image.
func (r *BarRenderer) Render(ctx context.Context, table skills.Table) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := table.Top(r.top)
	if len(rows) == 0 {
		return blank(width, height)
	}

	bars := make([]gochart.Value, 0, len(rows))
	maxCount := 0
	for i, s := range rows {
		bars = append(bars, gochart.Value{
			Label: s.Name,
			Value: float64(s.Occurrences),
			Style: gochart.Style{
				FillColor:   palette(i, len(rows)),
				StrokeColor: palette(i, len(rows)),
			},
		})
		if s.Occurrences > maxCount {
			maxCount = s.Occurrences
		}
	}

	graph := gochart.BarChart{
		Title:  Title,
		Width:  width,
		Height: height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 60, Left: 20, Right: 20, Bottom: 40},
		},
		BarWidth:   (width - 200) / len(bars) * 3 / 4,
		BarSpacing: barGap,
		XAxis: gochart.Style{
			TextRotationDegrees: rotated,
			FontSize:            14,
		},
		YAxis: gochart.YAxis{
			Name:  "# of Job Descriptions",
			Range: &gochart.ContinuousRange{Min: 0, Max: float64(maxCount)},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("rendering chart: %w", err)
	}
	return buf.Bytes(), nil
}

// palette shades from dark to light teal across n bars.
func palette(i, n int) drawing.Color {
	if n <= 1 {
		return drawing.Color{R: 40, G: 90, B: 120, A: 255}
	}
	t := float64(i) / float64(n-1)
	return drawing.Color{
		R: uint8(40 + t*140),
		G: uint8(30 + t*190),
		B: uint8(80 + t*100),
		A: 255,
	}
}

func blank(w, h int) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding blank chart: %w", err)
	}
	return buf.Bytes(), nil
}
