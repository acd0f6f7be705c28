package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
)

const rateHistorySize = 120

// rateChart tracks entries-per-second samples and renders them as a
// compact bar strip under the log viewport.
type rateChart struct {
	samples []int
}

func newRateChart() *rateChart {
	return &rateChart{samples: make([]int, 0, rateHistorySize)}
}

// Push records one per-second sample, evicting the oldest once the
// history window is full.
func (r *rateChart) Push(count int) {
	if len(r.samples) == rateHistorySize {
		copy(r.samples, r.samples[1:])
		r.samples = r.samples[:rateHistorySize-1]
	}
	r.samples = append(r.samples, count)
}

func (r *rateChart) Latest() int {
	if len(r.samples) == 0 {
		return 0
	}
	return r.samples[len(r.samples)-1]
}

func (r *rateChart) Peak() int {
	peak := 0
	for _, s := range r.samples {
		if s > peak {
			peak = s
		}
	}
	return peak
}

// Render draws the rate strip at the given width and height. The newest
// sample is the rightmost bar.
func (r *rateChart) Render(width, height int) string {
	if height < 1 {
		height = 1
	}
	label := fmt.Sprintf(" %d/s peak %d/s", r.Latest(), r.Peak())
	chartWidth := width - lipgloss.Width(label)
	if chartWidth < 10 {
		chartWidth = 10
	}

	maxBars := chartWidth / 2
	start := 0
	if len(r.samples) > maxBars {
		start = len(r.samples) - maxBars
	}
	visible := r.samples[start:]

	bc := barchart.New(chartWidth, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)

	barStyle := accentStyle.Background(accentStyle.GetForeground())
	for i := 0; i < maxBars-len(visible); i++ {
		bc.Push(barchart.BarData{
			Label:  "",
			Values: []barchart.BarValue{{Name: "rate", Value: 0, Style: barStyle}},
		})
	}
	for _, s := range visible {
		bc.Push(barchart.BarData{
			Label:  "",
			Values: []barchart.BarValue{{Name: "rate", Value: float64(s), Style: barStyle}},
		})
	}

	bc.Draw()
	lines := strings.Split(bc.View(), "\n")
	if len(lines) == 0 {
		return label
	}
	lines[len(lines)-1] += dimStyle.Render(label)
	return strings.Join(lines, "\n")
}
