package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/jumpsim/internal/ensemble"
)

var palette = []string{"#00ff00", "#00bfff", "#ffd700", "#ff4500", "#da70d6", "#7fffd4"}

// SummaryToSVG draws the ensemble mean of the named channels against time,
// with a band of one standard deviation around each curve. An empty
// channel list draws every channel except growth.
func SummaryToSVG(s *ensemble.Summary, channels []string, width, height int) (string, error) {
	if len(s.Times) < 2 {
		return "", fmt.Errorf("need at least two save times, got %d", len(s.Times))
	}
	if len(channels) == 0 {
		for _, c := range s.Channels {
			if c != "growth" {
				channels = append(channels, c)
			}
		}
	}

	idx := make([]int, len(channels))
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, name := range channels {
		c := s.Channel(name)
		if c < 0 {
			return "", fmt.Errorf("unknown channel %q", name)
		}
		idx[i] = c
		for k := range s.Times {
			sd := math.Sqrt(s.Variance[c][k])
			minY = math.Min(minY, s.Mean[c][k]-sd)
			maxY = math.Max(maxY, s.Mean[c][k]+sd)
		}
	}

	minX, maxX := s.Times[0], s.Times[len(s.Times)-1]
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	rangeY *= 1.2

	px := func(t float64) float64 { return (t - minX) / rangeX * float64(width) }
	py := func(v float64) float64 { return float64(height) - (v-minY)/rangeY*float64(height) }

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for i, c := range idx {
		color := palette[i%len(palette)]

		// band: upper edge forward, lower edge back
		sb.WriteString(fmt.Sprintf(`<path fill="%s" fill-opacity="0.2" stroke="none" d="M`, color))
		for k, t := range s.Times {
			if k > 0 {
				sb.WriteString(" L")
			}
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", px(t), py(s.Mean[c][k]+math.Sqrt(s.Variance[c][k]))))
		}
		for k := len(s.Times) - 1; k >= 0; k-- {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", px(s.Times[k]), py(s.Mean[c][k]-math.Sqrt(s.Variance[c][k]))))
		}
		sb.WriteString(" Z\"/>\n")

		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color))
		for k, t := range s.Times {
			if k > 0 {
				sb.WriteString(" L")
			}
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", px(t), py(s.Mean[c][k])))
		}
		sb.WriteString("\"/>\n")

		sb.WriteString(fmt.Sprintf(`<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16*(i+1), color, s.Channels[c]))
	}

	sb.WriteString("</svg>")
	return sb.String(), nil
}
