// Package chart derives the experience distribution chart from a report.
package chart

import (
	"fmt"
	"math"

	"cvinsight/internal/types"
)

// FallbackValue stands in for a missing, zero or non-numeric duration so
// every job still gets a visible segment.
const FallbackValue = 1.0

// Palette is cycled over the slices in order.
var Palette = []string{
	"#22c55e", "#60a5fa", "#f97316", "#a78bfa", "#f43f5e",
	"#fb923c", "#06b6d4", "#f59e0b", "#84cc16", "#7c3aed",
}

// Build converts per-job durations into chart slices. Slice i always refers
// back to perJob[i].
func Build(perJob []types.JobDuration) []types.ChartSlice {
	slices := make([]types.ChartSlice, 0, len(perJob))
	for i, job := range perJob {
		slices = append(slices, types.ChartSlice{
			Label:         label(job, i),
			Value:         value(job),
			Index:         i,
			Company:       job.Company,
			Title:         job.JobTitle,
			DurationHuman: job.DurationHuman,
			Color:         Palette[i%len(Palette)],
		})
	}

	allFalsy := len(slices) > 0
	for _, s := range slices {
		if s.Value != 0 {
			allFalsy = false
			break
		}
	}
	if allFalsy {
		for i := range slices {
			slices[i].Value = FallbackValue
		}
	}
	return slices
}

// ForCandidate builds the chart for a candidate, which is empty without an experience analysis.
func ForCandidate(c types.NormalizedCandidate) []types.ChartSlice {
	if c.ExperienceAnalysis == nil {
		return []types.ChartSlice{}
	}
	return Build(c.ExperienceAnalysis.PerJob)
}

func label(job types.JobDuration, i int) string {
	if job.JobTitle != nil && *job.JobTitle != "" {
		return *job.JobTitle
	}
	if job.Company != nil && *job.Company != "" {
		return *job.Company
	}
	return fmt.Sprintf("Job %d", i+1)
}

func value(job types.JobDuration) float64 {
	if job.DurationMonths == nil {
		return FallbackValue
	}
	m := *job.DurationMonths
	if m == 0 || math.IsNaN(m) {
		return FallbackValue
	}
	return m
}

// LegendText is the legend entry for a slice: the human duration when
// known, otherwise the raw month count.
func LegendText(s types.ChartSlice) string {
	return fmt.Sprintf("%s (%s)", s.Label, DurationText(s))
}

// DurationText is what a hovered slice shows under its label.
func DurationText(s types.ChartSlice) string {
	if s.DurationHuman != nil && *s.DurationHuman != "" {
		return *s.DurationHuman
	}
	return FormatNumber(s.Value) + " mo"
}

// FormatNumber prints whole values without decimals and others with one.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

// Arc is the drawable geometry of one donut segment.
type Arc struct {
	Slice types.ChartSlice
	Path  string
	Share float64
}

// Arcs lays out the slices as a donut centred on (cx, cy). Slices with a
// non-positive value get no arc but keep their place in the legend.
func Arcs(slices []types.ChartSlice, cx, cy, outer, inner float64) []Arc {
	total := 0.0
	for _, s := range slices {
		if s.Value > 0 {
			total += s.Value
		}
	}
	if total == 0 {
		return nil
	}

	arcs := make([]Arc, 0, len(slices))
	angle := -math.Pi / 2
	for _, s := range slices {
		if s.Value <= 0 {
			continue
		}
		share := s.Value / total
		sweep := share * 2 * math.Pi
		// A full circle cannot be drawn as one arc command.
		if sweep >= 2*math.Pi-1e-9 {
			sweep = 2*math.Pi - 1e-4
		}
		arcs = append(arcs, Arc{
			Slice: s,
			Path:  segmentPath(cx, cy, outer, inner, angle, angle+sweep),
			Share: share,
		})
		angle += sweep
	}
	return arcs
}

func segmentPath(cx, cy, outer, inner, start, end float64) string {
	large := 0
	if end-start > math.Pi {
		large = 1
	}
	x0, y0 := polar(cx, cy, outer, start)
	x1, y1 := polar(cx, cy, outer, end)
	x2, y2 := polar(cx, cy, inner, end)
	x3, y3 := polar(cx, cy, inner, start)
	return fmt.Sprintf("M %.3f %.3f A %.3f %.3f 0 %d 1 %.3f %.3f L %.3f %.3f A %.3f %.3f 0 %d 0 %.3f %.3f Z",
		x0, y0, outer, outer, large, x1, y1,
		x2, y2, inner, inner, large, x3, y3)
}

func polar(cx, cy, r, angle float64) (float64, float64) {
	return cx + r*math.Cos(angle), cy + r*math.Sin(angle)
}
