package formatters

import (
	"strings"

	"cvinsight/internal/chart"
	"cvinsight/internal/types"
)

// Donut geometry of the experience chart, in SVG user units.
const (
	chartSize        = 260.0
	chartOuterRadius = 100.0
	chartInnerRadius = 58.0
)

// ReportView is the flattened, display-ready form of a report shared by
// every human-readable formatter.
type ReportView struct {
	ID              string
	Name            string
	Email           string
	Phone           string
	LinkedIn        string
	GitHub          string
	Education       []string
	TechnicalSkills []string
	SoftSkills      []string
	Languages       []string
	Certifications  []string
	TotalExperience string
	Jobs            []JobCard
	Slices          []SliceView
	Assessment      *AssessmentView
}

// JobCard is one work experience entry with its matched duration.
type JobCard struct {
	Index            int
	Title            string
	Company          string
	Location         string
	Period           string
	Duration         string
	Responsibilities []string
}

// SliceView is a chart segment ready for drawing.
type SliceView struct {
	Index    int
	Label    string
	Color    string
	Path     string
	Legend   string
	Duration string
	Value    float64
}

// AssessmentView holds the assessment lists and the score bar.
type AssessmentView struct {
	Strengths       []string
	Weaknesses      []string
	RedFlags        []string
	Recommendations []string
	Error           string
	Score           *ScoreView
}

// ScoreView is the clamped overall score and its band color.
type ScoreView struct {
	Value   float64
	Display string
	Color   string
}

// ScoreColor bands a 0..100 score: red below 50, yellow below 70, green otherwise.
func ScoreColor(score float64) string {
	switch {
	case score < 50:
		return "#ef4444"
	case score < 70:
		return "#eab308"
	default:
		return "#22c55e"
	}
}

// NewReportView builds the view. Reports without chart data get it derived
// from the candidate.
func NewReportView(report *types.Report) ReportView {
	c := report.Candidate
	v := ReportView{
		ID:              report.ID,
		Name:            c.DisplayName("Name not found"),
		Email:           deref(c.Email),
		Phone:           deref(c.Phone),
		LinkedIn:        deref(c.LinkedIn),
		GitHub:          deref(c.GitHub),
		Education:       c.Education,
		TechnicalSkills: c.TechnicalSkills,
		SoftSkills:      c.SoftSkills,
		Languages:       c.Languages,
		Certifications:  c.Certifications,
	}

	var perJob []types.JobDuration
	if ea := c.ExperienceAnalysis; ea != nil {
		v.TotalExperience = deref(ea.TotalHumanReadable)
		perJob = ea.PerJob
	}

	for i, job := range c.Employment {
		v.Jobs = append(v.Jobs, jobCard(i, job, perJob))
	}

	slices := report.Chart
	if slices == nil {
		slices = chart.ForCandidate(c)
	}
	paths := make(map[int]string, len(slices))
	for _, arc := range chart.Arcs(slices, chartSize/2, chartSize/2, chartOuterRadius, chartInnerRadius) {
		paths[arc.Slice.Index] = arc.Path
	}
	for _, s := range slices {
		v.Slices = append(v.Slices, SliceView{
			Index:    s.Index,
			Label:    s.Label,
			Color:    s.Color,
			Path:     paths[s.Index],
			Legend:   chart.LegendText(s),
			Duration: chart.DurationText(s),
			Value:    s.Value,
		})
	}

	if a := c.Assessment; a != nil {
		av := &AssessmentView{
			Strengths:       a.Strengths,
			Weaknesses:      a.Weaknesses,
			RedFlags:        a.RedFlags,
			Recommendations: a.Recommendations,
			Error:           deref(a.Error),
		}
		if score, ok := a.ClampedScore(); ok {
			av.Score = &ScoreView{Value: score, Display: chart.FormatNumber(score), Color: ScoreColor(score)}
		}
		v.Assessment = av
	}
	return v
}

func jobCard(i int, job types.Job, perJob []types.JobDuration) JobCard {
	card := JobCard{
		Index:            i,
		Title:            deref(job.Title),
		Company:          deref(job.Company),
		Location:         deref(job.Location),
		Responsibilities: job.Responsibilities,
	}

	if d, ok := MatchDuration(job, perJob); ok {
		card.Period = period(d.Start(), d.End())
		card.Duration = deref(d.DurationHuman)
	} else {
		card.Period = period(deref(job.StartDate), deref(job.EndDate))
	}
	return card
}

// MatchDuration finds the per-job analysis for a job: the first entry whose
// company or title equals the job's, ignoring case and surrounding space.
func MatchDuration(job types.Job, perJob []types.JobDuration) (types.JobDuration, bool) {
	for _, d := range perJob {
		if sameText(d.Company, job.Company) || sameText(d.JobTitle, job.Title) {
			return d, true
		}
	}
	return types.JobDuration{}, false
}

func sameText(a, b *string) bool {
	if a == nil || b == nil || *a == "" || *b == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(*a), strings.TrimSpace(*b))
}

func period(start, end string) string {
	switch {
	case start != "" && end != "":
		return start + " — " + end
	case end != "":
		return " — " + end
	}
	return start
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
