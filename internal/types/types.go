package types

import "encoding/json"

// NormalizedCandidate is the report model built from a backend analysis.
// List fields are never nil once normalized; absent scalars stay nil.
type NormalizedCandidate struct {
	FullName           *string             `json:"full_name"`
	Email              *string             `json:"email"`
	Phone              *string             `json:"phone"`
	LinkedIn           *string             `json:"linkedin"`
	GitHub             *string             `json:"github"`
	Education          []string            `json:"education"`
	TechnicalSkills    []string            `json:"technical_skills"`
	SoftSkills         []string            `json:"soft_skills"`
	Employment         []Job               `json:"employment"`
	Languages          []string            `json:"languages"`
	Certifications     []string            `json:"certifications"`
	ExperienceAnalysis *ExperienceAnalysis `json:"experience_analysis"`
	Assessment         *Assessment         `json:"assessment"`
	Raw                json.RawMessage     `json:"raw"`
}

// Job is a single employment record.
type Job struct {
	Title            *string  `json:"title"`
	Company          *string  `json:"company"`
	Location         *string  `json:"location"`
	StartDate        *string  `json:"start_date"`
	EndDate          *string  `json:"end_date"`
	Responsibilities []string `json:"responsibilities"`
}

// ExperienceAnalysis is the backend's duration breakdown of the work history.
type ExperienceAnalysis struct {
	PerJob             []JobDuration `json:"per_job"`
	TotalHumanReadable *string       `json:"total_human_readable"`
	TotalMonthsApprox  *float64      `json:"total_months_approx"`
	TotalYearsApprox   *float64      `json:"total_years_approx"`
	TotalDaysCovered   *float64      `json:"total_days_covered"`
}

// JobDuration is one per_job entry of an ExperienceAnalysis.
type JobDuration struct {
	Company         *string  `json:"company"`
	JobTitle        *string  `json:"job_title"`
	StartDateRaw    *string  `json:"start_date_raw"`
	EndDateRaw      *string  `json:"end_date_raw"`
	StartDateParsed *string  `json:"start_date_parsed"`
	EndDateParsed   *string  `json:"end_date_parsed"`
	DurationMonths  *float64 `json:"duration_months"`
	DurationHuman   *string  `json:"duration_human"`
}

// Start returns the best available start date text.
func (d JobDuration) Start() string {
	return firstNonEmpty(d.StartDateParsed, d.StartDateRaw)
}

// End returns the best available end date text.
func (d JobDuration) End() string {
	return firstNonEmpty(d.EndDateParsed, d.EndDateRaw)
}

// Assessment is the AI evaluation of the candidate.
type Assessment struct {
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	RedFlags        []string `json:"red_flags"`
	Recommendations []string `json:"recommendations"`
	OverallScore    *float64 `json:"overall_score"`
	Error           *string  `json:"error,omitempty"`
}

// ClampedScore returns the overall score bounded to 0..100, and false when no score exists.
func (a *Assessment) ClampedScore() (float64, bool) {
	if a == nil || a.OverallScore == nil {
		return 0, false
	}
	s := *a.OverallScore
	switch {
	case s < 0:
		return 0, true
	case s > 100:
		return 100, true
	}
	return s, true
}

// ChartSlice is one segment of the experience distribution chart.
type ChartSlice struct {
	Label         string  `json:"label"`
	Value         float64 `json:"value"`
	Index         int     `json:"index"`
	Company       *string `json:"company"`
	Title         *string `json:"title"`
	DurationHuman *string `json:"duration_human"`
	Color         string  `json:"color"`
}

// Report is a normalized candidate together with the chart data derived from it.
type Report struct {
	ID        string              `json:"id"`
	Source    string              `json:"source,omitempty"`
	Candidate NormalizedCandidate `json:"candidate"`
	Chart     []ChartSlice        `json:"chart"`
}

// DisplayName returns the candidate's name or a fallback.
func (c NormalizedCandidate) DisplayName(fallback string) string {
	if c.FullName != nil && *c.FullName != "" {
		return *c.FullName
	}
	return fallback
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}
