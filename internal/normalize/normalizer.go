// Package normalize turns the loosely shaped analysis returned by the
// backend into a types.NormalizedCandidate.
package normalize

import (
	"regexp"
	"strings"

	"cvinsight/internal/types"
)

var softSkillSeparators = regexp.MustCompile(`[,;\n]`)

// Field aliases, most preferred first.
var (
	fullNameKeys   = []string{"full_name", "fullName", "name"}
	emailKeys      = []string{"email", "email_id"}
	phoneKeys      = []string{"phone", "mobile"}
	employmentKeys = []string{"employment_details", "employment", "experience"}

	jobTitleKeys         = []string{"job_title", "title", "position", "role"}
	jobCompanyKeys       = []string{"company", "employer", "organization"}
	jobStartKeys         = []string{"start_date", "start", "from"}
	jobEndKeys           = []string{"end_date", "end", "to"}
	jobResponsibilityKey = []string{"responsibilities", "duties", "description"}

	durationHumanKeys = []string{"duration_human", "duration", "duration_human_readable"}
	durationStartKeys = []string{"start_date_raw", "start_date", "start"}
	durationEndKeys   = []string{"end_date_raw", "end_date", "end"}
)

// Normalizer maps raw backend analyses onto the report model.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize never fails: missing or oddly typed fields degrade to null
// scalars and empty lists. A non-object payload yields an empty candidate
// that still carries the payload as Raw.
func (n *Normalizer) Normalize(raw Value) types.NormalizedCandidate {
	c := types.NormalizedCandidate{
		FullName:        scalar(raw, fullNameKeys...),
		Email:           scalar(raw, emailKeys...),
		Phone:           scalar(raw, phoneKeys...),
		LinkedIn:        linkedIn(raw),
		GitHub:          scalar(raw, "github"),
		Education:       listField(raw, "education"),
		TechnicalSkills: technicalSkills(raw),
		SoftSkills:      softSkills(raw),
		Employment:      employment(raw),
		Languages:       listField(raw, "languages"),
		Certifications:  listField(raw, "certifications"),
	}

	if ea, ok := raw.Field("experience_analysis"); ok && ea.Kind == KindObject {
		c.ExperienceAnalysis = experienceAnalysis(ea)
	}
	if as, ok := raw.Field("assessment"); ok && as.Kind == KindObject {
		c.Assessment = assessment(as)
	}

	if b, err := raw.MarshalJSON(); err == nil {
		c.Raw = b
	}
	return c
}

// NormalizeJSON parses data and normalizes it.
func (n *Normalizer) NormalizeJSON(data []byte) (types.NormalizedCandidate, error) {
	v, err := Parse(data)
	if err != nil {
		return types.NormalizedCandidate{}, err
	}
	return n.Normalize(v), nil
}

// first returns the first alias holding a non-null value.
func first(v Value, keys ...string) (Value, bool) {
	for _, k := range keys {
		if f, ok := v.Field(k); ok && f.Present() {
			return f, true
		}
	}
	return Value{}, false
}

func scalar(v Value, keys ...string) *string {
	f, ok := first(v, keys...)
	if !ok {
		return nil
	}
	s, ok := f.Text()
	if !ok {
		return nil
	}
	return &s
}

func linkedIn(v Value) *string {
	f, ok := v.Field("linkedin")
	if !ok || !f.Truthy() {
		return nil
	}
	s, ok := f.Text()
	if !ok {
		return nil
	}
	if !strings.HasPrefix(s, "http") {
		s = "https://" + s
	}
	return &s
}

// itemText renders one list element. Objects collapse to their scalar
// values in key order so education entries like {degree, institution}
// stay readable.
func itemText(v Value) string {
	switch v.Kind {
	case KindObject:
		parts := make([]string, 0, v.Object.Len())
		for _, k := range v.Object.Keys() {
			f, _ := v.Object.Get(k)
			if s := itemText(f); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case KindArray:
		parts := make([]string, 0, len(v.Array))
		for _, item := range v.Array {
			if s := itemText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	s, _ := v.Text()
	return s
}

func stringsOf(items []Value) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := itemText(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// coerceList keeps arrays, wraps truthy singular values, and drops everything else.
func coerceList(v Value) []string {
	if v.Kind == KindArray {
		return stringsOf(v.Array)
	}
	if v.Truthy() {
		if s := itemText(v); s != "" {
			return []string{s}
		}
	}
	return []string{}
}

func listField(v Value, keys ...string) []string {
	f, ok := first(v, keys...)
	if !ok {
		return []string{}
	}
	return coerceList(f)
}

// technicalSkills flattens a category mapping in mapping order.
func technicalSkills(v Value) []string {
	f, ok := v.Field("technical_skills")
	if !ok {
		return []string{}
	}
	if f.Kind != KindObject {
		return coerceList(f)
	}

	out := []string{}
	for _, category := range f.Object.Keys() {
		values, _ := f.Object.Get(category)
		switch values.Kind {
		case KindArray:
			out = append(out, stringsOf(values.Array)...)
		case KindString:
			if values.String != "" {
				out = append(out, values.String)
			}
		}
	}
	return out
}

func softSkills(v Value) []string {
	f, ok := v.Field("soft_skills")
	if !ok {
		return []string{}
	}
	switch f.Kind {
	case KindArray:
		return stringsOf(f.Array)
	case KindString:
		out := []string{}
		for _, part := range softSkillSeparators.Split(f.String, -1) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return []string{}
}

func employment(v Value) []types.Job {
	f, ok := first(v, employmentKeys...)
	if !ok || f.Kind != KindArray {
		return []types.Job{}
	}

	jobs := make([]types.Job, 0, len(f.Array))
	for _, item := range f.Array {
		switch item.Kind {
		case KindObject:
			jobs = append(jobs, types.Job{
				Title:            scalar(item, jobTitleKeys...),
				Company:          scalar(item, jobCompanyKeys...),
				Location:         scalar(item, "location"),
				StartDate:        scalar(item, jobStartKeys...),
				EndDate:          scalar(item, jobEndKeys...),
				Responsibilities: listField(item, jobResponsibilityKey...),
			})
		case KindString:
			if item.String == "" {
				continue
			}
			title := item.String
			jobs = append(jobs, types.Job{Title: &title, Responsibilities: []string{}})
		}
	}
	return jobs
}

func number(v Value, key string) *float64 {
	f, ok := v.Field(key)
	if !ok {
		return nil
	}
	n, ok := f.Float()
	if !ok {
		return nil
	}
	return &n
}

func experienceAnalysis(v Value) *types.ExperienceAnalysis {
	ea := &types.ExperienceAnalysis{
		PerJob:             []types.JobDuration{},
		TotalHumanReadable: scalar(v, "total_human_readable"),
		TotalMonthsApprox:  number(v, "total_months_approx"),
		TotalYearsApprox:   number(v, "total_years_approx"),
		TotalDaysCovered:   number(v, "total_days_covered"),
	}

	perJob, ok := v.Field("per_job")
	if !ok || perJob.Kind != KindArray {
		return ea
	}
	// Entries keep their position even when malformed; chart slices refer back by index.
	for _, item := range perJob.Array {
		ea.PerJob = append(ea.PerJob, types.JobDuration{
			Company:         scalar(item, "company"),
			JobTitle:        scalar(item, "job_title", "title"),
			StartDateRaw:    scalar(item, durationStartKeys...),
			EndDateRaw:      scalar(item, durationEndKeys...),
			StartDateParsed: scalar(item, "start_date_parsed"),
			EndDateParsed:   scalar(item, "end_date_parsed"),
			DurationMonths:  number(item, "duration_months"),
			DurationHuman:   scalar(item, durationHumanKeys...),
		})
	}
	return ea
}

func assessment(v Value) *types.Assessment {
	return &types.Assessment{
		Strengths:       listField(v, "strengths"),
		Weaknesses:      listField(v, "weaknesses"),
		RedFlags:        listField(v, "red_flags"),
		Recommendations: listField(v, "recommendations"),
		OverallScore:    number(v, "overall_score"),
		Error:           scalar(v, "error"),
	}
}
