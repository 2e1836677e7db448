package schemas

import (
	"encoding/json"
	"testing"

	"cvinsight/internal/chart"
	"cvinsight/internal/normalize"
	"cvinsight/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backendPayload = `{
	"name": "Ada Lovelace",
	"linkedin": "linkedin.com/in/ada",
	"technical_skills": {"languages": ["Go", "SQL"]},
	"employment": [{"title": "Analyst", "company": "Babbage"}],
	"experience_analysis": {"per_job": [{"job_title": "Analyst", "duration_months": "18"}]},
	"assessment": {"overall_score": 71, "strengths": ["Rigor"]}
}`

func normalized(t *testing.T) types.NormalizedCandidate {
	t.Helper()
	c, err := normalize.NewNormalizer().NormalizeJSON([]byte(backendPayload))
	require.NoError(t, err)
	return c
}

func TestValidateCandidate_NormalizerOutputIsValid(t *testing.T) {
	data, err := json.Marshal(normalized(t))
	require.NoError(t, err)
	assert.NoError(t, ValidateCandidate(data))
}

func TestValidateCandidate_ReportsFieldPaths(t *testing.T) {
	doc := `{
		"full_name": "Ada", "email": null, "phone": null, "linkedin": "ftp://x", "github": null,
		"education": [], "technical_skills": "Go", "soft_skills": [], "employment": [{"title": 1}],
		"languages": [], "certifications": [], "experience_analysis": null, "assessment": null
	}`

	err := ValidateCandidate([]byte(doc))
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	fields := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "technical_skills")
	assert.Contains(t, fields, "linkedin")
	assert.Contains(t, fields, "employment.0.title")
	assert.Contains(t, fields, "employment.0")
	assert.Contains(t, err.Error(), "validation failed:")
}

func TestValidateReport(t *testing.T) {
	c := normalized(t)
	report := types.Report{ID: "r-1", Candidate: c, Chart: chart.ForCandidate(c)}
	data, err := json.Marshal(report)
	require.NoError(t, err)

	kind, err := Validate(data)
	require.NoError(t, err)
	assert.Equal(t, KindReport, kind)

	report.Candidate.TechnicalSkills = nil
	data, err = json.Marshal(report)
	require.NoError(t, err)

	err = ValidateReport(data)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "candidate.technical_skills", ve.Errors[0].Field)
}

func TestValidateReport_BadChart(t *testing.T) {
	doc := `{"id": "r", "candidate": {}, "chart": [{"label": "", "value": 1, "index": -1, "color": "red"}]}`

	err := ValidateReport([]byte(doc))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.GreaterOrEqual(t, len(ve.Errors), 3)
}

func TestDetect(t *testing.T) {
	kind, err := Detect([]byte(`{"full_name": null}`))
	require.NoError(t, err)
	assert.Equal(t, KindCandidate, kind)

	_, err = Detect([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = Validate([]byte(`not json`))
	assert.Error(t, err)
}
