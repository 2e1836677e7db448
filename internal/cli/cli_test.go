package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"cvinsight/internal/common"
	"cvinsight/internal/config"
	"cvinsight/internal/errors"
	"cvinsight/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backendResponse = `{
	"success": true,
	"result": "{\"full_name\": \"Grace Hopper\", \"linkedin\": \"linkedin.com/in/grace\", \"technical_skills\": {\"languages\": [\"COBOL\"], \"tools\": [\"UNIVAC\"]}, \"experience_analysis\": {\"per_job\": [{\"company\": \"Navy\", \"job_title\": \"Officer\", \"duration_months\": 0}, {\"company\": \"Remington Rand\", \"duration_months\": 24}]}}"
}`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	processConfig = common.CommandConfig{}
	normalizeConfig = common.CommandConfig{}
	chartOutput = ""
	exportJSON, exportPDF, exportDir = false, false, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	cfg := config.Default()
	cfg.App.OutputDir = t.TempDir()
	err := Execute(context.Background(), cfg, errors.NewWithHandler(slog.DiscardHandler))
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadReport(t *testing.T) {
	report, err := loadReport([]byte(backendResponse), "response.json", true)
	require.NoError(t, err)

	c := report.Candidate
	require.NotNil(t, c.FullName)
	assert.Equal(t, "Grace Hopper", *c.FullName)
	require.NotNil(t, c.LinkedIn)
	assert.Equal(t, "https://linkedin.com/in/grace", *c.LinkedIn)
	assert.Equal(t, []string{"COBOL", "UNIVAC"}, c.TechnicalSkills)
	assert.Equal(t, "response.json", report.Source)

	require.Len(t, report.Chart, 2)
	assert.Equal(t, "Officer", report.Chart[0].Label)
	assert.Equal(t, 1.0, report.Chart[0].Value)
	assert.Equal(t, "Remington Rand", report.Chart[1].Label)
	assert.Equal(t, 24.0, report.Chart[1].Value)

	// a stored report round-trips without being normalized again
	stored, err := json.Marshal(report)
	require.NoError(t, err)
	again, err := loadReport(stored, "report.json", true)
	require.NoError(t, err)
	assert.Equal(t, report.ID, again.ID)
	assert.Equal(t, report.Chart, again.Chart)
}

func TestLoadReport_TextResult(t *testing.T) {
	_, err := loadReport([]byte(`{"success": true, "result": "sorry, no resume here"}`), "r.json", true)
	require.Error(t, err)
	assert.Equal(t, "Backend returned text instead of JSON: sorry, no resume here", errors.UserMessage(err))
}

func TestNormalizeCommand(t *testing.T) {
	input := writeFile(t, "response.json", backendResponse)
	output := filepath.Join(t.TempDir(), "report.json")

	_, err := runCLI(t, "normalize", input, "-o", output, "--format", "json")
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var report types.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "Grace Hopper", *report.Candidate.FullName)
	assert.Len(t, report.Chart, 2)

	_, err = runCLI(t, "validate", output)
	assert.NoError(t, err)
}

func TestNormalizeCommand_RejectsUnknownFormat(t *testing.T) {
	input := writeFile(t, "response.json", backendResponse)
	_, err := runCLI(t, "normalize", input, "--format", "yaml")
	assert.ErrorContains(t, err, "unsupported output format 'yaml'")
}

func TestChartCommand(t *testing.T) {
	input := writeFile(t, "response.json", backendResponse)
	output := filepath.Join(t.TempDir(), "chart.json")

	_, err := runCLI(t, "chart", input, "-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var slices []types.ChartSlice
	require.NoError(t, json.Unmarshal(data, &slices))
	require.Len(t, slices, 2)
	assert.Equal(t, 0, slices[0].Index)
	assert.Equal(t, 1, slices[1].Index)
}

func TestExportCommand_JSON(t *testing.T) {
	input := writeFile(t, "response.json", backendResponse)
	dir := t.TempDir()

	out, err := runCLI(t, "export", input, "--json", "-d", dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "grace_hopper.json")
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var candidate map[string]any
	require.NoError(t, json.Unmarshal(data, &candidate))
	assert.Equal(t, "Grace Hopper", candidate["full_name"])
	assert.Equal(t, "https://linkedin.com/in/grace", candidate["linkedin"])
}

func TestValidateCommand_ReportsFieldErrors(t *testing.T) {
	input := writeFile(t, "bad.json", `{"id": "x", "candidate": {"full_name": 42}, "chart": []}`)

	_, err := runCLI(t, "validate", input)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSchemaViolation))
}

func TestProcessCommand_RejectsNonPDF(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "cv.txt")
	require.NoError(t, os.WriteFile(input, []byte("not a pdf"), 0600))

	_, err := runCLI(t, "process", input)
	require.Error(t, err)
	assert.Equal(t, "Please select a PDF file", errors.UserMessage(err))
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cvinsight version dev")
}
