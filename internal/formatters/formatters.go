package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"cvinsight/internal/chart"
	"cvinsight/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "Report", &ReportTextFormatter{})
	registry.RegisterFormatter("markdown", "Report", &ReportMarkdownFormatter{})
	registry.RegisterFormatter("html", "Report", &HTMLFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

// Candidates are formatted as reports with derived chart data.
func getDataType(data any) string {
	switch data.(type) {
	case types.Report, *types.Report, types.NormalizedCandidate, *types.NormalizedCandidate:
		return "Report"
	default:
		return "any"
	}
}

func asReport(data any) (*types.Report, error) {
	switch d := data.(type) {
	case types.Report:
		return &d, nil
	case *types.Report:
		return d, nil
	case types.NormalizedCandidate:
		return &types.Report{Candidate: d, Chart: chart.ForCandidate(d)}, nil
	case *types.NormalizedCandidate:
		return &types.Report{Candidate: *d, Chart: chart.ForCandidate(*d)}, nil
	}
	return nil, fmt.Errorf("expected Report or NormalizedCandidate, got %T", data)
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ReportTextFormatter handles plain text formatting for reports
type ReportTextFormatter struct{}

func (tf *ReportTextFormatter) Format(data any) (string, error) {
	report, err := asReport(data)
	if err != nil {
		return "", err
	}
	v := NewReportView(report)

	var output strings.Builder

	output.WriteString("=== CANDIDATE ===\n")
	output.WriteString(v.Name + "\n")
	writeTextField(&output, "Email", v.Email)
	writeTextField(&output, "Phone", v.Phone)
	writeTextField(&output, "LinkedIn", v.LinkedIn)
	writeTextField(&output, "GitHub", v.GitHub)
	output.WriteString("\n")

	writeTextList(&output, "EDUCATION", v.Education, "No education found")
	writeTextList(&output, "TECHNICAL SKILLS", v.TechnicalSkills, "No technical skills found")
	writeTextList(&output, "SOFT SKILLS", v.SoftSkills, "No soft skills found")

	output.WriteString("=== WORK EXPERIENCE ===\n")
	if v.TotalExperience != "" {
		output.WriteString(fmt.Sprintf("Total experience: %s\n", v.TotalExperience))
	}
	if len(v.Jobs) == 0 {
		output.WriteString("No work experience found\n")
	}
	for _, job := range v.Jobs {
		output.WriteString(fmt.Sprintf("\n%s\n", jobHeading(job)))
		if job.Period != "" {
			output.WriteString(job.Period + "\n")
		}
		if job.Duration != "" {
			output.WriteString(job.Duration + "\n")
		}
		for _, r := range job.Responsibilities {
			output.WriteString(fmt.Sprintf("  - %s\n", r))
		}
	}
	output.WriteString("\n")

	output.WriteString("=== EXPERIENCE DISTRIBUTION ===\n")
	if len(v.Slices) == 0 {
		output.WriteString("No duration data available for chart\n")
	}
	for _, s := range v.Slices {
		output.WriteString(fmt.Sprintf("- %s\n", s.Legend))
	}
	output.WriteString("\n")

	output.WriteString("=== AI ASSESSMENT ===\n")
	if a := v.Assessment; a != nil {
		if a.Score != nil {
			output.WriteString(fmt.Sprintf("Overall score: %s/100\n", a.Score.Display))
		}
		if a.Error != "" {
			output.WriteString(fmt.Sprintf("Error: %s\n", a.Error))
		}
		writeTextList(&output, "Strengths", a.Strengths, "None identified")
		writeTextList(&output, "Weaknesses", a.Weaknesses, "None identified")
		if len(a.RedFlags) > 0 {
			writeTextList(&output, "Red flags", a.RedFlags, "")
		}
		writeTextList(&output, "Recommendations", a.Recommendations, "No recommendations")
	} else {
		output.WriteString("No assessment available\n\n")
	}

	writeTextList(&output, "LANGUAGES", v.Languages, "No languages found")
	writeTextList(&output, "CERTIFICATIONS", v.Certifications, "No certifications found")

	return strings.TrimRight(output.String(), "\n") + "\n", nil
}

func (tf *ReportTextFormatter) SupportedType() string {
	return "Report"
}

func writeTextField(b *strings.Builder, label, value string) {
	if value != "" {
		b.WriteString(fmt.Sprintf("%s: %s\n", label, value))
	}
}

func writeTextList(b *strings.Builder, heading string, list []string, empty string) {
	b.WriteString(fmt.Sprintf("%s:\n", heading))
	if len(list) == 0 {
		b.WriteString(empty + "\n\n")
		return
	}
	for _, item := range list {
		b.WriteString(fmt.Sprintf("- %s\n", item))
	}
	b.WriteString("\n")
}

func jobHeading(job JobCard) string {
	title := job.Title
	if title == "" {
		title = "Title"
	}
	if job.Company != "" {
		return title + " at " + job.Company
	}
	return title
}

// ReportMarkdownFormatter handles markdown formatting for reports
type ReportMarkdownFormatter struct{}

func (mf *ReportMarkdownFormatter) Format(data any) (string, error) {
	report, err := asReport(data)
	if err != nil {
		return "", err
	}
	v := NewReportView(report)

	var output strings.Builder

	output.WriteString(fmt.Sprintf("# %s\n\n", v.Name))
	if v.Email != "" {
		output.WriteString(fmt.Sprintf("- **Email:** %s\n", v.Email))
	}
	if v.Phone != "" {
		output.WriteString(fmt.Sprintf("- **Phone:** %s\n", v.Phone))
	}
	if v.LinkedIn != "" {
		output.WriteString(fmt.Sprintf("- **LinkedIn:** [%s](%s)\n", v.LinkedIn, v.LinkedIn))
	}
	if v.GitHub != "" {
		output.WriteString(fmt.Sprintf("- **GitHub:** %s\n", v.GitHub))
	}
	output.WriteString("\n")

	writeMarkdownList(&output, "## Education", v.Education, "No education found")
	writeMarkdownList(&output, "## Technical Skills", v.TechnicalSkills, "No technical skills found")
	writeMarkdownList(&output, "## Soft Skills", v.SoftSkills, "No soft skills found")

	output.WriteString("## Work Experience\n\n")
	if v.TotalExperience != "" {
		output.WriteString(fmt.Sprintf("**Total experience:** %s\n\n", v.TotalExperience))
	}
	if len(v.Jobs) == 0 {
		output.WriteString("_No work experience found_\n\n")
	}
	for _, job := range v.Jobs {
		output.WriteString(fmt.Sprintf("### %s\n\n", jobHeading(job)))
		if job.Period != "" || job.Duration != "" {
			output.WriteString(fmt.Sprintf("_%s_\n\n", strings.TrimSpace(strings.Join([]string{job.Period, job.Duration}, " "))))
		}
		for _, r := range job.Responsibilities {
			output.WriteString(fmt.Sprintf("- %s\n", r))
		}
		if len(job.Responsibilities) > 0 {
			output.WriteString("\n")
		}
	}

	if len(v.Slices) > 0 {
		output.WriteString("## Experience Distribution\n\n")
		output.WriteString("| Job | Months | Duration |\n|---|---|---|\n")
		for _, s := range v.Slices {
			output.WriteString(fmt.Sprintf("| %s | %s | %s |\n", s.Label, chart.FormatNumber(s.Value), s.Duration))
		}
		output.WriteString("\n")
	}

	output.WriteString("## AI Assessment\n\n")
	if a := v.Assessment; a != nil {
		if a.Score != nil {
			output.WriteString(fmt.Sprintf("**Overall score:** %s/100\n\n", a.Score.Display))
		}
		writeMarkdownList(&output, "### Strengths", a.Strengths, "None identified")
		writeMarkdownList(&output, "### Weaknesses", a.Weaknesses, "None identified")
		if len(a.RedFlags) > 0 {
			writeMarkdownList(&output, "### Red Flags", a.RedFlags, "")
		}
		writeMarkdownList(&output, "### Recommendations", a.Recommendations, "No recommendations")
	} else {
		output.WriteString("_No assessment available_\n\n")
	}

	writeMarkdownList(&output, "## Languages", v.Languages, "No languages found")
	writeMarkdownList(&output, "## Certifications", v.Certifications, "No certifications found")

	return strings.TrimRight(output.String(), "\n") + "\n", nil
}

func (mf *ReportMarkdownFormatter) SupportedType() string {
	return "Report"
}

func writeMarkdownList(b *strings.Builder, heading string, list []string, empty string) {
	b.WriteString(heading + "\n\n")
	if len(list) == 0 {
		b.WriteString(fmt.Sprintf("_%s_\n\n", empty))
		return
	}
	for _, item := range list {
		b.WriteString(fmt.Sprintf("- %s\n", item))
	}
	b.WriteString("\n")
}
