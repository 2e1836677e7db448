package formatters

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"regexp"

	"cvinsight/internal/types"
)

// PageTitle heads both the interactive page and exported documents.
const PageTitle = "CV Insights and Candidate Assessment Tool"

// HighlightDuration is how long a job card stays highlighted after its
// chart segment is clicked.
const HighlightDuration = 1500

const defaultBackground = "#0f172a"

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("cvinsight").
	Funcs(template.FuncMap{"items": items}).
	ParseFS(templateFS, "templates/*.tmpl"))

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)

type listBlock struct {
	Items []string
	Empty string
}

func items(list []string, empty string) listBlock {
	return listBlock{Items: list, Empty: empty}
}

// PageData feeds the interactive report page.
type PageData struct {
	Title           string
	Report          *ReportView
	Error           string
	Busy            bool
	Background      string
	HighlightMillis int
}

// NewPageData prepares page data for a session. report may be nil.
func NewPageData(report *types.Report, errMsg string, busy bool) PageData {
	pd := PageData{
		Title:           PageTitle,
		Error:           errMsg,
		Busy:            busy,
		Background:      defaultBackground,
		HighlightMillis: HighlightDuration,
	}
	if report != nil {
		v := NewReportView(report)
		pd.Report = &v
	}
	return pd
}

// RenderPage writes the interactive page.
func RenderPage(w io.Writer, data PageData) error {
	if !hexColor.MatchString(data.Background) {
		data.Background = defaultBackground
	}
	return templates.ExecuteTemplate(w, "page", data)
}

// ReportDocument renders the report alone as a static HTML document, the
// form the snapshot exporter captures.
func ReportDocument(report *types.Report, background string) (string, error) {
	if !hexColor.MatchString(background) {
		background = defaultBackground
	}
	data := NewPageData(report, "", false)
	data.Background = background

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "document", data); err != nil {
		return "", fmt.Errorf("render report document: %w", err)
	}
	return buf.String(), nil
}

// HTMLFormatter renders reports as standalone HTML documents.
type HTMLFormatter struct{}

func (hf *HTMLFormatter) Format(data any) (string, error) {
	report, err := asReport(data)
	if err != nil {
		return "", err
	}
	return ReportDocument(report, defaultBackground)
}

func (hf *HTMLFormatter) SupportedType() string {
	return "Report"
}
