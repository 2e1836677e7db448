// Package export turns a report into downloadable artifacts.
package export

import (
	"regexp"
	"strings"
	"unicode"

	"cvinsight/internal/types"
)

const (
	jsonFallback = "resume"
	pdfFallback  = "resume-report"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Slug lowercases name, collapses whitespace runs into sep and strips
// characters that are unsafe in filenames. An empty result yields fallback.
func Slug(name, sep, fallback string) string {
	s := whitespaceRun.ReplaceAllString(strings.TrimSpace(name), sep)
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return -1
		}
		return r
	}, s)
	s = strings.Trim(s, ". "+sep)
	if s == "" {
		return fallback
	}
	return s
}

// JSONFilename names the JSON download for a candidate.
func JSONFilename(c types.NormalizedCandidate) string {
	return JSONName(c.DisplayName(""))
}

// PDFFilename names the snapshot download for a candidate.
func PDFFilename(c types.NormalizedCandidate) string {
	return PDFName(c.DisplayName(""))
}

func JSONName(name string) string {
	return Slug(name, "_", jsonFallback) + ".json"
}

func PDFName(name string) string {
	return Slug(name, "-", pdfFallback) + ".pdf"
}
