package backend

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"cvinsight/internal/errors"
	"cvinsight/internal/normalize"
)

// PreviewLength bounds how much of an unusable response body is echoed back in errors.
const PreviewLength = 200

// Preview truncates s to PreviewLength characters.
func Preview(s string) string {
	if utf8.RuneCountInString(s) <= PreviewLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:PreviewLength])
}

// Unwrap extracts the analysis payload from a backend response body.
//
// The backend answers with {"success": bool, "result": ..., "error": "..."}.
// A result of {"raw_output": "<json>"} is the backend's own fallback when the
// model reply was not valid JSON and is decoded here; undecodable text
// becomes {"raw_text": ...}. Bodies without the envelope are taken as the
// result itself. With legacy set, a result that is a JSON document encoded
// as a string is decoded once more; without it such results are rejected.
func Unwrap(status int, body []byte, legacy bool) (normalize.Value, error) {
	text := strings.TrimSpace(string(body))
	ok := status >= http.StatusOK && status < http.StatusMultipleChoices

	v, err := normalize.Parse([]byte(text))
	if err != nil {
		if !ok {
			msg := fmt.Sprintf("Request failed (HTTP %d)", status)
			if text != "" {
				msg += ": " + Preview(text)
			}
			return normalize.Value{}, errors.NewNetworkError(errors.ErrCodeBackendRejected, msg, err).
				WithContext("status", status)
		}
		return normalize.Value{}, textInsteadOfJSON(text, err)
	}

	if success, present := v.Field("success"); present && success.Kind == normalize.KindBool && !success.Bool {
		return normalize.Value{}, rejected(status, v)
	}
	if !ok {
		return normalize.Value{}, rejected(status, v)
	}

	result := v
	if r, present := v.Field("result"); present && r.Present() {
		result = r
	}

	if raw, present := result.Field("raw_output"); present && raw.Truthy() {
		if raw.Kind == normalize.KindString {
			parsed, perr := normalize.Parse([]byte(raw.String))
			if perr != nil {
				obj := normalize.NewObject()
				obj.Set("raw_text", raw)
				parsed = normalize.Value{Kind: normalize.KindObject, Object: obj}
			}
			result = parsed
		} else {
			result = raw
		}
	}

	if result.Kind == normalize.KindString {
		if !legacy {
			return normalize.Value{}, textInsteadOfJSON(result.String, nil)
		}
		parsed, perr := normalize.Parse([]byte(result.String))
		if perr != nil {
			return normalize.Value{}, textInsteadOfJSON(result.String, perr)
		}
		result = parsed
	}

	if result.Kind != normalize.KindObject {
		return normalize.Value{}, errors.NewParseError(errors.ErrCodeInvalidResponse, "Unexpected backend response", nil).
			WithContext("preview", Preview(text))
	}
	return result, nil
}

func textInsteadOfJSON(text string, cause error) error {
	return errors.NewParseError(errors.ErrCodeInvalidResponse,
		"Backend returned text instead of JSON: "+Preview(text), cause)
}

func rejected(status int, envelope normalize.Value) error {
	msg := fmt.Sprintf("Request failed (HTTP %d)", status)
	if e, present := envelope.Field("error"); present {
		if s, isText := e.Text(); isText && s != "" {
			msg = s
		}
	}
	return errors.NewNetworkError(errors.ErrCodeBackendRejected, msg, nil).WithContext("status", status)
}
