package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateOutputFormat(t *testing.T) {
	supported := []string{"json", "text", "markdown", "html"}

	tests := []struct {
		name      string
		format    string
		supported []string
		wantErr   string
	}{
		{name: "json", format: "json", supported: supported},
		{name: "html", format: "html", supported: supported},
		{name: "unsupported", format: "xml", supported: supported, wantErr: "unsupported output format 'xml'"},
		{name: "empty format", format: "", supported: supported, wantErr: "unsupported output format ''"},
		{name: "case sensitive", format: "JSON", supported: supported, wantErr: "unsupported"},
		{name: "no restrictions", format: "anything", supported: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supported)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestResolveFormat(t *testing.T) {
	supported := []string{"json", "text"}

	got, err := ResolveFormat("", "json", supported)
	assert.NoError(t, err)
	assert.Equal(t, "json", got)

	got, err = ResolveFormat("text", "json", supported)
	assert.NoError(t, err)
	assert.Equal(t, "text", got)

	_, err = ResolveFormat("markdown", "json", supported)
	assert.Error(t, err)
}
