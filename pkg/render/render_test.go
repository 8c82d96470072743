package render_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang/pkg/render"
)

func TestTableRendersHumanReadableOutput(t *testing.T) {
	var buf bytes.Buffer

	err := render.Table(&buf, render.Options{Format: render.FormatTable}, []string{"name", "requirement"},
		[][]any{{"lodash", "^4.0.0"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "lodash")
	assert.Contains(t, buf.String(), "^4.0.0")
}

func TestTableRendersJSONArrayOfObjects(t *testing.T) {
	var buf bytes.Buffer

	err := render.Table(&buf, render.Options{Format: render.FormatJSON}, []string{"name", "requirement"},
		[][]any{{"lodash", "^4.0.0"}})
	require.NoError(t, err)

	var decoded []map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "lodash", decoded[0]["name"])
}

func TestErrorJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer

	render.Error(&buf, render.Options{Format: render.FormatJSON}, "ref_not_found", "unknown ref")

	var decoded map[string]map[string]string

	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ref_not_found", decoded["error"]["kind"])
	assert.Equal(t, "unknown ref", decoded["error"]["message"])
}
