package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	err := printTable(&buf, []string{"TABLE", "COMPOSITE"}, [][]string{
		{"dim_noc", "91.5"},
		{"dim_broken", "null"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "TABLE")
	assert.Contains(t, out, "dim_noc")
	assert.Contains(t, out, "null")
}

func TestPrintCSV(t *testing.T) {
	var buf bytes.Buffer
	err := printCSV(&buf, []string{"table", "score"}, [][]string{
		{"dim_noc", "91.5"},
		{"dim_og, extra", "96.8"}, // comma must be quoted
	})
	require.NoError(t, err)

	assert.Equal(t, "table,score\ndim_noc,91.5\n\"dim_og, extra\",96.8\n", buf.String())
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	err := printJSON(&buf, map[string]any{"table": "dim_noc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"table":"dim_noc"}`, buf.String())
}

func TestFormatScore(t *testing.T) {
	v := 87.25
	assert.Equal(t, "87.2", formatScore(&v))
	assert.Equal(t, "null", formatScore(nil))
}
