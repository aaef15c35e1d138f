package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackvia-tools/tv-cli/internal/api"
)

func TestParseRecordID(t *testing.T) {
	id, err := parseRecordID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc", "1.5"} {
		_, err := parseRecordID(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadAtValue(t *testing.T) {
	got, err := loadAtValue(`{"a":1}`, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)

	got, err = loadAtValue("-", strings.NewReader("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o600))
	got, err = loadAtValue("@"+path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from file", got)

	_, err = loadAtValue("@"+filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}

func TestRecordHeaders(t *testing.T) {
	records := []api.Record{
		{"id": json.Number("1"), "b": "x"},
		{"id": json.Number("2"), "a": "y", "b": "z"},
	}
	assert.Equal(t, []string{"id", "a", "b"}, recordHeaders(records))
	assert.Equal(t, []string{"2", "y", "z"}, recordRow(records[1], []string{"id", "a", "b"}))
	assert.Equal(t, []string{"1", "", "x"}, recordRow(records[0], []string{"id", "a", "b"}))
}
