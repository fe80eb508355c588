package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("WEEK_POLICY", "strict")
	t.Setenv("REPORT_FILE", "")
	t.Setenv("MESSAGE_LIMIT", "")

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		for _, c := range []string{"date", "json"} {
			if f := weekCmd.Flags().Lookup(c); f != nil {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			}
		}
		if f := rootCmd.PersistentFlags().Lookup("policy"); f != nil {
			_ = f.Value.Set("")
			f.Changed = false
		}
		for _, c := range []string{"title", "date"} {
			if f := previewCmd.Flags().Lookup(c); f != nil {
				_ = f.Value.Set("")
				f.Changed = false
			}
		}
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestWeekCommand(t *testing.T) {
	out, err := execute(t, "", "week", "--date", "2025-11-12")
	require.NoError(t, err)

	assert.Contains(t, out, "Policy:        strict")
	assert.Contains(t, out, "Week:          2025年11月03日 〜 11月07日")
	assert.Contains(t, out, "Previous week: 2025年10月27日 〜 10月31日")
}

func TestWeekCommandJSONWithPolicy(t *testing.T) {
	out, err := execute(t, "", "week", "--date", "2025-11-12", "--json", "--policy", "cutoff:tuesday")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "cutoff:tuesday", got["policy"])
	assert.Equal(t, "2025-11-10", got["week_start"])
	assert.Equal(t, "2025-11-14", got["week_end"])
}

func TestWeekCommandRejectsBadDate(t *testing.T) {
	_, err := execute(t, "", "week", "--date", "12/11/2025")
	assert.ErrorContains(t, err, "invalid --date")
}

func TestPreviewCommand(t *testing.T) {
	body := strings.Repeat(strings.Repeat("x", 49)+"\n", 100)
	out, err := execute(t, body, "preview", "--title", "Preview")
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out, "----- message "))
	assert.Contains(t, out, "🚀 **Preview**")
	assert.Contains(t, out, "**(3)**")
}

func TestPreviewCommandFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "section.md")
	require.NoError(t, os.WriteFile(path, []byte("short body"), 0o600))

	out, err := execute(t, "", "preview", "--date", "2025-11-12", path)
	require.NoError(t, err)
	assert.Contains(t, out, "🚀 **週間米国株レポート (2025年11月03日〜)**")
	assert.Contains(t, out, "----- message 1 ")
	assert.Contains(t, out, "short body")
}
