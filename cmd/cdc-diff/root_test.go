package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	oldCSV = "PJT코드,PJT명,주관부서,4월,5월\nP1,Alpha,Sales,100,200\nP2,Beta,Ops,50,0\n"
	newCSV = "PJT코드,PJT명,주관부서,4월,5월\nP1,Alpha,Sales,100,260\nP3,Gamma,Ops,0,40\n"
)

func writeFixtures(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.csv")
	newPath := filepath.Join(dir, "new.csv")
	require.NoError(t, os.WriteFile(oldPath, []byte(oldCSV), 0o644))
	require.NoError(t, os.WriteFile(newPath, []byte(newCSV), 0o644))
	return oldPath, newPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDiffJSON(t *testing.T) {
	oldPath, newPath := writeFixtures(t)

	out, err := execute(t, oldPath, newPath, "--date", "2025-04-15", "--format", "json")
	require.NoError(t, err)

	var report struct {
		Summary struct {
			TotalImpact float64 `json:"total_impact"`
			NewCount    int     `json:"new_count"`
			DelCount    int     `json:"del_count"`
		} `json:"summary_stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 50.0, report.Summary.TotalImpact)
	assert.Equal(t, 1, report.Summary.NewCount)
	assert.Equal(t, 1, report.Summary.DelCount)
}

func TestDiffText(t *testing.T) {
	oldPath, newPath := writeFixtures(t)

	out, err := execute(t, oldPath, newPath, "--date", "2025-04-15")
	require.NoError(t, err)
	assert.Contains(t, out, "총 영향 금액: 50")
	assert.Contains(t, out, "신규 추가: 1건")
}

func TestDiffWritesOutputFile(t *testing.T) {
	oldPath, newPath := writeFixtures(t)
	target := filepath.Join(t.TempDir(), "report.json")

	out, err := execute(t, oldPath, newPath, "--date", "2025-04-15", "--format", "json", "-o", target)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"summary_stats"`)
}

func TestDiffErrors(t *testing.T) {
	oldPath, newPath := writeFixtures(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing argument", []string{oldPath}},
		{"bad format", []string{oldPath, newPath, "--format", "yaml"}},
		{"bad date", []string{oldPath, newPath, "--date", "15/04/2025"}},
		{"missing file", []string{oldPath, filepath.Join(t.TempDir(), "nope.csv")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
