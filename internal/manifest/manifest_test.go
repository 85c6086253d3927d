package manifest

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/buemura/reconcraft/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nucleiLog = `[INF] Using Nuclei Engine
[CVE-2021-44228] [http] [critical] http://a.com/ log4j
[info] CVE-2019-0708 mentioned twice CVE-2019-0708
plain line CVE-2021-44228 repeated
[HIGH] CVE-2023-12345 something
`

func writeLog(t *testing.T, fs afero.Fs, content string) string {
	t.Helper()
	path := filepath.Join("/scan", "raw_nuclei.log")
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	return path
}

func TestExtractCVEs_UniqueFirstSeen(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeLog(t, fs, nucleiLog)

	ids, err := ExtractCVEs(fs, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"CVE-2021-44228", "CVE-2019-0708", "CVE-2023-12345"}, ids)
}

func TestExtractCVEs_MissingFile(t *testing.T) {
	_, err := ExtractCVEs(afero.NewMemMapFs(), "/nope.log")
	assert.Error(t, err)
}

func TestFindings_SeverityFromTag(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeLog(t, fs, nucleiLog)

	findings, err := Findings(fs, path, "nuclei", "a.com")
	require.NoError(t, err)
	require.Len(t, findings, 3)

	assert.Equal(t, types.SeverityCritical, findings[0].Severity)
	assert.Equal(t, types.SeverityInfo, findings[1].Severity)
	assert.Equal(t, types.SeverityHigh, findings[2].Severity)
	assert.Equal(t, "nuclei", findings[0].Tool)
	assert.Equal(t, types.Target("a.com"), findings[0].Target)
}

func TestWriteAndLoadRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/scan/a.com/nuclei/20240101_120000"
	require.NoError(t, fs.MkdirAll(dir, 0o755))

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	findings := []types.Finding{
		{Tool: "nuclei", Target: "a.com", ID: "CVE-2021-44228", Severity: types.SeverityCritical},
		{Tool: "nuclei", Target: "a.com", ID: "CVE-2019-0708", Severity: types.SeverityInfo},
	}
	run := Run{
		ScanID:    "scan-1",
		RunID:     "20240101_120000",
		Tool:      "nuclei",
		Targets:   []string{"a.com"},
		Command:   []string{"nuclei", "-u", "a.com"},
		StartedAt: start,
		EndedAt:   start.Add(time.Minute),
		Status:    "succeeded",
		Counts:    Counts{High: 99},
	}

	require.NoError(t, Write(fs, dir, run, findings))

	rep, err := LoadRun(fs, dir)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, rep.Run.SchemaVersion)
	assert.Equal(t, "scan-1", rep.Run.ScanID)
	assert.Equal(t, Counts{Critical: 1, Info: 1}, rep.Run.Counts)
	assert.Equal(t, 2, rep.Run.Counts.Total())
	assert.Equal(t, findings, rep.Findings)
}

func TestWrite_EmptyFindings(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, Write(fs, "/run", Run{Tool: "whois"}, nil))

	data, err := afero.ReadFile(fs, "/run/findings.jsonl")
	require.NoError(t, err)
	assert.Empty(t, data)

	raw, err := afero.ReadFile(fs, "/run/run.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"targets": []`)
	assert.Contains(t, string(raw), `"schemaVersion": "1.0"`)
}

func TestLoadRun_MissingFindingsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/run/run.json", []byte(`{"tool":"whois","counts":{"high":3}}`), 0o644))

	rep, err := LoadRun(fs, "/run")
	require.NoError(t, err)
	assert.Equal(t, "whois", rep.Run.Tool)
	assert.Equal(t, Counts{}, rep.Run.Counts)
	assert.Empty(t, rep.Findings)
}

func TestLoadRun_MissingRun(t *testing.T) {
	_, err := LoadRun(afero.NewMemMapFs(), "/none")
	assert.Error(t, err)
}

func TestWriteOutcome(t *testing.T) {
	fs := afero.NewMemMapFs()
	outcome := &types.ScanOutcome{
		ScanID:    "abc",
		Total:     2,
		Completed: 2,
		Status:    types.StatusDoneSuccess,
	}

	path, err := WriteOutcome(fs, "/scan/machine", outcome)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/scan/machine", "scan_abc.json"), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	var got types.ScanOutcome
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "abc", got.ScanID)
	assert.Equal(t, types.StatusDoneSuccess, got.Status)
}
