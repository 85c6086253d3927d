// Package manifest writes and reads the machine-readable record of a run:
// run.json next to the raw log, plus one findings.jsonl line per CVE
// identifier found in the output.
package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/buemura/reconcraft/pkg/types"
	"github.com/spf13/afero"
)

const (
	SchemaVersion = "1.0"
	RunFile       = "run.json"
	FindingsFile  = "findings.jsonl"
)

var (
	cvePattern      = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)
	severityPattern = regexp.MustCompile(`(?i)\[(critical|high|medium|low|info)\]`)
)

// Counts holds the number of findings per severity.
type Counts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

func (c *Counts) add(s types.Severity) {
	switch s {
	case types.SeverityCritical:
		c.Critical++
	case types.SeverityHigh:
		c.High++
	case types.SeverityMedium:
		c.Medium++
	case types.SeverityLow:
		c.Low++
	default:
		c.Info++
	}
}

// Total is the number of findings counted.
func (c Counts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// Run is the content of run.json.
type Run struct {
	SchemaVersion string    `json:"schemaVersion"`
	ScanID        string    `json:"scanId"`
	RunID         string    `json:"runId"`
	Tool          string    `json:"tool"`
	Targets       []string  `json:"targets"`
	Command       []string  `json:"command"`
	StartedAt     time.Time `json:"startedAt"`
	EndedAt       time.Time `json:"endedAt"`
	Status        string    `json:"status"`
	ExitCode      int       `json:"exitCode"`
	Counts        Counts    `json:"counts"`
}

// Report is a run read back from disk.
type Report struct {
	Run      Run             `json:"run"`
	Findings []types.Finding `json:"findings"`
}

// ExtractCVEs returns the unique CVE identifiers in the file at path, in
// first-seen order.
func ExtractCVEs(fsys afero.Fs, path string) ([]string, error) {
	findings, err := scan(fsys, path, "", "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(findings))
	for i, f := range findings {
		ids[i] = f.ID
	}
	return ids, nil
}

// Findings returns one finding per unique CVE identifier in the raw log.
// Severity comes from a bracketed tag such as "[high]" on the same line.
func Findings(fsys afero.Fs, rawLog, tool string, target types.Target) ([]types.Finding, error) {
	return scan(fsys, rawLog, tool, target)
}

func scan(fsys afero.Fs, path, tool string, target types.Target) ([]types.Finding, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var findings []types.Finding

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	for sc.Scan() {
		line := sc.Text()
		ids := cvePattern.FindAllString(line, -1)
		if len(ids) == 0 {
			continue
		}
		sev := types.SeverityInfo
		if m := severityPattern.FindStringSubmatch(line); m != nil {
			sev = types.ParseSeverity(strings.ToLower(m[1]))
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			findings = append(findings, types.Finding{
				Tool:     tool,
				Target:   target,
				ID:       id,
				Severity: sev,
				Line:     strings.TrimSpace(line),
			})
		}
	}
	if err := sc.Err(); err != nil {
		return findings, fmt.Errorf("reading %s: %w", path, err)
	}
	return findings, nil
}

// Write stores run.json and findings.jsonl in dir. Counts on run are
// recomputed from findings.
func Write(fsys afero.Fs, dir string, run Run, findings []types.Finding) error {
	run.SchemaVersion = SchemaVersion
	run.Counts = Counts{}
	for _, f := range findings {
		run.Counts.add(f.Severity)
	}
	if run.Targets == nil {
		run.Targets = []string{}
	}
	if run.Command == nil {
		run.Command = []string{}
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run: %w", err)
	}
	if err := afero.WriteFile(fsys, filepath.Join(dir, RunFile), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", RunFile, err)
	}

	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	for _, f := range findings {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("encoding finding %s: %w", f.ID, err)
		}
	}
	if err := afero.WriteFile(fsys, filepath.Join(dir, FindingsFile), []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", FindingsFile, err)
	}
	return nil
}

// LoadRun reads run.json and findings.jsonl from dir. A missing
// findings file is treated as empty; counts are recomputed.
func LoadRun(fsys afero.Fs, dir string) (*Report, error) {
	data, err := afero.ReadFile(fsys, filepath.Join(dir, RunFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", RunFile, err)
	}

	var rep Report
	if err := json.Unmarshal(data, &rep.Run); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", RunFile, err)
	}

	f, err := fsys.Open(filepath.Join(dir, FindingsFile))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("opening %s: %w", FindingsFile, err)
	default:
		defer f.Close()
		dec := json.NewDecoder(f)
		for dec.More() {
			var fd types.Finding
			if err := dec.Decode(&fd); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", FindingsFile, err)
			}
			rep.Findings = append(rep.Findings, fd)
		}
	}

	rep.Run.Counts = Counts{}
	for _, fd := range rep.Findings {
		rep.Run.Counts.add(fd.Severity)
	}
	return &rep, nil
}

// OutcomeFile names the per-scan summary stored in the machine directory.
func OutcomeFile(scanID string) string {
	return "scan_" + scanID + ".json"
}

// WriteOutcome stores the scan outcome as JSON in dir and returns its path.
func WriteOutcome(fsys afero.Fs, dir string, outcome *types.ScanOutcome) (string, error) {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding outcome: %w", err)
	}
	path := filepath.Join(dir, OutcomeFile(outcome.ScanID))
	if err := afero.WriteFile(fsys, path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
