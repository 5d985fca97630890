package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/emgscore/internal/engine"
	"github.com/verte-zerg/emgscore/internal/logger"
)

const sessionDoc = `
patient_id: P7
session_code: S1
post_session_rpe: 5
game_points: 500
channels:
  CH1:
    mvc_threshold_actual_value: 0.5
    contractions:
      - start_time_ms: 0
        end_time_ms: 3000
        max_amplitude: 0.9
  CH2:
    mvc_threshold_actual_value: 0.5
    contractions:
      - start_time_ms: 0
        end_time_ms: 3000
        max_amplitude: 0.8
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScoreCommandJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "session.yaml", sessionDoc)

	out, err := runCLI(t, "score", "--json", path)
	if err != nil {
		t.Fatalf("score: %v\n%s", err, out)
	}
	var res engine.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if !res.Score.Available {
		t.Fatalf("expected available score, got reason %q", res.Score.Reason)
	}
	if res.InputHash == "" || res.ScoreID != "" {
		t.Fatalf("unexpected hash/id: %q %q", res.InputHash, res.ScoreID)
	}
	if res.Score.LeftMuscle.Channel != "CH1" || res.Score.RightMuscle.Channel != "CH2" {
		t.Fatalf("unexpected pairing: %s %s", res.Score.LeftMuscle.Channel, res.Score.RightMuscle.Channel)
	}
}

func TestScoreCommandCard(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "session.json", `{"channels": {"CH1": {"contractions": []}}}`)

	out, err := runCLI(t, "score", path)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !strings.Contains(out, "Score unavailable:") {
		t.Fatalf("expected unavailable card, got:\n%s", out)
	}
}

func TestScoreCommandUnsupportedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "session.csv", "a,b\n")
	if _, err := runCLI(t, "score", path); err == nil {
		t.Fatalf("expected error for csv input")
	}
}

func TestScoreCommandBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "session.yaml", sessionDoc)
	cfg := writeFile(t, dir, "config.toml", "[scoring]\ncompliance = 0.9\n")
	if _, err := runCLI(t, "--config", cfg, "score", path); err == nil {
		t.Fatalf("expected weight validation error")
	}
}

func TestSaveHistoryExportImport(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "session.yaml", sessionDoc)
	db := filepath.Join(dir, "history.db")

	if out, err := runCLI(t, "--db", db, "score", "--save", path); err != nil {
		t.Fatalf("score --save: %v\n%s", err, out)
	}
	out, err := runCLI(t, "--db", db, "history", "--plain")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "Sessions: 1 (1 scored)") || !strings.Contains(out, "P7") {
		t.Fatalf("unexpected history output:\n%s", out)
	}

	archivePath := filepath.Join(dir, "out", "scores.jsonl.zst")
	if _, err := runCLI(t, "--db", db, "export", archivePath); err != nil {
		t.Fatalf("export: %v", err)
	}
	other := filepath.Join(dir, "other.db")
	if _, err := runCLI(t, "--db", other, "import", archivePath); err != nil {
		t.Fatalf("import: %v", err)
	}
	out, err = runCLI(t, "--db", other, "history", "--plain", "--patient", "P7")
	if err != nil {
		t.Fatalf("history after import: %v", err)
	}
	if !strings.Contains(out, "Sessions: 1 (1 scored)") {
		t.Fatalf("import did not restore history:\n%s", out)
	}
}

func TestHistoryRejectsBadFlags(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	if _, err := runCLI(t, "--db", db, "history", "--plain", "--since", "yesterday"); err == nil {
		t.Fatalf("expected --since error")
	}
	if _, err := runCLI(t, "--db", db, "history", "--plain", "--window", "0"); err == nil {
		t.Fatalf("expected --window error")
	}
}

func TestEngineFromConfigChannelFlags(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.toml", "[session]\nleft-channel = \"L\"\nright-channel = \"R\"\n")
	rootConfigPath = cfg
	t.Cleanup(func() { rootConfigPath = "" })

	cmd := newScoreCmd()
	if err := cmd.Flags().Set("left", "EMG1"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	eng, err := engineFromConfig(cmd, "EMG1", "", logger.Nop())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	if eng.Config.LeftChannel != "EMG1" {
		t.Fatalf("flag should win, got %q", eng.Config.LeftChannel)
	}
	if eng.Config.RightChannel != "R" {
		t.Fatalf("config should fill unset flag, got %q", eng.Config.RightChannel)
	}
}

func TestWriteConfigTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emgscore", "config.toml")
	if err := writeConfigTemplate(path); err != nil {
		t.Fatalf("write template: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	if !strings.HasPrefix(string(data), "# emgscore configuration") {
		t.Fatalf("unexpected template:\n%s", data)
	}

	if err := os.WriteFile(path, []byte("# mine\n"), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := writeConfigTemplate(path); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "# mine\n" {
		t.Fatalf("existing config was replaced")
	}
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("")
	if err != nil || got != nil {
		t.Fatalf("empty since: %v %v", got, err)
	}
	got, err = parseSince("2026-03-01")
	if err != nil || got == nil || got.Day() != 1 || got.Month() != 3 {
		t.Fatalf("parse since: %v %v", got, err)
	}
	if _, err := parseSince("03/01/2026"); err == nil {
		t.Fatalf("expected error for bad date")
	}
}
