package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: passing
description: put then commit
flow:
  - op: put
    db: users
    key: alice
    value: v1
  - op: commit
assertions:
  - type: final_state
    db: users
    key: alice
    value: v1
`

const failingScenario = `name: failing
description: expects a value that is never written
flow:
  - op: put
    db: users
    key: alice
    value: v1
assertions:
  - type: final_state
    db: users
    key: alice
    value: v1
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestCheck_AllPass(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"passing.yaml": passingScenario,
		"notes.txt":    "ignored",
	})

	r := runCLI(t, "check", dir)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "PASS passing")
	assert.Contains(t, r.stdout, "1 passed, 0 failed, 1 total")
}

func TestCheck_Failure(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"passing.yaml": passingScenario,
		"failing.yaml": failingScenario,
		"broken.yml":   "name: broken\n",
	})

	r := runCLI(t, "check", dir)
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stdout, "FAIL failing")
	assert.Contains(t, r.stdout, "key not found")
	assert.Contains(t, r.stdout, "FAIL broken")
	assert.Contains(t, r.stdout, "1 passed, 2 failed, 3 total")
	assert.Contains(t, r.stderr, "2 of 3 scenarios failed")
}

func TestCheck_FilterAndJSON(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"passing.yaml": passingScenario,
		"failing.yaml": failingScenario,
	})

	r := runCLI(t, "--format", "json", "check", dir, "--filter", "pass*")
	require.Equal(t, ExitSuccess, r.code, r.stderr)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(strings.NewReader(r.stdout)).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, ScenarioResult{Name: "passing", Pass: true}, resp.Data.Scenarios[0])
}

func TestCheck_EmptyAndMissingDir(t *testing.T) {
	dir := writeScenarios(t, nil)

	r := runCLI(t, "check", dir)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "No scenarios found.")

	r = runCLI(t, "check", filepath.Join(dir, "nope"))
	assert.Equal(t, ExitCommandError, r.code)
	assert.Contains(t, r.stderr, "scenarios directory not found")
}

func TestCheck_BadFilter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"passing.yaml": passingScenario})

	r := runCLI(t, "check", dir, "--filter", "[")
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stderr, "invalid filter pattern")
}
