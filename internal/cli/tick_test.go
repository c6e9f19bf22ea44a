package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFixtures lays down a minimal config, database path, and plan dir
// for end-to-end command tests. Event probabilities are zeroed so runs
// are quiet and assertions exact.
func writeFixtures(t *testing.T) (configPath, dbPath, plansDir string) {
	t.Helper()
	dir := t.TempDir()

	configPath = filepath.Join(dir, "team.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
seed: 1
events:
  absence_probability: 0
  feature_request_probability: 0
people:
  - id: a-1
    name: Alice
    email: alice@example.com
    handle: "@alice"
    role: engineer
    active: true
  - id: b-1
    name: Bob
    email: bob@example.com
    handle: "@bob"
    role: designer
    active: true
`), 0o644))

	plansDir = filepath.Join(dir, "plans")
	require.NoError(t, os.Mkdir(plansDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(plansDir, "a-1.txt"), []byte(
		"Email at 10:30 to bob@example.com: Status | Morning summary\n"), 0o644))

	return configPath, filepath.Join(dir, "workday.db"), plansDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTickCommand_AdvancesAndDispatches(t *testing.T) {
	configPath, dbPath, plansDir := writeFixtures(t)

	out, err := execute(t, "tick", "-n", "3", "--format", "json",
		"--config", configPath, "--db", dbPath, "--plans", plansDir)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   tickSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(0), resp.Data.FromTick)
	assert.Equal(t, int64(3), resp.Data.ToTick)
	// The 10:30 directive dispatches at tick 3.
	assert.Equal(t, 1, resp.Data.EmailsSent)
}

func TestTickCommand_ResumesFromPersistedTick(t *testing.T) {
	configPath, dbPath, _ := writeFixtures(t)

	_, err := execute(t, "tick", "-n", "2", "--config", configPath, "--db", dbPath)
	require.NoError(t, err)

	out, err := execute(t, "tick", "-n", "2", "--format", "json",
		"--config", configPath, "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data tickSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, int64(2), resp.Data.FromTick)
	assert.Equal(t, int64(4), resp.Data.ToTick)
}

func TestTickCommand_RejectsNonPositiveCount(t *testing.T) {
	configPath, dbPath, _ := writeFixtures(t)

	_, err := execute(t, "tick", "-n", "0", "--config", configPath, "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatusCommand_ReportsClock(t *testing.T) {
	configPath, dbPath, _ := writeFixtures(t)

	_, err := execute(t, "tick", "-n", "3", "--config", configPath, "--db", dbPath)
	require.NoError(t, err)

	out, err := execute(t, "status", "--format", "json", "--config", configPath, "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data statusReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, int64(3), resp.Data.Tick)
	assert.Equal(t, int64(0), resp.Data.Day)
	assert.Equal(t, "10:30", resp.Data.Time)
	assert.Equal(t, 2, resp.Data.People)
	assert.NotEmpty(t, resp.Data.TickLog)
}

func TestStatsCommand_ReportsParticipation(t *testing.T) {
	configPath, dbPath, plansDir := writeFixtures(t)

	_, err := execute(t, "tick", "-n", "3",
		"--config", configPath, "--db", dbPath, "--plans", plansDir)
	require.NoError(t, err)

	out, err := execute(t, "stats", "--format", "json", "--config", configPath, "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data statsReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, int64(0), resp.Data.Day)
	require.Len(t, resp.Data.People, 1)
	assert.Equal(t, "a-1", resp.Data.People[0].PersonID)
	assert.Equal(t, 1, resp.Data.People[0].EmailCount)
}
