package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyplanner/core/internal/domain/planner"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, NewVersionCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "StudyPlanner v"+Version)
	assert.Contains(t, out, "Git Commit: ")
}

func TestPlanCommand_FromTasksFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(file, []byte(`[
		{"id": "1", "title": "Essay", "priority": "high", "status": "pending", "estimatedDuration": 3},
		{"id": "2", "title": "Reading", "priority": "low", "status": "pending", "estimatedDuration": 1},
		{"id": "3", "title": "Done already", "priority": "high", "status": "completed", "estimatedDuration": 2},
		{"id": "4", "title": "Broken", "estimatedDuration": "lots"}
	]`), 0o644))

	out, errOut, err := execute(t, NewPlanCommand(), "--tasks-file", file, "--daily-hours", "2", "--window-days", "3")
	require.NoError(t, err)
	assert.Contains(t, errOut, "skipped 1 malformed task(s)")

	var plan planner.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, 3, plan.WindowDays)
	assert.Equal(t, 2.0, plan.DailyCapacityHours)
	require.Len(t, plan.RecommendedOrder, 2)
	assert.Equal(t, "1", plan.RecommendedOrder[0].ID)
	assert.Len(t, plan.DailySchedule, 3)
}

func TestPlanCommand_RejectsLargeWindow(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(file, []byte(`[]`), 0o644))

	_, _, err := execute(t, NewPlanCommand(), "--tasks-file", file, "--window-days", "1000")
	assert.Error(t, err)
}

func TestPlanCommand_FromStore(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, NewPlanCommand(), "--data-dir", dir)
	require.NoError(t, err)

	var plan planner.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.NotEmpty(t, plan.RecommendedOrder, "seeded tasks are planned")
	assert.FileExists(t, filepath.Join(dir, "tasks.json"))
}

func TestCollectionsCommand(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, NewCollectionsCommand(), "list", "--data-dir", dir)
	require.NoError(t, err)
	for _, name := range []string{"tasks", "subjects", "timetable", "events", "chat", "assessments"} {
		assert.Contains(t, out, name)
	}

	out, _, err = execute(t, NewCollectionsCommand(), "show", "timetable", "--data-dir", dir)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &doc))
	assert.EqualValues(t, 1, doc["version"])

	_, _, err = execute(t, NewCollectionsCommand(), "show", "../etc", "--data-dir", dir)
	assert.Error(t, err)
}
