package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/railops/pkg/ctdf"
)

func TestDefaultIsValid(t *testing.T) {
	config := Default()

	assert.NoError(t, config.Validate())
	assert.Equal(t, BusyPolicyReject, config.Optimizer.BusyPolicy)
	assert.Equal(t, ctdf.DefaultObjectiveWeights(), config.Optimizer.Objectives)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "railops.yaml")
	contents := `
tick_duration: PT30S
simulation:
  starvation_threshold: 5
  terminal_policy: remove
optimizer:
  budget: 500ms
  busy_policy: latest-wins
  horizon_ticks: 10
priority:
  classes:
    FREIGHT: 4
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, config.TickDuration)
	assert.Equal(t, 5, config.Simulation.StarvationThreshold)
	assert.Equal(t, TerminalPolicyRemove, config.Simulation.TerminalPolicy)
	assert.Equal(t, 500*time.Millisecond, config.Optimizer.Budget)
	assert.Equal(t, BusyPolicyLatestWins, config.Optimizer.BusyPolicy)
	assert.Equal(t, 10, config.Optimizer.HorizonTicks)
	assert.Equal(t, 4, config.Priority.Classes[ctdf.TrainTypeFreight])
	assert.Equal(t, 3, config.Priority.Classes[ctdf.TrainTypeHighSpeed])
	assert.Equal(t, 400, config.Optimizer.MaxIterations)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "railops.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick_lenght: PT1M\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnvironment(t *testing.T) {
	config := Default()
	config.ApplyEnvironment(map[string]string{
		"RAILOPS_OPTIMIZER_BUDGET":      "PT5S",
		"RAILOPS_OPTIMIZER_BUSY_POLICY": "latest-wins",
		"RAILOPS_TERMINAL_POLICY":       "remove",
		"RAILOPS_AUTO_APPLY":            "YES",
	})

	assert.Equal(t, 5*time.Second, config.Optimizer.Budget)
	assert.Equal(t, BusyPolicyLatestWins, config.Optimizer.BusyPolicy)
	assert.Equal(t, TerminalPolicyRemove, config.Simulation.TerminalPolicy)
	assert.True(t, config.AutoApply)
	assert.NoError(t, config.Validate())
}

func TestValidate(t *testing.T) {
	config := Default()
	config.Optimizer.BusyPolicy = "queue"
	assert.Error(t, config.Validate())

	config = Default()
	config.Simulation.TerminalPolicy = "park"
	assert.Error(t, config.Validate())
}
