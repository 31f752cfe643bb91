package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchroom/go/internal/models"
	"github.com/mcdev12/matchroom/go/internal/proposal"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.Rules.CohortSize)
	assert.Equal(t, 30*time.Second, cfg.Rules.AcceptWindow)
	assert.Equal(t, models.DefaultMapPool, cfg.Rules.MapPool)
	assert.Equal(t, proposal.RequeueFront, cfg.Rules.Proposal().AcceptorRequeue)
	assert.IsType(t, proposal.RequeuePolicy{}, cfg.Rules.Policy())
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "matchroom", cfg.Archive.DB.Database)
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("COHORT_SIZE", "4")
	t.Setenv("QUEUE_CAPACITY", "8")
	t.Setenv("MAP_POOL", "a,b,c")
	t.Setenv("PICK_WINDOW", "5s")
	t.Setenv("NON_ACCEPTOR_POLICY", "drop")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Rules.Queue().CohortSize)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Rules.Match().MapPool)
	assert.Equal(t, 5*time.Second, cfg.Rules.Match().PickWindow)
	assert.IsType(t, proposal.DropPolicy{}, cfg.Rules.Policy())
}

func TestRulesFileOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cohort_size: 6\nban_window: 12s\nmap_pool: [x, y]\n"), 0o600))
	t.Setenv("MATCHROOM_CONFIG", path)
	t.Setenv("COHORT_SIZE", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Rules.CohortSize)
	assert.Equal(t, 12*time.Second, cfg.Rules.BanWindow)
	assert.Equal(t, []string{"x", "y"}, cfg.Rules.MapPool)
}

func TestValidateCollectsErrors(t *testing.T) {
	r := Rules{
		CohortSize:        3,
		QueueCapacity:     1,
		MapPool:           []string{"a", "a"},
		CaptainCandidates: 1,
		AcceptorRequeue:   "middle",
		NonAcceptorPolicy: "exile",
	}
	err := r.Validate()
	require.Error(t, err)
	for _, want := range []string{"cohort size", "queue capacity", "accept window", "duplicate", "at least 2 maps", "captain candidates", "acceptor requeue", "non-acceptor policy"} {
		assert.Contains(t, err.Error(), want)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
