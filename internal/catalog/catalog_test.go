package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Len(t, c.Actions, 9)

	// calibrator представлен двумя действиями с одним AgentID
	ids := c.AgentIDs()
	assert.Contains(t, ids, "calibrator")
	counts := map[string]int{}
	for _, a := range c.Actions {
		counts[a.AgentID]++
	}
	assert.Equal(t, 2, counts["calibrator"])
}

func TestStrategyFor(t *testing.T) {
	c := Default()

	s := c.StrategyFor("classifier")
	assert.True(t, s.Critical)
	assert.True(t, s.Retry)
	assert.Equal(t, 3, s.MaxRetries)

	// Агент без записи получает пустую стратегию: не критичен, без ретраев
	unknown := c.StrategyFor("nobody")
	assert.False(t, unknown.Critical)
	assert.False(t, unknown.Retry)
}

func TestValidateRejectsBrokenCatalogs(t *testing.T) {
	cases := []struct {
		name string
		cat  *Catalog
		want string
	}{
		{
			name: "empty action name",
			cat:  &Catalog{Actions: []domain.Action{{AgentID: "a"}}},
			want: "empty name",
		},
		{
			name: "empty agent id",
			cat:  &Catalog{Actions: []domain.Action{{Name: "x"}}},
			want: "empty agent_id",
		},
		{
			name: "negative cost",
			cat:  &Catalog{Actions: []domain.Action{{Name: "x", AgentID: "a", Cost: -1}}},
			want: "negative cost",
		},
		{
			name: "duplicate action name",
			cat: &Catalog{Actions: []domain.Action{
				{Name: "x", AgentID: "a"},
				{Name: "x", AgentID: "b"},
			}},
			want: "duplicate action name",
		},
		{
			name: "unknown fallback agent",
			cat: &Catalog{
				Actions:    []domain.Action{{Name: "x", AgentID: "a"}},
				Strategies: map[string]domain.RecoveryStrategy{"a": {FallbackAgentID: "ghost"}},
			},
			want: "unknown fallback",
		},
		{
			name: "negative max retries",
			cat: &Catalog{
				Actions:    []domain.Action{{Name: "x", AgentID: "a"}},
				Strategies: map[string]domain.RecoveryStrategy{"a": {MaxRetries: -1}},
			},
			want: "negative max_retries",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cat.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

const sampleYAML = `
actions:
  - name: fetch
    agent_id: fetcher
    cost: 1
    effects:
      fetched: true
  - name: transform
    agent_id: transformer
    cost: 2
    preconditions:
      fetched: true
    effects:
      transformed: true
      quality: 0.9
      stage: done
strategies:
  fetcher:
    critical: true
    retry: true
    max_retries: 2
    retry_delay: 250ms
  transformer:
    fallback_agent_id: fetcher
`

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.Actions, 2)

	fetch := c.Actions[0]
	assert.Equal(t, "fetcher", fetch.AgentID)
	assert.Equal(t, domain.BoolValue(true), fetch.Effects["fetched"])

	transform := c.Actions[1]
	assert.Equal(t, domain.BoolValue(true), transform.Preconditions["fetched"])
	assert.Equal(t, domain.NumberValue(0.9), transform.Effects["quality"])
	assert.Equal(t, domain.EnumValue("done"), transform.Effects["stage"])

	s := c.StrategyFor("fetcher")
	assert.True(t, s.Critical)
	assert.Equal(t, 2, s.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, s.RetryDelay)
	assert.Equal(t, "fetcher", c.StrategyFor("transformer").FallbackAgentID)
}

func TestLoadRejectsInvalidCatalog(t *testing.T) {
	bad := `
actions:
  - name: x
    agent_id: a
strategies:
  a:
    fallback_agent_id: ghost
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fallback")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
