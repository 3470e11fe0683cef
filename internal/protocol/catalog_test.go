package protocol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/emergency/internal/model"
)

func TestDefaultCatalog_CoversAllScenarios(t *testing.T) {
	c := DefaultCatalog()

	for _, id := range []string{"DUST_STORM_001", "CHEM_CASCADE_001", "EQUIP_CASCADE_001", "ENV_CONTAM_001"} {
		p, ok := c.Get(id)
		require.True(t, ok, "missing %s", id)
		assert.NotEmpty(t, p.RequiredActions)
		assert.Greater(t, p.EstimatedTime, 0)
	}
	assert.Len(t, c.All(), 4)
}

func TestNewCatalog_RejectsBadEntries(t *testing.T) {
	_, err := NewCatalog([]model.EmergencyProtocol{{Name: "anonymous", RequiredActions: []string{"x"}}})
	require.Error(t, err, "id required")

	_, err = NewCatalog([]model.EmergencyProtocol{
		{ID: "A", RequiredActions: []string{"x"}},
		{ID: "A", RequiredActions: []string{"y"}},
	})
	require.Error(t, err, "duplicate id")

	_, err = NewCatalog([]model.EmergencyProtocol{{ID: "A"}})
	require.Error(t, err, "actions required")
}

func TestLoadCatalog_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocols.yaml")
	content := `protocols:
  - protocol_id: FLOOD_001
    name: Flood Protocol
    priority: 1
    estimated_time: 120
    required_actions:
      - Evacuation of the lower galleries
      - Start the emergency pumps
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	p, ok := c.Get("FLOOD_001")
	require.True(t, ok)
	assert.Equal(t, "Flood Protocol", p.Name)
	assert.Len(t, p.RequiredActions, 2)
}

func TestLoadCatalog_EmptyOrMissing(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("protocols: []\n"), 0o600))
	_, err = LoadCatalog(path)
	require.Error(t, err)
}
