package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
version: "1.0.0"
recipe:
 nutrient_count: 2
 portion_min_per_mille: 200
 portion_max_per_mille: 1000
hydroponic:
 light_on_hour: 7
 light_off_hour: 23
 heartbeat_period_min: 5
 power_loss_detect_min: 5
 max_deficit_minutes: 10080
`

func TestLoad_ParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	tn, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, tn.Recipe.NutrientCount)
	require.Equal(t, 7, tn.Hydroponic.LightOnHour)
}

func TestLoad_RejectsInvertedPortionBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
recipe:
 portion_min_per_mille: 900
 portion_max_per_mille: 100
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	var lastErr error
	w, err := NewWatcher(path, func(e error) { lastErr = e })
	require.NoError(t, err)
	defer w.Close()

	require.Equal(t, 2, w.Current().Recipe.NutrientCount)

	updated := `
recipe:
 nutrient_count: 3
 portion_min_per_mille: 200
 portion_max_per_mille: 1000
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		return w.Current().Recipe.NutrientCount == 3
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, lastErr)
}
