package device

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/database"
	_ "github.com/nerrad567/keg-monitor-core/migrations"
)

// testDB opens a temp-file database with every migration applied.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "device-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func weightDevice(chipID string) *Device {
	d := &Device{
		Name:           "Keezer tap " + chipID,
		ChipID:         chipID,
		DeviceType:     TypeWeight,
		EmptyKegWeight: 4400,
		StartVolume:    18927.059,
	}
	ApplyDefaults(d)
	return d
}
