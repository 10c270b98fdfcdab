package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/drivebox/internal/errs"
)

func TestStatic(t *testing.T) {
	src := map[string]int64{"alice": 1, "bob": 2}
	dir := NewStatic(src)
	src["mallory"] = 3

	id, err := dir.LookupID(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	_, err = dir.LookupID(context.Background(), "mallory")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	assert.NoError(t, dir.Ping(context.Background()))
	assert.NoError(t, dir.Close())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"static empty", Config{Driver: DriverStatic}, false},
		{"static bad id", Config{Driver: DriverStatic, Users: map[string]int64{"x": 0}}, true},
		{"postgres with dsn", Config{Driver: DriverPostgres, DSN: "postgres://localhost/db"}, false},
		{"mysql without dsn", Config{Driver: DriverMySQL}, true},
		{"unknown", Config{Driver: "sqlite"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DriverStatic, cfg.Driver)
	assert.NoError(t, cfg.Validate())
}
