package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/paperflow/pkg/config"
)

func TestNew_Disabled(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Enabled: false}}

	db, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Nil(t, db)

	// Close and Ping tolerate a nil DB
	db.Close()
	assert.ErrorIs(t, db.Ping(context.Background()), ErrDisabled)
}

func TestNew_BadURL(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Enabled: true, URL: "postgres://%zz", MaxConns: 1}}

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to parse database URL")
}

func TestPing(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	t.Setenv("DB_ENABLED", "true")
	cfg, err := config.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := New(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping(ctx))
	assert.Equal(t, int32(cfg.Database.MaxConns), db.Pool.Config().MaxConns)
}
