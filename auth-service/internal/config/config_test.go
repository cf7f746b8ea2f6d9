package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGOURL", "mongodb://localhost:27017")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "pharmacy", cfg.MongoDBName)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing mongo url", func(t *testing.T) {
		t.Setenv("MONGOURL", "")
		_, err := Load()
		assert.ErrorContains(t, err, "MONGOURL")
	})

	t.Run("bad bcrypt cost", func(t *testing.T) {
		t.Setenv("MONGOURL", "mongodb://localhost:27017")
		t.Setenv("BCRYPT_COST", "99")
		_, err := Load()
		assert.ErrorContains(t, err, "BCRYPT_COST")
	})
}
