// internal/config/config_test.go

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "mock", cfg.EmailProvider)
	assert.Equal(t, "mock", cfg.SMSProvider)
	assert.False(t, cfg.UseS3)
	assert.Equal(t, int64(52428800), cfg.MaxUploadSize)
	assert.Equal(t, float64(25), cfg.NearbyDefaultRadiusKM)
	assert.Equal(t, 50, cfg.MaxNearbyResults)
	assert.Equal(t, 500, cfg.MarkReadBatchLimit)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MARK_READ_BATCH_LIMIT", "100")
	t.Setenv("NEARBY_DEFAULT_RADIUS_KM", "10.5")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 100, cfg.MarkReadBatchLimit)
	assert.Equal(t, 10.5, cfg.NearbyDefaultRadiusKM)
}

func TestValidateDefaults(t *testing.T) {
	require.NoError(t, Load().Validate())
}

func TestValidateRejectsDefaultSecretInProduction(t *testing.T) {
	cfg := Load()
	cfg.Environment = "production"

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMockEmailInProduction(t *testing.T) {
	cfg := Load()
	cfg.Environment = "production"
	cfg.JWTSecret = "a-real-secret"
	cfg.EmailProvider = "mock"

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsIncompleteTwilio(t *testing.T) {
	cfg := Load()
	cfg.SMSProvider = "twilio"

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadBatchLimit(t *testing.T) {
	cfg := Load()
	cfg.MarkReadBatchLimit = 0

	assert.Error(t, cfg.Validate())
}
