package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haulaway/authcore/pkg/jwtx"
)

func validConfig() Config {
	return Config{
		AccessSecret:  "access-secret-0123456789abcdef-0123",
		RefreshSecret: "refresh-secret-0123456789abcdef-012",
		StoreDriver:   "sqlite",
	}
}

func TestValidateAcceptsStrongSecrets(t *testing.T) {
	t.Parallel()

	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsMissingSecrets(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.AccessSecret = ""
	require.ErrorIs(t, cfg.Validate(), ErrMissingSecret)

	cfg = validConfig()
	cfg.RefreshSecret = ""
	require.ErrorIs(t, cfg.Validate(), ErrMissingSecret)
}

func TestValidateRejectsWeakSecrets(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.AccessSecret = "too-short"
	require.ErrorIs(t, cfg.Validate(), jwtx.ErrWeakSecret)
}

func TestValidateRejectsPostgresWithoutDSN(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.StoreDriver = "postgres"
	require.Error(t, cfg.Validate())

	cfg.DatabaseDSN = "postgres://localhost/authcore"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.StoreDriver = "mysql"
	require.Error(t, cfg.Validate())
}
