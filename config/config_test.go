package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"stakehub/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, "./stakehub-data", cfg.DataDir)
	require.Equal(t, "local", cfg.ServiceEnv)
	require.NotEmpty(t, cfg.OwnerAddress)
	require.NotEmpty(t, cfg.ContractAddress)

	// The default file is written and reloads to the same values.
	_, err = os.Stat(path)
	require.NoError(t, err)
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.OwnerAddress, reloaded.OwnerAddress)
	require.Equal(t, cfg.ContractAddress, reloaded.ContractAddress)
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	owner := key.PubKey().Address().String()

	body := `
RPCAddress = ":7070"
DataDir = "/var/lib/stakehub"
ServiceEnv = "prod"
OwnerAddress = "` + owner + `"
ContractAddress = "` + owner + `"
PausedModules = ["pool"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.RPCAddress)
	require.Equal(t, "/var/lib/stakehub", cfg.DataDir)
	require.Equal(t, "prod", cfg.ServiceEnv)
	require.Equal(t, []string{"pool"}, cfg.PausedModules)

	decoded, err := cfg.Owner()
	require.NoError(t, err)
	require.Equal(t, owner, decoded.String())
}

func TestLoadRejectsBadAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
OwnerAddress = "not-an-address"
ContractAddress = "also-bad"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRequiresOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`RPCAddress = ":8080"`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
