package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, yaml string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "scimd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, `
listen_address: "127.0.0.1:9000"
request_timeout_seconds: 15
default_count: 50
max_count: 100
ldapmap_dir: "/etc/scimd/ldapmap"
ldap:
  url: "ldaps://directory.example.com"
  bind_dn: "cn=scimd,dc=example,dc=com"
  bind_password: "secret"
  base_dn: "dc=example,dc=com"
  pool_size: 4
  max_retries: 2
  max_sort_candidates: 5000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	assert.Equal(t, 15*1000000000, int(cfg.RequestTimeout()))
	assert.Equal(t, "ldaps://directory.example.com", cfg.Ldap.URL)
	assert.Equal(t, 4, cfg.Ldap.PoolSize)
}

func TestLoadMissingRequiredFieldFails(t *testing.T) {
	path := writeTempConfig(t, `
listen_address: "127.0.0.1:9000"
ldapmap_dir: "/etc/scimd/ldapmap"
ldap:
  bind_dn: "cn=scimd,dc=example,dc=com"
  bind_password: "secret"
  base_dn: "dc=example,dc=com"
`)

	_, err := Load(path)
	assert.Error(t, err, "a missing ldap.url must fail validation")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestDefaultHasSaneBounds(t *testing.T) {
	cfg := Default()
	assert.Greater(t, cfg.MaxCount, 0)
	assert.GreaterOrEqual(t, cfg.MaxCount, cfg.DefaultCount)
	assert.Greater(t, cfg.Ldap.PoolSize, 0)
}
