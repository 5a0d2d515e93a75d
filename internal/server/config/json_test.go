package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("full overlay", func(t *testing.T) {
		path := writeTempConfig(t, `{
			"endpoint_addr_http": ":7070",
			"database_dsn": "postgres://u:p@h/db",
			"jwt_secret": "sss",
			"access_token_validity_duration": "90m",
			"cipher_key_hex": "00112233445566778899aabbccddeeff",
			"cipher_passphrase": "phrase",
			"cipher_salt": "pepper"
		}`)
		os.Args = []string{"testbin", "-c", path}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, ":7070", cfg.EndpointAddrHTTP)
		assert.Equal(t, "postgres://u:p@h/db", cfg.DatabaseDSN)
		assert.Equal(t, "sss", cfg.JWTSecret)
		assert.Equal(t, 90*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, "00112233445566778899aabbccddeeff", cfg.CipherKeyHex)
		assert.Equal(t, "phrase", cfg.CipherPassphrase)
		assert.Equal(t, "pepper", cfg.CipherSalt)
	})

	t.Run("no config flag is a no-op", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/does/not/exist.json"}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("invalid json panics", func(t *testing.T) {
		bad := writeTempConfig(t, `{invalid`)
		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
