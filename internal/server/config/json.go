package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dbateam/secretvault/internal/flagx"
	"github.com/dbateam/secretvault/internal/timex"
)

// JsonConfig is the DTO for reading JSON configuration files. It uses
// timex.Duration for interval fields, which allows parsing both string values
// such as "90m" and integer nanoseconds. After unmarshalling, its fields are
// copied into the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	JWTSecret                   string         `json:"jwt_secret"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	CipherKeyHex                string         `json:"cipher_key_hex"`
	CipherPassphrase            string         `json:"cipher_passphrase"`
	CipherSalt                  string         `json:"cipher_salt"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; when neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.JWTSecret = c.JWTSecret
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.CipherKeyHex = c.CipherKeyHex
	config.CipherPassphrase = c.CipherPassphrase
	config.CipherSalt = c.CipherSalt
}
