package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/flagx"
	"github.com/dmitrijs2005/stagepass/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. Fields absent from the file leave the current value untouched.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	TokenIssuer                  string         `json:"token_issuer"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	StoreTimeout                 timex.Duration `json:"store_timeout"`
	TxMaxRetries                 *int           `json:"tx_max_retries"`
	PasswordHasher               string         `json:"password_hasher"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	ReactivateOnSignIn           *bool          `json:"reactivate_on_sign_in"`
	SweepInterval                timex.Duration `json:"sweep_interval"`
	HealthCheckInterval          timex.Duration `json:"health_check_interval"`
	LogLevel                     string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the
// -c or -config flag. Without the flag nothing is loaded. An unreadable or
// invalid file panics, like a bad flag does.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

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

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.TokenIssuer, c.TokenIssuer)
	setString(&config.PasswordHasher, c.PasswordHasher)
	setString(&config.LogLevel, c.LogLevel)

	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.StoreTimeout, c.StoreTimeout)
	setDuration(&config.SweepInterval, c.SweepInterval)
	setDuration(&config.HealthCheckInterval, c.HealthCheckInterval)

	if c.TxMaxRetries != nil {
		config.TxMaxRetries = *c.TxMaxRetries
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.ReactivateOnSignIn != nil {
		config.ReactivateOnSignIn = *c.ReactivateOnSignIn
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
