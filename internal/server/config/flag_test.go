package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	// Test cases
	tests := []struct {
		start       *Config
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:8081", "-g", "127.0.0.1:9090", "-d", "db", "-s", "secret", "-i", "issuer",
			"-t", "1", "-r", "3", "-o", "2", "-p", "argon2id", "-l", "debug",
		}, expectPanic: false,
			start: &Config{},
			expected: &Config{
				EndpointAddrHTTP:             "127.0.0.1:8081",
				EndpointAddrGRPC:             "127.0.0.1:9090",
				DatabaseDSN:                  "db",
				SecretKey:                    "secret",
				TokenIssuer:                  "issuer",
				AccessTokenValidityDuration:  1 * time.Minute,
				RefreshTokenValidityDuration: 3 * time.Minute,
				StoreTimeout:                 2 * time.Second,
				PasswordHasher:               "argon2id",
				LogLevel:                     "debug",
			}},
		{name: "unset durations keep sub-unit values", args: []string{"cmd", "-a", ":9999"},
			start: &Config{StoreTimeout: 1500 * time.Millisecond, AccessTokenValidityDuration: 90 * time.Second},
			expected: &Config{
				EndpointAddrHTTP:            ":9999",
				StoreTimeout:                1500 * time.Millisecond,
				AccessTokenValidityDuration: 90 * time.Second,
			}},
		{name: "foreign flags ignored", args: []string{"cmd", "-c", "cfg.json", "-x", "y", "-s", "k"},
			start:    &Config{},
			expected: &Config{SecretKey: "k"}},
		{name: "bad int panics", args: []string{"cmd", "-t", "soon"},
			start: &Config{}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := tt.start

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
