package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
server:
  address: ":9090"
  readTimeout: 5s
logging:
  level: debug
oauth:
  realm: api
  maxAge: 5m
  maxSkew: 30s
store:
  backend: memory
operations:
  - id: list_items
    method: get
    path: /items
    title: List items
    requiresAuth: true
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(testConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Duration())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "api", cfg.OAuth.Realm)
	assert.Equal(t, 5*time.Minute, cfg.OAuth.MaxAge.Duration())
	require.Len(t, cfg.Operations, 1)
	assert.Equal(t, "GET", cfg.Operations[0].Method) // uppercased by Validate
}

func TestLoadFromReaderDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader("{}"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, StoreBackendMemory, cfg.Store.Backend)
	assert.Equal(t, 10*time.Minute, cfg.OAuth.MaxAge.Duration())
	assert.Equal(t, time.Minute, cfg.OAuth.MaxSkew.Duration())
}

func TestLoadFromReaderEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_OAUTH1GW_ADDR", ":7070")

	cfg, err := LoadFromReader(strings.NewReader(`
server:
  address: ${TEST_OAUTH1GW_ADDR}
logging:
  level: ${TEST_OAUTH1GW_LEVEL:-warn}
`))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromReaderValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "store:\n  backend: etcd\n"},
		{"redis without url", "store:\n  backend: redis\n"},
		{"duplicate operation ids", `
operations:
  - {id: a, method: GET, path: /a}
  - {id: a, method: GET, path: /b}
`},
		{"operation without method", `
operations:
  - {id: a, path: /a}
`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFromReader(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestEffectiveNonceTTL(t *testing.T) {
	t.Parallel()

	c := &OAuthConfig{MaxAge: Duration(10 * time.Minute), MaxSkew: Duration(time.Minute)}
	assert.Equal(t, 11*time.Minute, c.EffectiveNonceTTL())

	c.NonceTTL = Duration(time.Hour)
	assert.Equal(t, time.Hour, c.EffectiveNonceTTL())

	assert.Equal(t, time.Duration(0), (&OAuthConfig{}).EffectiveNonceTTL())
}
