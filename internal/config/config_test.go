package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("ADMIN_PASSWORD_HASH", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 2, 1}, cfg.VotePointWeights)
	assert.Equal(t, 3, cfg.VoteMaxBrands)
	assert.Empty(t, cfg.KafkaBrokers())
	assert.Equal(t, 3*time.Second, cfg.KafkaPublishTimeout)
	assert.Contains(t, cfg.DatabaseDSN(), ":secret@")
}

func TestLoad_CustomWeights(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("ADMIN_PASSWORD_HASH", "x")
	t.Setenv("VOTE_POINT_WEIGHTS", "5, 3")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{5, 3}, cfg.VotePointWeights)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers())
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DBMaxConns:            10,
			DBMinConns:            2,
			VoteMaxBrands:         3,
			VotePointWeights:      []int64{3, 2, 1},
			VotePointDefault:      1,
			AdminMaxLoginAttempts: 3,
			RateLimitRequests:     10,
			RateLimitWindow:       1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "min above max conns", mutate: func(c *Config) { c.DBMinConns = 20 }, wantErr: true},
		{name: "zero max brands", mutate: func(c *Config) { c.VoteMaxBrands = 0 }, wantErr: true},
		{name: "empty weights", mutate: func(c *Config) { c.VotePointWeights = nil }, wantErr: true},
		{name: "negative weight", mutate: func(c *Config) { c.VotePointWeights = []int64{3, -1} }, wantErr: true},
		{name: "zero default points", mutate: func(c *Config) { c.VotePointDefault = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
