package utils

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresDSN_BuildsURL(t *testing.T) {
	dsn, err := postgresDSN(PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "svg2img",
		User:     "user",
		Password: "p@ss word",
		SSLMode:  "disable",
	})
	assert.NoError(t, err)

	u, err := url.Parse(dsn)
	assert.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "localhost:5432", u.Host)
	assert.Equal(t, "/svg2img", u.Path)
	assert.Equal(t, "user", u.User.Username())
	pw, ok := u.User.Password()
	assert.True(t, ok)
	assert.Equal(t, "p@ss word", pw)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

func TestPostgresDSN_Passthrough(t *testing.T) {
	raw := "postgres://u:p@localhost:5432/db?sslmode=disable"
	dsn, err := postgresDSN(PostgresConfig{Host: raw})
	assert.NoError(t, err)
	assert.Equal(t, raw, dsn)
}

func TestPostgresDSN_IPv6AndDefaultPort(t *testing.T) {
	dsn, err := postgresDSN(PostgresConfig{Host: "::1", Database: "d", User: "u"})
	assert.NoError(t, err)
	u, err := url.Parse(dsn)
	assert.NoError(t, err)
	assert.Equal(t, "[::1]:5432", u.Host)
}

func TestPostgresDSN_HostWithPort(t *testing.T) {
	dsn, err := postgresDSN(PostgresConfig{Host: "[::1]:6000", Port: 5432, Database: "d", User: "u"})
	assert.NoError(t, err)
	u, err := url.Parse(dsn)
	assert.NoError(t, err)
	assert.Equal(t, "[::1]:6000", u.Host)
	assert.Empty(t, u.RawQuery)
}

func TestPostgresDSN_MissingFields(t *testing.T) {
	for _, cfg := range []PostgresConfig{
		{Host: "h", User: "u"},
		{Host: "h", Database: "d"},
	} {
		_, err := postgresDSN(cfg)
		assert.Error(t, err)
	}
}

func TestOpenHistory_DisabledWithoutHost(t *testing.T) {
	store, err := OpenHistory(context.Background(), PostgresConfig{})
	assert.Nil(t, store)
	assert.True(t, errors.Is(err, ErrHistoryDisabled))
}

func TestNilHistoryStoreIsNoop(t *testing.T) {
	var s *HistoryStore
	assert.NoError(t, s.Record(context.Background(), ConversionRecord{Format: "png"}))
	assert.NoError(t, s.Close())
}

func TestConversionRecordStatus(t *testing.T) {
	assert.Equal(t, "ok", ConversionRecord{}.Status())
	assert.Equal(t, "failed", ConversionRecord{Err: errors.New("boom")}.Status())
}
