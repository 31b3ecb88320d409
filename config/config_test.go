// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortschak/miband/auth"
)

const testKey = "000102030405060708090a0b0c0d0e0f"

func clearEnv(t *testing.T) {
	for _, k := range []string{EnvAddress, EnvKey, EnvDataDir, EnvOWMKey} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "miband.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "miband", c.DataDir)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "Home", c.Weather.Place)
	assert.Equal(t, "metric", c.Weather.Units)
	assert.Equal(t, 10*time.Second, c.Timeout.Scan)
	assert.Equal(t, 30*time.Second, c.Timeout.Data)
	assert.Equal(t, time.Hour, c.Serve.Sync)
	assert.Nil(t, c.Offset)
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
address: "c8:0f:10:aa:bb:cc"
key: `+testKey+`
offset: 0
weather:
  place: Berlin
  latitude: 52.52
  longitude: 13.405
  language: de
timeout:
  chunk: 2s
serve:
  sync: 15m
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "c8:0f:10:aa:bb:cc", c.Address)
	require.NotNil(t, c.Offset)
	assert.Equal(t, 0, *c.Offset)
	assert.Equal(t, "Berlin", c.Weather.Place)
	assert.Equal(t, 52.52, c.Weather.Latitude)
	assert.Equal(t, "de", c.Weather.Language)
	assert.Equal(t, "metric", c.Weather.Units, "default kept")
	assert.Equal(t, 2*time.Second, c.Timeout.Chunk)
	assert.Equal(t, 10*time.Second, c.Timeout.Response, "default kept")
	assert.Equal(t, 15*time.Minute, c.Serve.Sync)

	b, err := c.Band()
	require.NoError(t, err)
	assert.Equal(t, 0, b.Offset)
	assert.Equal(t, "Berlin", b.Place)
	assert.Equal(t, 2*time.Second, b.ChunkTimeout)
	assert.Len(t, b.Key, auth.KeySize)
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAddress, "aa:bb")
	t.Setenv(EnvKey, testKey)
	t.Setenv(EnvDataDir, "/tmp/band")
	t.Setenv(EnvOWMKey, "secret")
	path := writeConfig(t, "address: cc:dd\ndata_dir: here\n")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "aa:bb", c.Address)
	assert.Equal(t, testKey, c.Key)
	assert.Equal(t, "/tmp/band", c.DataDir)
	assert.Equal(t, "secret", c.Weather.APIKey)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
	}{
		{name: "short_key", content: "key: 0001\n"},
		{name: "bad_key", content: "key: zz\n"},
		{name: "offset", content: "offset: 96\n"},
		{name: "level", content: "log_level: loud\n"},
		{name: "syntax", content: "weather: [\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBandNoKey(t *testing.T) {
	clearEnv(t)
	c, err := Load("")
	require.NoError(t, err)
	_, err = c.Band()
	assert.ErrorContains(t, err, EnvKey)
}

func TestLocalOffset(t *testing.T) {
	c := Default()
	at := time.Date(2024, 7, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	assert.Equal(t, 8, c.LocalOffset(at))

	at = time.Date(2024, 7, 1, 12, 0, 0, 0, time.FixedZone("NST", -(3*60*60 + 30*60)))
	assert.Equal(t, -14, c.LocalOffset(at))

	off := 4
	c.Offset = &off
	assert.Equal(t, 4, c.LocalOffset(at))
}

func TestNewLogger(t *testing.T) {
	c := Default()
	c.LogLevel = "debug"
	assert.Equal(t, logrus.DebugLevel, c.NewLogger().GetLevel())
}
