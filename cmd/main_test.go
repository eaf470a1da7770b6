package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"temperaturebox/internal/config"
	"temperaturebox/internal/device"
	"temperaturebox/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigningKey(t *testing.T) {
	log := logger.Nop()

	s := &config.Settings{Auth: config.AuthSettings{Enabled: true, SigningKey: "k"}}
	assert.Equal(t, "k", signingKey(s, log))

	s.Auth.SigningKey = ""
	a, b := signingKey(s, log), signingKey(s, log)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestSerialSettings(t *testing.T) {
	s := &config.Settings{Device: config.DeviceSettings{
		BaudRate: 19200, DataBits: 8, Parity: "E", StopBits: 1, Timeout: 0.25,
	}}
	got := serialSettings(s)
	assert.Equal(t, device.SerialSettings{
		BaudRate: 19200, DataBits: 8, Parity: "E", StopBits: 1, Timeout: 250 * time.Millisecond,
	}, got)
}

func TestLineSettings_DefaultsWithoutDocument(t *testing.T) {
	old := configPath
	t.Cleanup(func() { configPath = old })
	configPath = filepath.Join(t.TempDir(), "missing.json")

	s, err := lineSettings()
	require.NoError(t, err)
	assert.Equal(t, device.DriverModbus, s.Device.Driver)
	assert.Equal(t, uint(9600), s.Device.BaudRate)
	assert.Equal(t, 500*time.Millisecond, s.DeviceTimeout())
}

func TestLineSettings_BrokenDocumentIsAnError(t *testing.T) {
	old := configPath
	t.Cleanup(func() { configPath = old })
	configPath = filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0o644))

	_, err := lineSettings()
	assert.Error(t, err)
}

func TestLoadSettings_MissingFileNamesThePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := loadSettings(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), "settings.example.json")
	assert.True(t, config.IsNotExist(err))
}

func TestCheckCmd_ValidatesFlags(t *testing.T) {
	cases := map[string][]string{
		"--port is required": {"--address", "3"},
		"--address must be":  {"--port", "/dev/null", "--address", "30"},
	}
	for want, args := range cases {
		cmd := newCheckCmd()
		cmd.SetArgs(args)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		err := cmd.Execute()
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), want), "got %v", err)
	}
}
