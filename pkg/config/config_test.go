package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobal() {
	globalConfig = nil
	configFilePath = ""
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, DefaultURL, c.URL)
	assert.Equal(t, "/interactive/user/session", c.RestAPI.Session)
	assert.Equal(t, "/interactive/orders", c.RestAPI.OrderHistory)
	assert.Equal(t, "/interactive/socket.io", c.Socket.Path)
	assert.Equal(t, 5*time.Second, c.Socket.ReconnectInterval)
	assert.Equal(t, "joined", c.Socket.Events.Joined)
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	dir := t.TempDir()
	path := filepath.Join(dir, "xts.yaml")
	content := `
url: http://localhost:3000
source: WEB
socket:
  reconnect_interval: 2s
  events:
    order: orderEvent
rest_api:
  profile: /custom/profile
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", c.URL)
	assert.Equal(t, "WEB", c.Source)
	assert.Equal(t, 2*time.Second, c.Socket.ReconnectInterval)
	assert.Equal(t, "orderEvent", c.Socket.Events.Order)
	assert.Equal(t, "trade", c.Socket.Events.Trade, "未出现在文件中的字段应保持默认值")
	assert.Equal(t, "/custom/profile", c.RestAPI.Profile)
	assert.Equal(t, "/interactive/user/balance", c.RestAPI.Balance)
	assert.Same(t, c, Get())
}

func TestEnvOverridesFile(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	t.Setenv("XTS_URL", "http://env-host:9000")
	t.Setenv("XTS_HTTP_TIMEOUT", "15")
	t.Setenv("XTS_LOG_LEVEL", "debug")

	c, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, "http://env-host:9000", c.URL)
	assert.Equal(t, 15*time.Second, c.HTTP.Timeout)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"非法 URL", func(c *Config) { c.URL = "not a url" }},
		{"路径缺少前导斜杠", func(c *Config) { c.RestAPI.Orders = "interactive/orders" }},
		{"重连间隔为 0", func(c *Config) { c.Socket.ReconnectInterval = 0 }},
		{"不支持的 Engine.IO 版本", func(c *Config) { c.Socket.EngineIOVersion = 2 }},
		{"事件名为空", func(c *Config) { c.Socket.Events.Logout = "" }},
		{"未知日志级别", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
