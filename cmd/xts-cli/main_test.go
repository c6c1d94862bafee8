package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/xtsgo/internal/xtsmock"
)

type harness struct {
	t      *testing.T
	config string
	store  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := httptest.NewServer(xtsmock.New(xtsmock.Options{UserID: "U1", Password: "secret"}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := filepath.Join(dir, "xts.yaml")
	body := fmt.Sprintf("url: %s\nlog:\n  level: error\n  dir: %s\n", srv.URL, filepath.Join(dir, "logs"))
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))
	return &harness{t: t, config: cfg, store: filepath.Join(dir, "tokens")}
}

// run 每次都像独立进程一样新建命令
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	argv := append([]string{"xts-cli", "--config", h.config, "--user", "U1", "--store", h.store}, args...)
	err := newCommand(&app{out: &out}).Run(context.Background(), argv)
	return out.String(), err
}

func TestLoginAndTrade(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "请先执行 login")

	_, err = h.run("login", "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid user credentials")

	out, err := h.run("login", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "已登录 U1")

	out, err = h.run("place", "--instrument", "2885", "--side", "BUY", "--qty", "3", "--type", "Market", "--price", "101.5", "--uid", "cli-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"OrderUniqueIdentifier": "cli-1"`)

	out, err = h.run("--client-id", "U1", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, `"OrderStatus": "Filled"`)
	assert.Contains(t, out, `"OrderAverageTradedPrice": "101.50"`)

	out, err = h.run("enums", "--category", "orderTypes")
	require.NoError(t, err)
	assert.Contains(t, out, "Limit, Market, StopLimit, StopMarket")

	_, err = h.run("place", "--instrument", "1", "--side", "BUY", "--qty", "1", "--price", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--price")

	_, err = h.run("logout")
	require.NoError(t, err)
	_, err = h.run("balance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "请先执行 login")
}
