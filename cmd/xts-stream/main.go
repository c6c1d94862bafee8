package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/xtsgo/internal/journal"
	"github.com/betbot/xtsgo/internal/metrics"
	"github.com/betbot/xtsgo/pkg/config"
	"github.com/betbot/xtsgo/pkg/logger"
	"github.com/betbot/xtsgo/pkg/sdk/interactive"
	"github.com/betbot/xtsgo/pkg/sdk/websocket"
	"github.com/betbot/xtsgo/pkg/shutdown"
	"github.com/betbot/xtsgo/pkg/tokenstore"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", getenv("XTS_CONFIG", ""), "YAML config file")
		userID     = flag.String("user", getenv("XTS_USER_ID", ""), "XTS userID")
		storePath  = flag.String("store", getenv("XTS_TOKEN_STORE", "data/tokens.badger"), "token store directory")
		storeKey   = flag.String("store-key", getenv("XTS_TOKEN_STORE_KEY", ""), "token store encryption key (hex)")
		dbPath     = flag.String("journal", getenv("XTS_JOURNAL_DB", "data/events.db"), "SQLite event journal")
		debugAddr  = flag.String("debug-addr", getenv("XTS_DEBUG_ADDR", ""), "expvar/pprof listen address (empty disables)")
	)
	flag.Parse()

	if err := run(*configPath, *userID, *storePath, *storeKey, *dbPath, *debugAddr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		os.Exit(1)
	}
}

func run(configPath, userID, storePath, storeKey, dbPath, debugAddr string) error {
	if userID == "" {
		return fmt.Errorf("userID is required: set XTS_USER_ID or pass -user")
	}
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.LoggerConfig()); err != nil {
		return err
	}
	stopRotation := logger.StartLogRotationChecker()
	defer stopRotation()

	token, err := storedToken(storePath, storeKey, userID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if debugAddr != "" {
		addr, err := metrics.StartAsync(ctx, debugAddr)
		if err != nil {
			return err
		}
		logger.Infof("debug server listening on %s", addr)
	}

	session := interactive.NewFromConfig(cfg)
	if _, err := session.LoginWithToken(ctx, userID, token); err != nil {
		return err
	}

	j, err := journal.Open(dbPath)
	if err != nil {
		return err
	}

	events := websocket.NewInteractiveClient(cfg.URL, websocket.WithConfig(websocket.ConfigFrom(cfg.Socket)))
	wire(ctx, events, j)

	if err := events.Init(websocket.InitRequest{UserID: userID, Token: token}); err != nil {
		_ = j.Close()
		return err
	}

	m := shutdown.NewManager()
	m.OnShutdown("interactive socket", func(context.Context) error { return events.Close() })
	m.OnShutdown("journal", func(context.Context) error { return j.Close() })

	logger.Infof("xts-stream 已启动 userID=%s journal=%s", userID, dbPath)
	shutdown.WaitForSignal(ctx)

	sctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return m.Shutdown(sctx)
}

// storedToken 读出 xts-cli login 保存的 token
func storedToken(path, rawKey, userID string) (string, error) {
	key, err := tokenstore.ParseKey(rawKey)
	if err != nil {
		return "", err
	}
	store, err := tokenstore.OpenWithOptions(tokenstore.Options{Path: path, EncryptionKey: key})
	if err != nil {
		return "", err
	}
	defer store.Close()
	entry, err := store.Load(userID)
	if err != nil {
		return "", fmt.Errorf("no stored token for %s, run xts-cli login first: %w", userID, err)
	}
	return entry.Token, nil
}

// wire 打印所有事件，并把订单/成交/持仓写入日志库
func wire(ctx context.Context, c *websocket.InteractiveClient, j *journal.Journal) {
	record := func(m websocket.Message) {
		metrics.Events.Add(m.Event, 1)
		logger.Infof("[%s] %s", m.Event, m.Raw)
		if _, err := j.Record(ctx, m.Event, m.Raw); err != nil {
			metrics.JournalErrors.Add(1)
			logger.Errorf("写入事件日志失败: %v", err)
			return
		}
		metrics.JournalWrites.Add(1)
	}
	c.OnConnect(func() {
		metrics.Connects.Add(1)
		logger.Info("socket connected")
	})
	c.OnJoined(func(m websocket.Message) {
		metrics.Events.Add(m.Event, 1)
		logger.Infof("joined: %s", m.Raw)
	})
	c.OnError(func(e websocket.ErrorEvent) {
		metrics.SocketErrors.Add(1)
		logger.Errorf("socket error: %s", e.Error())
	})
	c.OnDisconnect(func(reason string) {
		metrics.Disconnects.Add(1)
		logger.Warnf("socket disconnected: %s", reason)
	})
	c.OnOrder(record)
	c.OnTrade(record)
	c.OnPosition(record)
	c.OnLogout(func(m websocket.Message) {
		logger.Warnf("服务端登出: %s", m.Raw)
		record(m)
	})
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
