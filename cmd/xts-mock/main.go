package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/xtsgo/internal/xtsmock"
	"github.com/betbot/xtsgo/pkg/config"
	"github.com/betbot/xtsgo/pkg/logger"
	"github.com/betbot/xtsgo/pkg/shutdown"
)

func main() {
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		addr        = flag.String("addr", getenv("XTSMOCK_ADDR", ":3000"), "HTTP listen address")
		configPath  = flag.String("config", getenv("XTS_CONFIG", ""), "YAML config file (paths and logging)")
		userID      = flag.String("user", getenv("XTSMOCK_USER", ""), "accepted userID (empty accepts any)")
		password    = flag.String("password", getenv("XTSMOCK_PASSWORD", ""), "accepted password (empty accepts any)")
		token       = flag.String("token", getenv("XTSMOCK_TOKEN", ""), "fixed token to issue")
		clientCodes = flag.String("client-codes", getenv("XTSMOCK_CLIENT_CODES", ""), "comma separated client codes")
		investor    = flag.Bool("investor", false, "report the user as an investor client")
	)
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fatal(err)
	}
	if err := logger.Init(cfg.Log.LoggerConfig()); err != nil {
		fatal(err)
	}

	var codes []string
	for _, c := range strings.Split(*clientCodes, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}

	mock := xtsmock.New(xtsmock.Options{
		UserID:           *userID,
		Password:         *password,
		Token:            *token,
		ClientCodes:      codes,
		IsInvestorClient: *investor,
		Paths:            cfg.RestAPI,
		SocketPath:       cfg.Socket.Path,
	})
	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           mock,
		ReadHeaderTimeout: 5 * time.Second,
	}

	m := shutdown.NewManager()
	m.OnShutdown("sockets", func(context.Context) error {
		mock.DropAll()
		return nil
	})
	m.OnShutdown("http", httpSrv.Shutdown)

	go func() {
		logger.Infof("xts-mock listening on %s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	shutdown.WaitForSignal(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		fatal(err)
	}
	fmt.Println("xts-mock stopped")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
