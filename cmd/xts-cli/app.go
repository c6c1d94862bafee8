package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/betbot/xtsgo/pkg/config"
	"github.com/betbot/xtsgo/pkg/logger"
	"github.com/betbot/xtsgo/pkg/sdk/interactive"
	"github.com/betbot/xtsgo/pkg/tokenstore"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// app 命令之间共享的状态
type app struct {
	cfg    *config.Config
	client *interactive.Client
	store  *tokenstore.Store
	tp     *sdktrace.TracerProvider
	out    io.Writer
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.LoadFromFile(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	a.cfg = cfg

	lc := cfg.Log.LoggerConfig()
	lc.Console = os.Stderr
	if err := logger.Init(lc); err != nil {
		return ctx, errors.Wrap(err, "初始化日志失败")
	}

	if cmd.Bool("trace") {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return ctx, errors.Wrap(err, "创建 trace exporter 失败")
		}
		a.tp = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		otel.SetTracerProvider(a.tp)
	}

	if a.out == nil {
		a.out = os.Stdout
	}
	a.client = interactive.NewFromConfig(cfg)
	return ctx, nil
}

func (a *app) after(ctx context.Context, _ *cli.Command) error {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("关闭 token 库失败: %v", err)
		}
	}
	if a.tp != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.tp.Shutdown(sctx)
	}
	return nil
}

func (a *app) openStore(cmd *cli.Command) (*tokenstore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	key, err := tokenstore.ParseKey(cmd.String("store-key"))
	if err != nil {
		return nil, err
	}
	s, err := tokenstore.OpenWithOptions(tokenstore.Options{Path: cmd.String("store"), EncryptionKey: key})
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func userID(cmd *cli.Command) (string, error) {
	u := cmd.String("user")
	if u == "" {
		return "", errors.New("缺少 userID：使用 --user 或设置 XTS_USER_ID")
	}
	return u, nil
}

// session 用保存的 token 恢复会话
func (a *app) session(ctx context.Context, cmd *cli.Command) (*interactive.Client, error) {
	user, err := userID(cmd)
	if err != nil {
		return nil, err
	}
	store, err := a.openStore(cmd)
	if err != nil {
		return nil, err
	}
	entry, err := store.Load(user)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, errors.Errorf("%s 没有保存的 token，请先执行 login", user)
	}
	if err != nil {
		return nil, err
	}
	if _, err := a.client.LoginWithToken(ctx, user, entry.Token); err != nil {
		return nil, err
	}
	return a.client, nil
}

// account 账户类请求的 clientID；命令上的 --client-id 优先
func account(cmd *cli.Command) *interactive.AccountRequest {
	return &interactive.AccountRequest{ClientID: cmd.String("client-id")}
}

// print 输出响应的 result（缩进 JSON）
func (a *app) print(title string, resp *interactive.Response) error {
	fmt.Fprintln(a.out, titleStyle.Render(title))
	if resp == nil || len(resp.Result) == 0 {
		fmt.Fprintln(a.out, "(empty)")
		return nil
	}
	var v any
	if err := json.Unmarshal(resp.Result, &v); err != nil {
		_, err = a.out.Write(append(resp.Result, '\n'))
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

// describe 把 SDK 错误整理成一行
func describe(err error) error {
	var ie *interactive.Error
	if errors.As(err, &ie) {
		return errors.New(errorStyle.Render(fmt.Sprintf("[%d] %s", ie.StatusCode, ie.Message)))
	}
	return err
}
