package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/betbot/xtsgo/pkg/sdk/interactive"
)

func main() {
	// .env 需在解析参数前载入，环境变量来源才能生效
	_ = godotenv.Load()

	if err := newCommand(&app{}).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		os.Exit(1)
	}
}

func newCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "xts-cli",
		Usage: "XTS Interactive 命令行",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML 配置文件", Sources: cli.EnvVars("XTS_CONFIG")},
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "XTS userID", Sources: cli.EnvVars("XTS_USER_ID")},
			&cli.StringFlag{Name: "client-id", Usage: "多账户客户的 clientID", Sources: cli.EnvVars("XTS_CLIENT_ID")},
			&cli.StringFlag{Name: "store", Usage: "token 库目录", Value: "data/tokens.badger", Sources: cli.EnvVars("XTS_TOKEN_STORE")},
			&cli.StringFlag{Name: "store-key", Usage: "token 库加密密钥（hex，16/24/32 字节）", Sources: cli.EnvVars("XTS_TOKEN_STORE_KEY")},
			&cli.BoolFlag{Name: "trace", Usage: "把请求 span 打印到 stderr"},
		},
		Before: a.before,
		After:  a.after,
		Commands: []*cli.Command{
			loginCommand(a),
			loginTokenCommand(a),
			logoutCommand(a),
			enumsCommand(a),
			accountCommand(a, "profile", "用户资料", (*interactive.Client).GetProfile),
			accountCommand(a, "balance", "资金余额", (*interactive.Client).GetBalance),
			accountCommand(a, "holdings", "持有证券", (*interactive.Client).GetHoldings),
			positionsCommand(a),
			accountCommand(a, "orders", "订单簿", (*interactive.Client).GetOrderBook),
			accountCommand(a, "trades", "成交簿", (*interactive.Client).GetTradeBook),
			historyCommand(a),
			placeCommand(a),
			modifyCommand(a),
			cancelCommand(a),
			convertCommand(a),
			squareOffCommand(a),
			coverCommand(a),
		},
	}
}
