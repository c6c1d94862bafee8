package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/betbot/xtsgo/pkg/sdk/interactive"
)

func loginCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "用户名密码登录并保存 token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "password", Usage: "密码", Sources: cli.EnvVars("XTS_PASSWORD"), Required: true},
			&cli.StringFlag{Name: "public-key", Usage: "appKey", Sources: cli.EnvVars("XTS_PUBLIC_KEY")},
			&cli.StringFlag{Name: "source", Usage: "请求来源，默认取配置"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			user, err := userID(cmd)
			if err != nil {
				return err
			}
			_, err = a.client.Login(ctx, interactive.LoginRequest{
				UserID:    user,
				Password:  cmd.String("password"),
				PublicKey: cmd.String("public-key"),
				Source:    cmd.String("source"),
			})
			if err != nil {
				return describe(err)
			}
			return a.saveSession(cmd)
		},
	}
}

func loginTokenCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "login-token",
		Usage: "用已有 token 登录并保存",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token", Usage: "已签发的 token", Sources: cli.EnvVars("XTS_TOKEN"), Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			user, err := userID(cmd)
			if err != nil {
				return err
			}
			if _, err := a.client.LoginWithToken(ctx, user, cmd.String("token")); err != nil {
				return describe(err)
			}
			return a.saveSession(cmd)
		},
	}
}

func (a *app) saveSession(cmd *cli.Command) error {
	store, err := a.openStore(cmd)
	if err != nil {
		return err
	}
	s := a.client.Session()
	if err := store.Save(s.UserID, s.Token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, titleStyle.Render("已登录 "+s.UserID))
	fmt.Fprintf(a.out, "clientCodes: %s\ninvestor:    %t\n", strings.Join(s.ClientCodes, ","), s.IsInvestorClient)
	return nil
}

func logoutCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "注销会话并删除保存的 token",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := a.session(ctx, cmd)
			if err != nil {
				return describe(err)
			}
			resp, err := c.Logout(ctx)
			if err != nil {
				return describe(err)
			}
			if err := a.store.Delete(c.UserID()); err != nil {
				return err
			}
			return a.print("logout", resp)
		},
	}
}

func enumsCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "enums",
		Usage: "列出登录枚举展开后的能力表",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Usage: "只列出一个类别（也接受 orderTypes/productTypes/timeInForce）"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := a.session(ctx, cmd)
			if err != nil {
				return describe(err)
			}
			caps := c.Capabilities()
			categories := caps.Categories()
			if only := cmd.String("category"); only != "" {
				categories = []string{only}
			} else {
				categories = append(categories,
					interactive.CategoryOrderTypes, interactive.CategoryProductTypes, interactive.CategoryTimeInForce)
			}
			for _, category := range categories {
				fmt.Fprintf(a.out, "%s %s\n", titleStyle.Render(category), strings.Join(caps.Values(category), ", "))
			}
			return nil
		},
	}
}
