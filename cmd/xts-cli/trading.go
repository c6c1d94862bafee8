package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"github.com/betbot/xtsgo/pkg/sdk/interactive"
)

type accountCall func(*interactive.Client, context.Context, *interactive.AccountRequest) (*interactive.Response, error)

func accountCommand(a *app, name, usage string, call accountCall) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := a.session(ctx, cmd)
			if err != nil {
				return describe(err)
			}
			resp, err := call(c, ctx, account(cmd))
			if err != nil {
				return describe(err)
			}
			return a.print(name, resp)
		},
	}
}

// run 恢复会话后执行一次请求并输出结果
func (a *app) run(name string, fn func(context.Context, *cli.Command, *interactive.Client) (*interactive.Response, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		c, err := a.session(ctx, cmd)
		if err != nil {
			return describe(err)
		}
		resp, err := fn(ctx, cmd, c)
		if err != nil {
			return describe(err)
		}
		return a.print(name, resp)
	}
}

// price 按十进制解析价格参数，空值为 0
func price(cmd *cli.Command, name string) (float64, error) {
	raw := cmd.String(name)
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "--%s 不是合法价格", name)
	}
	if d.IsNegative() {
		return 0, errors.Errorf("--%s 不能为负", name)
	}
	return d.InexactFloat64(), nil
}

func uniqueID(cmd *cli.Command) string {
	if id := cmd.String("uid"); id != "" {
		return id
	}
	return uuid.NewString()
}

func uidFlag() cli.Flag {
	return &cli.StringFlag{Name: "uid", Usage: "orderUniqueIdentifier，缺省时生成 uuid"}
}

func instrumentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "segment", Usage: "exchangeSegment", Value: "NSECM"},
		&cli.IntFlag{Name: "instrument", Usage: "exchangeInstrumentID", Required: true},
	}
}

func positionsCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "positions",
		Usage: "持仓",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "day-or-net", Usage: "DayWise 或 NetWise", Value: interactive.DefaultDayOrNet},
		},
		Action: a.run("positions", func(ctx context.Context, cmd *cli.Command, c *interactive.Client) (*interactive.Response, error) {
			return c.GetPositions(ctx, &interactive.PositionsRequest{
				DayOrNet: cmd.String("day-or-net"),
				ClientID: cmd.String("client-id"),
			})
		}),
	}
}

func historyCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "单笔订单历史",
		ArgsUsage: "<appOrderID>",
		Action: a.run("history", func(ctx context.Context, cmd *cli.Command, c *interactive.Client) (*interactive.Response, error) {
			id := cmd.Args().First()
			if id == "" {
				return nil, errors.New("缺少 appOrderID")
			}
			return c.GetOrderHistory(ctx, id, account(cmd))
		}),
	}
}

func placeCommand(a *app) *cli.Command {
	flags := append(instrumentFlags(),
		&cli.StringFlag{Name: "product", Usage: "productType", Value: "MIS"},
		&cli.StringFlag{Name: "type", Usage: "orderType", Value: "Limit"},
		&cli.StringFlag{Name: "side", Usage: "BUY 或 SELL", Required: true},
		&cli.StringFlag{Name: "tif", Usage: "timeInForce", Value: "DAY"},
		&cli.IntFlag{Name: "qty", Usage: "数量", Required: true},
		&cli.IntFlag{Name: "disclosed", Usage: "披露数量"},
		&cli.StringFlag{Name: "price", Usage: "限价"},
		&cli.StringFlag{Name: "stop", Usage: "触发价"},
		uidFlag(),
	)
	return &cli.Command{
		Name:  "place",
		Usage: "下单",
		Flags: flags,
		Action: a.run("place", func(ctx context.Context, cmd *cli.Command, c *interactive.Client) (*interactive.Response, error) {
			limit, err := price(cmd, "price")
			if err != nil {
				return nil, err
			}
			stop, err := price(cmd, "stop")
			if err != nil {
				return nil, err
			}
			return c.PlaceOrder(ctx, &interactive.PlaceOrderRequest{
				ExchangeSegment:       cmd.String("segment"),
				ExchangeInstrumentID:  cmd.Int("instrument"),
				ProductType:           cmd.String("product"),
				OrderType:             cmd.String("type"),
				OrderSide:             cmd.String("side"),
				TimeInForce:           cmd.String("tif"),
				DisclosedQuantity:     cmd.Int("disclosed"),
				OrderQuantity:         cmd.Int("qty"),
				LimitPrice:            limit,
				StopPrice:             stop,
				OrderUniqueIdentifier: uniqueID(cmd),
				ClientID:              cmd.String("client-id"),
			})
		}),
	}
}

func modifyCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "modify",
		Usage: "改单",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "app-order-id", Required: true},
			&cli.StringFlag{Name: "product", Value: "MIS"},
			&cli.StringFlag{Name: "type", Value: "Limit"},
			&cli.IntFlag{Name: "qty", Required: true},
			&cli.IntFlag{Name: "disclosed"},
			&cli.StringFlag{Name: "price"},
			&cli.StringFlag{Name: "stop"},
			&cli.StringFlag{Name: "tif", Value: "DAY"},
			&cli.StringFlag{Name: "expiry", Usage: "modifiedOrderExpiryDate"},
			&cli.StringFlag{Name: "uid", Usage: "orderUniqueIdentifier"},
		},
		Action: a.run("modify", func(ctx context.Context, cmd *cli.Command, c *interactive.Client) (*interactive.Response, error) {
			limit, err := price(cmd, "price")
			if err != nil {
				return nil, err
			}
			stop, err := price(cmd, "stop")
			if err != nil {
				return nil, err
			}
			return c.ModifyOrder(ctx, &interactive.ModifyOrderRequest{
				AppOrderID:                cmd.Int("app-order-id"),
				ModifiedProductType:       cmd.String("product"),
				ModifiedOrderType:         cmd.String("type"),
				ModifiedOrderQuantity:     cmd.Int("qty"),
				ModifiedDisclosedQuantity: cmd.Int("disclosed"),
				ModifiedLimitPrice:        limit,
				ModifiedStopPrice:         stop,
				ModifiedTimeInForce:       cmd.String("tif"),
				ModifiedOrderExpiryDate:   cmd.String("expiry"),
				OrderUniqueIdentifier:     cmd.String("uid"),
				ClientID:                  cmd.String("client-id"),
			})
		}),
	}
}

func cancelCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "cancel",
		Usage: "撤单",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "app-order-id", Required: true},
			&cli.StringFlag{Name: "uid", Usage: "orderUniqueIdentifier"},
		},
		Action: a.run("cancel", func(ctx context.Context, cmd *cli.Command, c *interactive.Client) (*interactive.Response, error) {
			return c.CancelOrder(ctx, &interactive.CancelOrderRequest{
				AppOrderID:            cmd.Int("app-order-id"),
				OrderUniqueIdentifier: cmd.String("uid"),
				ClientID:              cmd.String("client-id"),
			})
		}),
	}
}

func convertCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "转换持仓的产品类型",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "app-order-id", Required: true},
			&cli.StringFlag{Name: "execution-id", Required: true},
			&cli.StringFlag{Name: "from", Usage: "oldProductType", Required: true},
			&cli.StringFlag{Name: "to", Usage: "newProductType", Required: true},
		},
		Action: a.run("convert", func(ctx context.Context, cmd *cli.Command, c *interactive.Client) (*interactive.Response, error) {
			return c.PositionConversion(ctx, &interactive.PositionConversionRequest{
				AppOrderID:     cmd.Int("app-order-id"),
				ExecutionID:    cmd.String("execution-id"),
				OldProductType: cmd.String("from"),
				NewProductType: cmd.String("to"),
				ClientID:       cmd.String("client-id"),
			})
		}),
	}
}

func squareOffCommand(a *app) *cli.Command {
	flags := append(instrumentFlags(),
		&cli.StringFlag{Name: "product", Value: "MIS"},
		&cli.StringFlag{Name: "mode", Usage: "DayWise 或 NetWise", Value: "DayWise"},
		&cli.StringFlag{Name: "qty-type", Usage: "Percentage 或 ExactQty", Value: "Percentage"},
		&cli.IntFlag{Name: "qty", Usage: "平仓数量或百分比", Value: 100},
	)
	return &cli.Command{
		Name:  "squareoff",
		Usage: "平仓",
		Flags: flags,
		Action: a.run("squareoff", func(ctx context.Context, cmd *cli.Command, c *interactive.Client) (*interactive.Response, error) {
			return c.SquareOff(ctx, &interactive.SquareOffRequest{
				ExchangeSegment:               cmd.String("segment"),
				ExchangeInstrumentID:          cmd.Int("instrument"),
				ProductType:                   cmd.String("product"),
				SquareoffMode:                 cmd.String("mode"),
				PositionSquareOffQuantityType: cmd.String("qty-type"),
				SquareOffQtyValue:             cmd.Int("qty"),
				ClientID:                      cmd.String("client-id"),
			})
		}),
	}
}

func coverCommand(a *app) *cli.Command {
	placeFlags := append(instrumentFlags(),
		&cli.StringFlag{Name: "side", Required: true},
		&cli.IntFlag{Name: "qty", Required: true},
		&cli.IntFlag{Name: "disclosed"},
		&cli.StringFlag{Name: "price", Usage: "入场限价，缺省为市价"},
		&cli.StringFlag{Name: "stop", Usage: "止损触发价", Required: true},
		uidFlag(),
	)
	return &cli.Command{
		Name:  "cover",
		Usage: "cover 单",
		Commands: []*cli.Command{
			{
				Name:  "place",
				Usage: "下 cover 单",
				Flags: placeFlags,
				Action: a.run("cover place", func(ctx context.Context, cmd *cli.Command, c *interactive.Client) (*interactive.Response, error) {
					limit, err := price(cmd, "price")
					if err != nil {
						return nil, err
					}
					stop, err := price(cmd, "stop")
					if err != nil {
						return nil, err
					}
					return c.PlaceCoverOrder(ctx, &interactive.CoverOrderRequest{
						ExchangeSegment:       cmd.String("segment"),
						ExchangeInstrumentID:  cmd.Int("instrument"),
						OrderSide:             cmd.String("side"),
						OrderQuantity:         cmd.Int("qty"),
						DisclosedQuantity:     cmd.Int("disclosed"),
						LimitPrice:            limit,
						StopPrice:             stop,
						OrderUniqueIdentifier: uniqueID(cmd),
						ClientID:              cmd.String("client-id"),
					})
				}),
			},
			{
				Name:      "exit",
				Usage:     "退出 cover 单",
				ArgsUsage: "<appOrderID>",
				Action: a.run("cover exit", func(ctx context.Context, cmd *cli.Command, c *interactive.Client) (*interactive.Response, error) {
					id := cmd.Args().First()
					if id == "" {
						return nil, errors.New("缺少 appOrderID")
					}
					return c.ExitCoverOrder(ctx, &interactive.ExitCoverOrderRequest{AppOrderID: id})
				}),
			},
		},
	}
}
