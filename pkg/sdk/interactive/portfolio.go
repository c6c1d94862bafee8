package interactive

import (
	"context"
	"net/http"
)

// GetProfile 用户资料；clientID 可选
func (c *Client) GetProfile(ctx context.Context, req *AccountRequest) (*Response, error) {
	return c.gated(ctx, msgProfile, http.MethodGet, c.paths.Profile,
		query{}.add("clientID", req.clientID()), nil)
}

// GetBalance 资金余额；clientID 可选
func (c *Client) GetBalance(ctx context.Context, req *AccountRequest) (*Response, error) {
	return c.gated(ctx, msgBalance, http.MethodGet, c.paths.Balance,
		query{}.add("clientID", req.clientID()), nil)
}

// GetHoldings 持有的证券；clientID 可选
func (c *Client) GetHoldings(ctx context.Context, req *AccountRequest) (*Response, error) {
	return c.gated(ctx, msgHoldings, http.MethodGet, c.paths.Holding,
		query{}.add("clientID", req.clientID()), nil)
}

// GetPositions 持仓；dayOrNet 缺省为 DayWise，查询串顺序固定为 dayOrNet、clientID
func (c *Client) GetPositions(ctx context.Context, req *PositionsRequest) (*Response, error) {
	dayOrNet := DefaultDayOrNet
	var clientID string
	if req != nil {
		if req.DayOrNet != "" {
			dayOrNet = req.DayOrNet
		}
		clientID = req.ClientID
	}
	q := query{}.add("dayOrNet", dayOrNet).add("clientID", clientID)
	return c.gated(ctx, msgPositions, http.MethodGet, c.paths.Position, q, nil)
}

// PositionConversion 转换持仓的产品类型
func (c *Client) PositionConversion(ctx context.Context, req *PositionConversionRequest) (*Response, error) {
	var body any
	if req != nil {
		body = req
	}
	return c.gated(ctx, msgConvert, http.MethodPut, c.paths.Convert, nil, body)
}

// SquareOff 平仓
func (c *Client) SquareOff(ctx context.Context, req *SquareOffRequest) (*Response, error) {
	var body any
	if req != nil {
		body = req
	}
	return c.gated(ctx, msgSquareOff, http.MethodPut, c.paths.SquareOff, nil, body)
}
