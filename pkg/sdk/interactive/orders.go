package interactive

import (
	"context"
	"net/http"
	"strings"
)

// PlaceOrder 下单，请求体原样发送
func (c *Client) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*Response, error) {
	var body any
	if req != nil {
		body = req
	}
	return c.gated(ctx, msgPlaceOrder, http.MethodPost, c.paths.Orders, nil, body)
}

// ModifyOrder 改单；多账户客户必须带 clientID
func (c *Client) ModifyOrder(ctx context.Context, req *ModifyOrderRequest) (*Response, error) {
	var body any
	var clientID string
	if req != nil {
		body = req
		clientID = req.ClientID
	}
	return c.gatedAccount(ctx, msgModifyOrder, clientID, http.MethodPut, c.paths.Orders, nil, body)
}

// CancelOrder 撤单；参数顺序 appOrderID、orderUniqueIdentifier、clientID，空值省略
func (c *Client) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*Response, error) {
	var q query
	var clientID string
	if req != nil {
		q = q.add("appOrderID", formatID(req.AppOrderID)).
			add("orderUniqueIdentifier", req.OrderUniqueIdentifier).
			add("clientID", req.ClientID)
		clientID = req.ClientID
	}
	return c.gatedAccount(ctx, msgCancelOrder, clientID, http.MethodDelete, c.paths.Orders, q, nil)
}

// PlaceCoverOrder 下 cover 单
func (c *Client) PlaceCoverOrder(ctx context.Context, req *CoverOrderRequest) (*Response, error) {
	var body any
	if req != nil {
		body = req
	}
	return c.gated(ctx, msgPlaceCoverOrder, http.MethodPost, c.paths.Cover, nil, body)
}

// ExitCoverOrder 退出 cover 单
func (c *Client) ExitCoverOrder(ctx context.Context, req *ExitCoverOrderRequest) (*Response, error) {
	var appOrderID string
	if req != nil {
		appOrderID = req.AppOrderID
	}
	return c.gated(ctx, msgExitCoverOrder, http.MethodPut, c.paths.Cover,
		query{{key: "appOrderID", value: appOrderID}}, nil)
}

// GetOrderBook 订单簿；多账户客户必须带 clientID
func (c *Client) GetOrderBook(ctx context.Context, req *AccountRequest) (*Response, error) {
	clientID := req.clientID()
	return c.gatedAccount(ctx, msgOrderBook, clientID, http.MethodGet, c.paths.Orders,
		query{}.add("clientID", clientID), nil)
}

// GetTradeBook 成交簿；多账户客户必须带 clientID
func (c *Client) GetTradeBook(ctx context.Context, req *AccountRequest) (*Response, error) {
	clientID := req.clientID()
	return c.gatedAccount(ctx, msgTradeBook, clientID, http.MethodGet, c.paths.Trade,
		query{}.add("clientID", clientID), nil)
}

// GetOrderHistory 单笔订单历史：<orderHistory>/<appOrderID>
func (c *Client) GetOrderHistory(ctx context.Context, appOrderID string, req *AccountRequest) (*Response, error) {
	path := c.paths.OrderHistory
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return c.gated(ctx, msgOrderHistory, http.MethodGet, path+appOrderID,
		query{}.add("clientID", req.clientID()), nil)
}
