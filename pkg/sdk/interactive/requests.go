package interactive

import (
	"net/url"
	"strconv"
	"strings"
)

// DefaultDayOrNet 持仓查询的默认口径
const DefaultDayOrNet = "DayWise"

// LoginRequest 登录请求
type LoginRequest struct {
	UserID    string `json:"userID"`
	Password  string `json:"password"`
	PublicKey string `json:"publicKey"`
	Source    string `json:"source"`
}

// AccountRequest 可选 clientID 的只读请求（profile/balance/holdings/orderbook/tradebook/history）
type AccountRequest struct {
	ClientID string `json:"clientID,omitempty"`
}

func (r *AccountRequest) clientID() string {
	if r == nil {
		return ""
	}
	return r.ClientID
}

// PositionsRequest 持仓查询
type PositionsRequest struct {
	DayOrNet string `json:"dayOrNet,omitempty"`
	ClientID string `json:"clientID,omitempty"`
}

// PlaceOrderRequest 下单
type PlaceOrderRequest struct {
	ExchangeSegment       string  `json:"exchangeSegment"`
	ExchangeInstrumentID  int64   `json:"exchangeInstrumentID"`
	ProductType           string  `json:"productType"`
	OrderType             string  `json:"orderType"`
	OrderSide             string  `json:"orderSide"`
	TimeInForce           string  `json:"timeInForce"`
	DisclosedQuantity     int64   `json:"disclosedQuantity"`
	OrderQuantity         int64   `json:"orderQuantity"`
	LimitPrice            float64 `json:"limitPrice"`
	StopPrice             float64 `json:"stopPrice"`
	OrderUniqueIdentifier string  `json:"orderUniqueIdentifier"`
	ClientID              string  `json:"clientID,omitempty"`
}

// ModifyOrderRequest 改单
type ModifyOrderRequest struct {
	AppOrderID                int64   `json:"appOrderID"`
	ModifiedProductType       string  `json:"modifiedProductType"`
	ModifiedOrderType         string  `json:"modifiedOrderType"`
	ModifiedOrderQuantity     int64   `json:"modifiedOrderQuantity"`
	ModifiedDisclosedQuantity int64   `json:"modifiedDisclosedQuantity"`
	ModifiedLimitPrice        float64 `json:"modifiedLimitPrice"`
	ModifiedStopPrice         float64 `json:"modifiedStopPrice"`
	ModifiedTimeInForce       string  `json:"modifiedTimeInForce"`
	ModifiedOrderExpiryDate   string  `json:"modifiedOrderExpiryDate,omitempty"`
	OrderUniqueIdentifier     string  `json:"orderUniqueIdentifier"`
	ClientID                  string  `json:"clientID,omitempty"`
}

// CancelOrderRequest 撤单（以查询参数发送）
type CancelOrderRequest struct {
	AppOrderID            int64
	OrderUniqueIdentifier string
	ClientID              string
}

// PositionConversionRequest 持仓产品类型转换
type PositionConversionRequest struct {
	AppOrderID     int64  `json:"appOrderID"`
	ExecutionID    string `json:"executionID"`
	OldProductType string `json:"oldProductType"`
	NewProductType string `json:"newProductType"`
	ClientID       string `json:"clientID,omitempty"`
}

// SquareOffRequest 平仓
type SquareOffRequest struct {
	ExchangeSegment               string `json:"exchangeSegment"`
	ExchangeInstrumentID          int64  `json:"exchangeInstrumentID"`
	ProductType                   string `json:"productType"`
	SquareoffMode                 string `json:"squareoffMode"`
	PositionSquareOffQuantityType string `json:"positionSquareOffQuantityType"`
	SquareOffQtyValue             int64  `json:"squareOffQtyValue"`
	ClientID                      string `json:"clientID,omitempty"`
}

// CoverOrderRequest 下 cover 单
type CoverOrderRequest struct {
	ExchangeSegment       string  `json:"exchangeSegment"`
	ExchangeInstrumentID  int64   `json:"exchangeInstrumentID"`
	OrderSide             string  `json:"orderSide"`
	OrderQuantity         int64   `json:"orderQuantity"`
	DisclosedQuantity     int64   `json:"disclosedQuantity"`
	LimitPrice            float64 `json:"limitPrice"`
	StopPrice             float64 `json:"stopPrice"`
	OrderUniqueIdentifier string  `json:"orderUniqueIdentifier"`
	ClientID              string  `json:"clientID,omitempty"`
}

// ExitCoverOrderRequest 退出 cover 单
type ExitCoverOrderRequest struct {
	AppOrderID string
}

// query 有序查询参数；值为空的参数不输出
type query []queryParam

type queryParam struct {
	key, value string
}

func (q query) add(key, value string) query {
	if value == "" {
		return q
	}
	return append(q, queryParam{key, value})
}

func (q query) encode() string {
	if len(q) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range q {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
