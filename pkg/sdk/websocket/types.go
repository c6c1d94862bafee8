// Package websocket 提供 XTS Interactive 实时事件客户端（Socket.IO over gorilla/websocket）
package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/betbot/xtsgo/pkg/config"
)

const (
	// Socket.IO 路径
	defaultSocketPath = "/interactive/socket.io"

	// 断线后固定间隔重新 init，无退避
	defaultReconnectInterval = 5 * time.Second

	defaultHandshakeTimeout = 10 * time.Second
	defaultEngineIOVersion  = 4
)

// 本地事件名（固定部分）
const (
	EventConnect      = "connect"
	EventConnectError = "connect_error"
	EventError        = "error"
	EventDisconnect   = "disconnect"
)

// EventNames 服务端推送事件名（可配置部分）
type EventNames struct {
	Joined   string
	Order    string
	Trade    string
	Position string
	Logout   string
}

// Config 实时事件客户端配置
type Config struct {
	Path              string        // Socket.IO 路径
	EngineIOVersion   int           // 3 或 4
	ReconnectInterval time.Duration // 断线后检查/重连的间隔
	HandshakeTimeout  time.Duration // WebSocket 握手超时
	ProxyURL          string        // 代理 URL（可选）
	Events            EventNames
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Path:              defaultSocketPath,
		EngineIOVersion:   defaultEngineIOVersion,
		ReconnectInterval: defaultReconnectInterval,
		HandshakeTimeout:  defaultHandshakeTimeout,
		Events: EventNames{
			Joined:   "joined",
			Order:    "order",
			Trade:    "trade",
			Position: "position",
			Logout:   "logout",
		},
	}
}

// ConfigFrom 由应用配置生成客户端配置
func ConfigFrom(s config.SocketConfig) *Config {
	c := DefaultConfig()
	if s.Path != "" {
		c.Path = s.Path
	}
	if s.EngineIOVersion != 0 {
		c.EngineIOVersion = s.EngineIOVersion
	}
	if s.ReconnectInterval > 0 {
		c.ReconnectInterval = s.ReconnectInterval
	}
	if s.HandshakeTimeout > 0 {
		c.HandshakeTimeout = s.HandshakeTimeout
	}
	if s.Events.Joined != "" {
		c.Events.Joined = s.Events.Joined
	}
	if s.Events.Order != "" {
		c.Events.Order = s.Events.Order
	}
	if s.Events.Trade != "" {
		c.Events.Trade = s.Events.Trade
	}
	if s.Events.Position != "" {
		c.Events.Position = s.Events.Position
	}
	if s.Events.Logout != "" {
		c.Events.Logout = s.Events.Logout
	}
	return c
}

// InitRequest init 参数
type InitRequest struct {
	UserID string
	Token  string
}

// Message 应用事件（order/trade/position/logout/joined）。
// Parsed 为 false 时 Value 是原始的未解析内容。
type Message struct {
	Event  string
	Raw    string
	Value  any
	Parsed bool
}

// Decode 把已解析的内容解码到 v
func (m Message) Decode(v any) error {
	if !m.Parsed {
		return fmt.Errorf("%s 事件内容不是 JSON: %q", m.Event, m.Raw)
	}
	return json.Unmarshal([]byte(m.Raw), v)
}

// Order 解码为订单事件
func (m Message) Order() (*OrderEvent, error) {
	var e OrderEvent
	if err := m.Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Trade 解码为成交事件
func (m Message) Trade() (*TradeEvent, error) {
	var e TradeEvent
	if err := m.Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Position 解码为持仓事件
func (m Message) Position() (*PositionEvent, error) {
	var e PositionEvent
	if err := m.Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ErrorEvent 推送给 OnError 的错误
type ErrorEvent struct {
	Type        string          `json:"type"`
	Message     string          `json:"message"`
	Description string          `json:"description,omitempty"`
	Cause       string          `json:"cause,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

func (e ErrorEvent) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Description)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// OrderEvent 订单状态推送
type OrderEvent struct {
	LoginID                 string  `json:"LoginID"`
	ClientID                string  `json:"ClientID"`
	AppOrderID              int64   `json:"AppOrderID"`
	OrderReferenceID        string  `json:"OrderReferenceID"`
	ExchangeOrderID         string  `json:"ExchangeOrderID"`
	ExchangeSegment         string  `json:"ExchangeSegment"`
	ExchangeInstrumentID    int64   `json:"ExchangeInstrumentID"`
	OrderSide               string  `json:"OrderSide"`
	OrderType               string  `json:"OrderType"`
	ProductType             string  `json:"ProductType"`
	TimeInForce             string  `json:"TimeInForce"`
	OrderPrice              float64 `json:"OrderPrice"`
	OrderQuantity           int64   `json:"OrderQuantity"`
	OrderStopPrice          float64 `json:"OrderStopPrice"`
	OrderStatus             string  `json:"OrderStatus"`
	OrderAverageTradedPrice string  `json:"OrderAverageTradedPrice"`
	LeavesQuantity          int64   `json:"LeavesQuantity"`
	CumulativeQuantity      int64   `json:"CumulativeQuantity"`
	OrderUniqueIdentifier   string  `json:"OrderUniqueIdentifier"`
	CancelRejectReason      string  `json:"CancelRejectReason"`
	LastUpdateDateTime      string  `json:"LastUpdateDateTime"`
}

// TradeEvent 成交推送
type TradeEvent struct {
	LoginID                   string  `json:"LoginID"`
	ClientID                  string  `json:"ClientID"`
	AppOrderID                int64   `json:"AppOrderID"`
	ExchangeOrderID           string  `json:"ExchangeOrderID"`
	ExchangeSegment           string  `json:"ExchangeSegment"`
	ExchangeInstrumentID      int64   `json:"ExchangeInstrumentID"`
	OrderSide                 string  `json:"OrderSide"`
	LastTradedPrice           float64 `json:"LastTradedPrice"`
	LastTradedQuantity        int64   `json:"LastTradedQuantity"`
	ExecutionID               string  `json:"ExecutionID"`
	OrderUniqueIdentifier     string  `json:"OrderUniqueIdentifier"`
	LastExecutionTransactTime string  `json:"LastExecutionTransactTime"`
}

// PositionEvent 持仓推送
type PositionEvent struct {
	LoginID              string `json:"LoginID"`
	AccountID            string `json:"AccountID"`
	ExchangeSegment      string `json:"ExchangeSegment"`
	ExchangeInstrumentID int64  `json:"ExchangeInstrumentID"`
	ProductType          string `json:"ProductType"`
	Quantity             string `json:"Quantity"`
	BuyAveragePrice      string `json:"BuyAveragePrice"`
	SellAveragePrice     string `json:"SellAveragePrice"`
	NetAmount            string `json:"NetAmount"`
	MTM                  string `json:"MTM"`
}
