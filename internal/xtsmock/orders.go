package xtsmock

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 订单状态
const (
	statusNew       = "New"
	statusReplaced  = "Replaced"
	statusFilled    = "Filled"
	statusCancelled = "Cancelled"
)

// 未给限价的市价单按此价格成交
var referencePrice = decimal.NewFromInt(100)

type orderView struct {
	LoginID                 string
	ClientID                string
	AppOrderID              int64
	OrderReferenceID        string
	ExchangeOrderID         string
	ExchangeSegment         string
	ExchangeInstrumentID    int64
	OrderSide               string
	OrderType               string
	ProductType             string
	TimeInForce             string
	OrderPrice              float64
	OrderQuantity           int64
	OrderStopPrice          float64
	OrderStatus             string
	OrderAverageTradedPrice string
	LeavesQuantity          int64
	CumulativeQuantity      int64
	OrderUniqueIdentifier   string
	CancelRejectReason      string
	LastUpdateDateTime      string
}

type tradeView struct {
	LoginID                   string
	ClientID                  string
	AppOrderID                int64
	ExchangeOrderID           string
	ExchangeSegment           string
	ExchangeInstrumentID      int64
	OrderSide                 string
	LastTradedPrice           float64
	LastTradedQuantity        int64
	ExecutionID               string
	OrderUniqueIdentifier     string
	LastExecutionTransactTime string
}

type order struct {
	view    orderView
	price   decimal.Decimal
	stop    decimal.Decimal
	history []orderView
	legID   int64 // cover 单的止损腿
}

func (o *order) open() bool {
	return o.view.OrderStatus == statusNew || o.view.OrderStatus == statusReplaced
}

// snapshot 记录当前状态并返回它
func (o *order) snapshot() orderView {
	o.view.OrderPrice = o.price.InexactFloat64()
	o.view.OrderStopPrice = o.stop.InexactFloat64()
	o.view.LastUpdateDateTime = time.Now().Format("02-01-2006 15:04:05")
	o.history = append(o.history, o.view)
	return o.view
}

type placeBody struct {
	ExchangeSegment       string          `json:"exchangeSegment"`
	ExchangeInstrumentID  int64           `json:"exchangeInstrumentID"`
	ProductType           string          `json:"productType"`
	OrderType             string          `json:"orderType"`
	OrderSide             string          `json:"orderSide"`
	TimeInForce           string          `json:"timeInForce"`
	DisclosedQuantity     int64           `json:"disclosedQuantity"`
	OrderQuantity         int64           `json:"orderQuantity"`
	LimitPrice            decimal.Decimal `json:"limitPrice"`
	StopPrice             decimal.Decimal `json:"stopPrice"`
	OrderUniqueIdentifier string          `json:"orderUniqueIdentifier"`
	ClientID              string          `json:"clientID"`
}

type modifyBody struct {
	AppOrderID            int64           `json:"appOrderID"`
	ModifiedProductType   string          `json:"modifiedProductType"`
	ModifiedOrderType     string          `json:"modifiedOrderType"`
	ModifiedOrderQuantity int64           `json:"modifiedOrderQuantity"`
	ModifiedLimitPrice    decimal.Decimal `json:"modifiedLimitPrice"`
	ModifiedStopPrice     decimal.Decimal `json:"modifiedStopPrice"`
	ModifiedTimeInForce   string          `json:"modifiedTimeInForce"`
	OrderUniqueIdentifier string          `json:"orderUniqueIdentifier"`
	ClientID              string          `json:"clientID"`
}

// pending 一次请求产生的推送，解锁后统一发送
type pending struct {
	orders    []orderView
	trades    []tradeView
	positions []positionView
}

func (s *Server) flush(p pending) {
	for _, v := range p.orders {
		s.Push("order", v)
	}
	for _, v := range p.trades {
		s.Push("trade", v)
	}
	for _, v := range p.positions {
		s.Push("position", v)
	}
}

func (s *Server) validatePlace(c *gin.Context, b *placeBody) bool {
	b.OrderSide = strings.ToUpper(b.OrderSide)
	switch {
	case b.OrderSide != "BUY" && b.OrderSide != "SELL":
		fail(c, http.StatusBadRequest, "e-orders-0001", "Invalid orderSide")
	case b.OrderQuantity <= 0:
		fail(c, http.StatusBadRequest, "e-orders-0001", "orderQuantity must be positive")
	case !s.segmentAllows(b.ExchangeSegment, "", ""):
		fail(c, http.StatusBadRequest, "e-orders-0001", "Invalid exchangeSegment")
	case b.OrderType != "" && !s.segmentAllows(b.ExchangeSegment, "orderType", b.OrderType):
		fail(c, http.StatusBadRequest, "e-orders-0001", "Invalid orderType")
	case b.LimitPrice.IsNegative() || b.StopPrice.IsNegative():
		fail(c, http.StatusBadRequest, "e-orders-0001", "Invalid price")
	default:
		return s.checkClientID(c, b.ClientID)
	}
	return false
}

// newOrderLocked 调用方需持有 s.mu
func (s *Server) newOrderLocked(userID string, b placeBody, p *pending) *order {
	s.nextID++
	clientID := b.ClientID
	if clientID == "" {
		clientID = userID
	}
	o := &order{
		price: b.LimitPrice,
		stop:  b.StopPrice,
		view: orderView{
			LoginID:               userID,
			ClientID:              clientID,
			AppOrderID:            s.nextID,
			OrderReferenceID:      uuid.NewString(),
			ExchangeOrderID:       strconv.FormatInt(1100000000+s.nextID, 10),
			ExchangeSegment:       b.ExchangeSegment,
			ExchangeInstrumentID:  b.ExchangeInstrumentID,
			OrderSide:             b.OrderSide,
			OrderType:             b.OrderType,
			ProductType:           b.ProductType,
			TimeInForce:           b.TimeInForce,
			OrderQuantity:         b.OrderQuantity,
			OrderStatus:           statusNew,
			LeavesQuantity:        b.OrderQuantity,
			OrderUniqueIdentifier: b.OrderUniqueIdentifier,
		},
	}
	s.orders[o.view.AppOrderID] = o
	s.orderSeq = append(s.orderSeq, o.view.AppOrderID)
	p.orders = append(p.orders, o.snapshot())

	if strings.EqualFold(b.OrderType, "Market") {
		s.fillLocked(o, p)
	}
	return o
}

// fillLocked 全部成交并更新持仓
func (s *Server) fillLocked(o *order, p *pending) {
	price := o.price
	if price.IsZero() {
		price = referencePrice
	}
	qty := o.view.LeavesQuantity
	o.view.OrderStatus = statusFilled
	o.view.CumulativeQuantity += qty
	o.view.LeavesQuantity = 0
	o.view.OrderAverageTradedPrice = price.StringFixed(2)
	p.orders = append(p.orders, o.snapshot())

	t := tradeView{
		LoginID:                   o.view.LoginID,
		ClientID:                  o.view.ClientID,
		AppOrderID:                o.view.AppOrderID,
		ExchangeOrderID:           o.view.ExchangeOrderID,
		ExchangeSegment:           o.view.ExchangeSegment,
		ExchangeInstrumentID:      o.view.ExchangeInstrumentID,
		OrderSide:                 o.view.OrderSide,
		LastTradedPrice:           price.InexactFloat64(),
		LastTradedQuantity:        qty,
		ExecutionID:               uuid.NewString(),
		OrderUniqueIdentifier:     o.view.OrderUniqueIdentifier,
		LastExecutionTransactTime: time.Now().Format("02-01-2006 15:04:05"),
	}
	s.trades = append(s.trades, t)
	p.trades = append(p.trades, t)

	pos := s.positionLocked(o.view.ClientID, o.view.ExchangeSegment, o.view.ExchangeInstrumentID, o.view.ProductType)
	pos.apply(o.view.OrderSide, qty, price)
	p.positions = append(p.positions, pos.view())
}

func (s *Server) handlePlaceOrder(c *gin.Context) {
	var b placeBody
	if err := c.ShouldBindJSON(&b); err != nil {
		fail(c, http.StatusBadRequest, "e-orders-0001", "Invalid order body: "+err.Error())
		return
	}
	if !s.validatePlace(c, &b) {
		return
	}

	var p pending
	s.mu.Lock()
	o := s.newOrderLocked(c.GetString(ctxUserID), b, &p)
	result := gin.H{"AppOrderID": o.view.AppOrderID, "OrderUniqueIdentifier": o.view.OrderUniqueIdentifier, "ClientID": o.view.ClientID}
	s.mu.Unlock()

	s.flush(p)
	ok(c, "s-orders-0001", "Request sent", result)
}

// lookupLocked 调用方需持有 s.mu；失败时已写入响应
func (s *Server) lookupLocked(c *gin.Context, id int64) *order {
	o, found := s.orders[id]
	if !found {
		fail(c, http.StatusBadRequest, "e-orders-0003", "Order not found")
		return nil
	}
	if !o.open() {
		fail(c, http.StatusBadRequest, "e-orders-0004", "Order is "+o.view.OrderStatus)
		return nil
	}
	return o
}

func (s *Server) handleModifyOrder(c *gin.Context) {
	var b modifyBody
	if err := c.ShouldBindJSON(&b); err != nil {
		fail(c, http.StatusBadRequest, "e-orders-0001", "Invalid modify body: "+err.Error())
		return
	}
	if !s.checkClientID(c, b.ClientID) {
		return
	}

	var p pending
	s.mu.Lock()
	o := s.lookupLocked(c, b.AppOrderID)
	if o == nil {
		s.mu.Unlock()
		return
	}
	if b.ModifiedOrderQuantity > 0 {
		o.view.LeavesQuantity += b.ModifiedOrderQuantity - o.view.OrderQuantity
		o.view.OrderQuantity = b.ModifiedOrderQuantity
	}
	if b.ModifiedProductType != "" {
		o.view.ProductType = b.ModifiedProductType
	}
	if b.ModifiedOrderType != "" {
		o.view.OrderType = b.ModifiedOrderType
	}
	if b.ModifiedTimeInForce != "" {
		o.view.TimeInForce = b.ModifiedTimeInForce
	}
	o.price = b.ModifiedLimitPrice
	o.stop = b.ModifiedStopPrice
	o.view.OrderStatus = statusReplaced
	p.orders = append(p.orders, o.snapshot())
	if strings.EqualFold(o.view.OrderType, "Market") {
		s.fillLocked(o, &p)
	}
	result := gin.H{"AppOrderID": o.view.AppOrderID, "OrderUniqueIdentifier": o.view.OrderUniqueIdentifier}
	s.mu.Unlock()

	s.flush(p)
	ok(c, "s-orders-0002", "Request sent", result)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("appOrderID"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "e-orders-0002", "appOrderID is mandatory")
		return
	}
	if !s.checkClientID(c, c.Query("clientID")) {
		return
	}

	var p pending
	s.mu.Lock()
	o := s.lookupLocked(c, id)
	if o == nil {
		s.mu.Unlock()
		return
	}
	s.cancelLocked(o, &p)
	result := gin.H{"AppOrderID": o.view.AppOrderID, "OrderUniqueIdentifier": c.Query("orderUniqueIdentifier")}
	s.mu.Unlock()

	s.flush(p)
	ok(c, "s-orders-0003", "Request sent", result)
}

func (s *Server) cancelLocked(o *order, p *pending) {
	o.view.OrderStatus = statusCancelled
	o.view.LeavesQuantity = 0
	p.orders = append(p.orders, o.snapshot())
}

func (s *Server) handleOrderBook(c *gin.Context) {
	clientID := c.Query("clientID")
	if !s.checkClientID(c, clientID) {
		return
	}
	s.mu.Lock()
	out := make([]orderView, 0, len(s.orderSeq))
	for _, id := range s.orderSeq {
		v := s.orders[id].view
		if clientID == "" || v.ClientID == clientID {
			out = append(out, v)
		}
	}
	s.mu.Unlock()
	ok(c, "s-orders-0004", "Order book fetched", out)
}

func (s *Server) handleTradeBook(c *gin.Context) {
	clientID := c.Query("clientID")
	if !s.checkClientID(c, clientID) {
		return
	}
	s.mu.Lock()
	out := make([]tradeView, 0, len(s.trades))
	for _, t := range s.trades {
		if clientID == "" || t.ClientID == clientID {
			out = append(out, t)
		}
	}
	s.mu.Unlock()
	ok(c, "s-trades-0001", "Trade book fetched", out)
}

func (s *Server) handleOrderHistory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("appOrderID"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "e-orders-0002", "Invalid appOrderID")
		return
	}
	if !s.checkClientID(c, c.Query("clientID")) {
		return
	}
	s.mu.Lock()
	o, found := s.orders[id]
	var out []orderView
	if found {
		out = append(out, o.history...)
	}
	s.mu.Unlock()
	if !found {
		fail(c, http.StatusBadRequest, "e-orders-0003", "Order not found")
		return
	}
	ok(c, "s-orders-0005", "Order history fetched", out)
}

func (s *Server) handlePlaceCover(c *gin.Context) {
	var b placeBody
	if err := c.ShouldBindJSON(&b); err != nil {
		fail(c, http.StatusBadRequest, "e-orders-0001", "Invalid cover body: "+err.Error())
		return
	}
	b.ProductType = "CO"
	if b.OrderType == "" {
		b.OrderType = "Limit"
		if b.LimitPrice.IsZero() {
			b.OrderType = "Market"
		}
	}
	if !s.validatePlace(c, &b) {
		return
	}
	if b.StopPrice.IsZero() {
		fail(c, http.StatusBadRequest, "e-orders-0001", "stopPrice is mandatory for cover orders")
		return
	}

	var p pending
	s.mu.Lock()
	userID := c.GetString(ctxUserID)
	entry := s.newOrderLocked(userID, b, &p)

	leg := b
	leg.OrderType = "StopMarket"
	leg.LimitPrice = decimal.Zero
	leg.OrderSide = "SELL"
	if b.OrderSide == "SELL" {
		leg.OrderSide = "BUY"
	}
	stop := s.newOrderLocked(userID, leg, &p)
	entry.legID = stop.view.AppOrderID
	result := gin.H{
		"EntryAppOrderID":       entry.view.AppOrderID,
		"StopLossAppOrderID":    stop.view.AppOrderID,
		"OrderUniqueIdentifier": entry.view.OrderUniqueIdentifier,
	}
	s.mu.Unlock()

	s.flush(p)
	ok(c, "s-orders-0006", "Request sent", result)
}

func (s *Server) handleExitCover(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("appOrderID"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "e-orders-0002", "appOrderID is mandatory")
		return
	}

	var p pending
	s.mu.Lock()
	o, found := s.orders[id]
	if !found || o.view.ProductType != "CO" {
		s.mu.Unlock()
		fail(c, http.StatusBadRequest, "e-orders-0003", "Cover order not found")
		return
	}
	// 退出：止损腿按市价成交，未成交的入场单撤销
	if leg, exists := s.orders[o.legID]; exists && leg.open() {
		s.fillLocked(leg, &p)
	}
	if o.open() {
		s.cancelLocked(o, &p)
	}
	s.mu.Unlock()

	s.flush(p)
	ok(c, "s-orders-0007", "Request sent", gin.H{"AppOrderID": id})
}

// segmentAllows 检查交易所分段及其 field 列表是否包含 value（忽略大小写）。
// field 为空时只检查分段是否存在。
func (s *Server) segmentAllows(segment, field, value string) bool {
	segments, isMap := s.opts.Enums["exchangeSegment"].(map[string]any)
	if !isMap {
		return true
	}
	desc, found := segments[segment]
	if !found {
		return false
	}
	if field == "" {
		return true
	}
	fields, isMap := desc.(map[string]any)
	if !isMap {
		return true
	}
	for _, v := range toStrings(fields[field]) {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, isString := e.(string); isString {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
