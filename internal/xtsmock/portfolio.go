package xtsmock

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type positionView struct {
	LoginID              string
	AccountID            string
	ExchangeSegment      string
	ExchangeInstrumentID int64
	ProductType          string
	Quantity             string
	BuyAveragePrice      string
	SellAveragePrice     string
	NetAmount            string
	MTM                  string
}

type position struct {
	accountID  string
	segment    string
	instrument int64
	product    string
	buyQty     int64
	sellQty    int64
	buyValue   decimal.Decimal
	sellValue  decimal.Decimal
}

func positionKey(accountID, segment string, instrument int64, product string) string {
	return accountID + "|" + segment + "|" + strconv.FormatInt(instrument, 10) + "|" + product
}

// positionLocked 取得（必要时创建）持仓，调用方需持有 s.mu
func (s *Server) positionLocked(accountID, segment string, instrument int64, product string) *position {
	k := positionKey(accountID, segment, instrument, product)
	p, found := s.positions[k]
	if !found {
		p = &position{accountID: accountID, segment: segment, instrument: instrument, product: product}
		s.positions[k] = p
	}
	return p
}

func (p *position) apply(side string, qty int64, price decimal.Decimal) {
	value := price.Mul(decimal.NewFromInt(qty))
	if side == "BUY" {
		p.buyQty += qty
		p.buyValue = p.buyValue.Add(value)
		return
	}
	p.sellQty += qty
	p.sellValue = p.sellValue.Add(value)
}

func (p *position) net() int64 { return p.buyQty - p.sellQty }

func average(value decimal.Decimal, qty int64) string {
	if qty == 0 {
		return "0.00"
	}
	return value.Div(decimal.NewFromInt(qty)).StringFixed(2)
}

func (p *position) view() positionView {
	return positionView{
		LoginID:              p.accountID,
		AccountID:            p.accountID,
		ExchangeSegment:      p.segment,
		ExchangeInstrumentID: p.instrument,
		ProductType:          p.product,
		Quantity:             strconv.FormatInt(p.net(), 10),
		BuyAveragePrice:      average(p.buyValue, p.buyQty),
		SellAveragePrice:     average(p.sellValue, p.sellQty),
		NetAmount:            p.sellValue.Sub(p.buyValue).StringFixed(2),
		MTM:                  "0.00",
	}
}

func (s *Server) handlePositions(c *gin.Context) {
	dayOrNet := c.Query("dayOrNet")
	if dayOrNet != "DayWise" && dayOrNet != "NetWise" {
		fail(c, http.StatusBadRequest, "e-portfolio-0001", "dayOrNet must be DayWise or NetWise")
		return
	}
	clientID := c.Query("clientID")
	if !s.checkClientID(c, clientID) {
		return
	}
	s.mu.Lock()
	out := make([]positionView, 0, len(s.positions))
	for _, p := range s.positions {
		if clientID == "" || p.accountID == clientID {
			out = append(out, p.view())
		}
	}
	s.mu.Unlock()
	ok(c, "s-portfolio-0001", "Positions fetched", gin.H{"positionList": out})
}

type convertBody struct {
	AppOrderID     int64  `json:"appOrderID"`
	ExecutionID    string `json:"executionID"`
	OldProductType string `json:"oldProductType"`
	NewProductType string `json:"newProductType"`
	ClientID       string `json:"clientID"`
}

// handleConvert 把一笔已成交订单的持仓从旧产品类型移到新产品类型
func (s *Server) handleConvert(c *gin.Context) {
	var b convertBody
	if err := c.ShouldBindJSON(&b); err != nil || b.NewProductType == "" {
		fail(c, http.StatusBadRequest, "e-portfolio-0002", "Invalid conversion body")
		return
	}
	if !s.checkClientID(c, b.ClientID) {
		return
	}

	var p pending
	s.mu.Lock()
	o, found := s.orders[b.AppOrderID]
	if !found || o.view.OrderStatus != statusFilled || !strings.EqualFold(o.view.ProductType, b.OldProductType) {
		s.mu.Unlock()
		fail(c, http.StatusBadRequest, "e-portfolio-0003", "No filled order with that product type")
		return
	}
	v := o.view
	price := decimal.RequireFromString(v.OrderAverageTradedPrice)
	from := s.positionLocked(v.ClientID, v.ExchangeSegment, v.ExchangeInstrumentID, v.ProductType)
	to := s.positionLocked(v.ClientID, v.ExchangeSegment, v.ExchangeInstrumentID, b.NewProductType)
	opposite := "SELL"
	if v.OrderSide == "SELL" {
		opposite = "BUY"
	}
	from.apply(opposite, v.CumulativeQuantity, price)
	to.apply(v.OrderSide, v.CumulativeQuantity, price)
	o.view.ProductType = b.NewProductType
	p.positions = append(p.positions, from.view(), to.view())
	s.mu.Unlock()

	s.flush(p)
	ok(c, "s-portfolio-0002", "Position converted", b)
}

type squareOffBody struct {
	ExchangeSegment               string `json:"exchangeSegment"`
	ExchangeInstrumentID          int64  `json:"exchangeInstrumentID"`
	ProductType                   string `json:"productType"`
	SquareoffMode                 string `json:"squareoffMode"`
	PositionSquareOffQuantityType string `json:"positionSquareOffQuantityType"`
	SquareOffQtyValue             int64  `json:"squareOffQtyValue"`
	ClientID                      string `json:"clientID"`
}

// handleSquareOff 用一笔反向市价单平掉（部分）持仓
func (s *Server) handleSquareOff(c *gin.Context) {
	var b squareOffBody
	if err := c.ShouldBindJSON(&b); err != nil {
		fail(c, http.StatusBadRequest, "e-portfolio-0004", "Invalid squareoff body")
		return
	}
	if !s.checkClientID(c, b.ClientID) {
		return
	}
	userID := c.GetString(ctxUserID)
	account := b.ClientID
	if account == "" {
		account = userID
	}

	var p pending
	s.mu.Lock()
	pos, found := s.positions[positionKey(account, b.ExchangeSegment, b.ExchangeInstrumentID, b.ProductType)]
	if !found || pos.net() == 0 {
		s.mu.Unlock()
		fail(c, http.StatusBadRequest, "e-portfolio-0005", "No open position")
		return
	}
	net := pos.net()
	side := "SELL"
	if net < 0 {
		side, net = "BUY", -net
	}
	qty := net
	if strings.EqualFold(b.PositionSquareOffQuantityType, "ExactQty") && b.SquareOffQtyValue > 0 && b.SquareOffQtyValue < net {
		qty = b.SquareOffQtyValue
	}
	o := s.newOrderLocked(userID, placeBody{
		ExchangeSegment:      b.ExchangeSegment,
		ExchangeInstrumentID: b.ExchangeInstrumentID,
		ProductType:          b.ProductType,
		OrderType:            "Market",
		OrderSide:            side,
		TimeInForce:          "DAY",
		OrderQuantity:        qty,
		ClientID:             b.ClientID,
	}, &p)
	s.mu.Unlock()

	s.flush(p)
	ok(c, "s-portfolio-0003", "Square off requested", gin.H{"AppOrderID": o.view.AppOrderID, "Quantity": qty})
}
