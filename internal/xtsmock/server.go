// Package xtsmock 是一个内存中的 XTS Interactive 服务端（REST + Socket.IO v4），
// 供测试和 cmd/xts-mock 本地联调使用。
package xtsmock

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/betbot/xtsgo/pkg/config"
	"github.com/betbot/xtsgo/pkg/logger"
)

const ctxUserID = "xtsmock_user_id"

// Options 服务端参数；零值字段使用默认值
type Options struct {
	UserID           string // 允许登录的用户；为空时接受任意用户
	Password         string // 为空时不校验密码
	Token            string // 固定签发的 token；为空时每次登录生成 uuid
	ClientCodes      []string
	IsInvestorClient bool
	Paths            config.RestAPI
	SocketPath       string
	PingInterval     time.Duration
	PingTimeout      time.Duration
	Enums            map[string]any
}

// Server 模拟服务端，实现 http.Handler
type Server struct {
	opts     Options
	router   *gin.Engine
	upgrader websocket.Upgrader

	mu        sync.Mutex
	tokens    map[string]string // token -> userID
	orders    map[int64]*order
	orderSeq  []int64
	trades    []tradeView
	positions map[string]*position
	nextID    int64
	conns     map[*socketConn]struct{}
}

// New 创建服务端
func New(opts Options) *Server {
	if opts.Paths == (config.RestAPI{}) {
		opts.Paths = config.Default().RestAPI
	}
	if opts.SocketPath == "" {
		opts.SocketPath = config.Default().Socket.Path
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 20 * time.Second
	}
	if opts.Enums == nil {
		opts.Enums = DefaultEnums()
	}
	if opts.ClientCodes == nil {
		opts.ClientCodes = []string{}
	}

	s := &Server{
		opts:      opts,
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		tokens:    make(map[string]string),
		orders:    make(map[int64]*order),
		positions: make(map[string]*position),
		nextID:    1000,
		conns:     make(map[*socketConn]struct{}),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP 实现 http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	p := s.opts.Paths
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.POST(p.Session, s.handleLogin)

	auth := r.Group("", s.requireToken)
	auth.DELETE(p.Session, s.handleLogout)
	auth.GET(p.Enums, s.handleEnums)
	auth.GET(p.Profile, s.handleProfile)
	auth.GET(p.Balance, s.handleBalance)
	auth.GET(p.Holding, s.handleHoldings)
	auth.GET(p.Position, s.handlePositions)
	auth.PUT(p.Convert, s.handleConvert)
	auth.PUT(p.SquareOff, s.handleSquareOff)

	auth.POST(p.Orders, s.handlePlaceOrder)
	auth.PUT(p.Orders, s.handleModifyOrder)
	auth.DELETE(p.Orders, s.handleCancelOrder)
	auth.GET(p.Orders, s.handleOrderBook)
	auth.GET(p.Trade, s.handleTradeBook)
	auth.GET(strings.TrimSuffix(p.OrderHistory, "/")+"/:appOrderID", s.handleOrderHistory)
	auth.POST(p.Cover, s.handlePlaceCover)
	auth.PUT(p.Cover, s.handleExitCover)

	socket := strings.TrimSuffix(s.opts.SocketPath, "/")
	r.GET(socket, s.handleSocket)
	r.GET(socket+"/", s.handleSocket)
	return r
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("[xtsmock] request")
	}
}

// envelope XTS 统一响应
type envelope struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Result      any    `json:"result"`
}

func ok(c *gin.Context, code, description string, result any) {
	c.JSON(http.StatusOK, envelope{Type: "success", Code: code, Description: description, Result: result})
}

func fail(c *gin.Context, status int, code, description string) {
	c.AbortWithStatusJSON(status, envelope{Type: "error", Code: code, Description: description, Result: map[string]any{}})
}

func (s *Server) requireToken(c *gin.Context) {
	token := c.GetHeader("authorization")
	s.mu.Lock()
	userID, found := s.tokens[token]
	s.mu.Unlock()
	if token == "" || !found {
		fail(c, http.StatusUnauthorized, "e-session-0002", "Invalid Token")
		return
	}
	c.Set(ctxUserID, userID)
	c.Next()
}

// checkClientID 非空的 clientID 必须属于该用户
func (s *Server) checkClientID(c *gin.Context, clientID string) bool {
	if clientID == "" {
		return true
	}
	for _, code := range s.opts.ClientCodes {
		if code == clientID {
			return true
		}
	}
	if clientID == c.GetString(ctxUserID) {
		return true
	}
	fail(c, http.StatusBadRequest, "e-user-0005", "Invalid clientID")
	return false
}

type loginBody struct {
	UserID    string `json:"userID"`
	Password  string `json:"password"`
	PublicKey string `json:"publicKey"`
	Source    string `json:"source"`
}

func (s *Server) loginResult(userID, token string) map[string]any {
	return map[string]any{
		"token":            token,
		"userID":           userID,
		"enums":            s.opts.Enums,
		"clientCodes":      s.opts.ClientCodes,
		"isInvestorClient": s.opts.IsInvestorClient,
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == "" {
		fail(c, http.StatusBadRequest, "e-user-0001", "userID is mandatory")
		return
	}
	if (s.opts.UserID != "" && body.UserID != s.opts.UserID) ||
		(s.opts.Password != "" && body.Password != s.opts.Password) {
		fail(c, http.StatusBadRequest, "e-user-0002", "Invalid user credentials")
		return
	}
	token := s.IssueToken(body.UserID)
	ok(c, "s-user-0001", "Login successful", s.loginResult(body.UserID, token))
}

// IssueToken 为 userID 签发一个有效 token
func (s *Server) IssueToken(userID string) string {
	token := s.opts.Token
	if token == "" {
		token = uuid.NewString()
	}
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
	return token
}

func (s *Server) handleLogout(c *gin.Context) {
	s.mu.Lock()
	delete(s.tokens, c.GetHeader("authorization"))
	s.mu.Unlock()
	ok(c, "s-user-0002", "User logged out successfully", map[string]any{})
}

func (s *Server) handleEnums(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	if q := c.Query("userID"); q != "" && q != userID {
		fail(c, http.StatusBadRequest, "e-user-0003", "userID does not match token")
		return
	}
	ok(c, "s-user-0003", "Enums fetched", s.loginResult(userID, c.GetHeader("authorization")))
}

func (s *Server) handleProfile(c *gin.Context) {
	clientID := c.Query("clientID")
	if !s.checkClientID(c, clientID) {
		return
	}
	ok(c, "s-user-0004", "Profile fetched", profileFixture(c.GetString(ctxUserID), clientID, s.opts.ClientCodes))
}

func (s *Server) handleBalance(c *gin.Context) {
	if !s.checkClientID(c, c.Query("clientID")) {
		return
	}
	ok(c, "s-user-0005", "Balance fetched", balanceFixture())
}

func (s *Server) handleHoldings(c *gin.Context) {
	if !s.checkClientID(c, c.Query("clientID")) {
		return
	}
	ok(c, "s-holdings-0001", "Holdings fetched", holdingsFixture(c.GetString(ctxUserID)))
}
