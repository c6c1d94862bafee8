package websocket

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/betbot/xtsgo/pkg/config"
	"github.com/betbot/xtsgo/pkg/logger"
)

// InteractiveClient 订单/成交/持仓实时事件客户端。
// 断线后按固定间隔用最近一次 Init 的凭证重新 Init，直到连上或 Close。
type InteractiveClient struct {
	url       string
	config    *Config
	dialer    Dialer
	scheduler Scheduler

	mu         sync.Mutex
	userID     string
	token      string
	socket     Socket
	generation uint64
	connected  bool
	pending    *retryJob // 待执行的重连检查，最多一个

	lmu          sync.RWMutex
	onConnect    []func()
	onJoined     []func(Message)
	onError      []func(ErrorEvent)
	onDisconnect []func(string)
	onOrder      []func(Message)
	onTrade      []func(Message)
	onPosition   []func(Message)
	onLogout     []func(Message)
}

type retryJob struct {
	job Job
}

// Option InteractiveClient 选项
type Option func(*InteractiveClient)

// WithConfig 设置配置
func WithConfig(cfg *Config) Option {
	return func(c *InteractiveClient) {
		if cfg != nil {
			c.config = cfg
		}
	}
}

// WithDialer 替换底层连接实现
func WithDialer(d Dialer) Option {
	return func(c *InteractiveClient) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithScheduler 替换重连调度器
func WithScheduler(s Scheduler) Option {
	return func(c *InteractiveClient) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// NewInteractiveClient 创建客户端；rawURL 为空时使用默认地址
func NewInteractiveClient(rawURL string, opts ...Option) *InteractiveClient {
	if rawURL == "" {
		rawURL = config.DefaultURL
	}
	c := &InteractiveClient{
		url:       strings.TrimSuffix(rawURL, "/"),
		config:    DefaultConfig(),
		dialer:    &EngineIODialer{},
		scheduler: TickerScheduler{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL 返回服务地址
func (c *InteractiveClient) URL() string {
	return c.url
}

// IsConnected 是否已连接
func (c *InteractiveClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Init 用凭证建立连接；已有连接会先被关闭，旧连接的事件不再分发。
// 只有参数错误会同步返回，连接结果通过 OnConnect/OnError 通知。
func (c *InteractiveClient) Init(req InitRequest) error {
	if req.Token == "" {
		return errors.New("token 不能为空")
	}
	if req.UserID == "" {
		return errors.New("userID 不能为空")
	}

	c.mu.Lock()
	c.userID, c.token = req.UserID, req.Token
	old := c.socket
	c.socket = nil
	c.connected = false
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	opts := DialOptions{
		URL:              c.url,
		Path:             c.config.Path,
		Query:            url.Values{"token": {req.Token}, "userID": {req.UserID}},
		EngineIOVersion:  c.config.EngineIOVersion,
		HandshakeTimeout: c.config.HandshakeTimeout,
		ProxyURL:         c.config.ProxyURL,
	}
	sock, err := c.dialer.Open(opts, func(event string, payload json.RawMessage) {
		c.dispatch(gen, event, payload)
	})
	if err != nil {
		logger.Errorf("[WSInteractive] 初始化失败: %v", err)
		return err
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		_ = sock.Close()
		return nil
	}
	c.socket = sock
	c.mu.Unlock()

	logger.LogFile(map[string]any{
		"message": "interactive socket initialized",
		"url":     c.url,
		"userID":  req.UserID,
		"path":    c.config.Path,
	})
	return nil
}

// Close 关闭连接并停止所有待执行的重连检查
func (c *InteractiveClient) Close() error {
	c.mu.Lock()
	sock := c.socket
	c.socket = nil
	c.connected = false
	c.generation++
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending != nil {
		pending.job.Stop()
	}
	if sock != nil {
		return sock.Close()
	}
	return nil
}

func (c *InteractiveClient) dispatch(gen uint64, event string, payload json.RawMessage) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	switch event {
	case EventConnect:
		c.connected = true
	case EventDisconnect:
		c.connected = false
		c.scheduleRetryLocked()
	}
	c.mu.Unlock()

	ev := c.config.Events
	switch event {
	case EventConnect:
		logger.Infof("[WSInteractive] 已连接: %s", c.url)
		c.emitConnect()
	case EventDisconnect:
		reason := decodeReason(payload)
		logger.Warnf("[WSInteractive] 连接断开: %s，%v 后重试", reason, c.config.ReconnectInterval)
		c.emitDisconnect(reason)
	case EventConnectError:
		e := connectError(payload)
		logger.Errorf("[WSInteractive] 连接错误: %s", e.Error())
		c.emitError(e)
	case EventError:
		e := socketError(payload)
		logger.Errorf("[WSInteractive] socket 错误: %s", e.Error())
		c.emitError(e)
	case ev.Joined:
		c.emitMessages(c.listeners(&c.onJoined), parseMessage(event, payload))
	case ev.Order:
		c.emitMessages(c.listeners(&c.onOrder), parseMessage(event, payload))
	case ev.Trade:
		c.emitMessages(c.listeners(&c.onTrade), parseMessage(event, payload))
	case ev.Position:
		c.emitMessages(c.listeners(&c.onPosition), parseMessage(event, payload))
	case ev.Logout:
		c.emitMessages(c.listeners(&c.onLogout), parseMessage(event, payload))
	default:
		logger.Debugf("[WSInteractive] 忽略未知事件 %s", event)
	}
}

// scheduleRetryLocked 调用方需持有 c.mu；已有待执行的检查时不再新建
func (c *InteractiveClient) scheduleRetryLocked() {
	if c.pending != nil {
		return
	}
	r := &retryJob{}
	r.job = c.scheduler.Every(c.config.ReconnectInterval, func() { c.retry(r) })
	c.pending = r
}

func (c *InteractiveClient) retry(r *retryJob) {
	c.mu.Lock()
	if c.pending != r {
		c.mu.Unlock()
		r.job.Stop()
		return
	}
	if c.connected {
		c.pending = nil
		c.mu.Unlock()
		r.job.Stop()
		return
	}
	req := InitRequest{UserID: c.userID, Token: c.token}
	c.mu.Unlock()

	logger.Infof("[WSInteractive] 尝试重连 userID=%s", req.UserID)
	if err := c.Init(req); err != nil {
		logger.Errorf("[WSInteractive] 重连失败: %v", err)
	}
}

// parseMessage 字符串参数按其内容解析，其他参数按自身解析；解析失败时原样投递
func parseMessage(event string, payload json.RawMessage) Message {
	raw := bytes.TrimSpace(payload)
	msg := Message{Event: event, Raw: string(raw)}

	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			msg.Raw = s
			raw = []byte(s)
		}
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.LogFile(map[string]any{
			"message": "socket event payload is not JSON",
			"event":   event,
			"error":   err.Error(),
		})
		msg.Value = msg.Raw
		return msg
	}
	msg.Value = v
	msg.Parsed = true
	return msg
}

type errorBody struct {
	Message     string          `json:"message"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
}

func connectError(payload json.RawMessage) ErrorEvent {
	e := socketError(payload)
	e.Type = EventConnectError
	return e
}

func socketError(payload json.RawMessage) ErrorEvent {
	e := ErrorEvent{Type: EventError, Raw: payload}
	raw := bytes.TrimSpace(payload)
	if len(raw) == 0 {
		e.Message = "unknown error"
		return e
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		e.Message = s
		return e
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Message = body.Message
		e.Description = body.Description
		if len(body.Data) > 0 && string(body.Data) != "null" {
			e.Cause = string(body.Data)
		}
	}
	if e.Message == "" {
		e.Message = string(raw)
	}
	return e
}

func decodeReason(payload json.RawMessage) string {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil && s != "" {
		return s
	}
	return "transport close"
}

// OnConnect 连接建立
func (c *InteractiveClient) OnConnect(fn func()) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// OnJoined 服务端确认加入
func (c *InteractiveClient) OnJoined(fn func(Message)) {
	c.addMessageListener(&c.onJoined, fn)
}

// OnError 连接错误或服务端 error 事件
func (c *InteractiveClient) OnError(fn func(ErrorEvent)) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.onError = append(c.onError, fn)
}

// OnDisconnect 连接断开，参数为断开原因
func (c *InteractiveClient) OnDisconnect(fn func(reason string)) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.onDisconnect = append(c.onDisconnect, fn)
}

// OnOrder 订单事件
func (c *InteractiveClient) OnOrder(fn func(Message)) {
	c.addMessageListener(&c.onOrder, fn)
}

// OnTrade 成交事件
func (c *InteractiveClient) OnTrade(fn func(Message)) {
	c.addMessageListener(&c.onTrade, fn)
}

// OnPosition 持仓事件
func (c *InteractiveClient) OnPosition(fn func(Message)) {
	c.addMessageListener(&c.onPosition, fn)
}

// OnLogout 服务端登出事件
func (c *InteractiveClient) OnLogout(fn func(Message)) {
	c.addMessageListener(&c.onLogout, fn)
}

func (c *InteractiveClient) addMessageListener(dst *[]func(Message), fn func(Message)) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	*dst = append(*dst, fn)
}

func (c *InteractiveClient) listeners(src *[]func(Message)) []func(Message) {
	c.lmu.RLock()
	defer c.lmu.RUnlock()
	return append([]func(Message){}, *src...)
}

func (c *InteractiveClient) emitMessages(fns []func(Message), msg Message) {
	for _, fn := range fns {
		fn(msg)
	}
}

func (c *InteractiveClient) emitConnect() {
	c.lmu.RLock()
	fns := append([]func(){}, c.onConnect...)
	c.lmu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

func (c *InteractiveClient) emitError(e ErrorEvent) {
	c.lmu.RLock()
	fns := append([]func(ErrorEvent){}, c.onError...)
	c.lmu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}
}

func (c *InteractiveClient) emitDisconnect(reason string) {
	c.lmu.RLock()
	fns := append([]func(string){}, c.onDisconnect...)
	c.lmu.RUnlock()
	for _, fn := range fns {
		fn(reason)
	}
}
