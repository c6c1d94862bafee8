package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/xtsgo/pkg/config"
)

// manualScheduler 只在 Tick 时执行任务
type manualScheduler struct {
	mu   sync.Mutex
	jobs []*manualJob
}

type manualJob struct {
	interval time.Duration
	fn       func()
	stopped  atomic.Bool
}

func (j *manualJob) Stop() { j.stopped.Store(true) }

func (s *manualScheduler) Every(d time.Duration, fn func()) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &manualJob{interval: d, fn: fn}
	s.jobs = append(s.jobs, j)
	return j
}

func (s *manualScheduler) Tick() {
	s.mu.Lock()
	jobs := append([]*manualJob(nil), s.jobs...)
	s.mu.Unlock()
	for _, j := range jobs {
		if !j.stopped.Load() {
			j.fn()
		}
	}
}

func (s *manualScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if !j.stopped.Load() {
			n++
		}
	}
	return n
}

type fakeSocket struct {
	closed atomic.Bool
}

func (s *fakeSocket) Close() error {
	s.closed.Store(true)
	return nil
}

type dialRecord struct {
	opts    DialOptions
	handler EventHandler
	socket  *fakeSocket
}

type fakeDialer struct {
	mu    sync.Mutex
	dials []*dialRecord
	err   error
}

func (d *fakeDialer) Open(opts DialOptions, handler EventHandler) (Socket, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := &dialRecord{opts: opts, handler: handler, socket: &fakeSocket{}}
	d.dials = append(d.dials, rec)
	return rec.socket, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *fakeDialer) last() *dialRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[len(d.dials)-1]
}

func newTestClient() (*InteractiveClient, *fakeDialer, *manualScheduler) {
	d := &fakeDialer{}
	s := &manualScheduler{}
	c := NewInteractiveClient("https://xts.example.com/", WithDialer(d), WithScheduler(s))
	return c, d, s
}

// TestInteractiveClient_Init 测试 Init 的连接参数
func TestInteractiveClient_Init(t *testing.T) {
	c, d, _ := newTestClient()
	require.NoError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}))

	require.Equal(t, 1, d.count())
	opts := d.last().opts
	assert.Equal(t, "https://xts.example.com", opts.URL)
	assert.Equal(t, "/interactive/socket.io", opts.Path)
	assert.Equal(t, "tok", opts.Query.Get("token"))
	assert.Equal(t, "U1", opts.Query.Get("userID"))
	assert.Equal(t, 4, opts.EngineIOVersion)
	assert.False(t, c.IsConnected())
}

// TestInteractiveClient_InitValidation 测试缺少凭证时不发起连接
func TestInteractiveClient_InitValidation(t *testing.T) {
	c, d, _ := newTestClient()
	assert.Error(t, c.Init(InitRequest{UserID: "U1"}))
	assert.Error(t, c.Init(InitRequest{Token: "tok"}))
	assert.Equal(t, 0, d.count())

	d.err = errors.New("bad url")
	assert.EqualError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}), "bad url")
}

// TestInteractiveClient_ConnectAndMessages 测试连接状态与应用事件解析
func TestInteractiveClient_ConnectAndMessages(t *testing.T) {
	c, d, _ := newTestClient()

	var connects int
	var orders []Message
	var trades []Message
	c.OnConnect(func() { connects++ })
	c.OnOrder(func(m Message) { orders = append(orders, m) })
	c.OnTrade(func(m Message) { trades = append(trades, m) })

	require.NoError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}))
	h := d.last().handler

	h(EventConnect, nil)
	assert.True(t, c.IsConnected())
	assert.Equal(t, 1, connects)

	h("order", json.RawMessage(`"{\"AppOrderID\":42,\"OrderStatus\":\"Filled\"}"`))
	h("order", json.RawMessage(`{"AppOrderID":43}`))
	h("order", json.RawMessage(`"not json"`))
	h("trade", json.RawMessage(`"{\"LastTradedPrice\":101.5,\"LastTradedQuantity\":2}"`))

	require.Len(t, orders, 3)

	assert.True(t, orders[0].Parsed)
	assert.Equal(t, `{"AppOrderID":42,"OrderStatus":"Filled"}`, orders[0].Raw)
	o, err := orders[0].Order()
	require.NoError(t, err)
	assert.Equal(t, int64(42), o.AppOrderID)
	assert.Equal(t, "Filled", o.OrderStatus)

	assert.True(t, orders[1].Parsed)
	assert.Equal(t, map[string]any{"AppOrderID": float64(43)}, orders[1].Value)

	assert.False(t, orders[2].Parsed)
	assert.Equal(t, "not json", orders[2].Value)
	_, err = orders[2].Order()
	assert.Error(t, err)

	require.Len(t, trades, 1)
	tr, err := trades[0].Trade()
	require.NoError(t, err)
	assert.Equal(t, 101.5, tr.LastTradedPrice)
	assert.Equal(t, int64(2), tr.LastTradedQuantity)
}

// TestInteractiveClient_ListenerOrder 测试监听器按注册顺序同步执行
func TestInteractiveClient_ListenerOrder(t *testing.T) {
	c, d, _ := newTestClient()
	var calls []string
	c.OnPosition(func(Message) { calls = append(calls, "first") })
	c.OnPosition(func(Message) { calls = append(calls, "second") })
	c.OnLogout(func(m Message) { calls = append(calls, "logout:"+m.Raw) })
	c.OnJoined(func(m Message) { calls = append(calls, "joined") })

	require.NoError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}))
	h := d.last().handler
	h("joined", json.RawMessage(`"ok"`))
	h("position", json.RawMessage(`{"Quantity":"5"}`))
	h("logout", json.RawMessage(`"{}"`))
	h("unknown", json.RawMessage(`{}`))

	assert.Equal(t, []string{"joined", "first", "second", "logout:{}"}, calls)
}

// TestInteractiveClient_Errors 测试 connect_error 与 error 事件的映射
func TestInteractiveClient_Errors(t *testing.T) {
	c, d, _ := newTestClient()
	var errs []ErrorEvent
	c.OnError(func(e ErrorEvent) { errs = append(errs, e) })

	require.NoError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}))
	h := d.last().handler
	h(EventConnectError, json.RawMessage(`{"message":"Invalid Token","description":"token expired","data":{"code":401}}`))
	h(EventError, json.RawMessage(`"boom"`))
	h(EventConnectError, nil)

	require.Len(t, errs, 3)
	assert.Equal(t, EventConnectError, errs[0].Type)
	assert.Equal(t, "Invalid Token", errs[0].Message)
	assert.Equal(t, "token expired", errs[0].Description)
	assert.Equal(t, `{"code":401}`, errs[0].Cause)
	assert.Equal(t, "connect_error: Invalid Token (token expired)", errs[0].Error())

	assert.Equal(t, EventError, errs[1].Type)
	assert.Equal(t, "boom", errs[1].Message)

	assert.Equal(t, "unknown error", errs[2].Message)
	assert.False(t, c.IsConnected())
}

// TestInteractiveClient_ReconnectAfterDisconnect 测试断线后按间隔用相同凭证重新 Init
func TestInteractiveClient_ReconnectAfterDisconnect(t *testing.T) {
	c, d, s := newTestClient()
	var reasons []string
	c.OnDisconnect(func(r string) { reasons = append(reasons, r) })

	require.NoError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}))
	first := d.last()
	first.handler(EventConnect, nil)
	first.handler(EventDisconnect, json.RawMessage(`"transport close"`))

	assert.False(t, c.IsConnected())
	assert.Equal(t, []string{"transport close"}, reasons)
	require.Equal(t, 1, s.active())
	assert.Equal(t, 5*time.Second, s.jobs[0].interval)

	s.Tick()
	require.Equal(t, 2, d.count())
	second := d.last()
	assert.Equal(t, "tok", second.opts.Query.Get("token"))
	assert.Equal(t, "U1", second.opts.Query.Get("userID"))
	assert.True(t, first.socket.closed.Load())

	// 仍未连上：下一次检查再 Init 一次
	s.Tick()
	require.Equal(t, 3, d.count())
	third := d.last()

	third.handler(EventConnect, nil)
	assert.True(t, c.IsConnected())

	// 已连上：检查任务自行停止
	s.Tick()
	assert.Equal(t, 3, d.count())
	assert.Equal(t, 0, s.active())
}

// TestInteractiveClient_SingleRetryJob 测试重复断线不会叠加重连任务
func TestInteractiveClient_SingleRetryJob(t *testing.T) {
	c, d, s := newTestClient()
	require.NoError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}))
	h := d.last().handler
	h(EventDisconnect, json.RawMessage(`"ping timeout"`))
	h(EventDisconnect, json.RawMessage(`"ping timeout"`))
	assert.Equal(t, 1, s.active())

	s.Tick()
	assert.Equal(t, 2, d.count())
}

// TestInteractiveClient_StaleSocketIgnored 测试被替换的连接事件被丢弃
func TestInteractiveClient_StaleSocketIgnored(t *testing.T) {
	c, d, s := newTestClient()
	var orders int
	c.OnOrder(func(Message) { orders++ })

	require.NoError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}))
	stale := d.last()
	require.NoError(t, c.Init(InitRequest{UserID: "U2", Token: "tok2"}))
	current := d.last()

	assert.True(t, stale.socket.closed.Load())
	stale.handler("order", json.RawMessage(`{}`))
	stale.handler(EventConnect, nil)
	stale.handler(EventDisconnect, json.RawMessage(`"transport close"`))
	assert.Equal(t, 0, orders)
	assert.False(t, c.IsConnected())
	assert.Equal(t, 0, s.active())

	current.handler("order", json.RawMessage(`{}`))
	assert.Equal(t, 1, orders)
}

// TestInteractiveClient_ReinitWhileConnected 测试替换已连接的 socket 不产生断线事件也不安排重连
func TestInteractiveClient_ReinitWhileConnected(t *testing.T) {
	c, d, s := newTestClient()
	var disconnects int
	c.OnDisconnect(func(string) { disconnects++ })

	require.NoError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}))
	first := d.last()
	first.handler(EventConnect, nil)
	require.True(t, c.IsConnected())

	require.NoError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}))
	assert.True(t, first.socket.closed.Load())
	assert.False(t, c.IsConnected())
	assert.Equal(t, 0, disconnects)
	assert.Equal(t, 0, s.active())
	assert.Equal(t, 2, d.count())
}

// TestInteractiveClient_PendingRetryUsesLatestCredentials 测试手动 Init 不取消待执行的重连检查
func TestInteractiveClient_PendingRetryUsesLatestCredentials(t *testing.T) {
	c, d, s := newTestClient()
	require.NoError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}))
	d.last().handler(EventDisconnect, json.RawMessage(`"transport close"`))
	require.Equal(t, 1, s.active())

	require.NoError(t, c.Init(InitRequest{UserID: "U2", Token: "tok2"}))
	assert.Equal(t, 1, s.active())
	assert.Equal(t, 2, d.count())

	s.Tick()
	require.Equal(t, 3, d.count())
	opts := d.last().opts
	assert.Equal(t, "U2", opts.Query.Get("userID"))
	assert.Equal(t, "tok2", opts.Query.Get("token"))

	d.last().handler(EventConnect, nil)
	s.Tick()
	assert.Equal(t, 0, s.active())
	assert.Equal(t, 3, d.count())
}

// TestInteractiveClient_Close 测试 Close 停止连接与待执行的重连
func TestInteractiveClient_Close(t *testing.T) {
	c, d, s := newTestClient()
	require.NoError(t, c.Init(InitRequest{UserID: "U1", Token: "tok"}))
	rec := d.last()
	rec.handler(EventDisconnect, json.RawMessage(`"transport close"`))
	require.Equal(t, 1, s.active())

	s.Tick()
	current := d.last()
	require.NoError(t, c.Close())

	assert.True(t, current.socket.closed.Load())
	assert.Equal(t, 0, s.active())
	s.Tick()
	assert.Equal(t, 2, d.count())

	// Close 之后的事件不再分发
	var connected bool
	c.OnConnect(func() { connected = true })
	current.handler(EventConnect, nil)
	assert.False(t, connected)
}

// TestConfigFrom 测试应用配置覆盖默认值
func TestConfigFrom(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, "/interactive/socket.io", def.Path)
	assert.Equal(t, 5*time.Second, def.ReconnectInterval)
	assert.Equal(t, "order", def.Events.Order)

	cfg := ConfigFrom(config.SocketConfig{
		Path:              "/custom/socket.io",
		EngineIOVersion:   3,
		ReconnectInterval: time.Second,
		Events:            config.SocketEvents{Order: "orderUpdate"},
	})
	assert.Equal(t, "/custom/socket.io", cfg.Path)
	assert.Equal(t, 3, cfg.EngineIOVersion)
	assert.Equal(t, time.Second, cfg.ReconnectInterval)
	assert.Equal(t, def.HandshakeTimeout, cfg.HandshakeTimeout)
	assert.Equal(t, "orderUpdate", cfg.Events.Order)
	assert.Equal(t, "trade", cfg.Events.Trade)
}

// TestTickerScheduler 测试真实调度器的执行与停止
func TestTickerScheduler(t *testing.T) {
	var n atomic.Int32
	job := TickerScheduler{}.Every(5*time.Millisecond, func() { n.Add(1) })
	require.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)
	job.Stop()
	job.Stop()
	stopped := n.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, n.Load(), stopped+1)
}
