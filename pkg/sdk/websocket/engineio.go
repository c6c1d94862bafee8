package websocket

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/betbot/xtsgo/pkg/logger"
)

// Engine.IO 包类型
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO 包类型（位于 Engine.IO message 之后）
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioAck          = '3'
	sioConnectError = '4'
)

const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 20 * time.Second
)

// DialOptions 单次连接参数
type DialOptions struct {
	URL              string // http(s) 或 ws(s) 地址；路径部分作为命名空间
	Path             string // Socket.IO 路径
	Query            url.Values
	EngineIOVersion  int
	HandshakeTimeout time.Duration
	ProxyURL         string
}

// EventHandler 接收连接产生的事件；payload 为事件的第一个参数（JSON）
type EventHandler func(event string, payload json.RawMessage)

// Socket 一条已发起的连接
type Socket interface {
	Close() error
}

// Dialer 发起连接。Open 只同步校验参数，连接过程在后台进行，
// 结果通过 connect / connect_error 事件通知。
type Dialer interface {
	Open(opts DialOptions, handler EventHandler) (Socket, error)
}

// EngineIODialer 基于 gorilla/websocket 的 Socket.IO 客户端（仅 websocket 传输）
type EngineIODialer struct {
	Header http.Header
}

// Open 实现 Dialer
func (d *EngineIODialer) Open(opts DialOptions, handler EventHandler) (Socket, error) {
	target, namespace, err := socketURL(opts)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, errors.Wrapf(err, "无效的代理 URL %q", opts.ProxyURL)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	s := &eioSocket{
		url:              target,
		namespace:        namespace,
		version:          opts.EngineIOVersion,
		handshakeTimeout: opts.HandshakeTimeout,
		dialer:           dialer,
		header:           d.Header,
		handler:          handler,
		done:             make(chan struct{}),
	}
	if s.handshakeTimeout <= 0 {
		s.handshakeTimeout = defaultHandshakeTimeout
	}
	go s.run()
	return s, nil
}

// socketURL 生成 ws(s)://host<path>/?EIO=..&transport=websocket&...
func socketURL(opts DialOptions) (string, string, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return "", "", errors.Wrapf(err, "无效的 socket 地址 %q", opts.URL)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", "", errors.Errorf("不支持的 socket 协议 %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", errors.Errorf("socket 地址缺少主机: %q", opts.URL)
	}
	if opts.EngineIOVersion != 3 && opts.EngineIOVersion != 4 {
		return "", "", errors.Errorf("不支持的 Engine.IO 版本 %d", opts.EngineIOVersion)
	}

	namespace := strings.TrimSuffix(u.Path, "/")

	path := opts.Path
	if path == "" {
		path = defaultSocketPath
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = path
	u.RawPath = ""

	q := url.Values{}
	for k, v := range opts.Query {
		q[k] = v
	}
	q.Set("EIO", strconv.Itoa(opts.EngineIOVersion))
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String(), namespace, nil
}

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int64  `json:"pingInterval"`
	PingTimeout  int64  `json:"pingTimeout"`
}

type eioSocket struct {
	url              string
	namespace        string
	version          int
	handshakeTimeout time.Duration
	dialer           websocket.Dialer
	header           http.Header
	handler          EventHandler

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}

	writeMu sync.Mutex
}

// Close 主动断开；之后不再产生任何事件
func (s *eioSocket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()
	close(s.done)

	if conn == nil {
		return nil
	}
	_ = s.write(conn, s.sioPacket(sioDisconnect, ""))
	_ = s.writeControl(conn)
	return conn.Close()
}

func (s *eioSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *eioSocket) emit(event string, payload json.RawMessage) {
	if s.isClosed() {
		return
	}
	s.handler(event, payload)
}

func (s *eioSocket) write(conn *websocket.Conn, packet string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(packet))
}

func (s *eioSocket) writeControl(conn *websocket.Conn) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// sioPacket 拼出 "4<type>[/ns,]<data>"
func (s *eioSocket) sioPacket(kind byte, data string) string {
	var b strings.Builder
	b.WriteByte(eioMessage)
	b.WriteByte(kind)
	if s.namespace != "" && s.namespace != "/" {
		b.WriteString(s.namespace)
		if data != "" {
			b.WriteByte(',')
		}
	}
	b.WriteString(data)
	return b.String()
}

func (s *eioSocket) run() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[EngineIO] 读取循环 panic: %v", r)
		}
	}()

	conn, _, err := s.dialer.Dial(s.url, s.header)
	if err != nil {
		logger.Debugf("[EngineIO] 连接失败: %v", err)
		s.emit(EventConnectError, errorPayload(err.Error()))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	connected, reason := s.readLoop(conn)
	conn.Close()

	if s.isClosed() {
		return
	}
	if !connected {
		s.emit(EventConnectError, errorPayload(reason))
		return
	}
	s.emit(EventDisconnect, stringPayload(reason))
}

// readLoop 读取直到连接结束，返回是否曾经连上以及断开原因
func (s *eioSocket) readLoop(conn *websocket.Conn) (bool, string) {
	connected := false
	timeout := s.handshakeTimeout
	_ = conn.SetReadDeadline(time.Now().Add(timeout))

	stopPing := make(chan struct{})
	defer close(stopPing)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return connected, "io client disconnect"
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return connected, "ping timeout"
			}
			return connected, "transport close"
		}
		_ = conn.SetReadDeadline(time.Now().Add(timeout))

		packet := string(data)
		if packet == "" {
			continue
		}

		switch packet[0] {
		case eioOpen:
			var open openPacket
			if err := gojson.Unmarshal(data[1:], &open); err != nil {
				return connected, "parse error"
			}
			interval := msOrDefault(open.PingInterval, defaultPingInterval)
			timeout = interval + msOrDefault(open.PingTimeout, defaultPingTimeout)
			_ = conn.SetReadDeadline(time.Now().Add(timeout))

			if s.version == 4 {
				if err := s.write(conn, s.sioPacket(sioConnect, "")); err != nil {
					return connected, "transport error"
				}
			} else {
				go s.pingLoop(conn, interval, stopPing)
				if s.namespace != "" && s.namespace != "/" {
					_ = s.write(conn, s.sioPacket(sioConnect, ""))
				}
			}

		case eioPing:
			if err := s.write(conn, string(eioPong)+packet[1:]); err != nil {
				return connected, "transport error"
			}

		case eioPong:

		case eioClose:
			return connected, "transport close"

		case eioMessage:
			if len(packet) < 2 {
				continue
			}
			body := s.stripNamespace(packet[2:])
			switch packet[1] {
			case sioConnect:
				connected = true
				s.emit(EventConnect, rawOrNil(body))
			case sioDisconnect:
				return connected, "io server disconnect"
			case sioEvent:
				name, payload, err := decodeEvent(body)
				if err != nil {
					logger.Warnf("[EngineIO] 无法解析事件包 %q: %v", packet, err)
					continue
				}
				s.emit(name, payload)
			case sioConnectError:
				// 服务端拒绝连接：不再产生 disconnect
				s.emit(EventConnectError, rawOrNil(body))
				_ = s.Close()
				return connected, "io server disconnect"
			case sioAck:
			}
		}
	}
}

// pingLoop Engine.IO v3 由客户端发 ping
func (s *eioSocket) pingLoop(conn *websocket.Conn, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.write(conn, string(eioPing)); err != nil {
				return
			}
		case <-stop:
			return
		case <-s.done:
			return
		}
	}
}

// stripNamespace 去掉 "/ns," 前缀
func (s *eioSocket) stripNamespace(body string) string {
	if !strings.HasPrefix(body, "/") {
		return body
	}
	if i := strings.IndexByte(body, ','); i >= 0 {
		return body[i+1:]
	}
	return ""
}

// decodeEvent 解析 "[ackID]["name", arg, ...]"
func decodeEvent(body string) (string, json.RawMessage, error) {
	body = strings.TrimLeft(body, "0123456789")
	var parts []json.RawMessage
	if err := gojson.Unmarshal([]byte(body), &parts); err != nil {
		return "", nil, errors.Wrap(err, "事件包不是 JSON 数组")
	}
	if len(parts) == 0 {
		return "", nil, errors.New("事件包为空")
	}
	var name string
	if err := gojson.Unmarshal(parts[0], &name); err != nil {
		return "", nil, errors.Wrap(err, "事件名不是字符串")
	}
	if len(parts) < 2 {
		return name, nil, nil
	}
	return name, parts[1], nil
}

func msOrDefault(ms int64, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func rawOrNil(body string) json.RawMessage {
	if body == "" {
		return nil
	}
	return json.RawMessage(body)
}

func errorPayload(message string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"message": message})
	return b
}

func stringPayload(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
