package xtsmock

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/betbot/xtsgo/pkg/logger"
)

type socketConn struct {
	conn    *websocket.Conn
	userID  string
	writeMu sync.Mutex
	joined  bool // 已完成命名空间连接，受 Server.mu 保护
}

func (sc *socketConn) write(packets ...string) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.writeLocked(packets...)
}

func (sc *socketConn) writeLocked(packets ...string) error {
	for _, packet := range packets {
		_ = sc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := sc.conn.WriteMessage(websocket.TextMessage, []byte(packet)); err != nil {
			return err
		}
	}
	return nil
}

// eventPacket 事件参数按 XTS 的方式以 JSON 字符串发送
func eventPacket(event string, payload any) (string, error) {
	var arg string
	switch v := payload.(type) {
	case string:
		arg = v
	case []byte:
		arg = string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		arg = string(b)
	}
	b, err := json.Marshal([]any{event, arg})
	if err != nil {
		return "", err
	}
	return "42" + string(b), nil
}

// handleSocket Socket.IO v4 websocket 端点；token/userID 通过查询参数校验
func (s *Server) handleSocket(c *gin.Context) {
	if c.Query("EIO") != "4" || c.Query("transport") != "websocket" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 0, "message": "Transport unknown"})
		return
	}
	token, userID := c.Query("token"), c.Query("userID")
	s.mu.Lock()
	owner, valid := s.tokens[token]
	s.mu.Unlock()
	valid = valid && owner == userID

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[xtsmock] websocket 升级失败: %v", err)
		return
	}
	sc := &socketConn{conn: conn, userID: userID}
	s.serveSocket(sc, valid)
}

func (s *Server) serveSocket(sc *socketConn, valid bool) {
	defer sc.conn.Close()

	open, _ := json.Marshal(map[string]any{
		"sid":          uuid.NewString(),
		"upgrades":     []string{},
		"pingInterval": s.opts.PingInterval.Milliseconds(),
		"pingTimeout":  s.opts.PingTimeout.Milliseconds(),
		"maxPayload":   1000000,
	})
	if err := sc.write("0" + string(open)); err != nil {
		return
	}

	s.mu.Lock()
	s.conns[sc] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, sc)
		s.mu.Unlock()
	}()

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(sc, done)

	deadline := s.opts.PingInterval + s.opts.PingTimeout
	for {
		_ = sc.conn.SetReadDeadline(time.Now().Add(deadline))
		_, data, err := sc.conn.ReadMessage()
		if err != nil {
			return
		}
		switch packet := string(data); {
		case packet == "3":
		case packet == "1", packet == "41":
			return
		case len(packet) >= 2 && packet[:2] == "40":
			if !valid {
				_ = sc.write(`44{"message":"Invalid Token"}`)
				return
			}
			joined, _ := eventPacket("joined", map[string]any{"userID": sc.userID, "message": "Joined successfully"})
			// 先标记再写：并发的 Push 会排在 connect 包之后
			sc.writeMu.Lock()
			s.mu.Lock()
			sc.joined = true
			s.mu.Unlock()
			_ = sc.writeLocked(`40{"sid":"`+uuid.NewString()+`"}`, joined)
			sc.writeMu.Unlock()
		}
	}
}

func (s *Server) pingLoop(sc *socketConn, done <-chan struct{}) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := sc.write("2"); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Push 向所有已加入的连接推送事件，返回推送到的连接数
func (s *Server) Push(event string, payload any) int {
	packet, err := eventPacket(event, payload)
	if err != nil {
		logger.Errorf("[xtsmock] 事件 %s 编码失败: %v", event, err)
		return 0
	}
	n := 0
	for _, sc := range s.joinedConns() {
		if err := sc.write(packet); err == nil {
			n++
		}
	}
	return n
}

// Logout 向所有连接推送 logout 事件
func (s *Server) Logout(reason string) int {
	return s.Push("logout", map[string]any{"message": reason})
}

// DropAll 直接断开所有 websocket 连接（不发送关闭包），模拟网络中断
func (s *Server) DropAll() int {
	s.mu.Lock()
	conns := make([]*socketConn, 0, len(s.conns))
	for sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()
	for _, sc := range conns {
		_ = sc.conn.Close()
	}
	return len(conns)
}

// Connections 当前已加入的连接数
func (s *Server) Connections() int {
	return len(s.joinedConns())
}

func (s *Server) joinedConns() []*socketConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*socketConn, 0, len(s.conns))
	for sc := range s.conns {
		if sc.joined {
			out = append(out, sc)
		}
	}
	return out
}
