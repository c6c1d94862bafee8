package interactive

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"

	"github.com/betbot/xtsgo/pkg/config"
	"github.com/betbot/xtsgo/pkg/ratelimit"
	xhttp "github.com/betbot/xtsgo/pkg/sdk/http"
)

// Response XTS 响应信封 {type, code, description, result}
type Response = xhttp.Response

// Session 会话状态快照
type Session struct {
	URL              string
	UserID           string
	Token            string
	Source           string
	IsLoggedIn       bool
	IsInvestorClient bool
	ClientCodes      []string
	Enums            map[string]json.RawMessage
	Capabilities     *Capabilities
}

// Client XTS Interactive 会话客户端
type Client struct {
	mu      sync.RWMutex
	session Session
	paths   config.RestAPI
	doer    xhttp.Doer
}

// Option 客户端选项
type Option func(*Client)

// WithDoer 替换传输层（测试中注入 mock）
func WithDoer(d xhttp.Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.doer = d
		}
	}
}

// WithPaths 使用自定义的 REST 路径表
func WithPaths(paths config.RestAPI) Option {
	return func(c *Client) { c.paths = paths }
}

// WithSource 设置 source（登录请求未指定 source 时使用）
func WithSource(source string) Option {
	return func(c *Client) { c.session.Source = source }
}

// New 创建未登录的客户端；url 为空时使用默认地址
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = config.DefaultURL
	}
	c := &Client{
		session: Session{URL: strings.TrimSuffix(baseURL, "/")},
		paths:   config.Default().RestAPI,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		c.doer = xhttp.NewClient()
	}
	return c
}

// NewFromConfig 根据配置创建客户端（超时、User-Agent、限流、路径表）
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = config.Default()
	}
	httpOpts := []xhttp.Option{
		xhttp.WithTimeout(cfg.HTTP.Timeout),
		xhttp.WithUserAgent(cfg.HTTP.UserAgent),
	}
	if rl := cfg.HTTP.RateLimit; rl.Requests > 0 && rl.Window > 0 {
		httpOpts = append(httpOpts, xhttp.WithRateLimiter(
			ratelimit.NewRateLimitManager(rl.Requests, rl.Window, ratelimit.DefaultRules()...)))
	}
	base := []Option{
		WithDoer(xhttp.NewClient(httpOpts...)),
		WithPaths(cfg.RestAPI),
		WithSource(cfg.Source),
	}
	return New(cfg.URL, append(base, opts...)...)
}

// Session 返回当前会话的副本
func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.session
	s.ClientCodes = append([]string(nil), c.session.ClientCodes...)
	s.Enums = copyEnums(c.session.Enums)
	s.Capabilities = c.session.Capabilities.Clone()
	return s
}

// IsLoggedIn 是否已登录
func (c *Client) IsLoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.IsLoggedIn
}

// IsInvestorClient 是否为单账户（investor）客户
func (c *Client) IsInvestorClient() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.IsInvestorClient
}

// ClientCodes 登录返回的账户代码
func (c *Client) ClientCodes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.session.ClientCodes...)
}

// Token 当前 token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Token
}

// UserID 当前用户
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.UserID
}

// URL 当前服务地址
func (c *Client) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.URL
}

// Source 当前 source
func (c *Client) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Source
}

// Enums 登录返回的原始枚举（副本）
func (c *Client) Enums() map[string]json.RawMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyEnums(c.session.Enums)
}

// Capabilities 登录后构建的能力表副本（未登录时为 nil）
func (c *Client) Capabilities() *Capabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Capabilities.Clone()
}

func copyEnums(src map[string]json.RawMessage) map[string]json.RawMessage {
	if src == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(src))
	for k, v := range src {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// SetURL 设置服务地址（必须带 scheme 和 host）
func (c *Client) SetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalidArgument("url %q must be absolute", raw)
	}
	c.mu.Lock()
	c.session.URL = strings.TrimSuffix(raw, "/")
	c.mu.Unlock()
	return nil
}

// SetToken 设置 token（不改变登录状态）
func (c *Client) SetToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return invalidArgument("token must not be empty")
	}
	c.mu.Lock()
	c.session.Token = token
	c.mu.Unlock()
	return nil
}

// SetUserID 设置用户 ID
func (c *Client) SetUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return invalidArgument("userID must not be empty")
	}
	c.mu.Lock()
	c.session.UserID = userID
	c.mu.Unlock()
	return nil
}

// SetSource 设置 source
func (c *Client) SetSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return invalidArgument("source must not be empty")
	}
	c.mu.Lock()
	c.session.Source = source
	c.mu.Unlock()
	return nil
}

// checkLoggedIn 未登录时返回 404 错误
func (c *Client) checkLoggedIn() *Error {
	if c.IsLoggedIn() {
		return nil
	}
	return loginRequired()
}

// checkClientCodes 单账户客户直接通过；多账户客户必须显式给出 clientID
func (c *Client) checkClientCodes(clientID string) *Error {
	if c.IsInvestorClient() || clientID != "" {
		return nil
	}
	return clientCodeRequired()
}

// CheckClientCodes 对外暴露的账户代码校验，通过时返回 nil
func (c *Client) CheckClientCodes(clientID string) error {
	if e := c.checkClientCodes(clientID); e != nil {
		return e
	}
	return nil
}

// call 发送一次带 token 的请求，失败统一转换为 *Error
func (c *Client) call(ctx context.Context, fallback, method, path string, q query, body any) (*Response, error) {
	c.mu.RLock()
	target := c.session.URL + path + q.encode()
	token := c.session.Token
	c.mu.RUnlock()

	resp, err := c.doer.Do(ctx, &xhttp.Request{
		Method:  method,
		URL:     target,
		Headers: map[string]string{"authorization": token},
		Body:    body,
	})
	if err != nil {
		return nil, wrapError(err, fallback)
	}
	return resp, nil
}

// gated 先做登录校验再发送请求
func (c *Client) gated(ctx context.Context, fallback, method, path string, q query, body any) (*Response, error) {
	if e := c.checkLoggedIn(); e != nil {
		return nil, e
	}
	return c.call(ctx, fallback, method, path, q, body)
}

// gatedAccount 登录校验 + 账户代码校验
func (c *Client) gatedAccount(ctx context.Context, fallback, clientID, method, path string, q query, body any) (*Response, error) {
	if e := c.checkLoggedIn(); e != nil {
		return nil, e
	}
	if e := c.checkClientCodes(clientID); e != nil {
		return nil, e
	}
	return c.call(ctx, fallback, method, path, q, body)
}
