package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/betbot/xtsgo/pkg/logger"
)

const tracerName = "github.com/betbot/xtsgo/pkg/sdk/http"

// Request 一次 HTTP 请求；URL 为绝对地址并已带查询参数
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Response XTS 响应信封 {type, code, description, result}。
// Raw 始终保存完整响应体；响应体不是 JSON 时信封字段为空。
type Response struct {
	Type        string          `json:"type"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// Decode 把 Result 解码到 v
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Result) == 0 {
		return errors.New("empty result")
	}
	return errors.WithStack(json.Unmarshal(r.Result, v))
}

// Doer 执行请求
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Limiter 按 "<METHOD> <path>" 限速
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Client 基于 resty 的 Doer 实现
type Client struct {
	client    *resty.Client
	limiter   Limiter
	userAgent string
	tracer    trace.Tracer
}

// Option Client 选项
type Option func(*Client)

// WithTimeout 设置单次请求超时（0 表示不限制）
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.SetTimeout(d) }
}

// WithRateLimiter 每次请求前先经过限速器
func WithRateLimiter(l Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithUserAgent 覆盖 User-Agent
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRestyClient 替换底层 resty 客户端
func WithRestyClient(rc *resty.Client) Option {
	return func(c *Client) {
		if rc != nil {
			c.client = rc
		}
	}
}

// WithTracerProvider 使用指定的 TracerProvider 代替全局实例
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewClient 创建 HTTP 客户端，代理取自 HTTP_PROXY / HTTPS_PROXY。
// 请求不做重试，下单不是幂等操作。
func NewClient(opts ...Option) *Client {
	c := &Client{
		client:    resty.New().SetTimeout(30 * time.Second).SetRetryCount(0),
		userAgent: "xtsgo/1.0",
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// hasBody GET/DELETE 不带 body
func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// Do 发送请求并解析 XTS 信封
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return nil, newError(KindRequest, 0, nil, errors.New("nil request"))
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, c.fail(newError(KindRequest, 0, nil, errors.Wrapf(err, "invalid url %q", req.URL)))
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, c.fail(newError(KindRequest, 0, nil, errors.Errorf("invalid url %q: scheme and host required", req.URL)))
	}

	ctx, span := c.tracer.Start(ctx, "xts "+method+" "+u.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", req.URL),
		))
	defer span.End()

	r := c.client.R().SetContext(ctx)
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("User-Agent", c.userAgent)
	auth := authorization(req.Headers)
	if auth != "" {
		r.SetHeader("authorization", auth)
	}

	var body []byte
	if hasBody(method) && req.Body != nil {
		switch b := req.Body.(type) {
		case []byte:
			body = b
		case json.RawMessage:
			body = b
		case string:
			body = []byte(b)
		default:
			body, err = json.Marshal(req.Body)
			if err != nil {
				return nil, c.failSpan(span, newError(KindRequest, 0, nil, errors.Wrap(err, "encode request body")))
			}
		}
		r.SetBody(body)
	}

	logger.LogFile(requestLog{
		Method:        method,
		URL:           req.URL,
		Authorization: maskToken(auth),
		BodyKeys:      bodyKeys(body),
	})

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, method+" "+u.Path); err != nil {
			return nil, c.failSpan(span, newError(KindNoResponse, 0, nil, errors.Wrap(err, "rate limiter")))
		}
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, c.failSpan(span, newError(KindNoResponse, 0, nil, errors.Wrapf(err, "%s %s", method, u.Path)))
	}

	raw := resp.Body()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	logger.LogFile(responseLog{
		Status: resp.StatusCode(),
		URL:    req.URL,
		Body:   string(raw),
	})

	if !resp.IsSuccess() {
		return nil, c.failSpan(span, newError(KindStatus, resp.StatusCode(), raw,
			errors.Errorf("%s %s: http %d", method, u.Path, resp.StatusCode())))
	}

	if env, ok := decodeEnvelope(raw); ok {
		return env, nil
	}
	return &Response{Raw: json.RawMessage(raw)}, nil
}

func (c *Client) fail(e *Error) *Error {
	logger.LogFile(e.Stack())
	return e
}

func (c *Client) failSpan(span trace.Span, e *Error) *Error {
	span.RecordError(e)
	span.SetStatus(codes.Error, e.Error())
	return c.fail(e)
}

// decodeEnvelope type/code 字段可以是字符串或数字
func decodeEnvelope(raw []byte) (*Response, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return &Response{
		Type:        scalar(fields["type"]),
		Code:        scalar(fields["code"]),
		Description: scalar(fields["description"]),
		Result:      fields["result"],
		Raw:         json.RawMessage(raw),
	}, true
}

func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func authorization(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "authorization") {
			return v
		}
	}
	return ""
}

type requestLog struct {
	Method        string   `json:"method"`
	URL           string   `json:"url"`
	Authorization string   `json:"authorization,omitempty"`
	BodyKeys      []string `json:"bodyKeys,omitempty"`
}

type responseLog struct {
	Status int    `json:"status"`
	URL    string `json:"url"`
	Body   string `json:"body"`
}

// maskToken 只保留前 6 个字符
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 6 {
		return "******"
	}
	return token[:6] + "******"
}

// bodyKeys 只记录字段名，body 里有密码和密钥
func bodyKeys(body []byte) []string {
	if len(body) == 0 {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
