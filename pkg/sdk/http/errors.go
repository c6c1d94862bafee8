package http

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind 传输错误分类
type Kind int

const (
	// KindRequest 请求无法构造（URL 非法、body 无法编码）
	KindRequest Kind = iota + 1
	// KindNoResponse 请求已发出（或尝试发出）但没有响应
	KindNoResponse
	// KindStatus 服务端返回非 2xx 状态码
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNoResponse:
		return "no_response"
	case KindStatus:
		return "status"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error Client.Do 的所有失败都返回该类型
type Error struct {
	Kind       Kind
	StatusCode int
	Body       []byte
	// Envelope KindStatus 且响应体为 JSON 时解析出的信封
	Envelope *Response
	cause    error
}

func newError(kind Kind, status int, body []byte, cause error) *Error {
	e := &Error{Kind: kind, StatusCode: status, Body: body, cause: cause}
	if kind == KindStatus && len(body) > 0 {
		if env, ok := decodeEnvelope(body); ok {
			e.Envelope = env
		}
	}
	return e
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		if d := e.Description(); d != "" {
			return fmt.Sprintf("http %d: %s", e.StatusCode, d)
		}
		return fmt.Sprintf("http %d: %s", e.StatusCode, string(e.Body))
	default:
		if e.cause != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.cause)
		}
		return e.Kind.String()
	}
}

// Unwrap 供 errors.Is / errors.As 使用
func (e *Error) Unwrap() error { return e.cause }

// Cause 实现 pkg/errors 的 causer 接口
func (e *Error) Cause() error { return e.cause }

// Description 返回 KindStatus 错误中服务端给出的 description
func (e *Error) Description() string {
	if e.Envelope == nil {
		return ""
	}
	return e.Envelope.Description
}

// Stack 返回带调用栈的原始错误
func (e *Error) Stack() string {
	if e.cause == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.cause)
}

// AsError 从错误链中取出传输错误
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
