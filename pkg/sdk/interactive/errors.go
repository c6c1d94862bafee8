package interactive

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/betbot/xtsgo/pkg/logger"
	xhttp "github.com/betbot/xtsgo/pkg/sdk/http"
)

// Error 所有对外操作统一返回的错误值（构造后不可变）
type Error struct {
	Message    string
	Stack      string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap 返回底层原因（传输错误、解码错误等）
func (e *Error) Unwrap() error {
	return e.Cause
}

// String 调试输出
func (e *Error) String() string {
	return fmt.Sprintf("interactive error %d: %s", e.StatusCode, e.Message)
}

// loginRequired 每次返回新的错误值，调用方修改不会互相影响
func loginRequired() *Error {
	return &Error{
		Message:    "Login is Required",
		Stack:      "login is mandatory",
		StatusCode: http.StatusNotFound,
	}
}

func clientCodeRequired() *Error {
	return &Error{
		Message:    "ClientCode is Required",
		Stack:      "clientCode is mandatory",
		StatusCode: http.StatusNotFound,
	}
}

// 各操作的兜底错误信息
const (
	msgLogin            = "Login operation failed."
	msgLoginWithToken   = "Login with token operation failed."
	msgLogout           = "Logout operation failed."
	msgProfile          = "Get profile operation failed."
	msgBalance          = "Get balance operation failed."
	msgHoldings         = "Get holdings operation failed."
	msgPositions        = "Get positions operation failed."
	msgConvert          = "Position conversion operation failed."
	msgSquareOff        = "Square off operation failed."
	msgPlaceOrder       = "Place order operation failed."
	msgModifyOrder      = "Modify order operation failed."
	msgCancelOrder      = "Cancel order operation failed."
	msgPlaceCoverOrder  = "Place cover order operation failed."
	msgExitCoverOrder   = "Exit cover order operation failed."
	msgOrderBook        = "Get order book operation failed."
	msgTradeBook        = "Get trade book operation failed."
	msgOrderHistory     = "Get order history operation failed."
	msgInvalidArgument  = "Invalid argument."
	defaultFailureCode  = http.StatusInternalServerError
	invalidArgumentCode = http.StatusBadRequest
)

// wrapError 把任意失败归一为 *Error。
// 已经是 *Error 的原样返回；服务端状态错误保留状态码并优先使用 description；
// 其余失败使用操作相关的兜底信息和 500。
func wrapError(err error, fallback string) *Error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return ie
	}

	out := &Error{
		Message:    fallback,
		StatusCode: defaultFailureCode,
		Cause:      err,
		Stack:      fmt.Sprintf("%+v", err),
	}
	if te, ok := xhttp.AsError(err); ok {
		if st := te.Stack(); st != "" {
			out.Stack = st
		}
		if te.Kind == xhttp.KindStatus {
			if te.StatusCode != 0 {
				out.StatusCode = te.StatusCode
			}
			if d := te.Description(); d != "" {
				out.Message = d
			} else {
				out.Message = te.Error()
			}
		}
	}
	logger.LogFile(out.String())
	return out
}

func invalidArgument(format string, args ...interface{}) *Error {
	cause := errors.Errorf(format, args...)
	return &Error{
		Message:    fmt.Sprintf("%s %s", msgInvalidArgument, cause.Error()),
		Stack:      fmt.Sprintf("%+v", cause),
		StatusCode: invalidArgumentCode,
		Cause:      cause,
	}
}
