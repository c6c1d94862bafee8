package interactive

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/betbot/xtsgo/pkg/logger"
	xhttp "github.com/betbot/xtsgo/pkg/sdk/http"
)

// LoginResult 登录/令牌登录返回的 result
type LoginResult struct {
	Token            string                     `json:"token"`
	UserID           string                     `json:"userID,omitempty"`
	Enums            map[string]json.RawMessage `json:"enums"`
	ClientCodes      []string                   `json:"clientCodes"`
	IsInvestorClient bool                       `json:"isInvestorClient"`
}

// Login 用户名密码登录；成功后保存 token、枚举、账户代码、investor 标记并标记已登录
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Response, error) {
	if req.Source == "" {
		req.Source = c.Source()
	}

	c.mu.RLock()
	target := c.session.URL + c.paths.Session
	c.mu.RUnlock()

	resp, err := c.doer.Do(ctx, &xhttp.Request{
		Method:  http.MethodPost,
		URL:     target,
		Headers: map[string]string{},
		Body:    req,
	})
	if err != nil {
		return nil, wrapError(err, msgLogin)
	}

	result, err := decodeLoginResult(resp)
	if err != nil {
		return nil, wrapError(err, msgLogin)
	}
	c.establish(req.UserID, result.Token, req.Source, result)
	return resp, nil
}

// LoginWithToken 使用已签发的 token 登录（拉取枚举），成功后状态与 Login 相同
func (c *Client) LoginWithToken(ctx context.Context, userID, token string) (*Response, error) {
	c.mu.RLock()
	target := c.session.URL + c.paths.Enums + query{}.add("userID", userID).encode()
	source := c.session.Source
	c.mu.RUnlock()

	resp, err := c.doer.Do(ctx, &xhttp.Request{
		Method:  http.MethodGet,
		URL:     target,
		Headers: map[string]string{"authorization": token},
	})
	if err != nil {
		return nil, wrapError(err, msgLoginWithToken)
	}

	result, err := decodeLoginResult(resp)
	if err != nil {
		return nil, wrapError(err, msgLoginWithToken)
	}
	c.establish(userID, token, source, result)
	return resp, nil
}

// Logout 注销会话。注意：成功后不会把状态改回未登录
func (c *Client) Logout(ctx context.Context) (*Response, error) {
	return c.gated(ctx, msgLogout, http.MethodDelete, c.paths.Session, nil, nil)
}

func decodeLoginResult(resp *Response) (*LoginResult, error) {
	if resp == nil || len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil, errors.New("login response carries no result")
	}
	var result LoginResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, errors.Wrap(err, "decode login result")
	}
	return &result, nil
}

// establish 一次性写入登录后的会话状态
func (c *Client) establish(userID, token, source string, result *LoginResult) {
	caps := BuildCapabilities(result.Enums)

	c.mu.Lock()
	c.session.UserID = userID
	c.session.Token = token
	c.session.Source = source
	c.session.Enums = copyEnums(result.Enums)
	c.session.ClientCodes = append([]string(nil), result.ClientCodes...)
	c.session.IsInvestorClient = result.IsInvestorClient
	c.session.Capabilities = caps
	c.session.IsLoggedIn = true
	c.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"userID":      userID,
		"clientCodes": result.ClientCodes,
		"investor":    result.IsInvestorClient,
	}).Info("XTS 会话已建立")
}
