// Package api is the HTTP client for the session gateway. It mirrors the
// gateway's JSON surface and turns success:false bodies into typed errors.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Error is a failure reported by the gateway.
type Error struct {
	Message          string
	RequiresPassword bool
	FailedNumbers    []string
}

func (e *Error) Error() string { return e.Message }

// Client talks to a running gateway.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the gateway at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// SendCodeResult carries the verification correlation values from send-code.
type SendCodeResult struct {
	PhoneCodeHash string
	ClientID      string
}

type sendCodeResponse struct {
	Success       bool   `json:"success"`
	PhoneCodeHash string `json:"phoneCodeHash"`
	ClientID      string `json:"clientId"`
	Error         string `json:"error"`
}

// SendCode asks the gateway to deliver a login code to phone.
func (c *Client) SendCode(ctx context.Context, phone string) (SendCodeResult, error) {
	var resp sendCodeResponse
	err := c.post(ctx, "/api/send-code", map[string]any{"phoneNumber": phone}, &resp)
	if err != nil {
		return SendCodeResult{}, err
	}
	if !resp.Success {
		return SendCodeResult{}, &Error{Message: orUnknown(resp.Error)}
	}
	return SendCodeResult{PhoneCodeHash: resp.PhoneCodeHash, ClientID: resp.ClientID}, nil
}

// VerifyCodeParams are the inputs to VerifyCode.
type VerifyCodeParams struct {
	Phone         string
	PhoneCodeHash string
	Code          string
	ClientID      string
}

type verifyCodeResponse struct {
	Success          bool   `json:"success"`
	SessionString    string `json:"sessionString"`
	Error            string `json:"error"`
	RequiresPassword bool   `json:"requiresPassword"`
}

// VerifyCode completes the login and returns the session string. A failure
// with a second factor required surfaces as *Error with RequiresPassword set.
func (c *Client) VerifyCode(ctx context.Context, p VerifyCodeParams) (string, error) {
	var resp verifyCodeResponse
	err := c.post(ctx, "/api/verify-code", map[string]any{
		"phoneNumber":   p.Phone,
		"phoneCodeHash": p.PhoneCodeHash,
		"code":          p.Code,
		"clientId":      p.ClientID,
	}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &Error{
			Message:          orUnknown(resp.Error),
			RequiresPassword: resp.RequiresPassword,
		}
	}
	return resp.SessionString, nil
}

// CreateGroupParams are the inputs to CreateGroup. Image, when present, is
// the raw image bytes; the client base64-encodes them for the wire.
type CreateGroupParams struct {
	Session string
	Name    string
	Numbers []string
	Image   []byte
}

// CreateGroupResult is the gateway's success report.
type CreateGroupResult struct {
	Message        string
	MembersAdded   int
	TotalRequested int
	FailedNumbers  []string
}

type createGroupResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	MembersAdded   int      `json:"membersAdded"`
	TotalRequested int      `json:"totalRequested"`
	FailedNumbers  []string `json:"failedNumbers"`
	Error          string   `json:"error"`
}

// CreateGroup creates a group on the given session.
func (c *Client) CreateGroup(ctx context.Context, p CreateGroupParams) (CreateGroupResult, error) {
	body := map[string]any{
		"sessionString": p.Session,
		"groupName":     p.Name,
		"mobileNumbers": p.Numbers,
	}
	if len(p.Image) > 0 {
		body["groupImageBase64"] = base64.StdEncoding.EncodeToString(p.Image)
	}

	var resp createGroupResponse
	if err := c.post(ctx, "/api/create-group", body, &resp); err != nil {
		return CreateGroupResult{}, err
	}
	if !resp.Success {
		return CreateGroupResult{}, &Error{
			Message:       orUnknown(resp.Error),
			FailedNumbers: resp.FailedNumbers,
		}
	}
	return CreateGroupResult{
		Message:        resp.Message,
		MembersAdded:   resp.MembersAdded,
		TotalRequested: resp.TotalRequested,
		FailedNumbers:  resp.FailedNumbers,
	}, nil
}

// Health checks the gateway's liveness probe. Used by the setup step to
// validate a backend URL before saving it.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe returned %s", resp.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Failure responses carry the same JSON envelope, so decode regardless
	// of status.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}

func orUnknown(msg string) string {
	if msg == "" {
		return "unknown gateway error"
	}
	return msg
}
