package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/partsdesk/internal/client/models"
	"github.com/dmitrijs2005/partsdesk/internal/logging"
)

// tokenResponse is the body of /login and /refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	UserID       int64  `json:"user_id"`
	CompanyID    int64  `json:"company_id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Role         string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type errorBody struct {
	Detail any `json:"detail"`
}

type HTTPClient struct {
	baseURL string
	hc      *http.Client
	log     logging.Logger
	now     func() time.Time
}

// NewHTTPClient builds a client for the API rooted at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		log:     logging.OrNop(log).With("component", "api"),
		now:     time.Now,
	}
}

func (c *HTTPClient) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.LoginResult, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var tr tokenResponse
	if err := c.do(ctx, "/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &tr); err != nil {
		return nil, err
	}
	pair, err := c.pair(tr)
	if err != nil {
		return nil, err
	}

	return &models.LoginResult{
		Tokens: pair,
		Session: models.Session{
			ID:        tr.UserID,
			Email:     tr.Email,
			FullName:  tr.FullName,
			Role:      models.Role(tr.Role),
			CompanyID: tr.CompanyID,
		},
	}, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := c.do(ctx, "/refresh", "application/json", bytes.NewReader(body), &tr); err != nil {
		return nil, err
	}
	pair, err := c.pair(tr)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func (c *HTTPClient) Logout(ctx context.Context, refreshToken string) error {
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return c.do(ctx, "/logout", "application/json", bytes.NewReader(body), nil)
}

func (c *HTTPClient) pair(tr tokenResponse) (models.TokenPair, error) {
	p := models.TokenPair{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
	if !p.Complete() {
		return models.TokenPair{}, fmt.Errorf("%w: token pair missing", ErrBadResponse)
	}
	if tr.ExpiresIn > 0 {
		p.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return p, nil
}

func (c *HTTPClient) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Warn(ctx, "request failed", "path", path, "error", err)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body)}
		c.log.Debug(ctx, "request rejected", "path", path, "status", resp.StatusCode)
		return se
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return nil
}

func readDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return ""
	}
	var eb errorBody
	if json.Unmarshal(b, &eb) != nil {
		return ""
	}
	switch d := eb.Detail.(type) {
	case string:
		return d
	case nil:
		return ""
	default:
		raw, _ := json.Marshal(d)
		return string(raw)
	}
}
