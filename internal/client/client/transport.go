package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/partsdesk/internal/client/autherr"
	"github.com/dmitrijs2005/partsdesk/internal/common"
	"github.com/dmitrijs2005/partsdesk/internal/logging"
)

// TokenSource supplies the bearer token and renews it; *session.Manager
// satisfies it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) bool
}

// ErrorReporter receives classified failures; *autherr.Reporter satisfies it.
type ErrorReporter interface {
	Report(ctx context.Context, kind autherr.Kind, message string) bool
}

// Transport is an http.RoundTripper for calls to the dashboard API. It
// attaches the bearer token, renews it once and replays the request on a
// 401, and reports failures it cannot absorb.
type Transport struct {
	Base     http.RoundTripper
	Tokens   TokenSource
	Reporter ErrorReporter
	Log      logging.Logger
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) report(ctx context.Context, kind autherr.Kind, msg string) {
	if t.Reporter != nil {
		t.Reporter.Report(ctx, kind, msg)
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	log := logging.OrNop(t.Log)

	resp, err := t.send(req)
	if err != nil {
		t.report(ctx, autherr.NetworkError, "Could not connect to the server")
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && t.Tokens != nil && replayable(req) {
		if t.Tokens.RefreshToken(ctx) {
			drain(resp)
			retry, err := rewind(req)
			if err != nil {
				return nil, err
			}
			log.Debug(ctx, "token renewed, replaying request", "url", req.URL.Path)
			resp, err = t.send(retry)
			if err != nil {
				t.report(ctx, autherr.NetworkError, "Could not connect to the server")
				return nil, err
			}
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		t.report(ctx, autherr.TokenExpired, "Your session has expired")
	case resp.StatusCode == http.StatusForbidden:
		t.report(ctx, autherr.Unauthorized, "You do not have permission to access this resource")
	case resp.StatusCode >= 500:
		t.report(ctx, autherr.NetworkError, fmt.Sprintf("Server error (%d)", resp.StatusCode))
	}
	return resp, nil
}

func (t *Transport) send(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if t.Tokens != nil {
		if tok, err := t.Tokens.AccessToken(req.Context()); err == nil && tok != "" {
			out.Header.Set(common.AuthorizationHeaderName, "Bearer "+tok)
		}
	}
	return t.base().RoundTrip(out)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	r.Body = body
	return r, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
