// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides access to a REST api, either over HTTP or in-process.

With NewWithURL the client talks HTTP to a remote endpoint. With NewWithRouter the client
talks directly to a mux router without marshalling HTTP, which makes it the tool of
choice for unit tests against a fake cloud.

Every request passes through an optional Authorizer, which adds headers or signs the
request, and an optional rate limiter.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/sesame/core/logger"
)

// Authorizer prepares a request before it is sent, e.g. by adding an API key header or a
// signature
type Authorizer interface {
	Authorize(ctx context.Context, r *http.Request, body []byte) error
}

// AuthorizerFunc adapts a function to an Authorizer
type AuthorizerFunc func(ctx context.Context, r *http.Request, body []byte) error

// Authorize implements Authorizer
func (f AuthorizerFunc) Authorize(ctx context.Context, r *http.Request, body []byte) error {
	return f(ctx, r, body)
}

// StatusError is returned for responses outside the 2xx range
type StatusError struct {
	Status int
	Want   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("handler returned wrong status code: got %v want %v. Error: %s", e.Status, e.Want, e.Body)
}

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	authorizer Authorizer
	limiter    *rate.Limiter

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests through the mux router
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to url
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := make(map[string]string, len(c.defaultHeaders)+1)
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	headers[key] = value
	c.defaultHeaders = headers
	return c
}

// WithAuthorizer returns a new client which authorizes every request with a
func (c Client) WithAuthorizer(a Authorizer) Client {
	c.authorizer = a
	return c
}

// WithRateLimit returns a new client which sends at most perSecond requests per second,
// with bursts up to burst. Requests wait for their turn or until the context is done.
func (c Client) WithRateLimit(perSecond float64, burst int) Client {
	if perSecond <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// WithTimeout returns a new client with a different HTTP timeout
func (c Client) WithTimeout(timeout time.Duration) Client {
	if c.httpClient != nil {
		c.httpClient = &http.Client{Timeout: timeout, Transport: c.httpClient.Transport}
	}
	return c
}

// RawGet gets the resource from path. Expects a 2xx response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extend with query strings.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGet(ctx context.Context, path string, result interface{}) (int, error) {
	return c.Do(ctx, http.MethodGet, path, nil, result)
}

// RawPost posts a resource to path. Expects a 2xx response, otherwise it will
// flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPost(ctx context.Context, path string, body interface{}, result interface{}) (int, error) {
	return c.Do(ctx, http.MethodPost, path, body, result)
}

// Do sends a request with method to path. A non-nil body is sent as JSON unless it is
// already a []byte. Responses outside the 2xx range return a *StatusError.
func (c Client) Do(ctx context.Context, method, path string, body interface{}, result interface{}) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rlog := logger.FromContext(ctx)

	var j []byte
	if body != nil {
		var ok bool
		if j, ok = body.([]byte); !ok {
			var err error
			j, err = json.Marshal(body)
			if err != nil {
				return http.StatusBadRequest, fmt.Errorf("%s to %s: %w", method, path, err)
			}
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return http.StatusTooManyRequests, fmt.Errorf("%s to %s: %w", method, path, err)
		}
	}

	var reader io.Reader
	if j != nil {
		reader = bytes.NewReader(j)
	}
	r, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return http.StatusBadRequest, err
	}
	if j != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeaders {
		r.Header.Set(key, value)
	}
	if c.authorizer != nil {
		if err := c.authorizer.Authorize(ctx, r, j); err != nil {
			return http.StatusUnauthorized, fmt.Errorf("cannot authorize %s to %s: %w", method, path, err)
		}
	}

	var res *http.Response
	var resBody []byte
	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res = rec.Result()
		resBody = rec.Body.Bytes()
	} else {
		res, err = c.httpClient.Do(r)
		if err != nil {
			return http.StatusInternalServerError, err
		}
		defer res.Body.Close()
		resBody, err = io.ReadAll(res.Body)
		if err != nil {
			return res.StatusCode, fmt.Errorf("cannot read response of %s to %s: %w", method, path, err)
		}
	}

	status := res.StatusCode
	rlog.Debugf("%s %s: %d", method, path, status)
	if status < 200 || status > 299 {
		want := http.StatusOK
		if method == http.MethodPost {
			want = http.StatusCreated
		}
		return status, &StatusError{Status: status, Want: want, Body: strings.TrimSpace(string(resBody))}
	}
	if status == http.StatusNoContent || len(resBody) == 0 || result == nil {
		return status, nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = resBody
		return status, nil
	}
	return status, json.Unmarshal(resBody, result)
}
