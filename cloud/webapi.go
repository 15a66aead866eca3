// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package cloud implements the request/response side of the vendor cloud.

WebAPI talks to the public Web API:

	GET  {base}/{UUID}                        mechanical status
	POST {base}/{UUID}/cmd                    signed command
	GET  {base}/{UUID}/history?page=N&lg=M    history

Gateway sends commands through the IoT gateway with SigV4 signed requests and the
truncated signature, and reads status and history like WebAPI.
*/
package cloud

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/sesame/core"
	"github.com/relabs-tech/sesame/core/client"
	"github.com/relabs-tech/sesame/core/logger"
	"github.com/relabs-tech/sesame/core/schema"
	"github.com/relabs-tech/sesame/history"
	"github.com/relabs-tech/sesame/mech"
	"github.com/relabs-tech/sesame/sign"
)

// DefaultURL is the base url of the Web API
const DefaultURL = "https://app.candyhouse.co/api/sesame2"

// UserAgent is sent with every request
const UserAgent = "relabs-sesame/1.0"

// history paging defaults of the official app
const (
	DefaultPage     = 0
	DefaultPageSize = 10
)

// CommandBody is the body of a command request
type CommandBody struct {
	Cmd     int    `json:"cmd"`
	History string `json:"history"`
	Sign    string `json:"sign"`
}

// NewCommandBody builds the body for req, signed with signature
func NewCommandBody(req core.CommandRequest, signature string) CommandBody {
	return CommandBody{
		Cmd:     int(req.Command),
		History: base64.StdEncoding.EncodeToString(req.HistoryTag),
		Sign:    signature,
	}
}

// DevicePath returns the path segment of a device, its upper case UUID
func DevicePath(device uuid.UUID) string {
	return "/" + strings.ToUpper(device.String())
}

// WebAPI is a core.CommandChannel over the Web API
type WebAPI struct {
	client    client.Client
	validator *schema.Validator
}

var _ core.CommandChannel = (*WebAPI)(nil)

// Builder is a builder helper for WebAPI
type Builder struct {
	// URL is the base url. Defaults to DefaultURL.
	URL string
	// Authorizer authenticates the requests. This is mandatory unless Client is set.
	Authorizer client.Authorizer
	// Client replaces the HTTP client, e.g. with an in-process router client
	Client *client.Client
	// RateLimit is the maximum number of requests per second, 0 means unlimited
	RateLimit float64
	// Timeout of a single HTTP request, 0 keeps the client default
	Timeout time.Duration
	// Validator checks payloads. Defaults to the embedded schemas.
	Validator *schema.Validator
}

// NewWebAPI returns a new Web API channel
func NewWebAPI(b *Builder) *WebAPI {
	return &WebAPI{
		client:    newClient(b),
		validator: validator(b),
	}
}

func newClient(b *Builder) client.Client {
	var c client.Client
	if b.Client != nil {
		c = *b.Client
	} else {
		if b.Authorizer == nil {
			panic("authorizer is missing")
		}
		url := b.URL
		if url == "" {
			url = DefaultURL
		}
		c = client.NewWithURL(url).WithHeader("User-Agent", UserAgent)
	}
	if b.Timeout > 0 {
		c = c.WithTimeout(b.Timeout)
	}
	if b.Authorizer != nil {
		c = c.WithAuthorizer(b.Authorizer)
	}
	return c.WithRateLimit(b.RateLimit, 1)
}

func validator(b *Builder) *schema.Validator {
	if b.Validator != nil {
		return b.Validator
	}
	return schema.Default()
}

// FetchStatus implements core.StatusReader. The result is a mech.Fields dictionary.
func (w *WebAPI) FetchStatus(ctx context.Context, device uuid.UUID) (interface{}, error) {
	var body []byte
	if _, err := w.client.RawGet(ctx, DevicePath(device), &body); err != nil {
		return nil, fmt.Errorf("cannot fetch status of %s: %w", device, err)
	}
	if err := w.validator.ValidateBytes(body, schema.StatusID); err != nil {
		return nil, fmt.Errorf("invalid status of %s: %w", device, err)
	}
	var fields mech.Fields
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("invalid status of %s: %w", device, err)
	}
	return fields, nil
}

// SendCommand implements core.CommandChannel
func (w *WebAPI) SendCommand(ctx context.Context, req core.CommandRequest) error {
	rlog := logger.FromContext(ctx)
	body := NewCommandBody(req, sign.Sign(req.Key, req.Time))
	status, err := w.client.RawPost(ctx, DevicePath(req.Device)+"/cmd", body, nil)
	if err != nil {
		return fmt.Errorf("command %s to %s: %w", req.Command, req.Device, err)
	}
	rlog.Debugf("command %s accepted with status %d", req.Command, status)
	return nil
}

// History implements core.CommandChannel
func (w *WebAPI) History(ctx context.Context, device uuid.UUID, page, pageSize int) ([]history.Entry, error) {
	return fetchHistory(ctx, w.client, w.validator, device, page, pageSize)
}

func fetchHistory(ctx context.Context, c client.Client, v *schema.Validator, device uuid.UUID, page, pageSize int) ([]history.Entry, error) {
	if page < 0 {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	path := fmt.Sprintf("%s/history?page=%d&lg=%d", DevicePath(device), page, pageSize)
	var body []byte
	if _, err := c.RawGet(ctx, path, &body); err != nil {
		return nil, fmt.Errorf("cannot fetch history of %s: %w", device, err)
	}
	if err := v.ValidateBytes(body, schema.HistoryID); err != nil {
		return nil, fmt.Errorf("invalid history of %s: %w", device, err)
	}
	return history.Decode(body)
}
