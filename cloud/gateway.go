// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package cloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/google/uuid"

	"github.com/relabs-tech/sesame/auth"
	"github.com/relabs-tech/sesame/core"
	"github.com/relabs-tech/sesame/core/client"
	"github.com/relabs-tech/sesame/core/logger"
	"github.com/relabs-tech/sesame/core/schema"
	"github.com/relabs-tech/sesame/history"
	"github.com/relabs-tech/sesame/sign"
)

// DefaultGatewayURL is the base url of the IoT gateway
const DefaultGatewayURL = "https://jhcr1i3ecb.execute-api.ap-northeast-1.amazonaws.com/prod"

// GatewayService is the SigV4 service name of the IoT gateway
const GatewayService = "execute-api"

// SigV4 signs requests with temporary AWS credentials
type SigV4 struct {
	Credentials aws.CredentialsProvider
	Region      string
	Service     string

	signer *v4.Signer
	now    func() time.Time
}

var _ client.Authorizer = (*SigV4)(nil)

// NewSigV4 returns a signer for service in region
func NewSigV4(credentials aws.CredentialsProvider, region, service string) *SigV4 {
	return &SigV4{
		Credentials: credentials,
		Region:      region,
		Service:     service,
		signer:      v4.NewSigner(),
		now:         time.Now,
	}
}

// Authorize implements client.Authorizer
func (s *SigV4) Authorize(ctx context.Context, r *http.Request, body []byte) error {
	creds, err := s.Credentials.Retrieve(ctx)
	if err != nil {
		return err
	}
	hash := sha256.Sum256(body)
	return s.signer.SignHTTP(ctx, creds, r, hex.EncodeToString(hash[:]), s.Service, s.Region, s.now())
}

// Gateway is a core.CommandChannel which sends commands through the IoT gateway
type Gateway struct {
	webAPI  *WebAPI
	gateway client.Client
}

var _ core.CommandChannel = (*Gateway)(nil)

// GatewayBuilder is a builder helper for Gateway
type GatewayBuilder struct {
	// Cognito provides the API key and the credentials. This is mandatory.
	Cognito *auth.Cognito
	// URL is the Web API base url. Defaults to DefaultURL.
	URL string
	// GatewayURL is the gateway base url. Defaults to DefaultGatewayURL.
	GatewayURL string
	// Client replaces the Web API client, GatewayClient the gateway client
	Client        *client.Client
	GatewayClient *client.Client
	// RateLimit is the maximum number of Web API requests per second
	RateLimit float64
	// Timeout of a single HTTP request, 0 keeps the client default
	Timeout   time.Duration
	Validator *schema.Validator
}

// NewGateway returns a new gateway channel
func NewGateway(b *GatewayBuilder) (*Gateway, error) {
	if b.Cognito == nil {
		panic("cognito is missing")
	}
	gatewayURL := b.GatewayURL
	if gatewayURL == "" {
		gatewayURL = DefaultGatewayURL
	}
	region, err := auth.Region(gatewayURL)
	if err != nil {
		return nil, err
	}

	var gc client.Client
	if b.GatewayClient != nil {
		gc = *b.GatewayClient
	} else {
		gc = client.NewWithURL(gatewayURL).WithHeader("User-Agent", UserAgent)
	}
	if b.Timeout > 0 {
		gc = gc.WithTimeout(b.Timeout)
	}
	gc = gc.WithAuthorizer(client.Chain(b.Cognito, NewSigV4(b.Cognito, region, GatewayService)))

	return &Gateway{
		webAPI: NewWebAPI(&Builder{
			URL:        b.URL,
			Authorizer: b.Cognito,
			Client:     b.Client,
			RateLimit:  b.RateLimit,
			Timeout:    b.Timeout,
			Validator:  b.Validator,
		}),
		gateway: gc,
	}, nil
}

// FetchStatus implements core.StatusReader
func (g *Gateway) FetchStatus(ctx context.Context, device uuid.UUID) (interface{}, error) {
	return g.webAPI.FetchStatus(ctx, device)
}

// History implements core.CommandChannel
func (g *Gateway) History(ctx context.Context, device uuid.UUID, page, pageSize int) ([]history.Entry, error) {
	return g.webAPI.History(ctx, device, page, pageSize)
}

// SendCommand implements core.CommandChannel. The gateway expects the truncated signature.
func (g *Gateway) SendCommand(ctx context.Context, req core.CommandRequest) error {
	rlog := logger.FromContext(ctx)
	body := NewCommandBody(req, sign.SignIoT(req.Key, req.Time))
	path := "/device/v1/iot/sesame2" + DevicePath(req.Device)
	status, err := g.gateway.RawPost(ctx, path, body, nil)
	if err != nil {
		return fmt.Errorf("command %s to %s: %w", req.Command, req.Device, err)
	}
	rlog.Debugf("command %s accepted by gateway with status %d", req.Command, status)
	return nil
}
