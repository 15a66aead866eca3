// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/patrickmn/go-cache"

	"github.com/relabs-tech/sesame/core"
	"github.com/relabs-tech/sesame/core/client"
	"github.com/relabs-tech/sesame/core/logger"
)

// DefaultClientID is the identity pool of the official app
const DefaultClientID = "ap-northeast-1:0a1820f1-dbb3-4bca-9227-2a92f6abf0ae"

// credentials are refreshed this long before they expire
const expiryMargin = 5 * time.Minute

const credentialsKey = "credentials"

// CognitoClient is the part of the Cognito identity API used here
type CognitoClient interface {
	GetId(ctx context.Context, params *cognitoidentity.GetIdInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, params *cognitoidentity.GetCredentialsForIdentityInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error)
}

var _ CognitoClient = (*cognitoidentity.Client)(nil)

// Cognito authenticates with the API key and temporary AWS credentials
type Cognito struct {
	apiKey   string
	clientID string
	region   string
	client   CognitoClient

	mu    sync.Mutex
	cache *cache.Cache
}

var (
	_ client.Authorizer       = (*Cognito)(nil)
	_ core.CredentialProvider = (*Cognito)(nil)
	_ aws.CredentialsProvider = (*Cognito)(nil)
)

// CognitoBuilder is a builder helper for Cognito
type CognitoBuilder struct {
	// APIKey is the key from the developer portal. This is mandatory.
	APIKey string
	// ClientID is the identity pool. Defaults to DefaultClientID.
	ClientID string
	// Client talks to Cognito. Defaults to an anonymous client in the region of ClientID.
	Client CognitoClient
}

// NewCognito returns a new Cognito authenticator
func NewCognito(ctx context.Context, b *CognitoBuilder) (*Cognito, error) {
	if err := validateAPIKey(b.APIKey); err != nil {
		return nil, err
	}
	clientID := b.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}
	region, _, found := strings.Cut(clientID, ":")
	if !found || region == "" {
		return nil, fmt.Errorf("invalid client ID %q: expected <region>:<pool>", clientID)
	}

	c := &Cognito{
		apiKey:   b.APIKey,
		clientID: clientID,
		region:   region,
		client:   b.Client,
		cache:    cache.New(cache.NoExpiration, 10*time.Minute),
	}
	if c.client == nil {
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(aws.AnonymousCredentials{}),
		)
		if err != nil {
			return nil, fmt.Errorf("cannot load aws config: %w", err)
		}
		c.client = cognitoidentity.NewFromConfig(cfg)
	}
	return c, nil
}

// ClientID returns the identity pool
func (c *Cognito) ClientID() string { return c.clientID }

// Region returns the region of the identity pool
func (c *Cognito) Region() string { return c.region }

// Authorize implements client.Authorizer
func (c *Cognito) Authorize(ctx context.Context, r *http.Request, body []byte) error {
	r.Header.Set(APIKeyHeader, c.apiKey)
	return nil
}

// Authenticate exchanges the identity pool for fresh temporary credentials
func (c *Cognito) Authenticate(ctx context.Context) (aws.Credentials, error) {
	rlog := logger.FromContext(ctx)

	id, err := c.client.GetId(ctx, &cognitoidentity.GetIdInput{IdentityPoolId: aws.String(c.clientID)})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("cognito GetId: %w", err)
	}
	if id.IdentityId == nil {
		return aws.Credentials{}, errors.New("cognito GetId returned no identity")
	}
	out, err := c.client.GetCredentialsForIdentity(ctx, &cognitoidentity.GetCredentialsForIdentityInput{
		IdentityId: id.IdentityId,
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("cognito GetCredentialsForIdentity: %w", err)
	}
	if out.Credentials == nil {
		return aws.Credentials{}, errors.New("cognito returned no credentials")
	}

	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Source:          "sesame-cognito",
	}
	if out.Credentials.Expiration != nil {
		creds.CanExpire = true
		creds.Expires = *out.Credentials.Expiration
	}
	rlog.Debugf("retrieved credentials for identity %s", aws.ToString(id.IdentityId))
	return creds, nil
}

// Retrieve implements aws.CredentialsProvider. Credentials are cached until shortly
// before they expire.
func (c *Cognito) Retrieve(ctx context.Context) (aws.Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.cache.Get(credentialsKey); ok {
		return cached.(aws.Credentials), nil
	}
	creds, err := c.Authenticate(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}
	ttl := cache.NoExpiration
	if creds.CanExpire {
		ttl = time.Until(creds.Expires) - expiryMargin
		if ttl <= 0 {
			return creds, nil
		}
	}
	c.cache.Set(credentialsKey, creds, ttl)
	return creds, nil
}

// Credentials implements core.CredentialProvider
func (c *Cognito) Credentials(ctx context.Context) (core.Credentials, error) {
	creds, err := c.Retrieve(ctx)
	if err != nil {
		return core.Credentials{}, err
	}
	return fromAWS(creds), nil
}

// Invalidate drops cached credentials, e.g. after the server rejected them
func (c *Cognito) Invalidate() {
	c.cache.Delete(credentialsKey)
}
