// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package auth

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/relabs-tech/sesame/core"
)

// AWSProvider adapts a core.CredentialProvider to the AWS SDK
type AWSProvider struct {
	Provider core.CredentialProvider
}

var _ aws.CredentialsProvider = AWSProvider{}

// Retrieve implements aws.CredentialsProvider
func (p AWSProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	c, err := p.Provider.Credentials(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}
	return aws.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		CanExpire:       !c.Expires.IsZero(),
		Expires:         c.Expires,
		Source:          "sesame",
	}, nil
}

// NewAWSProvider returns p as aws.CredentialsProvider. Providers which already are one,
// like Cognito, are used as they are.
func NewAWSProvider(p core.CredentialProvider) aws.CredentialsProvider {
	switch t := p.(type) {
	case aws.CredentialsProvider:
		return t
	case SDKProvider:
		return t.Provider
	default:
		return AWSProvider{Provider: p}
	}
}

// SDKProvider adapts an AWS SDK provider, e.g. static credentials, to core.CredentialProvider
type SDKProvider struct {
	Provider aws.CredentialsProvider
}

var _ core.CredentialProvider = SDKProvider{}

// Credentials implements core.CredentialProvider
func (p SDKProvider) Credentials(ctx context.Context) (core.Credentials, error) {
	c, err := p.Provider.Retrieve(ctx)
	if err != nil {
		return core.Credentials{}, err
	}
	return fromAWS(c), nil
}

func fromAWS(c aws.Credentials) core.Credentials {
	creds := core.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
	}
	if c.CanExpire {
		creds.Expires = c.Expires
	}
	return creds
}
