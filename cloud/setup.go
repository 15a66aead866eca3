// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package cloud

import (
	"context"

	"github.com/relabs-tech/sesame/auth"
	"github.com/relabs-tech/sesame/core"
	"github.com/relabs-tech/sesame/core/config"
)

// Setup holds the command channel and the Cognito authenticator of a service
type Setup struct {
	Channel core.CommandChannel
	// Cognito provides the credentials for push and the data plane in both modes
	Cognito *auth.Cognito
}

// NewFromConfig builds the command channel selected by service.Auth. cognitoClient may be nil.
func NewFromConfig(ctx context.Context, service *config.Service, cognitoClient auth.CognitoClient) (*Setup, error) {
	cognito, err := auth.NewCognito(ctx, &auth.CognitoBuilder{
		APIKey:   service.APIKey,
		ClientID: service.ClientID,
		Client:   cognitoClient,
	})
	if err != nil {
		return nil, err
	}

	if service.Auth == config.AuthCognito {
		gateway, err := NewGateway(&GatewayBuilder{
			Cognito:    cognito,
			URL:        service.APIURL,
			GatewayURL: service.GatewayURL,
			RateLimit:  service.RateLimit,
			Timeout:    service.HTTPTimeout,
		})
		if err != nil {
			return nil, err
		}
		return &Setup{Channel: gateway, Cognito: cognito}, nil
	}

	authorizer, err := auth.NewWebAPI(service.APIKey)
	if err != nil {
		return nil, err
	}
	return &Setup{
		Channel: NewWebAPI(&Builder{
			URL:        service.APIURL,
			Authorizer: authorizer,
			RateLimit:  service.RateLimit,
			Timeout:    service.HTTPTimeout,
		}),
		Cognito: cognito,
	}, nil
}
