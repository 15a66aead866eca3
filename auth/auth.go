// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package auth authenticates against the vendor cloud.

WebAPI adds the API key to every request. Cognito does the same and additionally
exchanges the client ID, which is an anonymous Cognito identity pool, for temporary AWS
credentials. Those credentials sign the MQTT websocket and the IoT gateway requests.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/relabs-tech/sesame/core/client"
)

// APIKeyLength is the length of a valid API key
const APIKeyLength = 40

// APIKeyHeader carries the API key
const APIKeyHeader = "x-api-key"

var (
	// ErrInvalidAPIKey is returned for API keys of the wrong length
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrNoRegion is returned when no AWS region can be found in a string
	ErrNoRegion = errors.New("failed to extract a region name")
)

var regionPattern = regexp.MustCompile(`(us(-gov)?|ap|ca|cn|eu|sa)-(central|(north|south)?(east|west)?)-\d`)

// Region extracts the AWS region from an endpoint, a url or a Cognito identity
func Region(s string) (string, error) {
	region := regionPattern.FindString(s)
	if region == "" {
		return "", fmt.Errorf("%w: %q", ErrNoRegion, s)
	}
	return region, nil
}

func validateAPIKey(apiKey string) error {
	if len(apiKey) != APIKeyLength {
		return fmt.Errorf("%w: length should be %d", ErrInvalidAPIKey, APIKeyLength)
	}
	return nil
}

// WebAPI authenticates Web API requests with the API key
type WebAPI struct {
	apiKey string
}

var _ client.Authorizer = (*WebAPI)(nil)

// NewWebAPI returns an authenticator for apiKey
func NewWebAPI(apiKey string) (*WebAPI, error) {
	if err := validateAPIKey(apiKey); err != nil {
		return nil, err
	}
	return &WebAPI{apiKey: apiKey}, nil
}

// Authorize implements client.Authorizer
func (a *WebAPI) Authorize(ctx context.Context, r *http.Request, body []byte) error {
	r.Header.Set(APIKeyHeader, a.apiKey)
	return nil
}
