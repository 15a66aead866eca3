// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package dataplane reads device shadows over the AWS IoT data plane API
package dataplane

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/google/uuid"

	"github.com/relabs-tech/sesame/auth"
	"github.com/relabs-tech/sesame/core"
	"github.com/relabs-tech/sesame/core/logger"
	"github.com/relabs-tech/sesame/core/schema"
	"github.com/relabs-tech/sesame/iot"
	"github.com/relabs-tech/sesame/iot/mqtt"
)

// ShadowClient is the part of the data plane API used here
type ShadowClient interface {
	GetThingShadow(ctx context.Context, params *iotdataplane.GetThingShadowInput, optFns ...func(*iotdataplane.Options)) (*iotdataplane.GetThingShadowOutput, error)
}

var _ ShadowClient = (*iotdataplane.Client)(nil)

// Reader is a core.StatusReader. The status is the reported mechst of the device shadow,
// as hex string.
type Reader struct {
	client    ShadowClient
	validator *schema.Validator
}

var _ core.StatusReader = (*Reader)(nil)

// Builder is a builder helper for Reader
type Builder struct {
	// Endpoint is the IoT endpoint. Defaults to mqtt.DefaultEndpoint.
	Endpoint string
	// Credentials sign the requests. This is mandatory unless Client is set.
	Credentials core.CredentialProvider
	// Client replaces the data plane client
	Client    ShadowClient
	Validator *schema.Validator
}

// New returns a new reader
func New(ctx context.Context, b *Builder) (*Reader, error) {
	r := &Reader{client: b.Client, validator: b.Validator}
	if r.validator == nil {
		r.validator = schema.Default()
	}
	if r.client != nil {
		return r, nil
	}
	if b.Credentials == nil {
		panic("credentials are missing")
	}
	endpoint := b.Endpoint
	if endpoint == "" {
		endpoint = mqtt.DefaultEndpoint
	}
	region, err := auth.Region(endpoint)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(auth.NewAWSProvider(b.Credentials)),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot load aws config: %w", err)
	}
	r.client = iotdataplane.NewFromConfig(cfg, func(o *iotdataplane.Options) {
		o.EndpointResolver = iotdataplane.EndpointResolverFromURL("https://" + endpoint)
	})
	return r, nil
}

// FetchStatus implements core.StatusReader
func (r *Reader) FetchStatus(ctx context.Context, device uuid.UUID) (interface{}, error) {
	rlog := logger.FromContext(ctx)
	out, err := r.client.GetThingShadow(ctx, &iotdataplane.GetThingShadowInput{
		ThingName:  aws.String(iot.ThingName),
		ShadowName: aws.String(iot.ShadowName(device)),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot get shadow of %s: %w", device, err)
	}
	if err := r.validator.ValidateBytes(out.Payload, schema.ShadowID); err != nil {
		return nil, fmt.Errorf("invalid shadow of %s: %w", device, err)
	}
	mechst, err := iot.ParseShadow(out.Payload)
	if err != nil {
		return nil, fmt.Errorf("shadow of %s: %w", device, err)
	}
	rlog.Debugf("shadow of %s reports %s", device, mechst)
	return mechst, nil
}
