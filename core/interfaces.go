// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/sesame/history"
	"github.com/relabs-tech/sesame/sign"
)

// StatusReader fetches the raw mechanical status of a device. The result is either a
// dictionary (Web API) or a hex string (device shadow) and is decoded by the mech package.
type StatusReader interface {
	FetchStatus(ctx context.Context, device uuid.UUID) (interface{}, error)
}

// CommandRequest is everything a CommandChannel needs to send one signed command
type CommandRequest struct {
	Device     uuid.UUID
	Command    Command
	HistoryTag []byte
	Key        sign.Key
	Time       time.Time
}

// CommandChannel is the request/response side of the cloud
type CommandChannel interface {
	StatusReader
	SendCommand(ctx context.Context, req CommandRequest) error
	History(ctx context.Context, device uuid.UUID, page, pageSize int) ([]history.Entry, error)
}

// PushHandler receives messages delivered on a subscribed topic
type PushHandler func(topic string, payload []byte)

// PushChannel is the publish/subscribe side of the cloud. Connect must succeed when
// the channel is already connected.
type PushChannel interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topic string, handler PushHandler) error
}

// Credentials are temporary credentials for the IoT endpoint. A zero Expires never expires.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time
}

// CredentialProvider yields temporary credentials
type CredentialProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}
