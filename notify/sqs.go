// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/goccy/go-json"
)

// MessageSender is the part of the SQS API used here
type MessageSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

var _ MessageSender = (*sqs.Client)(nil)

// SQSSink sends events to an SQS queue
type SQSSink struct {
	client   MessageSender
	queueURL string
}

var _ Sink = (*SQSSink)(nil)

// NewSQSSink returns a sink sending to queueURL
func NewSQSSink(client MessageSender, queueURL string) *SQSSink {
	return &SQSSink{client: client, queueURL: queueURL}
}

// Send implements Sink
func (s *SQSSink) Send(ctx context.Context, event Event, contextData []byte) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	attributes := map[string]types.MessageAttributeValue{
		"type":   {DataType: aws.String("String"), StringValue: aws.String(event.Type)},
		"device": {DataType: aws.String("String"), StringValue: aws.String(event.Key())},
	}
	if len(contextData) > 0 {
		attributes[ContextHeader] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(string(contextData))}
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(s.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attributes,
	})
	if err != nil {
		return fmt.Errorf("sqs: %w", err)
	}
	return nil
}
