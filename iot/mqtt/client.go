// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/sesame/auth"
	"github.com/relabs-tech/sesame/core"
	"github.com/relabs-tech/sesame/core/logger"
)

// DefaultEndpoint is the IoT endpoint of the vendor cloud
const DefaultEndpoint = "a3i4hui4gxwoo8-ats.iot.ap-northeast-1.amazonaws.com"

// Service is the SigV4 service name of the websocket
const Service = "iotdevicegateway"

// emptyPayloadHash is the sha256 of an empty body
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

const (
	defaultConnectTimeout = 10 * time.Second
	keepAlive             = 30 * time.Second
	qos                   = 1
)

// Client is a core.PushChannel over MQTT
type Client struct {
	endpoint       string
	region         string
	clientID       string
	brokerURL      string
	credentials    aws.CredentialsProvider
	connectTimeout time.Duration

	mu            sync.Mutex
	client        paho.Client
	subscriptions map[string]core.PushHandler
}

var _ core.PushChannel = (*Client)(nil)

// Builder is a builder helper for the Client
type Builder struct {
	// Endpoint is the IoT endpoint. Defaults to DefaultEndpoint.
	Endpoint string
	// ClientID is the MQTT client ID. Defaults to a random UUID.
	ClientID string
	// Credentials presign the websocket. This is mandatory unless BrokerURL is set.
	Credentials core.CredentialProvider
	// BrokerURL connects to a plain broker without presigning, e.g. tcp://localhost:1883
	BrokerURL string
	// ConnectTimeout defaults to 10 seconds
	ConnectTimeout time.Duration
}

// New returns a new client. The client does not connect until Connect or Subscribe is
// called.
func New(b *Builder) (*Client, error) {
	c := &Client{
		endpoint:       b.Endpoint,
		clientID:       b.ClientID,
		brokerURL:      b.BrokerURL,
		connectTimeout: b.ConnectTimeout,
		subscriptions:  map[string]core.PushHandler{},
	}
	if b.Credentials != nil {
		c.credentials = auth.NewAWSProvider(b.Credentials)
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.clientID == "" {
		c.clientID = uuid.New().String()
	}
	if c.connectTimeout <= 0 {
		c.connectTimeout = defaultConnectTimeout
	}
	if c.brokerURL == "" {
		if c.credentials == nil {
			panic("credentials are missing")
		}
		region, err := auth.Region(c.endpoint)
		if err != nil {
			return nil, err
		}
		c.region = region
	}
	return c, nil
}

// ClientID returns the MQTT client ID
func (c *Client) ClientID() string { return c.clientID }

// PresignURL returns the websocket url for endpoint, presigned with creds. The session
// token is not part of the signature and is appended afterwards.
func PresignURL(ctx context.Context, creds aws.Credentials, endpoint, region string, t time.Time) (string, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, "wss://"+endpoint+"/mqtt", nil)
	if err != nil {
		return "", err
	}
	token := creds.SessionToken
	creds.SessionToken = ""
	signed, _, err := v4.NewSigner().PresignHTTP(ctx, creds, r, emptyPayloadHash, Service, region, t)
	if err != nil {
		return "", fmt.Errorf("cannot presign websocket url: %w", err)
	}
	if token != "" {
		signed += "&X-Amz-Security-Token=" + url.QueryEscape(token)
	}
	return signed, nil
}

// openWebsocket is called by paho for every (re)connect
func (c *Client) openWebsocket(uri *url.URL, options paho.ClientOptions) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.connectTimeout)
	defer cancel()
	creds, err := c.credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot retrieve credentials: %w", err)
	}
	signed, err := PresignURL(ctx, creds, c.endpoint, c.region, time.Now())
	if err != nil {
		return nil, err
	}
	tlsc := &tls.Config{ServerName: c.endpoint, MinVersion: tls.VersionTLS12}
	return paho.NewWebsocket(signed, tlsc, c.connectTimeout, http.Header{}, &paho.WebsocketOptions{})
}

// Connect implements core.PushChannel. Connecting an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	rlog := logger.FromContext(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		if c.client.IsConnected() {
			return nil
		}
		c.client.Disconnect(0)
		c.client = nil
	}

	client := paho.NewClient(c.clientOptions())
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.connectTimeout):
		return fmt.Errorf("connect to %s timed out", c.endpoint)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("cannot connect to %s: %w", c.endpoint, err)
	}
	c.client = client
	rlog.Infof("mqtt connected as %s", c.clientID)
	return nil
}

// clientOptions keeps paho's in-order delivery: the handlers of one connection run one
// after the other, so shadow updates of a device are reconciled in the order they arrive.
func (c *Client) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.SetClientID(c.clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(keepAlive)
	opts.SetConnectTimeout(c.connectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Default().WithError(err).Warnln("mqtt connection lost")
	})
	if c.brokerURL != "" {
		opts.AddBroker(c.brokerURL)
	} else {
		opts.AddBroker("wss://" + c.endpoint + ":443/mqtt")
		opts.SetCustomOpenConnectionFn(c.openWebsocket)
	}
	return opts
}

// onConnect restores subscriptions after a reconnect
func (c *Client) onConnect(client paho.Client) {
	c.mu.Lock()
	subscriptions := make(map[string]core.PushHandler, len(c.subscriptions))
	for topic, handler := range c.subscriptions {
		subscriptions[topic] = handler
	}
	c.mu.Unlock()

	for topic, handler := range subscriptions {
		logger.Default().Debugln("resubscribe", topic)
		client.Subscribe(topic, qos, messageHandler(handler))
	}
}

func messageHandler(handler core.PushHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	}
}

// Subscribe implements core.PushChannel. It connects if necessary.
func (c *Client) Subscribe(ctx context.Context, topic string, handler core.PushHandler) error {
	rlog := logger.FromContext(ctx)
	if err := c.Connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.subscriptions[topic] = handler
	client := c.client
	c.mu.Unlock()

	token := client.Subscribe(topic, qos, messageHandler(handler))
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("cannot subscribe to %s: %w", topic, err)
	}
	rlog.Debugln("subscribed to", topic)
	return nil
}

// Topics returns the subscribed topics
func (c *Client) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}
	return topics
}

// Disconnect closes the connection. Subscriptions are kept for the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Disconnect(250)
		c.client = nil
	}
}
