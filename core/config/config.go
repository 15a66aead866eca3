// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package config holds the configuration shared by the programs built on this module:
// the service settings come from the environment, the device list from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/sesame/auth"
	"github.com/relabs-tech/sesame/product"
	"github.com/relabs-tech/sesame/sign"
)

// Authentication modes
const (
	AuthWebAPI  = "webapi"
	AuthCognito = "cognito"
)

// Service holds the configuration for a program talking to the cloud. Empty endpoints
// fall back to the defaults of the packages using them.
//
// use SESAME_API_KEY="<40 characters from the developer portal>"
type Service struct {
	APIKey      string        `env:"SESAME_API_KEY,required" description:"the API key from the developer portal"`
	Auth        string        `env:"SESAME_AUTH,default=webapi" description:"authentication mode, webapi or cognito"`
	ClientID    string        `env:"SESAME_CLIENT_ID,optional" description:"the Cognito identity pool, defaults to auth.DefaultClientID"`
	IoTEndpoint string        `env:"SESAME_IOT_ENDPOINT,optional" description:"the AWS IoT endpoint, defaults to mqtt.DefaultEndpoint"`
	APIURL      string        `env:"SESAME_API_URL,optional" description:"the Web API base url, defaults to cloud.DefaultURL"`
	GatewayURL  string        `env:"SESAME_GATEWAY_URL,optional" description:"the IoT gateway base url, defaults to cloud.DefaultGatewayURL"`
	HTTPTimeout time.Duration `env:"SESAME_HTTP_TIMEOUT,default=20s" description:"timeout of a single Web API or gateway request"`
	DevicesFile string        `env:"SESAME_DEVICES_FILE,optional" description:"path to the YAML device list"`
	Optimistic  string        `env:"SESAME_OPTIMISTIC_UPDATE,default=without-push" description:"optimistic shadow update after a command: without-push, always or never"`
	HistoryTag  string        `env:"SESAME_HISTORY_TAG,default=sesame" description:"the key tag recorded in the device history"`
	RateLimit   float64       `env:"SESAME_RATE_LIMIT,default=1" description:"maximum Web API requests per second, 0 disables the limit"`

	KafkaBrokers string `env:"KAFKA_BROKERS,optional" description:"comma separated Kafka brokers for status events"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=sesame.status" description:"Kafka topic for status events"`
	SQSQueueURL  string `env:"SQS_QUEUE_URL,optional" description:"SQS queue for status events"`
	Workers      int    `env:"NOTIFY_WORKERS,default=2" description:"number of workers delivering status events"`
	BrokerAddr   string `env:"SHADOW_BROKER_ADDR,optional" description:"address of a local MQTT broker republishing status events, e.g. :1883"`

	LogLevel string `env:"LOG_LEVEL,optional,default=info" description:"The level used for logger, can be debug, warning, info, error"`
}

// Load decodes the service configuration from the environment and validates it
func Load() (*Service, error) {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		return nil, err
	}
	if err := service.Validate(); err != nil {
		return nil, err
	}
	return service, nil
}

// Validate checks the values which cannot be expressed in struct tags
func (s *Service) Validate() error {
	if len(s.APIKey) != auth.APIKeyLength {
		return fmt.Errorf("invalid API key: length should be %d", auth.APIKeyLength)
	}
	if s.HTTPTimeout < 0 {
		return fmt.Errorf("invalid SESAME_HTTP_TIMEOUT %s", s.HTTPTimeout)
	}
	switch s.Auth {
	case AuthWebAPI, AuthCognito:
	default:
		return fmt.Errorf("invalid SESAME_AUTH %q: use %s or %s", s.Auth, AuthWebAPI, AuthCognito)
	}
	if s.Workers <= 0 {
		s.Workers = 1
	}
	return nil
}

// Brokers returns the Kafka brokers as a list
func (s *Service) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(s.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Device is one entry of the device list
type Device struct {
	Name       string        `yaml:"name"`
	UUID       uuid.UUID     `yaml:"uuid"`
	SecretKey  string        `yaml:"secret_key"`
	Model      product.Model `yaml:"model"`
	HistoryTag string        `yaml:"history_tag"`
}

// Devices is the YAML device list
type Devices struct {
	Devices []Device `yaml:"devices"`
}

// LoadDevices reads the device list from path and fills in defaults
func LoadDevices(path string) (*Devices, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var devices Devices
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&devices); err != nil {
		return nil, fmt.Errorf("cannot decode %s: %w", path, err)
	}

	for i := range devices.Devices {
		d := &devices.Devices[i]
		if d.UUID == uuid.Nil {
			return nil, fmt.Errorf("device %d: uuid is missing", i)
		}
		if _, err := sign.ParseKey(d.SecretKey); err != nil && d.SecretKey != "" {
			return nil, fmt.Errorf("device %s: %w", d.UUID, err)
		}
		if d.Model.ID() == "" {
			d.Model = product.SS2
		}
		if d.Name == "" {
			d.Name = strings.ToUpper(d.UUID.String())
		}
	}
	return &devices, nil
}

// ErrDeviceNotFound is returned by Find for unknown names
var ErrDeviceNotFound = errors.New("device not found")

// Find returns the device with the given name or UUID
func (d *Devices) Find(nameOrUUID string) (Device, error) {
	for _, device := range d.Devices {
		if strings.EqualFold(device.Name, nameOrUUID) || strings.EqualFold(device.UUID.String(), nameOrUUID) {
			return device, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, nameOrUUID)
}
