// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*Package shadowbroker provides a local MQTT broker for device shadows

The broker speaks the shadow topics of the vendor cloud:

	$aws/things/sesame2/shadow/name/{UUID}/update
	$aws/things/sesame2/shadow/name/{UUID}/update/accepted

A shadow document published to /update is validated and republished to
/update/accepted, the way the cloud acknowledges a device report. Clients may only
subscribe to /update/accepted topics. PublishReported injects a report directly.

Together with the mqtt client's BrokerURL this allows to run the push side without the
vendor cloud.
*/
package shadowbroker

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/DrmagicE/gmqtt"
	"github.com/DrmagicE/gmqtt/pkg/packets"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/sesame/core/logger"
	"github.com/relabs-tech/sesame/core/schema"
	"github.com/relabs-tech/sesame/iot"
)

// DefaultAddress is the default listen address
const DefaultAddress = ":1883"

// Broker is a MQTT broker for device shadows
type Broker struct {
	p      *plugin
	server runnableServer
}

// runnableServer is the gmqtt server as returned by gmqtt.NewServer
type runnableServer interface {
	gmqtt.Server
	Run()
	Stop(ctx context.Context) error
}

var _ iot.MessagePublisher = (*Broker)(nil)

// Builder is a builder helper for the Broker
type Builder struct {
	// Address is the TCP listen address. Defaults to DefaultAddress.
	Address string
	// Listener replaces Address with an existing listener
	Listener  net.Listener
	Validator *schema.Validator
}

// plugin is the plugin for GMQTT
type plugin struct {
	ln        net.Listener
	service   gmqtt.Server
	validator *schema.Validator
}

// New returns a new broker. The broker will not actually run until you call Start()
// or Run()
func New(bb *Builder) (*Broker, error) {
	ln := bb.Listener
	if ln == nil {
		address := bb.Address
		if address == "" {
			address = DefaultAddress
		}
		var err error
		ln, err = net.Listen("tcp", address)
		if err != nil {
			return nil, err
		}
	}
	validator := bb.Validator
	if validator == nil {
		validator = schema.Default()
	}
	b := &Broker{p: &plugin{ln: ln, validator: validator}}
	b.server = gmqtt.NewServer(
		gmqtt.WithTCPListener(ln),
		gmqtt.WithPlugin(b.p),
	)
	return b, nil
}

// Addr returns the listen address
func (b *Broker) Addr() net.Addr {
	return b.p.ln.Addr()
}

// Start runs the server in the background
func (b *Broker) Start() {
	b.server.Run()
	logger.Default().Infoln("shadow broker listening on", b.Addr())
}

// Stop shuts the server down
func (b *Broker) Stop(ctx context.Context) error {
	return b.server.Stop(ctx)
}

// Run is blocking and runs the server. It listens on syscall.SIGTERM and
// a gracefully shutdown.
func (b *Broker) Run() {
	b.Start()
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	<-signalCh
	if err := b.Stop(context.Background()); err != nil {
		logger.Default().WithError(err).Errorln("shadow broker stop")
	}
	logger.Default().Infoln("shadow broker stopped")
}

// PublishMessageQ1 publishes an MQTT messsage with quality level 1
func (b *Broker) PublishMessageQ1(topic string, payload []byte) {
	logger.Default().Debugf("PublishMessageQ1 on %s (%d bytes)", topic, len(payload))
	msg := gmqtt.NewMessage(topic, payload, packets.QOS_1)
	b.p.service.PublishService().Publish(msg)
}

// PublishReported publishes an accepted shadow update reporting mechst for device
func (b *Broker) PublishReported(device uuid.UUID, mechst string) error {
	payload, err := json.Marshal(iot.NewShadow(mechst))
	if err != nil {
		return err
	}
	b.PublishMessageQ1(iot.ShadowTopic(device), payload)
	return nil
}

// Load implements plugin interface
func (p *plugin) Load(service gmqtt.Server) error {
	p.service = service
	return nil
}

// Unload implements plugin interface
func (p *plugin) Unload() error {
	return nil
}

// Name implements plugin interface
func (p *plugin) Name() string { return "sesame shadow broker" }

// HookWrapper implements plugin interface
func (p *plugin) HookWrapper() gmqtt.HookWrapper {
	return gmqtt.HookWrapper{
		OnSubscribeWrapper:  p.OnSubscribeWrapper,
		OnMsgArrivedWrapper: p.OnMsgArrivedWrapper,
	}
}

// acceptedTopic returns the accepted topic for a shadow update topic
func acceptedTopic(topic string) (string, bool) {
	if !strings.HasSuffix(topic, "/update") {
		return "", false
	}
	device, ok := iot.DeviceFromTopic(topic)
	if !ok {
		return "", false
	}
	return iot.ShadowTopic(device), true
}

// subscriptionAllowed is the topic policy for subscriptions
func subscriptionAllowed(topic string) bool {
	if topic == iot.ShadowTopicFilter || topic == iot.StatusTopicFilter {
		return true
	}
	if key, ok := strings.CutPrefix(topic, iot.StatusTopicPrefix); ok {
		_, err := uuid.Parse(key)
		return err == nil
	}
	device, ok := iot.DeviceFromTopic(topic)
	return ok && topic == iot.ShadowTopic(device)
}

// OnMsgArrivedWrapper acknowledges shadow updates. Everything else is dropped.
func (p *plugin) OnMsgArrivedWrapper(arrived gmqtt.OnMsgArrived) gmqtt.OnMsgArrived {
	return func(ctx context.Context, client gmqtt.Client, msg packets.Message) (valid bool) {
		rlog := logger.Default().WithField("client", client.OptionsReader().ClientID())
		topic := msg.Topic()
		accepted, ok := acceptedTopic(topic)
		if !ok {
			rlog.Debugln("OnMsgArrived", topic, "denied")
			return false
		}
		body := msg.Payload()
		if err := p.validator.ValidateBytes(body, schema.ShadowID); err != nil {
			rlog.WithError(err).Warnln("invalid shadow on", topic)
			return false
		}
		p.service.PublishService().Publish(gmqtt.NewMessage(accepted, body, packets.QOS_1))
		return arrived(ctx, client, msg)
	}
}

// OnSubscribeWrapper enforces topic policy
func (p *plugin) OnSubscribeWrapper(subscribe gmqtt.OnSubscribe) gmqtt.OnSubscribe {
	return func(ctx context.Context, client gmqtt.Client, topic packets.Topic) (qos uint8) {
		if !subscriptionAllowed(topic.Name) {
			logger.Default().Warnln("OnSubscribe", client.OptionsReader().ClientID(), topic.Name, "denied!")
			return packets.SUBSCRIBE_FAILURE
		}
		return subscribe(ctx, client, topic)
	}
}
