// Package devicestream implements a frame-log source which discovers
// devices from their application events published over MQTT, and opens a
// per-device frame-log stream on the network-server API for each
// discovered device.
package devicestream

import (
	"context"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/brocaar/chirpstack-api/go/v3/ns"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/framelog"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/logging"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/tls"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

// devEUITopicSegment is the topic segment holding the DevEUI, e.g.
// application/[ID]/device/[DevEUI]/event/[EVENT].
const devEUITopicSegment = 3

// Source implements the device-stream frame-log source.
type Source struct {
	sync.RWMutex

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	config config.DeviceStream

	conn     paho.Client
	grpcConn *grpc.ClientConn
	client   ns.NetworkServerServiceClient

	devices      map[lorawan.EUI64]struct{}
	frameLogChan chan framelog.FrameLog
}

// New creates a new device-stream source. It connects to the network-server
// API and the MQTT broker.
func New(c config.DeviceStream) (*Source, error) {
	log.WithFields(log.Fields{
		"server":   c.NetworkServer.Server,
		"ca_cert":  c.NetworkServer.CACert,
		"tls_cert": c.NetworkServer.TLSCert,
		"tls_key":  c.NetworkServer.TLSKey,
	}).Info("source/device_stream: connecting to network-server api")

	creds, err := tls.GetTransportCredentials(c.NetworkServer.CACert, c.NetworkServer.TLSCert, c.NetworkServer.TLSKey)
	if err != nil {
		return nil, errors.Wrap(err, "get transport credentials error")
	}

	logrusEntry := log.NewEntry(log.StandardLogger())
	logrusOpts := []grpc_logrus.Option{
		grpc_logrus.WithLevels(grpc_logrus.DefaultClientCodeToLevel),
	}

	dialOpts := []grpc.DialOption{
		grpc.WithStreamInterceptor(
			grpc_middleware.ChainStreamClient(
				logging.StreamClientCtxIDInterceptor,
				grpc_logrus.StreamClientInterceptor(logrusEntry, logrusOpts...),
				grpc_prometheus.StreamClientInterceptor,
			),
		),
	}
	if creds != nil {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(creds))
	} else {
		dialOpts = append(dialOpts, grpc.WithInsecure())
	}

	if c.NetworkServer.TokenFile != "" {
		tc, err := newTokenCredentials(c.NetworkServer.TokenFile, creds != nil)
		if err != nil {
			return nil, err
		}
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(tc))
	}

	grpcConn, err := grpc.Dial(c.NetworkServer.Server, dialOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "network-server dial error")
	}

	s := newSource(c, ns.NewNetworkServerServiceClient(grpcConn))
	s.grpcConn = grpcConn

	if err := s.connectMQTT(); err != nil {
		return nil, err
	}

	return s, nil
}

func newSource(c config.DeviceStream, client ns.NetworkServerServiceClient) *Source {
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = 2 * time.Second
	}
	if c.MQTT.EventTopic == "" {
		c.MQTT.EventTopic = "application/+/device/+/event/+"
	}

	s := Source{
		config:       c,
		client:       client,
		devices:      make(map[lorawan.EUI64]struct{}),
		frameLogChan: make(chan framelog.FrameLog),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	return &s
}

func (s *Source) connectMQTT() error {
	opts := paho.NewClientOptions()
	opts.AddBroker(s.config.MQTT.Server)
	opts.SetUsername(s.config.MQTT.Username)
	opts.SetPassword(s.config.MQTT.Password)
	opts.SetCleanSession(s.config.MQTT.CleanSession)
	opts.SetClientID(s.config.MQTT.ClientID)
	opts.SetOnConnectHandler(s.onConnected)
	opts.SetConnectionLostHandler(s.onConnectionLost)

	tlsconfig, err := tls.NewConfig(s.config.MQTT.CACert, s.config.MQTT.TLSCert, s.config.MQTT.TLSKey)
	if err != nil {
		return errors.Wrap(err, "load mqtt tls config error")
	}
	if tlsconfig != nil {
		opts.SetTLSConfig(tlsconfig)
	}

	log.WithField("server", s.config.MQTT.Server).Info("source/device_stream: connecting to mqtt broker")
	s.conn = paho.NewClient(opts)
	for {
		if token := s.conn.Connect(); token.Wait() && token.Error() != nil {
			log.Errorf("source/device_stream: connecting to mqtt broker failed, will retry in %s: %s", s.config.ReconnectInterval, token.Error())
			time.Sleep(s.config.ReconnectInterval)
		} else {
			break
		}
	}

	return nil
}

// FrameLogChan returns the frame-log channel.
func (s *Source) FrameLogChan() chan framelog.FrameLog {
	return s.frameLogChan
}

// Close unsubscribes from the event topic, closes all the device streams
// and closes the frame-log channel.
func (s *Source) Close() error {
	log.Info("source/device_stream: closing source")

	if s.conn != nil {
		log.WithField("topic", s.config.MQTT.EventTopic).Info("source/device_stream: unsubscribing from event topic")
		if token := s.conn.Unsubscribe(s.config.MQTT.EventTopic); token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).Error("source/device_stream: unsubscribe error")
		}
		s.conn.Disconnect(250)
	}

	s.cancel()
	s.wg.Wait()
	close(s.frameLogChan)

	if s.grpcConn != nil {
		if err := s.grpcConn.Close(); err != nil {
			return errors.Wrap(err, "close network-server connection error")
		}
	}

	return nil
}

// Devices returns the devices for which a stream is open.
func (s *Source) Devices() []lorawan.EUI64 {
	s.RLock()
	defer s.RUnlock()

	var out []lorawan.EUI64
	for devEUI := range s.devices {
		out = append(out, devEUI)
	}
	return out
}

func (s *Source) onConnected(c paho.Client) {
	mqttConnectCounter().Inc()
	log.Info("source/device_stream: connected to mqtt server")

	for {
		log.WithFields(log.Fields{
			"topic": s.config.MQTT.EventTopic,
			"qos":   s.config.MQTT.QOS,
		}).Info("source/device_stream: subscribing to event topic")
		if token := c.Subscribe(s.config.MQTT.EventTopic, s.config.MQTT.QOS, s.eventHandler); token.Wait() && token.Error() != nil {
			log.WithFields(log.Fields{
				"topic": s.config.MQTT.EventTopic,
				"qos":   s.config.MQTT.QOS,
			}).Errorf("source/device_stream: subscribe error: %s", token.Error())
			time.Sleep(time.Second)
			continue
		}
		break
	}
}

func (s *Source) onConnectionLost(c paho.Client, reason error) {
	mqttDisconnectCounter().Inc()
	log.Errorf("source/device_stream: mqtt connection error: %s", reason)
}

func (s *Source) eventHandler(c paho.Client, msg paho.Message) {
	devEUI, err := devEUIFromTopic(msg.Topic())
	if err != nil {
		log.WithError(err).WithField("topic", msg.Topic()).Error("source/device_stream: get deveui from topic error")
		return
	}

	s.register(devEUI)
}

// register opens the frame-log stream for the given device, unless a
// stream is already open. It returns true when a stream was opened.
func (s *Source) register(devEUI lorawan.EUI64) bool {
	s.Lock()
	defer s.Unlock()

	if s.ctx.Err() != nil {
		return false
	}

	if _, ok := s.devices[devEUI]; ok {
		return false
	}

	log.WithField("dev_eui", devEUI).Info("source/device_stream: registering device")
	s.devices[devEUI] = struct{}{}
	devicesGauge().Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.unregister(devEUI)

		if err := s.streamDevice(devEUI); err != nil && s.ctx.Err() == nil {
			log.WithError(err).WithField("dev_eui", devEUI).Error("source/device_stream: device stream error")
		}
	}()

	return true
}

func (s *Source) unregister(devEUI lorawan.EUI64) {
	s.Lock()
	defer s.Unlock()

	log.WithField("dev_eui", devEUI).Info("source/device_stream: removing device")
	delete(s.devices, devEUI)
	devicesGauge().Dec()
}

func (s *Source) streamDevice(devEUI lorawan.EUI64) error {
	ctx := s.ctx
	if s.config.StreamTimeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.StreamTimeout)
		defer cancel()
	}

	stream, err := s.client.StreamFrameLogsForDevice(ctx, &ns.StreamFrameLogsForDeviceRequest{
		DevEui: devEUI[:],
	})
	if err != nil {
		return errors.Wrap(err, "stream frame-logs for device error")
	}

	// on opening the stream, the network-server sends the most recent
	// frame-logs of the device, of which only the ones related to the
	// event that triggered the registration are of interest
	backlog := s.config.MaxBacklogAge != 0

	for {
		resp, err := stream.Recv()
		if err != nil {
			return errors.Wrap(err, "receive error")
		}

		fl, err := framelog.FromDeviceStreamResponse(devEUI, resp)
		if err != nil {
			log.WithError(err).WithField("dev_eui", devEUI).Error("source/device_stream: read frame-log error")
			continue
		}

		if backlog {
			if time.Since(fl.Time) > s.config.MaxBacklogAge {
				skippedCounter().Inc()
				log.WithFields(log.Fields{
					"dev_eui": devEUI,
					"age":     time.Since(fl.Time),
				}).Debug("source/device_stream: skipping backlog frame-log")
				continue
			}
			backlog = false
		}

		frameLogCounter(fl.Direction()).Inc()

		select {
		case s.frameLogChan <- fl:
		case <-s.ctx.Done():
			return nil
		}
	}
}

func devEUIFromTopic(topic string) (lorawan.EUI64, error) {
	var devEUI lorawan.EUI64

	parts := strings.Split(topic, "/")
	if len(parts) <= devEUITopicSegment {
		return devEUI, errors.New("topic does not contain deveui")
	}

	if err := devEUI.UnmarshalText([]byte(parts[devEUITopicSegment])); err != nil {
		return devEUI, errors.Wrap(err, "unmarshal deveui error")
	}

	return devEUI, nil
}
