// Package mqtt connects the dispatcher to an MQTT broker. Commands arrive on
// <prefix>/<device>/command with the command name as payload; the outcome of
// each one is published on <prefix>/<device>/result.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/novy-bridge/internal/codes"
	"github.com/novy-bridge/internal/config"
	"github.com/novy-bridge/internal/dispatch"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	commandTimeout = 30 * time.Second

	statusOnline  = "online"
	statusOffline = "offline"
)

// Dispatcher is the part of the dispatcher the bridge needs
type Dispatcher interface {
	Dispatch(ctx context.Context, device int, command string) error
}

// Result is the payload published on <prefix>/<device>/result
type Result struct {
	Device  string `json:"device"`
	Command string `json:"command"`
	Result  string `json:"result"`
	Error   string `json:"error,omitempty"`
}

// publishFunc sends payload on topic
type publishFunc func(topic string, retained bool, payload []byte) error

// Bridge subscribes to command topics and feeds them to the dispatcher
type Bridge struct {
	config     config.MQTTConfig
	dispatcher Dispatcher
	client     paho.Client
	publish    publishFunc
	stopOnce   sync.Once
}

// NewBridge creates a bridge for cfg. Nothing is sent until Start.
func NewBridge(cfg config.MQTTConfig, dispatcher Dispatcher) *Bridge {
	b := &Bridge{
		config:     cfg,
		dispatcher: dispatcher,
	}

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Server, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.User).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetWill(b.StatusTopic(), statusOffline, cfg.QoS, true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("[ERROR] MQTT connection lost: %v", err)
		})

	b.client = paho.NewClient(opts)
	b.publish = b.clientPublish
	return b
}

// Start connects to the broker. The client keeps retrying in the background
// when the broker is not reachable yet.
func (b *Bridge) Start() error {
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("[INFO] MQTT broker %s:%d not reachable yet, retrying", b.config.Server, b.config.Port)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// Stop marks the bridge offline and disconnects
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.client.IsConnected() {
			if err := b.publish(b.StatusTopic(), true, []byte(statusOffline)); err != nil {
				log.Printf("[ERROR] Failed to publish offline status: %v", err)
			}
		}
		b.client.Disconnect(250)
		log.Printf("[INFO] MQTT bridge stopped")
	})
}

// StatusTopic is the retained availability topic
func (b *Bridge) StatusTopic() string {
	return b.config.TopicPrefix + "/status"
}

// CommandTopic is the subscription filter for every device
func (b *Bridge) CommandTopic() string {
	return b.config.TopicPrefix + "/+/command"
}

// ResultTopic is where the outcome for device is published
func (b *Bridge) ResultTopic(device string) string {
	return b.config.TopicPrefix + "/" + device + "/result"
}

func (b *Bridge) onConnect(c paho.Client) {
	log.Printf("[INFO] MQTT connected to %s:%d as %s", b.config.Server, b.config.Port, b.config.ClientID)

	token := c.Subscribe(b.CommandTopic(), b.config.QoS, func(_ paho.Client, m paho.Message) {
		b.handleMessage(m.Topic(), m.Payload())
	})
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		log.Printf("[ERROR] Failed to subscribe to %s: %v", b.CommandTopic(), token.Error())
		return
	}

	if err := b.publish(b.StatusTopic(), true, []byte(statusOnline)); err != nil {
		log.Printf("[ERROR] Failed to publish online status: %v", err)
	}
}

func (b *Bridge) clientPublish(topic string, retained bool, payload []byte) error {
	token := b.client.Publish(topic, b.config.QoS, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

// ParseTopic extracts the device segment of a command topic under prefix.
// ok is false when topic is not <prefix>/<device>/command.
func ParseTopic(prefix, topic string) (device string, ok bool) {
	rest := strings.TrimPrefix(topic, prefix+"/")
	if rest == topic {
		return "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "command" || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

// handleMessage runs one command and publishes its result. Messages are
// handled in arrival order; the dispatcher is called synchronously.
func (b *Bridge) handleMessage(topic string, payload []byte) {
	segment, ok := ParseTopic(b.config.TopicPrefix, topic)
	if !ok {
		log.Printf("[INFO] Ignoring message on unexpected topic %s", topic)
		return
	}

	command := strings.TrimSpace(string(payload))
	result := Result{Device: segment, Command: command}

	device, err := strconv.Atoi(segment)
	if err != nil {
		err = fmt.Errorf("device %q is not an index: %w", segment, codes.ErrNotFound)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		err = b.dispatcher.Dispatch(ctx, device, command)
		cancel()
	}

	result.Result = dispatch.Code(err)
	if err != nil {
		result.Error = err.Error()
		log.Printf("[INFO] MQTT command %s for device %s failed: %v", command, segment, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		log.Printf("[ERROR] Failed to encode result: %v", err)
		return
	}
	if err := b.publish(b.ResultTopic(segment), false, data); err != nil {
		log.Printf("[ERROR] Failed to publish result: %v", err)
	}
}
