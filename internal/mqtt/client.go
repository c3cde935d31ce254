// Package mqtt bridges the light to an MQTT broker and Home Assistant.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"lightfun-controller/internal/config"
	"lightfun-controller/internal/core"
)

// PatternLister lists the Lua patterns offered as effects.
type PatternLister func() ([]string, error)

type Client struct {
	client   mqtt.Client
	cfg      *config.Config
	eventBus *core.EventBus
	intents  core.IntentChannel
	patterns PatternLister
	prefix   string
	quit     chan struct{}
}

// NewClient builds the bridge. It returns nil when MQTT is disabled.
func NewClient(cfg *config.Config, eb *core.EventBus, intents core.IntentChannel, patterns PatternLister) *Client {
	if !cfg.MQTT.Enabled {
		return nil
	}

	prefix := strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)

	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	// keep retrying at startup, the broker may come up after us
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetWill(prefix+"/availability", "offline", 1, true)

	c := &Client{
		cfg:      cfg,
		eventBus: eb,
		intents:  intents,
		patterns: patterns,
		prefix:   prefix,
		quit:     make(chan struct{}),
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v. Retrying in background...", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		log.Println("[MQTT] Attempting to reconnect...")
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect starts the connection and the state publisher.
func (c *Client) Connect() error {
	if c == nil || c.client == nil {
		return nil
	}
	log.Printf("[MQTT] Starting connection loop to %s...", c.cfg.MQTT.Broker)

	sub := c.eventBus.Subscribe(stateEvents...)
	go c.publishState(sub)

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		log.Printf("[MQTT] Initial connection error: %v", token.Error())
		return token.Error()
	}
	return nil
}

// Disconnect publishes the offline status and closes the connection.
func (c *Client) Disconnect() {
	if c == nil || c.client == nil {
		return
	}
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
	if !c.client.IsConnected() {
		return
	}
	log.Println("[MQTT] Disconnecting...")

	token := c.client.Publish(c.prefix+"/availability", 0, true, "offline")
	if token.WaitTimeout(2 * time.Second) {
		if token.Error() != nil {
			log.Printf("[MQTT] Warning: failed to publish offline status: %v", token.Error())
		}
	} else {
		log.Println("[MQTT] Warning: timed out publishing offline status")
	}

	c.client.Disconnect(250)
	log.Println("[MQTT] Disconnected.")
}

// Publish sends payload to prefix/subtopic without blocking the caller.
func (c *Client) Publish(subtopic string, payload interface{}, retained bool) {
	if c.client == nil || !c.client.IsConnected() {
		return
	}

	topic := fmt.Sprintf("%s/%s", c.prefix, subtopic)
	token := c.client.Publish(topic, 0, retained, fmt.Sprintf("%v", payload))

	go func() {
		if token.WaitTimeout(5 * time.Second) {
			if token.Error() != nil {
				log.Printf("[MQTT] Publish error to %s: %v", topic, token.Error())
			}
		} else {
			log.Printf("[MQTT] Timeout publishing to %s", topic)
		}
	}()
}

// onConnect runs on a paho goroutine.
func (c *Client) onConnect(client mqtt.Client) {
	log.Println("[MQTT] Connected to broker.")

	for _, sub := range commandTopics {
		topic := fmt.Sprintf("%s/%s", c.prefix, sub)
		if token := client.Subscribe(topic, 1, c.handleMessage); token.Wait() && token.Error() != nil {
			log.Printf("[MQTT] Error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("[MQTT] Subscribed to %s", topic)
		}
	}

	go func() {
		c.Publish("availability", "online", true)
		if c.cfg.MQTT.HADiscoveryEnabled {
			c.PublishHADiscovery()
		}
		c.send(core.Intent{Type: core.IntentQueryState})
	}()
}

func (c *Client) handleMessage(client mqtt.Client, msg mqtt.Message) {
	sub := strings.TrimPrefix(msg.Topic(), c.prefix+"/")
	intent, ok := intentFromMessage(sub, string(msg.Payload()))
	if !ok {
		log.Printf("[MQTT] Ignoring %q on %s", msg.Payload(), msg.Topic())
		return
	}
	c.send(intent)
}

func (c *Client) send(intent core.Intent) {
	select {
	case c.intents <- intent:
	default:
		log.Printf("[MQTT] Intent channel full, dropping %s", intent.Type)
	}
}

// publishState mirrors bus events onto the state topics.
func (c *Client) publishState(sub core.Subscriber) {
	defer c.eventBus.Unsubscribe(sub, stateEvents...)
	for {
		select {
		case <-c.quit:
			return
		case ev := <-sub:
			for _, p := range statePublications(ev) {
				c.Publish(p.subtopic, p.payload, true)
			}
		}
	}
}

// PublishHADiscovery sends the Home Assistant light config.
func (c *Client) PublishHADiscovery() {
	// let the subscriptions settle first
	time.Sleep(1 * time.Second)

	var patterns []string
	if c.patterns != nil {
		var err error
		if patterns, err = c.patterns(); err != nil {
			log.Printf("[MQTT] Warning: Could not get patterns for HA discovery: %v", err)
		}
	}

	safeID := safeObjectID(c.cfg.MQTT.ClientID)
	topic := fmt.Sprintf("%s/light/%s/light/config", c.cfg.MQTT.HADiscoveryPrefix, safeID)

	payload, err := json.Marshal(discoveryPayload(c.prefix, safeID, patterns))
	if err != nil {
		log.Printf("[MQTT] Cannot encode discovery payload: %v", err)
		return
	}
	c.client.Publish(topic, 0, true, payload)
	log.Printf("[MQTT] HA Discovery sent to %s", topic)
}
