package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// Client manages the MQTT connection to the garden broker.
// Subscribing and publishing live in Subscriber and Publisher.
type Client struct {
	client mqtt.Client
	config ClientConfig

	mu        sync.Mutex
	onConnect []func(mqtt.Client)
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// StatusTopic receives a retained "online" on connect and "offline" as the
	// last will. Empty disables gateway status.
	StatusTopic string
}

// NewClient creates a new MQTT client connection
func NewClient(config ClientConfig) (*Client, error) {
	c := &Client{config: config}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(messagePubHandler)
	opts.SetOnConnectHandler(c.handleConnect)
	opts.SetConnectionLostHandler(connectLostHandler)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	if config.StatusTopic != "" {
		opts.SetWill(config.StatusTopic, statusOffline, 1, true)
	}

	c.client = mqtt.NewClient(opts)

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Println("MQTT Client: Connected to broker:", config.Broker)
	return c, nil
}

// OnConnect registers fn to run on each connect event. Subscriptions are lost
// with a clean session, so subscribers re-register from here.
func (c *Client) OnConnect(fn func(mqtt.Client)) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
}

func (c *Client) handleConnect(client mqtt.Client) {
	log.Println("MQTT: Connection established")

	if c.config.StatusTopic != "" {
		token := client.Publish(c.config.StatusTopic, 1, true, statusOnline)
		if token.Wait() && token.Error() != nil {
			log.Printf("MQTT: Failed to publish gateway status: %v", token.Error())
		}
	}

	c.mu.Lock()
	callbacks := append([]func(mqtt.Client){}, c.onConnect...)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(client)
	}
}

// GetNativeClient returns the underlying paho MQTT client
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close marks the gateway offline and disconnects
func (c *Client) Close() {
	if c.config.StatusTopic != "" && c.client.IsConnected() {
		token := c.client.Publish(c.config.StatusTopic, 1, true, statusOffline)
		token.WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
	log.Println("MQTT Client: Disconnected")
}

var messagePubHandler mqtt.MessageHandler = func(client mqtt.Client, msg mqtt.Message) {
	log.Printf("MQTT: Unrouted message on topic: %s", msg.Topic())
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Printf("MQTT: Connection lost: %v", err)
}
