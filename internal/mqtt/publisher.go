package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"smart-garden/internal/models"
)

// tokenPublisher is the part of mqtt.Client the publisher needs
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends pump commands read from a channel
type Publisher struct {
	client tokenPublisher

	// Input channel (read by publisher, written by the decision service)
	CommandChan chan *models.PumpCommand

	pumpTopic string // e.g., "garden/{device_id}/pump"
	onError   func(error)
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	PumpTopic string

	// OnError is called for every failed publish. Optional.
	OnError func(error)
}

// NewPublisher creates a new MQTT publisher
func NewPublisher(client tokenPublisher, config PublisherConfig, commandChan chan *models.PumpCommand) *Publisher {
	return &Publisher{
		client:      client,
		CommandChan: commandChan,
		pumpTopic:   config.PumpTopic,
		onError:     config.OnError,
	}
}

// Start publishes pump commands until the context is cancelled or the channel is closed
func (p *Publisher) Start(ctx context.Context) {
	log.Println("MQTT Publisher: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("MQTT Publisher: Context cancelled, shutting down...")
			return

		case cmd, ok := <-p.CommandChan:
			if !ok {
				log.Println("MQTT Publisher: Command channel closed, shutting down...")
				return
			}

			if err := p.publishCommand(cmd); err != nil {
				log.Printf("Error publishing pump command: %v", err)
				if p.onError != nil {
					p.onError(err)
				}
			}
		}
	}
}

// publishCommand publishes one pump command to the zone's actuator topic
func (p *Publisher) publishCommand(cmd *models.PumpCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal pump command: %w", err)
	}

	topic := formatTopic(p.pumpTopic, cmd.ZoneID)

	token := p.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish pump command: %w", token.Error())
	}

	log.Printf("Published pump command for %s (%ss) to topic: %s", cmd.ZoneID, cmd.DurationSeconds, topic)
	return nil
}

// formatTopic replaces the {device_id} placeholder with the zone's device ID
func formatTopic(topicPattern, deviceID string) string {
	return strings.ReplaceAll(topicPattern, "{device_id}", deviceID)
}
