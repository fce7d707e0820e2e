package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"smart-garden/internal/models"
)

// Subscriber handles sensor subscriptions and writes readings to a channel
type Subscriber struct {
	client mqtt.Client

	// Output channel (written by subscriber, read by the decision service)
	ReadingChan chan *models.ZoneReading

	sensorTopic string
	acceptZone  func(string) bool
	sendTimeout time.Duration
	now         func() time.Time
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	SensorTopic string // e.g., "garden/+/sensors"

	// AcceptZone filters device IDs before they reach the decision service.
	// Nil accepts every device.
	AcceptZone func(zone string) bool
}

// NewSubscriber creates a new MQTT subscriber
func NewSubscriber(client mqtt.Client, config SubscriberConfig, readingChan chan *models.ZoneReading) *Subscriber {
	return &Subscriber{
		client:      client,
		ReadingChan: readingChan,
		sensorTopic: config.SensorTopic,
		acceptZone:  config.AcceptZone,
		sendTimeout: time.Second,
		now:         time.Now,
	}
}

// SubscribeAll subscribes to the sensor topic
func (s *Subscriber) SubscribeAll() error {
	if s.sensorTopic == "" {
		return nil
	}

	token := s.client.Subscribe(s.sensorTopic, 1, s.handleSensors)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to sensor topic: %w", token.Error())
	}

	log.Printf("Subscribed to sensor topic: %s", s.sensorTopic)
	return nil
}

// Resubscribe is an OnConnect callback that restores the subscription after a reconnect
func (s *Subscriber) Resubscribe(mqtt.Client) {
	if err := s.SubscribeAll(); err != nil {
		log.Printf("MQTT Subscriber: %v", err)
	}
}

// handleSensors parses a sensor payload and forwards it to the decision service
func (s *Subscriber) handleSensors(client mqtt.Client, msg mqtt.Message) {
	reading, err := s.parseSensors(msg)
	if err != nil {
		log.Printf("Error handling sensor message on %s: %v", msg.Topic(), err)
		return
	}

	log.Printf("Received sensors from %s: humidity=%.2f light=%.2f temperature=%.2f",
		reading.ZoneID, reading.Reading.Humidity, reading.Reading.Light, reading.Reading.Temperature)

	// Write to channel (non-blocking with timeout)
	select {
	case s.ReadingChan <- reading:
	case <-time.After(s.sendTimeout):
		log.Printf("Warning: Reading channel full, dropping message from %s", reading.ZoneID)
	}
}

func (s *Subscriber) parseSensors(msg mqtt.Message) (*models.ZoneReading, error) {
	deviceID := extractDeviceID(msg.Topic())
	if deviceID == "" {
		return nil, fmt.Errorf("could not extract device ID from topic")
	}
	if s.acceptZone != nil && !s.acceptZone(deviceID) {
		return nil, fmt.Errorf("device %s is not a configured zone", deviceID)
	}

	var payload models.SensorPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidReading, err)
	}

	reading, err := payload.Reading()
	if err != nil {
		return nil, err
	}

	return &models.ZoneReading{
		ZoneID:     deviceID,
		ReceivedAt: s.now(),
		Reading:    reading,
	}, nil
}

// extractDeviceID extracts the device ID from an MQTT topic.
// Example: "garden/bed-a/sensors" -> "bed-a"
func extractDeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}
