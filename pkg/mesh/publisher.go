package mesh

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// Transport is the broker capability the publisher needs.
type Transport interface {
	Publish(topic string, payload []byte) error
}

// TextMessage is the downlink envelope for a channel text message.
type TextMessage struct {
	From        uint32 `json:"from,omitempty"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Destination string `json:"destination"`
	Channel     int    `json:"channel"`
}

// PositionMessage is the downlink envelope for a position report.
type PositionMessage struct {
	From      uint32  `json:"from,omitempty"`
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  int     `json:"altitude"`
}

// Publisher encodes outbound messages and hands them to the broker.
type Publisher struct {
	transport   Transport
	topic       string
	gatewayNode uint32
	log         *slog.Logger
}

func NewPublisher(transport Transport, topic string, gatewayNode uint32) *Publisher {
	return &Publisher{
		transport:   transport,
		topic:       topic,
		gatewayNode: gatewayNode,
		log:         slog.With("component", "mesh-publisher"),
	}
}

// SendText broadcasts text on the primary channel.
func (p *Publisher) SendText(text string) error {
	return p.publish(TextMessage{
		From:        p.gatewayNode,
		Type:        "sendtext",
		Text:        text,
		Destination: BroadcastDestination,
		Channel:     0,
	})
}

// SendPosition publishes a position report.
func (p *Publisher) SendPosition(lat, lon float64, alt int) error {
	return p.publish(PositionMessage{
		From:      p.gatewayNode,
		Type:      "position",
		Latitude:  lat,
		Longitude: lon,
		Altitude:  alt,
	})
}

func (p *Publisher) publish(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding downlink: %w", err)
	}
	if err := p.transport.Publish(p.topic, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.topic, err)
	}
	p.log.Debug("published to mesh", "topic", p.topic, "bytes", len(payload))
	return nil
}
