package eventlog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/nats-io/nats.go"
)

const defaultSubjectPrefix = "auction.events"

// NATSPublisher is a Sink that publishes events as JSON to NATS subjects of
// the form "<prefix>.<creator>.<auction_id>".
type NATSPublisher struct {
	conn          *nats.Conn
	subjectPrefix string
}

// NewNATSPublisher wraps an existing NATS connection. An empty prefix falls
// back to "auction.events".
func NewNATSPublisher(conn *nats.Conn, subjectPrefix string) *NATSPublisher {
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, subjectPrefix: subjectPrefix}
}

// ConnectNATSPublisher dials the NATS server named by the SHADOWBID_NATS_URL
// environment variable and returns a publisher over it.
func ConnectNATSPublisher() (*NATSPublisher, error) {
	url, err := getRequiredEnv("SHADOWBID_NATS_URL")
	if err != nil {
		return nil, err
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return NewNATSPublisher(conn, ""), nil
}

// Publish sends one event. Subjects use dots, so the auction key is rendered
// as "creator.id" rather than "creator/id".
func (p *NATSPublisher) Publish(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s.%d", p.subjectPrefix, event.Auction.Creator, event.Auction.AuctionID)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the underlying connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		log.Printf("ERROR: Failed to drain NATS connection: %v", err)
	}
}

// Helper for required environment variable parsing
func getRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	log.Printf("INFO: Using %s=%s from environment", key, value)
	return value, nil
}
