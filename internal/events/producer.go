// Package events streams ticket lifecycle notifications to Kafka.
// Publishing is best-effort: callers log failures and move on, the
// durable store remains the source of truth.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"gatekeeper/internal/models"
)

type Producer struct {
	issuedWriter  *kafka.Writer
	scannedWriter *kafka.Writer
}

func NewProducer(brokers []string, issuedTopic, scannedTopic string) *Producer {
	return &Producer{
		issuedWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   issuedTopic,
		}),
		scannedWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   scannedTopic,
		}),
	}
}

type ticketIssuedEvent struct {
	OrderID  string          `json:"order_id"`
	Tickets  []models.Ticket `json:"tickets"`
	IssuedAt time.Time       `json:"issued_at"`
}

type ticketScannedEvent struct {
	TicketID  string    `json:"ticket_id"`
	ScannedBy int64     `json:"scanned_by"`
	ScannedAt time.Time `json:"scanned_at"`
}

func (p *Producer) PublishTicketIssued(ctx context.Context, orderID string, tickets []models.Ticket) error {
	msgBytes, err := json.Marshal(ticketIssuedEvent{
		OrderID:  orderID,
		Tickets:  tickets,
		IssuedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.issuedWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderID),
		Value: msgBytes,
	})
}

func (p *Producer) PublishTicketScanned(ctx context.Context, ticket models.Ticket) error {
	msgBytes, err := json.Marshal(ticketScannedEvent{
		TicketID:  ticket.ID,
		ScannedBy: ticket.ScannedBy,
		ScannedAt: ticket.UsedAt,
	})
	if err != nil {
		return err
	}
	return p.scannedWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ticket.ID),
		Value: msgBytes,
	})
}

func (p *Producer) Close() error {
	if err := p.issuedWriter.Close(); err != nil {
		return err
	}
	return p.scannedWriter.Close()
}
