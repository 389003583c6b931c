package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-booking/internal/logger"
)

// StartTicketConsumer connects to RabbitMQ, declares the ticket.issue
// queue (durable), and starts consuming messages.  For each confirmed
// booking it writes a ticket artifact under tickets/.  The function runs a
// reconnect loop forever; processing errors are logged and the offending
// message is rejected without requeue so the server keeps operating.
func StartTicketConsumer() {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			logger.Warn("ticket-consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		// Connected; start the backoff over for the next outage.
		backoff = time.Second

		if err := consumeLoop(conn); err != nil {
			logger.Warn("ticket-consumer loop ended", zap.Error(err))
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("ticket-consumer set QoS failed", zap.Error(err))
	}

	if _, err = ch.QueueDeclare(TicketQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", TicketQueueName, err)
	}

	msgs, err := ch.Consume(TicketQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", TicketQueueName, err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			logger.Error("ticket-consumer handle message failed", zap.Error(err))
			// No requeue: a poison message would otherwise spin forever.
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("delivery stream closed")
}

// ticketArtifact is the file written per confirmed booking.  A real
// deployment would render this into a scannable pass; the artifact shape
// keeps everything a gate scanner needs.
type ticketArtifact struct {
	BookingReference string   `json:"booking_reference"`
	EventTitle       string   `json:"event_title"`
	EventStartsAt    string   `json:"event_starts_at"`
	Seats            []string `json:"seats"`
	IssuedAt         string   `json:"issued_at"`
}

func handleMessage(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingReference == "" {
		return errors.New("missing booking reference")
	}
	if err := os.MkdirAll("tickets", 0o755); err != nil {
		return fmt.Errorf("mkdir tickets: %w", err)
	}

	art := ticketArtifact{
		BookingReference: ev.BookingReference,
		EventTitle:       ev.EventTitle,
		EventStartsAt:    ev.EventStartsAt,
		Seats:            ev.SeatLabels,
		IssuedAt:         time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	fpath := filepath.Join("tickets", ev.BookingReference+".json")
	if err := os.WriteFile(fpath, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	logger.Info("ticket issued",
		zap.String("booking_reference", ev.BookingReference),
		zap.Strings("seats", ev.SeatLabels),
	)
	return nil
}
