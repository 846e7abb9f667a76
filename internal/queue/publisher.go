package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/stagegate/booking-core/internal/event"
)

const seatEventsQueueName = "seat.events"

// PublishSeatEvent publishes one SeatEvent to the "seat.events" queue.
// The function attempts to be robust and to never panic; any error is
// logged and returned so the caller can choose to ignore it. Messages
// are marked as persistent.
func PublishSeatEvent(ctx context.Context, url string, ev SeatEvent) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		seatEventsQueueName, // name
		true,                // durable
		false,               // autoDelete
		false,               // exclusive
		false,               // noWait
		nil,                 // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",                  // default exchange
		seatEventsQueueName, // routing key = queue name
		false,               // mandatory
		false,               // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}

	return nil
}

// NewForwarder returns a bus listener that mirrors seat events onto the
// broker. Broker failures are logged and dropped; the change feed is
// the primary delivery path, the broker is best-effort fan-out.
func NewForwarder(url string) event.Listener {
	return func(ctx context.Context, evt any) {
		var payload SeatEvent
		switch e := evt.(type) {
		case event.SeatHoldCompleted:
			payload = SeatEvent{
				ScheduleID: e.ScheduleID,
				SeatID:     e.SeatID,
				UserID:     e.UserID,
				Status:     e.Status,
				ExpiresAt:  e.ExpiresAt.UTC().Format(time.RFC3339),
			}
		case event.SeatReleaseCompleted:
			payload = SeatEvent{
				ScheduleID: e.ScheduleID,
				SeatID:     e.SeatID,
				UserID:     e.UserID,
				Status:     e.Status,
			}
		case event.SeatSoldCompleted:
			payload = SeatEvent{
				ScheduleID: e.ScheduleID,
				SeatID:     e.SeatID,
				Status:     e.Status,
			}
		default:
			return
		}
		payload.OccurredAt = time.Now().UTC().Format(time.RFC3339)
		_ = PublishSeatEvent(ctx, url, payload)
	}
}
