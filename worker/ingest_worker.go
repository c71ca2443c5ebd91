package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/badoux/checkmail"
	amqp "github.com/rabbitmq/amqp091-go"

	"renolink/config"
	"renolink/crm"
	"renolink/models"
	"renolink/utils"
)

// LeadIngestWorker consumes leads produced by the marketplace browsing site
// (the external lead-ingestion collaborator) and funnels them through the
// same service call the direct create endpoint uses.
type LeadIngestWorker struct {
	Service *crm.Service
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Queue   string
	Logger  *log.Logger
}

func NewLeadIngestWorker(cfg config.AMQPConfig, service *crm.Service, logger *log.Logger) (*LeadIngestWorker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &LeadIngestWorker{
		Service: service,
		Conn:    conn,
		Channel: ch,
		Queue:   cfg.Queue,
		Logger:  logger,
	}, nil
}

type inboundLead struct {
	SupplierID   string `json:"supplier_id"`
	Name         string `json:"name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
	Priority     string `json:"priority"`
	SourceKey    string `json:"source_key"`
	CampaignName string `json:"campaign_name"`
	AssignedTo   string `json:"assigned_to"`
}

func (w *LeadIngestWorker) Start(ctx context.Context) {
	msgs, err := w.Channel.Consume(
		w.Queue,
		"",    // consumer
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		w.Logger.Printf("Failed to register lead ingest consumer: %v", err)
		return
	}

	w.Logger.Println("Lead ingest worker started")

	for {
		select {
		case <-ctx.Done():
			w.Logger.Println("Lead ingest worker shutting down...")
			w.Channel.Close()
			w.Conn.Close()
			return
		case d, ok := <-msgs:
			if !ok {
				w.Logger.Println("Lead ingest channel closed")
				return
			}
			w.handle(d)
		}
	}
}

func (w *LeadIngestWorker) handle(d amqp.Delivery) {
	var payload inboundLead
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		w.Logger.Printf("Dropping malformed lead message: %v", err)
		// Malformed payloads are rejected without requeue so the queue
		// never wedges on one bad message.
		d.Nack(false, false)
		return
	}

	if payload.SupplierID == "" || payload.Name == "" {
		w.Logger.Printf("Dropping lead message without supplier_id/name")
		d.Nack(false, false)
		return
	}
	if payload.ContactEmail != "" {
		if err := checkmail.ValidateFormat(payload.ContactEmail); err != nil {
			w.Logger.Printf("Dropping lead with invalid email %q: %v", payload.ContactEmail, err)
			d.Nack(false, false)
			return
		}
	}

	lead := &models.Lead{
		SupplierID:   payload.SupplierID,
		Name:         payload.Name,
		ContactPhone: payload.ContactPhone,
		ContactEmail: strings.ToLower(payload.ContactEmail),
		Priority:     models.LeadPriority(payload.Priority),
		SourceKey:    payload.SourceKey,
		CampaignName: payload.CampaignName,
	}
	if payload.AssignedTo != "" {
		lead.AssignedTo = &payload.AssignedTo
	}

	view, err := w.Service.Create(lead)
	if err != nil {
		w.Logger.Printf("Failed to ingest lead for supplier %s: %v", payload.SupplierID, err)
		// Store failure is transient; requeue for another attempt.
		d.Nack(false, true)
		return
	}

	utils.LogEvent("lead_ingested", map[string]interface{}{
		"lead_id":     view.ID,
		"supplier_id": view.SupplierID,
		"source_key":  view.SourceKey,
	})
	d.Ack(false)
}
