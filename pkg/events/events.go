// Package events defines event types for workflow library lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every library lifecycle event.
const Topic = "flowdocs.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowUploadedEvent  EventType = "workflow.uploaded"
	WorkflowDeletedEvent   EventType = "workflow.deleted"
	ReindexStartedEvent    EventType = "reindex.started"
	ReindexFinishedEvent   EventType = "reindex.finished"
	PurchaseRequestedEvent EventType = "purchase.requested"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

type WorkflowUploaded struct {
	BaseEvent

	Filename string `json:"filename"`
	Category string `json:"category"`
}

func (e WorkflowUploaded) GetType() EventType {
	return WorkflowUploadedEvent
}

type WorkflowDeleted struct {
	BaseEvent

	Filename    string `json:"filename"`
	FileRemoved bool   `json:"file_removed"`
}

func (e WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

type ReindexStarted struct {
	BaseEvent

	Force       bool   `json:"force"`
	RequestedBy string `json:"requested_by,omitempty"`
}

func (e ReindexStarted) GetType() EventType {
	return ReindexStartedEvent
}

type ReindexFinished struct {
	BaseEvent

	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

func (e ReindexFinished) GetType() EventType {
	return ReindexFinishedEvent
}

// PurchaseRequested is the produced interface for purchase notifications;
// delivery (e.g. outbound email) belongs to an external consumer.
type PurchaseRequested struct {
	BaseEvent

	Email            string `json:"email"`
	Description      string `json:"description"`
	WorkflowName     string `json:"workflow_name,omitempty"`
	WorkflowFilename string `json:"workflow_filename,omitempty"`
	UserRole         string `json:"user_role,omitempty"`
}

func (e PurchaseRequested) GetType() EventType {
	return PurchaseRequestedEvent
}
