package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	// EntryDataChanged is emitted when an entry's payload actually changed
	// and at least one decided verification record had to be reset.
	EntryDataChanged EventType = "entry.data.changed"
	// SupervisorAdded is emitted when a user gains the supervisor role on a
	// template that already has entries.
	SupervisorAdded EventType = "supervisor.added"
	// EntryVerified is emitted when a decision makes an entry fully approved.
	EntryVerified EventType = "entry.verified"

	// Inbound routing keys from the external access-management component.
	AccessGranted     EventType = "access.granted"
	AccessRoleChanged EventType = "access.role.changed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Version   string    `json:"version"`
}

func newBaseEvent(t EventType) BaseEvent {
	return BaseEvent{
		ID:        generateEventID(),
		Type:      t,
		Timestamp: time.Now().Unix(),
		Version:   "1.0",
	}
}

// EntryDataChangedEvent carries the before/after payloads so downstream
// notifiers can tell the writer and supervisors what needs re-verifying.
type EntryDataChangedEvent struct {
	BaseEvent
	EntryID       string         `json:"entry_id"`
	TemplateID    string         `json:"template_id"`
	UpdatedBy     string         `json:"updated_by"`
	BeforePayload map[string]any `json:"before_payload"`
	AfterPayload  map[string]any `json:"after_payload"`
	RecordsReset  int            `json:"records_reset"`
}

func NewEntryDataChangedEvent(entryID, templateID, updatedBy string, before, after map[string]any, recordsReset int) *EntryDataChangedEvent {
	return &EntryDataChangedEvent{
		BaseEvent:     newBaseEvent(EntryDataChanged),
		EntryID:       entryID,
		TemplateID:    templateID,
		UpdatedBy:     updatedBy,
		BeforePayload: before,
		AfterPayload:  after,
		RecordsReset:  recordsReset,
	}
}

func (e *EntryDataChangedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type SupervisorAddedEvent struct {
	BaseEvent
	SupervisorID string `json:"supervisor_id"`
	TemplateID   string `json:"template_id"`
	EntryCount   int    `json:"entry_count"`
}

func NewSupervisorAddedEvent(supervisorID, templateID string, entryCount int) *SupervisorAddedEvent {
	return &SupervisorAddedEvent{
		BaseEvent:    newBaseEvent(SupervisorAdded),
		SupervisorID: supervisorID,
		TemplateID:   templateID,
		EntryCount:   entryCount,
	}
}

func (e *SupervisorAddedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type EntryVerifiedEvent struct {
	BaseEvent
	EntryID    string `json:"entry_id"`
	TemplateID string `json:"template_id"`
	WriterID   string `json:"writer_id"`
}

func NewEntryVerifiedEvent(entryID, templateID, writerID string) *EntryVerifiedEvent {
	return &EntryVerifiedEvent{
		BaseEvent:  newBaseEvent(EntryVerified),
		EntryID:    entryID,
		TemplateID: templateID,
		WriterID:   writerID,
	}
}

func (e *EntryVerifiedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// AccessGrantEvent is the inbound shape published by the external
// access-management component on grant creation or role change.
type AccessGrantEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	TemplateID string `json:"template_id"`
	RoleName   string `json:"role_name"`
	GrantedBy  string `json:"granted_by,omitempty"`
}

func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + uuid.NewString()[:8]
}
