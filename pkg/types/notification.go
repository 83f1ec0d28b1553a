package types

import "time"

type NotificationKind string

const (
	NotificationDocumentRejected NotificationKind = "DOCUMENT_REJECTED"
	NotificationDocsComplete     NotificationKind = "DOCS_COMPLETE"
)

// Notification is handed to the dispatcher; formatting and delivery happen
// downstream.
type Notification struct {
	OwnerID   string            `json:"ownerId"`
	OwnerKind OwnerKind         `json:"ownerKind,omitempty"`
	Kind      NotificationKind  `json:"kind"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
