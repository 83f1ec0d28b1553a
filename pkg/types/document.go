package types

import (
	"sort"
	"time"
)

type DocumentCategory string

const (
	CategoryOffice      DocumentCategory = "OFFICE"
	CategoryStudent     DocumentCategory = "STUDENT"
	CategoryCertificate DocumentCategory = "CERTIFICATE"
	CategoryMedical     DocumentCategory = "MEDICAL"
	CategoryInstructor  DocumentCategory = "INSTRUCTOR"
)

func (c DocumentCategory) Valid() bool {
	switch c {
	case CategoryOffice, CategoryStudent, CategoryCertificate, CategoryMedical, CategoryInstructor:
		return true
	}
	return false
}

type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "PENDING"
	DocumentStatusApproved DocumentStatus = "APPROVED"
	DocumentStatusRejected DocumentStatus = "REJECTED"
)

// Terminal reports whether no further review transition is allowed.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentStatusApproved || s == DocumentStatusRejected
}

// DocumentType describes one kind of file an owner may be asked for
type DocumentType struct {
	ID          string           `db:"id" json:"id"`
	Title       string           `db:"title" json:"title"`
	Category    DocumentCategory `db:"category" json:"category"`
	IsRequired  bool             `db:"is_required" json:"isRequired"`
	Description *string          `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}

// DocumentInstance is one uploaded file plus its review state
type DocumentInstance struct {
	ID             string         `db:"id" json:"id"`
	OwnerID        string         `db:"owner_id" json:"ownerId"`
	OwnerKind      OwnerKind      `db:"owner_kind" json:"ownerKind"`
	DocumentTypeID string         `db:"document_type_id" json:"documentTypeId"`
	StorageKey     string         `db:"storage_key" json:"-"`
	FileName       string         `db:"file_name" json:"fileName"`
	ContentType    string         `db:"content_type" json:"contentType"`
	SizeBytes      int64          `db:"size_bytes" json:"sizeBytes"`
	Status         DocumentStatus `db:"status" json:"status"`
	Feedback       *string        `db:"feedback" json:"feedback,omitempty"`
	ReviewedAt     *time.Time     `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewedBy     *string        `db:"reviewed_by" json:"reviewedBy,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// LatestByType picks the most recent instance per document type. Older
// instances stay in the registry; this is only the display view.
func LatestByType(docs []*DocumentInstance) map[string]*DocumentInstance {
	out := make(map[string]*DocumentInstance, len(docs))
	for _, doc := range docs {
		current, ok := out[doc.DocumentTypeID]
		if !ok || doc.CreatedAt.After(current.CreatedAt) {
			out[doc.DocumentTypeID] = doc
		}
	}
	return out
}

// SortNewestFirst orders documents by created_at descending, ties by id.
func SortNewestFirst(docs []*DocumentInstance) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
}

type AccessPurpose string

const (
	AccessPurposePreview AccessPurpose = "preview"
	AccessPurposeExport  AccessPurpose = "export"
)
