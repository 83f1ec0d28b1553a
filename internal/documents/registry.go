package documents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"trainingdesk/internal/cache"
	"trainingdesk/internal/notify"
	"trainingdesk/internal/storage"
	"trainingdesk/internal/utils"
	"trainingdesk/pkg/types"

	"github.com/sirupsen/logrus"
)

type DocumentStore interface {
	DocumentByID(ctx context.Context, id string) (*types.DocumentInstance, error)
	DocumentsByOwner(ctx context.Context, ownerID string) ([]*types.DocumentInstance, error)
	CreateDocument(ctx context.Context, doc *types.DocumentInstance) error
	ReviewDocument(ctx context.Context, id string, status types.DocumentStatus, feedback, reviewer *string) (*types.DocumentInstance, error)
	UpdateStorageKey(ctx context.Context, id, oldKey, newKey string) (bool, error)
	DeleteDocument(ctx context.Context, id string) error
}

type DocumentTypeStore interface {
	DocumentTypeByID(ctx context.Context, id string) (*types.DocumentType, error)
}

type OwnerStore interface {
	Owner(ctx context.Context, kind types.OwnerKind, id string) (*types.Owner, error)
}

// ObjectStore is the part of *storage.Synchronizer the registry needs.
type ObjectStore interface {
	DeriveKey(kind types.OwnerKind, ownerFolder string, category types.DocumentCategory, filename string) string
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	CleanupOnDelete(ctx context.Context, key string) bool
	IssueAccessURL(ctx context.Context, key string, opts storage.AccessOptions) (string, error)
	NormalizeKey(stored string) string
	RenameOwnerFolder(ctx context.Context, oldPrefix, newPrefix string) (*storage.RenameResult, error)
}

// CompletionWatcher is told about uploads and reviews so it can detect an
// owner becoming complete.
type CompletionWatcher interface {
	AfterUpload(ctx context.Context, doc *types.DocumentInstance)
	AfterReview(ctx context.Context, doc *types.DocumentInstance)
}

type Options struct {
	MaxUploadBytes   int64
	OperationTimeout time.Duration
	RenameTimeout    time.Duration
	RenameLease      time.Duration
	PreviewTTL       time.Duration
	ExportTTL        time.Duration
}

const DefaultMaxUploadBytes = 10 << 20

type Registry struct {
	logger   logrus.FieldLogger
	docs     DocumentStore
	docTypes DocumentTypeStore
	owners   OwnerStore
	objects  ObjectStore
	leaser   cache.Leaser
	notifier notify.Notifier
	watcher  CompletionWatcher
	opts     Options
}

func New(
	logger logrus.FieldLogger,
	docs DocumentStore,
	docTypes DocumentTypeStore,
	owners OwnerStore,
	objects ObjectStore,
	leaser cache.Leaser,
	notifier notify.Notifier,
	watcher CompletionWatcher,
	opts Options,
) *Registry {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 10 * time.Second
	}
	if opts.RenameTimeout <= 0 {
		opts.RenameTimeout = 5 * time.Minute
	}
	if opts.RenameLease <= 0 {
		opts.RenameLease = 2 * opts.RenameTimeout
	}
	if opts.PreviewTTL <= 0 {
		opts.PreviewTTL = storage.DefaultPreviewTTL
	}
	if opts.ExportTTL <= 0 {
		opts.ExportTTL = storage.DefaultExportTTL
	}
	if leaser == nil {
		leaser = cache.NewLocalLeaser()
	}

	return &Registry{
		logger:   logger.WithField("component", "documents"),
		docs:     docs,
		docTypes: docTypes,
		owners:   owners,
		objects:  objects,
		leaser:   leaser,
		notifier: notifier,
		watcher:  watcher,
		opts:     opts,
	}
}

type UploadRequest struct {
	OwnerID        string
	OwnerKind      types.OwnerKind
	DocumentTypeID string
	Body           []byte
	ContentType    string
	FileName       string
}

func (r *Registry) validateUpload(req *UploadRequest) error {
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.DocumentTypeID = strings.TrimSpace(req.DocumentTypeID)
	req.FileName = strings.TrimSpace(req.FileName)

	switch {
	case req.OwnerID == "":
		return types.NewValidationError("owner_id", "owner is required")
	case !req.OwnerKind.Valid():
		return types.NewValidationError("owner_kind", fmt.Sprintf("unknown owner kind %q", req.OwnerKind))
	case req.DocumentTypeID == "":
		return types.NewValidationError("document_type_id", "document type is required")
	case req.FileName == "":
		return types.NewValidationError("file_name", "file name is required")
	case len(req.Body) == 0:
		return types.NewValidationError("file", "file is empty")
	case int64(len(req.Body)) > r.opts.MaxUploadBytes:
		return types.NewValidationError("file", fmt.Sprintf("file is larger than %d MB", r.opts.MaxUploadBytes>>20))
	}

	if req.ContentType == "" {
		req.ContentType = http.DetectContentType(req.Body)
	}

	return nil
}

// CreateDocument stores the bytes first and the row second, so a failure
// can leave an orphaned object but never a row without one.
func (r *Registry) CreateDocument(ctx context.Context, req UploadRequest) (*types.DocumentInstance, error) {
	if err := r.validateUpload(&req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	owner, err := r.owners.Owner(ctx, req.OwnerKind, req.OwnerID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.NewValidationError("owner_id", "owner does not exist")
		}
		return nil, err
	}

	docType, err := r.docTypes.DocumentTypeByID(ctx, req.DocumentTypeID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.NewValidationError("document_type_id", "document type does not exist")
		}
		return nil, err
	}

	key := r.objects.DeriveKey(owner.Kind, storage.OwnerFolder(owner.FullName, owner.ID), docType.Category, req.FileName)

	logger := r.logger.WithFields(logrus.Fields{
		"owner_id":    owner.ID,
		"storage_key": key,
	})

	if err := r.objects.Put(ctx, key, req.Body, req.ContentType); err != nil {
		logger.WithError(err).Error("failed to store document")
		return nil, err
	}

	doc := &types.DocumentInstance{
		ID:             utils.NanoID(),
		OwnerID:        owner.ID,
		OwnerKind:      owner.Kind,
		DocumentTypeID: docType.ID,
		StorageKey:     key,
		FileName:       req.FileName,
		ContentType:    req.ContentType,
		SizeBytes:      int64(len(req.Body)),
		Status:         types.DocumentStatusPending,
		CreatedAt:      time.Now(),
	}

	if err := r.docs.CreateDocument(ctx, doc); err != nil {
		logger.WithError(err).Error("failed to record document, removing stored object")
		r.objects.CleanupOnDelete(context.WithoutCancel(ctx), key)
		return nil, err
	}

	logger.WithField("document_id", doc.ID).Info("document uploaded")

	if r.watcher != nil {
		r.watcher.AfterUpload(ctx, doc)
	}

	return doc, nil
}

// ReviewDocument moves a PENDING document to APPROVED or REJECTED. Both are
// terminal; a rejected document is replaced by a new upload.
func (r *Registry) ReviewDocument(ctx context.Context, id string, decision types.DocumentStatus, feedback, reviewer string) (*types.DocumentInstance, error) {
	if decision != types.DocumentStatusApproved && decision != types.DocumentStatusRejected {
		return nil, types.NewValidationError("status", fmt.Sprintf("decision must be %s or %s", types.DocumentStatusApproved, types.DocumentStatusRejected))
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	doc, err := r.docs.ReviewDocument(ctx, id, decision, utils.NonEmptyStringPtr(strings.TrimSpace(feedback)), utils.NonEmptyStringPtr(strings.TrimSpace(reviewer)))
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"owner_id":    doc.OwnerID,
		"status":      doc.Status,
	}).Info("document reviewed")

	if doc.Status == types.DocumentStatusRejected {
		title := doc.DocumentTypeID
		if docType, err := r.docTypes.DocumentTypeByID(ctx, doc.DocumentTypeID); err == nil {
			title = docType.Title
		} else {
			r.logger.WithError(err).WithField("document_id", doc.ID).Warn("failed to load document type for rejection notice")
		}

		r.notifier.Notify(ctx, types.Notification{
			OwnerID:   doc.OwnerID,
			OwnerKind: doc.OwnerKind,
			Kind:      types.NotificationDocumentRejected,
			Payload: map[string]string{
				"documentId":    doc.ID,
				"documentTitle": title,
				"feedback":      utils.PtrString(doc.Feedback),
			},
			CreatedAt: time.Now(),
		})
	}

	if r.watcher != nil {
		r.watcher.AfterReview(ctx, doc)
	}

	return doc, nil
}

// DeleteDocument removes the stored object (best effort) and then the row.
// Deleting an unknown or already deleted id returns ErrDocumentNotFound
// without touching storage.
func (r *Registry) DeleteDocument(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	doc, err := r.docs.DocumentByID(ctx, id)
	if err != nil {
		return err
	}

	r.objects.CleanupOnDelete(ctx, r.objects.NormalizeKey(doc.StorageKey))

	if err := r.docs.DeleteDocument(ctx, id); err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"owner_id":    doc.OwnerID,
	}).Info("document deleted")

	return nil
}

func (r *Registry) Document(ctx context.Context, id string) (*types.DocumentInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	return r.docs.DocumentByID(ctx, id)
}

// Documents lists every instance an owner uploaded, newest first.
func (r *Registry) Documents(ctx context.Context, ownerID string) ([]*types.DocumentInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	docs, err := r.docs.DocumentsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	types.SortNewestFirst(docs)
	return docs, nil
}

// AccessURL signs a temporary link to a document's bytes.
func (r *Registry) AccessURL(ctx context.Context, id string, purpose types.AccessPurpose) (string, error) {
	var opts storage.AccessOptions
	switch purpose {
	case types.AccessPurposePreview, "":
		opts = storage.AccessOptions{Inline: true, TTL: r.opts.PreviewTTL}
	case types.AccessPurposeExport:
		opts = storage.AccessOptions{TTL: r.opts.ExportTTL}
	default:
		return "", types.NewValidationError("purpose", fmt.Sprintf("unknown purpose %q", purpose))
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	doc, err := r.docs.DocumentByID(ctx, id)
	if err != nil {
		return "", err
	}
	opts.FileName = doc.FileName

	return r.objects.IssueAccessURL(ctx, r.objects.NormalizeKey(doc.StorageKey), opts)
}
