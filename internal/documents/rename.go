package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trainingdesk/internal/cache"
	"trainingdesk/internal/storage"
	"trainingdesk/pkg/types"

	"github.com/sirupsen/logrus"
)

// RenameReport describes what a RenameOwner call changed.
type RenameReport struct {
	OldPrefix string   `json:"oldPrefix"`
	NewPrefix string   `json:"newPrefix"`
	Moved     int      `json:"moved"`
	Failed    []string `json:"failed"`
	Orphaned  []string `json:"orphaned,omitempty"`
	// RowsUpdated counts rows rewritten for objects moved by this call,
	// RowsRecovered rows whose object an earlier interrupted run had moved.
	RowsUpdated   int  `json:"rowsUpdated"`
	RowsRecovered int  `json:"rowsRecovered"`
	RowsSkipped   int  `json:"rowsSkipped"`
	Aborted       bool `json:"aborted"`
}

func renameLeaseKey(kind types.OwnerKind, ownerID string) string {
	return fmt.Sprintf("rename:%s:%s", strings.ToLower(string(kind)), ownerID)
}

// RenameOwner moves an owner's folder after a name change and rewrites
// storage keys only for rows whose object is confirmed at the new location.
// oldName and newName may be display names or their slugs; both resolve to
// folders through storage.OwnerFolder, which includes the owner id. An empty
// newName means the owner's current name. Rows whose object did not move keep
// the old key, so rows and objects agree after any partial failure. Running
// it again finishes an interrupted rename.
//
// A *types.PartialRenameError is returned along with the report when some
// objects could not be moved.
func (r *Registry) RenameOwner(ctx context.Context, ownerID string, kind types.OwnerKind, oldName, newName string) (*RenameReport, error) {
	ownerID = strings.TrimSpace(ownerID)
	switch {
	case !kind.Valid():
		return nil, types.NewValidationError("owner_kind", fmt.Sprintf("unknown owner kind %q", kind))
	case ownerID == "":
		return nil, types.NewValidationError("owner_id", "owner is required")
	case strings.TrimSpace(oldName) == "":
		return nil, types.NewValidationError("slug", "old folder name is required")
	}

	lookupCtx, lookupCancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	owner, err := r.owners.Owner(lookupCtx, kind, ownerID)
	lookupCancel()
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(newName) == "" {
		newName = owner.FullName
	}

	oldFolder := storage.OwnerFolder(oldName, owner.ID)
	newFolder := storage.OwnerFolder(newName, owner.ID)
	if oldFolder == newFolder {
		return nil, types.NewValidationError("slug", "new folder name is the same as the old one")
	}

	release, err := r.leaser.Acquire(ctx, renameLeaseKey(kind, ownerID), r.opts.RenameLease)
	if err != nil {
		if errors.Is(err, cache.ErrLeaseHeld) {
			return nil, types.ErrRenameInProgress
		}
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logger.WithError(err).WithField("owner_id", ownerID).Warn("failed to release rename lease")
		}
	}()

	report := &RenameReport{
		OldPrefix: storage.OwnerPrefix(kind, oldFolder),
		NewPrefix: storage.OwnerPrefix(kind, newFolder),
		Failed:    make([]string, 0),
	}

	logger := r.logger.WithFields(logrus.Fields{
		"owner_id":   ownerID,
		"old_prefix": report.OldPrefix,
		"new_prefix": report.NewPrefix,
	})

	renameCtx, cancel := context.WithTimeout(ctx, r.opts.RenameTimeout)
	defer cancel()

	result, renameErr := r.objects.RenameOwnerFolder(renameCtx, report.OldPrefix, report.NewPrefix)
	if result == nil {
		return nil, renameErr
	}

	report.Moved = result.MovedCount()
	report.Failed = append(report.Failed, result.FailedKeys...)
	report.Orphaned = result.OrphanedKeys
	report.Aborted = result.Aborted

	// what moved is recorded even when the caller gave up on the batch
	rowCtx, rowCancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.RenameTimeout)
	defer rowCancel()

	if err := r.rewriteOwnerRows(rowCtx, logger, ownerID, result, report); err != nil {
		return report, errors.Join(renameErr, err)
	}

	logger.WithFields(logrus.Fields{
		"moved":          report.Moved,
		"failed":         len(report.Failed),
		"rows_updated":   report.RowsUpdated,
		"rows_recovered": report.RowsRecovered,
		"aborted":        report.Aborted,
	}).Info("owner folder renamed")

	if renameErr != nil {
		return report, fmt.Errorf("owner folder rename stopped early: %w", renameErr)
	}

	if len(report.Failed) > 0 {
		return report, &types.PartialRenameError{Moved: report.Moved, FailedKeys: report.Failed}
	}

	return report, nil
}

// rewriteOwnerRows updates rows one at a time. Each update is a compare and
// swap on the old key so a concurrent change to the row wins.
func (r *Registry) rewriteOwnerRows(ctx context.Context, logger logrus.FieldLogger, ownerID string, result *storage.RenameResult, report *RenameReport) error {
	docs, err := r.docs.DocumentsByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to list documents for rename: %w", err)
	}

	moved := result.MovedFrom()
	failed := make(map[string]bool, len(result.FailedKeys))
	for _, k := range result.FailedKeys {
		failed[k] = true
	}

	for _, doc := range docs {
		key := r.objects.NormalizeKey(doc.StorageKey)

		newKey, ok := moved[key]
		recovered := false
		if !ok {
			if failed[key] {
				continue
			}
			newKey, ok = r.movedEarlier(ctx, key, report.OldPrefix, report.NewPrefix)
			if !ok {
				continue
			}
			recovered = true
		}

		entry := logger.WithFields(logrus.Fields{
			"document_id": doc.ID,
			"storage_key": newKey,
		})

		updated, err := r.docs.UpdateStorageKey(ctx, doc.ID, doc.StorageKey, newKey)
		if err != nil {
			return fmt.Errorf("failed to rewrite storage key for %s: %w", doc.ID, err)
		}
		if !updated {
			entry.Warn("document changed during rename, key left as is")
			report.RowsSkipped++
			continue
		}

		if recovered {
			entry.Info("recovered storage key moved by an earlier rename")
			report.RowsRecovered++
		} else {
			report.RowsUpdated++
		}
	}

	return nil
}

// movedEarlier reports whether a row still pointing under oldPrefix belongs
// to an object that an interrupted earlier run already moved.
func (r *Registry) movedEarlier(ctx context.Context, key, oldPrefix, newPrefix string) (string, bool) {
	newKey, ok := storage.RebaseKey(key, oldPrefix, newPrefix)
	if !ok {
		return "", false
	}

	atOld, err := r.objects.Exists(ctx, key)
	if err != nil || atOld {
		return "", false
	}

	atNew, err := r.objects.Exists(ctx, newKey)
	if err != nil || !atNew {
		return "", false
	}

	return newKey, true
}
