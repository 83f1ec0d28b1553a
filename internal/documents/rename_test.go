package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"trainingdesk/internal/cache"
	"trainingdesk/internal/storage"
	"trainingdesk/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func studentPrefix(name string) string {
	return storage.OwnerPrefix(types.OwnerKindStudent, storage.OwnerFolder(name, student.ID))
}

func seedOwnerDocs(prefix string, n int) (*fakeDocs, []string) {
	docs := newFakeDocs()
	keys := make([]string, n)
	for i := range n {
		keys[i] = fmt.Sprintf("%smedical/%d-abc%03d-scan.pdf", prefix, 1_700_000_000_000+i, i)
		docs.docs[fmt.Sprintf("d%d", i)] = &types.DocumentInstance{
			ID:         fmt.Sprintf("d%d", i),
			OwnerID:    student.ID,
			OwnerKind:  types.OwnerKindStudent,
			StorageKey: keys[i],
		}
	}
	return docs, keys
}

func TestRenameOwner_RewritesOnlyConfirmedMoves(t *testing.T) {
	t.Parallel()

	oldPrefix := studentPrefix("jane-doe")
	newPrefix := studentPrefix("jane-smith")

	docs, keys := seedOwnerDocs(oldPrefix, 4)
	objects := newFakeObjects(keys...)
	objects.failMove[keys[2]] = true
	h := newHarness(t, docs, objects)

	report, err := h.registry.RenameOwner(context.Background(), student.ID, types.OwnerKindStudent, "jane-doe", "jane-smith")

	var partial *types.PartialRenameError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 3, partial.Moved)
	assert.Equal(t, []string{keys[2]}, partial.FailedKeys)

	require.NotNil(t, report)
	assert.Equal(t, 3, report.RowsUpdated)
	assert.Equal(t, 0, report.RowsRecovered)

	for i, k := range keys {
		doc := docs.get(fmt.Sprintf("d%d", i))
		if i == 2 {
			assert.Equal(t, k, doc.StorageKey, "row keeps the key its object still lives at")
			assert.True(t, objects.has(k))
			continue
		}
		assert.Equal(t, newPrefix+k[len(oldPrefix):], doc.StorageKey)
		assert.True(t, objects.has(doc.StorageKey))
	}

	// retry once storage recovers
	objects.failMove[keys[2]] = false
	report, err = h.registry.RenameOwner(context.Background(), student.ID, types.OwnerKindStudent, "jane-doe", "jane-smith")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Moved)
	assert.Equal(t, 1, report.RowsUpdated)
	assert.Contains(t, docs.get("d2").StorageKey, newPrefix)
}

func TestRenameOwner_SecondRunIsNoop(t *testing.T) {
	t.Parallel()

	oldPrefix := studentPrefix("jane-doe")
	docs, keys := seedOwnerDocs(oldPrefix, 3)
	h := newHarness(t, docs, newFakeObjects(keys...))
	ctx := context.Background()

	_, err := h.registry.RenameOwner(ctx, student.ID, types.OwnerKindStudent, "jane-doe", "jane-smith")
	require.NoError(t, err)

	report, err := h.registry.RenameOwner(ctx, student.ID, types.OwnerKindStudent, "jane-doe", "jane-smith")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Moved)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 0, report.RowsUpdated+report.RowsRecovered)
}

func TestRenameOwner_RecoversRowsFromInterruptedRun(t *testing.T) {
	t.Parallel()

	oldPrefix := studentPrefix("jane-doe")
	newPrefix := studentPrefix("jane-smith")

	docs, keys := seedOwnerDocs(oldPrefix, 3)

	// a previous run moved the first object and died before touching rows
	movedKey, _ := storage.RebaseKey(keys[0], oldPrefix, newPrefix)
	objects := newFakeObjects(movedKey, keys[1], keys[2])
	h := newHarness(t, docs, objects)

	report, err := h.registry.RenameOwner(context.Background(), student.ID, types.OwnerKindStudent, "jane-doe", "jane-smith")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Moved)
	assert.Equal(t, 2, report.RowsUpdated)
	assert.Equal(t, 1, report.RowsRecovered)
	assert.Equal(t, movedKey, docs.get("d0").StorageKey)
}

func TestRenameOwner_AbortStillRecordsMoves(t *testing.T) {
	t.Parallel()

	oldPrefix := studentPrefix("jane-doe")
	docs, keys := seedOwnerDocs(oldPrefix, 2)
	objects := newFakeObjects(keys...)
	objects.renameErr = context.Canceled
	h := newHarness(t, docs, objects)

	report, err := h.registry.RenameOwner(context.Background(), student.ID, types.OwnerKindStudent, "jane-doe", "jane-smith")
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.True(t, report.Aborted)
	assert.Equal(t, 2, report.RowsUpdated)
}

func TestRenameOwner_LeaseHeld(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newFakeDocs(), newFakeObjects())
	ctx := context.Background()

	release, err := h.registry.leaser.Acquire(ctx, renameLeaseKey(types.OwnerKindStudent, student.ID), h.registry.opts.RenameLease)
	require.NoError(t, err)

	_, err = h.registry.RenameOwner(ctx, student.ID, types.OwnerKindStudent, "jane-doe", "jane-smith")
	assert.ErrorIs(t, err, types.ErrRenameInProgress)

	require.NoError(t, release(ctx))

	_, err = h.registry.RenameOwner(ctx, student.ID, types.OwnerKindStudent, "jane-doe", "jane-smith")
	assert.NoError(t, err)
}

func TestRenameOwner_Validation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newFakeDocs(), newFakeObjects())
	ctx := context.Background()

	// the last pair falls back to the current name, which slugs to the old folder
	for _, c := range [][2]string{{"jane", "jane"}, {"Jane Smith", "jane-smith"}, {"", "jane"}, {"jane-doe", ""}} {
		_, err := h.registry.RenameOwner(ctx, student.ID, types.OwnerKindStudent, c[0], c[1])
		assert.ErrorIs(t, err, types.ErrValidation, "%q -> %q", c[0], c[1])
	}

	_, err := h.registry.RenameOwner(ctx, student.ID, "GUEST", "a", "b")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestRenameOwner_UnknownOwner(t *testing.T) {
	t.Parallel()

	key := "students/jane-doe_ghost/medical/1-abc-scan.pdf"
	objects := newFakeObjects(key)
	h := newHarness(t, newFakeDocs(), objects)

	_, err := h.registry.RenameOwner(context.Background(), "ghost", types.OwnerKindStudent, "jane-doe", "jane-smith")
	assert.ErrorIs(t, err, types.ErrOwnerNotFound)
	assert.True(t, objects.has(key), "nothing moved for an unknown owner")

	_, err = h.registry.RenameOwner(context.Background(), student.ID, types.OwnerKindInstructor, "jane-doe", "jane-smith")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRenameOwner_SameNameOwnersKeepSeparateFolders(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newFakeDocs(), newFakeObjects())
	ctx := context.Background()

	mine, err := h.registry.CreateDocument(ctx, upload(medical.ID))
	require.NoError(t, err)

	other := upload(medical.ID)
	other.OwnerID = namesake.ID
	theirs, err := h.registry.CreateDocument(ctx, other)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(mine.StorageKey, "students/jane-doe_s1/"))
	require.True(t, strings.HasPrefix(theirs.StorageKey, "students/jane-doe_s2/"))

	report, err := h.registry.RenameOwner(ctx, student.ID, types.OwnerKindStudent, "Jane Doe", "Jane Smith")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Moved)
	assert.Equal(t, 1, report.RowsUpdated)

	moved := h.docs.get(mine.ID)
	assert.True(t, strings.HasPrefix(moved.StorageKey, studentPrefix("jane-smith")))
	assert.True(t, h.objects.has(moved.StorageKey))

	untouched := h.docs.get(theirs.ID)
	assert.Equal(t, theirs.StorageKey, untouched.StorageKey)
	assert.True(t, h.objects.has(untouched.StorageKey), "the other owner's row still locates its bytes")
}

type failingLeaser struct{}

func (failingLeaser) Acquire(context.Context, string, time.Duration) (cache.ReleaseFunc, error) {
	return nil, errors.New("redis down")
}

func TestRenameOwner_LeaseBackendError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newFakeDocs(), newFakeObjects())
	h.registry.leaser = failingLeaser{}

	_, err := h.registry.RenameOwner(context.Background(), student.ID, types.OwnerKindStudent, "jane-doe", "jane-smith")
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrRenameInProgress)
}
