package documents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"trainingdesk/internal/storage"
	"trainingdesk/pkg/types"

	"github.com/stretchr/testify/mock"
)

type fakeDocs struct {
	mu        sync.Mutex
	docs      map[string]*types.DocumentInstance
	failWrite error
}

func newFakeDocs(docs ...*types.DocumentInstance) *fakeDocs {
	f := &fakeDocs{docs: make(map[string]*types.DocumentInstance)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeDocs) get(id string) *types.DocumentInstance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id]
}

func (f *fakeDocs) DocumentByID(_ context.Context, id string) (*types.DocumentInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, types.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocs) DocumentsByOwner(_ context.Context, ownerID string) ([]*types.DocumentInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.DocumentInstance, 0)
	for _, d := range f.docs {
		if d.OwnerID == ownerID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDocs) CreateDocument(_ context.Context, doc *types.DocumentInstance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocs) ReviewDocument(_ context.Context, id string, status types.DocumentStatus, feedback, reviewer *string) (*types.DocumentInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, types.ErrDocumentNotFound
	}
	if d.Status != types.DocumentStatusPending {
		return nil, types.ErrDocumentAlreadyReviewed
	}
	now := time.Now()
	d.Status, d.Feedback, d.ReviewedBy, d.ReviewedAt = status, feedback, reviewer, &now
	cp := *d
	return &cp, nil
}

func (f *fakeDocs) UpdateStorageKey(_ context.Context, id, oldKey, newKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok || d.StorageKey != oldKey {
		return false, nil
	}
	d.StorageKey = newKey
	return true, nil
}

func (f *fakeDocs) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return types.ErrDocumentNotFound
	}
	delete(f.docs, id)
	return nil
}

type fakeCatalog struct {
	owners   map[string]*types.Owner
	docTypes map[string]*types.DocumentType
}

func (f *fakeCatalog) Owner(_ context.Context, kind types.OwnerKind, id string) (*types.Owner, error) {
	o, ok := f.owners[id]
	if !ok || o.Kind != kind {
		return nil, types.ErrOwnerNotFound
	}
	return o, nil
}

func (f *fakeCatalog) DocumentTypeByID(_ context.Context, id string) (*types.DocumentType, error) {
	dt, ok := f.docTypes[id]
	if !ok {
		return nil, types.ErrDocumentTypeNotFound
	}
	return dt, nil
}

// fakeObjects is an in-memory bucket behind the ObjectStore contract.
type fakeObjects struct {
	mu          sync.Mutex
	objects     map[string][]byte
	seq         int
	failPut     bool
	failMove    map[string]bool
	renameErr   error
	deleteCalls []string
}

func newFakeObjects(keys ...string) *fakeObjects {
	f := &fakeObjects{objects: make(map[string][]byte), failMove: make(map[string]bool)}
	for _, k := range keys {
		f.objects[k] = []byte("x")
	}
	return f
}

func (f *fakeObjects) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeObjects) DeriveKey(kind types.OwnerKind, ownerFolder string, category types.DocumentCategory, filename string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("%s%s/%d-abc%03d-%s", storage.OwnerPrefix(kind, ownerFolder), strings.ToLower(string(category)), 1_700_000_000_000+f.seq, f.seq, filename)
}

func (f *fakeObjects) Put(_ context.Context, key string, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return &types.StorageError{Op: types.StorageOpWrite, Key: key, Err: errors.New("access denied")}
	}
	f.objects[key] = body
	return nil
}

func (f *fakeObjects) Exists(_ context.Context, key string) (bool, error) {
	return f.has(key), nil
}

func (f *fakeObjects) CleanupOnDelete(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, key)
	delete(f.objects, key)
	return true
}

func (f *fakeObjects) IssueAccessURL(_ context.Context, key string, opts storage.AccessOptions) (string, error) {
	return fmt.Sprintf("https://signed.example.test/%s?inline=%t&ttl=%s", key, opts.Inline, opts.TTL), nil
}

func (f *fakeObjects) NormalizeKey(stored string) string {
	return strings.TrimPrefix(stored, "https://cdn.example.test/")
}

func (f *fakeObjects) RenameOwnerFolder(_ context.Context, oldPrefix, newPrefix string) (*storage.RenameResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0)
	for k := range f.objects {
		if strings.HasPrefix(k, oldPrefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := &storage.RenameResult{}
	for _, k := range keys {
		if f.failMove[k] {
			result.FailedKeys = append(result.FailedKeys, k)
			continue
		}
		newKey, _ := storage.RebaseKey(k, oldPrefix, newPrefix)
		f.objects[newKey] = f.objects[k]
		delete(f.objects, k)
		result.Moved = append(result.Moved, storage.KeyMove{OldKey: k, NewKey: newKey})
	}
	if f.renameErr != nil {
		result.Aborted = true
	}
	return result, f.renameErr
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n types.Notification) {
	m.Called(ctx, n)
}

type mockWatcher struct {
	mock.Mock
}

func (m *mockWatcher) AfterUpload(ctx context.Context, doc *types.DocumentInstance) {
	m.Called(ctx, doc)
}

func (m *mockWatcher) AfterReview(ctx context.Context, doc *types.DocumentInstance) {
	m.Called(ctx, doc)
}
