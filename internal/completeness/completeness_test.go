package completeness

import (
	"context"
	"fmt"
	"testing"
	"time"

	"trainingdesk/pkg/types"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	passport = &types.DocumentType{ID: "t-passport", Title: "Passport", Category: types.CategoryStudent, IsRequired: true}
	medical  = &types.DocumentType{ID: "t-medical", Title: "Medical", Category: types.CategoryMedical, IsRequired: true}
)

func instance(id, typeID string, status types.DocumentStatus) *types.DocumentInstance {
	return &types.DocumentInstance{
		ID:             id,
		OwnerID:        "s1",
		OwnerKind:      types.OwnerKindStudent,
		DocumentTypeID: typeID,
		Status:         status,
		CreatedAt:      time.Now(),
	}
}

func TestEvaluate_UploadThenRejectedStillCompletes(t *testing.T) {
	t.Parallel()

	required := []*types.DocumentType{passport, medical}
	docs := []*types.DocumentInstance{instance("d1", passport.ID, types.DocumentStatusPending)}

	report := Evaluate(docs, required, PolicyCountAnyStatus)
	assert.False(t, report.IsComplete)
	assert.Equal(t, []string{"Medical"}, report.Missing)

	docs = append(docs, instance("d2", medical.ID, types.DocumentStatusRejected))
	report = Evaluate(docs, required, PolicyCountAnyStatus)
	assert.True(t, report.IsComplete)
	assert.Empty(t, report.Missing)

	report = Evaluate(docs, required, PolicyCountApprovedOnly)
	assert.False(t, report.IsComplete)
	assert.Equal(t, []string{"Passport", "Medical"}, report.Missing)
}

func TestEvaluate_MissingIsRequiredMinusSupplied(t *testing.T) {
	t.Parallel()

	statuses := []types.DocumentStatus{types.DocumentStatusPending, types.DocumentStatusApproved, types.DocumentStatusRejected}

	for k := 0; k <= 6; k++ {
		required := make([]*types.DocumentType, k)
		for i := range k {
			required[i] = &types.DocumentType{ID: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("Type %d", i)}
		}

		for m := 0; m <= k; m++ {
			var docs []*types.DocumentInstance
			for i := range m {
				// several instances per type, mixed statuses
				for j := range 1 + i%3 {
					docs = append(docs, instance(fmt.Sprintf("d%d-%d", i, j), required[i].ID, statuses[(i+j)%3]))
				}
			}
			// documents for types nobody asked for do not count
			docs = append(docs, instance("extra", "t-unrelated", types.DocumentStatusApproved))

			report := Evaluate(docs, required, PolicyCountAnyStatus)
			assert.Len(t, report.Missing, k-m, "k=%d m=%d", k, m)
			assert.Equal(t, m, report.Supplied)
			assert.Equal(t, k == m, report.IsComplete)
		}
	}
}

func TestEvaluate_DuplicateRequiredTypesCountOnce(t *testing.T) {
	t.Parallel()

	report := Evaluate(nil, []*types.DocumentType{medical, medical, passport}, PolicyCountAnyStatus)
	assert.Equal(t, 2, report.Required)
	assert.Equal(t, []string{"Medical", "Passport"}, report.Missing)
}

func TestEvaluate_NothingRequired(t *testing.T) {
	t.Parallel()

	report := Evaluate(nil, nil, PolicyCountApprovedOnly)
	assert.True(t, report.IsComplete)
	assert.NotNil(t, report.Missing)
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyCountAnyStatus, p)

	p, err = ParsePolicy("count-approved-only")
	require.NoError(t, err)
	assert.Equal(t, PolicyCountApprovedOnly, p)

	_, err = ParsePolicy("count-nothing")
	assert.ErrorIs(t, err, types.ErrValidation)
}

type fakeRegistry struct {
	docs     []*types.DocumentInstance
	required []*types.DocumentType
}

func (f *fakeRegistry) DocumentsByOwner(_ context.Context, ownerID string) ([]*types.DocumentInstance, error) {
	var out []*types.DocumentInstance
	for _, d := range f.docs {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRegistry) RequiredDocumentTypes(_ context.Context, categories ...types.DocumentCategory) ([]*types.DocumentType, error) {
	var out []*types.DocumentType
	for _, dt := range f.required {
		for _, c := range categories {
			if dt.Category == c {
				out = append(out, dt)
				break
			}
		}
	}
	return out, nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n types.Notification) {
	m.Called(ctx, n)
}

func newTestEvaluator(reg *fakeRegistry, policy Policy) (*Evaluator, *mockNotifier) {
	logger, _ := test.NewNullLogger()
	n := new(mockNotifier)
	return New(logger, reg, reg, n, policy, time.Second), n
}

func TestEvaluateCategories(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		required: []*types.DocumentType{passport, medical},
		docs:     []*types.DocumentInstance{instance("d1", medical.ID, types.DocumentStatusPending)},
	}
	e, _ := newTestEvaluator(reg, PolicyCountAnyStatus)

	report, err := e.EvaluateCategories(context.Background(), "s1", types.CategoryMedical)
	require.NoError(t, err)
	assert.True(t, report.IsComplete)

	report, err = e.EvaluateCategories(context.Background(), "s1", CategoriesFor(types.OwnerKindStudent)...)
	require.NoError(t, err)
	assert.Equal(t, []string{"Passport"}, report.Missing)
}

func TestAfterUpload_NotifiesOnlyOnFlip(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{required: []*types.DocumentType{passport, medical}}
	e, n := newTestEvaluator(reg, PolicyCountAnyStatus)
	ctx := context.Background()

	first := instance("d1", passport.ID, types.DocumentStatusPending)
	reg.docs = append(reg.docs, first)
	e.AfterUpload(ctx, first)
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)

	n.On("Notify", mock.Anything, mock.MatchedBy(func(got types.Notification) bool {
		return got.Kind == types.NotificationDocsComplete && got.OwnerID == "s1" && got.Payload["documentId"] == "d2"
	})).Once()

	second := instance("d2", medical.ID, types.DocumentStatusRejected)
	reg.docs = append(reg.docs, second)
	e.AfterUpload(ctx, second)

	// already complete: a replacement upload is not a flip
	third := instance("d3", medical.ID, types.DocumentStatusPending)
	reg.docs = append(reg.docs, third)
	e.AfterUpload(ctx, third)

	n.AssertNumberOfCalls(t, "Notify", 1)
}

func TestAfterReview_ApprovedOnlyPolicy(t *testing.T) {
	t.Parallel()

	approvedPassport := instance("d1", passport.ID, types.DocumentStatusApproved)
	med := instance("d2", medical.ID, types.DocumentStatusApproved)
	reg := &fakeRegistry{
		required: []*types.DocumentType{passport, medical},
		docs:     []*types.DocumentInstance{approvedPassport, med},
	}

	e, n := newTestEvaluator(reg, PolicyCountApprovedOnly)
	n.On("Notify", mock.Anything, mock.Anything).Once()
	e.AfterReview(context.Background(), med)
	n.AssertExpectations(t)

	anyStatus, quiet := newTestEvaluator(reg, PolicyCountAnyStatus)
	anyStatus.AfterReview(context.Background(), med)
	quiet.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}
