package importer

import (
	"testing"

	"trainingdesk/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(p types.Phase) []string {
	out := make([]string, len(p.Items))
	for i, item := range p.Items {
		out[i] = item.Label
	}
	return out
}

func TestImport_TwoColumnWithHeaderAndMergedCells(t *testing.T) {
	t.Parallel()

	result, err := Import([][]string{
		{"Phase", "Task"},
		{"Preparation", "Book room"},
		{"", "Send invites"},
		{"", ""},
		{"Delivery", "Run theory session"},
		{"Delivery", "Practical assessment"},
		{"Follow-up:", "Collect feedback", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, LayoutTwoColumn, result.Layout)
	require.Len(t, result.Phases, 3)
	assert.Equal(t, "Preparation", result.Phases[0].Title)
	assert.Equal(t, []string{"Book room", "Send invites"}, labels(result.Phases[0]))
	assert.Equal(t, []string{"Run theory session", "Practical assessment"}, labels(result.Phases[1]))
	assert.Equal(t, "Follow-up", result.Phases[2].Title)
	assert.InDelta(t, 0.9, result.Confidence, 0.001)
	assert.Empty(t, result.Warnings)
}

func TestImport_SingleColumnHeadings(t *testing.T) {
	t.Parallel()

	result, err := Import([][]string{
		{"BEFORE THE COURSE"},
		{"- Book room"},
		{"2. Send invites"},
		{"Phase 2 Delivery"},
		{"Theory"},
		{"Practical with CPR dummy"},
		{"Wrap up:"},
		{"Collect feedback"},
	})
	require.NoError(t, err)

	assert.Equal(t, LayoutSingleColumn, result.Layout)
	require.Len(t, result.Phases, 3)
	assert.Equal(t, "BEFORE THE COURSE", result.Phases[0].Title)
	assert.Equal(t, []string{"Book room", "Send invites"}, labels(result.Phases[0]))
	assert.Equal(t, "Phase 2 Delivery", result.Phases[1].Title)
	assert.Equal(t, "Wrap up", result.Phases[2].Title)
	assert.InDelta(t, 0.7, result.Confidence, 0.001)
}

func TestImport_SingleColumnWithoutHeadingsIsLowConfidence(t *testing.T) {
	t.Parallel()

	result, err := Import([][]string{{"Book room"}, {"Send invites"}, {"Collect feedback"}})
	require.NoError(t, err)

	require.Len(t, result.Phases, 1)
	assert.Equal(t, types.DefaultPhaseTitle, result.Phases[0].Title)
	assert.Less(t, result.Confidence, 0.5)
	assert.NotEmpty(t, result.Warnings)
}

func TestImport_EmptyHeadingsAreDroppedWithWarning(t *testing.T) {
	t.Parallel()

	result, err := Import([][]string{{"SETUP"}, {"TEARDOWN"}, {"Pack chairs"}})
	require.NoError(t, err)

	require.Len(t, result.Phases, 1)
	assert.Equal(t, "TEARDOWN", result.Phases[0].Title)
	assert.Contains(t, result.Warnings, `phase "SETUP" has no items, skipped`)
}

func TestImport_Unrecognized(t *testing.T) {
	t.Parallel()

	for name, rows := range map[string][][]string{
		"nil":           nil,
		"blank cells":   {{"", " "}, {}},
		"headings only": {{"SETUP"}, {"TEARDOWN:"}},
		"header only":   {{"Phase", "Item"}},
	} {
		_, err := Import(rows)
		assert.ErrorIs(t, err, ErrUnrecognized, name)
	}
}

func TestImport_RepeatedPhaseIsMerged(t *testing.T) {
	t.Parallel()

	result, err := Import([][]string{
		{"Preparation", "Book room"},
		{"Delivery", "Run theory session"},
		{"preparation", "Print certificates"},
		{"Delivery", "Practical assessment"},
	})
	require.NoError(t, err)

	require.Len(t, result.Phases, 2)
	assert.Equal(t, []string{"Book room", "Print certificates"}, labels(result.Phases[0]))
	assert.Equal(t, []string{"Run theory session", "Practical assessment"}, labels(result.Phases[1]))
	assert.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "more than once")
	assert.NoError(t, types.ValidatePhases(result.Phases))
}
