// Package importer turns spreadsheet rows into checklist phases. It guesses
// structure, so every result carries a confidence score and the checklist
// engine never sees anything that did not pass phase validation.
package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"trainingdesk/pkg/types"
)

var ErrUnrecognized = errors.New("spreadsheet layout not recognized")

type Layout string

const (
	LayoutTwoColumn    Layout = "two-column"
	LayoutSingleColumn Layout = "single-column"
)

type Result struct {
	Phases     []types.Phase
	Confidence float64
	Layout     Layout
	Warnings   []string
}

func (r *Result) ItemCount() int {
	n := 0
	for _, p := range r.Phases {
		n += len(p.Items)
	}
	return n
}

var (
	numberedHeading = regexp.MustCompile(`(?i)^(phase|step|stage|part|section)\s*\d+\b`)
	listMarker      = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s+`)

	phaseHeaders = []string{"phase", "stage", "section", "step group"}
	itemHeaders  = []string{"item", "task", "step", "label", "activity", "checklist"}
)

// Import reads rows as either a phase/item two column sheet or a single
// column list with heading rows. Rows are cell text as read from the sheet.
func Import(rows [][]string) (*Result, error) {
	rows = cleanRows(rows)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet is empty", ErrUnrecognized)
	}

	headerFound := false
	if isHeaderRow(rows[0]) {
		rows = rows[1:]
		headerFound = true
	}

	var result *Result
	if twoColumnShare(rows) >= 0.6 {
		result = importTwoColumn(rows)
	} else {
		result = importSingleColumn(rows)
	}

	if headerFound {
		result.Confidence += 0.1
	}
	result.Confidence = clamp(result.Confidence)

	if result.ItemCount() == 0 {
		return nil, fmt.Errorf("%w: no checklist items found", ErrUnrecognized)
	}

	phases, err := types.NormalizePhases(result.Phases)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognized, err)
	}
	result.Phases = phases

	return result, nil
}

func cleanRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		last := -1
		for i, cell := range row {
			cells[i] = strings.TrimSpace(cell)
			if cells[i] != "" {
				last = i
			}
		}
		if last < 0 {
			continue
		}
		out = append(out, cells[:last+1])
	}
	return out
}

func isHeaderRow(row []string) bool {
	if len(row) < 2 {
		return false
	}
	first, second := strings.ToLower(row[0]), strings.ToLower(row[1])
	return matchesAny(first, phaseHeaders) && matchesAny(second, itemHeaders)
}

func matchesAny(s string, words []string) bool {
	for _, w := range words {
		if s == w || s == w+"s" {
			return true
		}
	}
	return false
}

// twoColumnShare is the fraction of rows that use the second column.
func twoColumnShare(rows [][]string) float64 {
	if len(rows) == 0 {
		return 0
	}
	n := 0
	for _, row := range rows {
		if len(row) >= 2 && row[1] != "" {
			n++
		}
	}
	return float64(n) / float64(len(rows))
}

// importTwoColumn reads column A as phase and column B as item. A blank
// phase cell continues the previous phase, as merged cells export that way.
func importTwoColumn(rows [][]string) *Result {
	result := &Result{Layout: LayoutTwoColumn, Confidence: 0.8}

	current := -1
	carried := 0
	for i, row := range rows {
		phase := cleanHeading(row[0])
		item := ""
		if len(row) >= 2 {
			item = cleanItem(row[1])
		}
		if len(row) > 2 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: ignored %d extra column(s)", i+1, len(row)-2))
		}

		switch {
		case phase != "" && (current < 0 || result.Phases[current].Title != phase):
			result.Phases = append(result.Phases, types.Phase{Title: phase})
			current = len(result.Phases) - 1
		case phase == "":
			carried++
			if current < 0 {
				result.Phases = append(result.Phases, types.Phase{Title: types.DefaultPhaseTitle})
				current = 0
				result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: item before any phase, grouped under %q", i+1, types.DefaultPhaseTitle))
				result.Confidence -= 0.1
			}
		}

		if item != "" {
			result.Phases[current].Items = append(result.Phases[current].Items, types.ChecklistItem{Label: item})
		}
	}

	if len(rows) > 0 && float64(carried)/float64(len(rows)) > 0.5 {
		result.Confidence -= 0.1
	}

	result.Phases = mergeRepeatedPhases(result, dropEmptyPhases(result))
	return result
}

// importSingleColumn treats heading-like rows as phase titles and everything
// else as items of the latest phase.
func importSingleColumn(rows [][]string) *Result {
	result := &Result{Layout: LayoutSingleColumn, Confidence: 0.7}

	current := -1
	headings := 0
	for i, row := range rows {
		text := firstCell(row)
		if text == "" {
			continue
		}

		if looksLikeHeading(text) {
			headings++
			result.Phases = append(result.Phases, types.Phase{Title: cleanHeading(text)})
			current = len(result.Phases) - 1
			continue
		}

		if current < 0 {
			result.Phases = append(result.Phases, types.Phase{Title: types.DefaultPhaseTitle})
			current = 0
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: item before any heading, grouped under %q", i+1, types.DefaultPhaseTitle))
			result.Confidence -= 0.2
		}
		result.Phases[current].Items = append(result.Phases[current].Items, types.ChecklistItem{Label: cleanItem(text)})
	}

	if headings == 0 {
		result.Warnings = append(result.Warnings, "no phase headings found")
		result.Confidence = 0.3
	}

	result.Phases = mergeRepeatedPhases(result, dropEmptyPhases(result))
	return result
}

func dropEmptyPhases(result *Result) []types.Phase {
	out := make([]types.Phase, 0, len(result.Phases))
	for _, p := range result.Phases {
		if len(p.Items) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("phase %q has no items, skipped", p.Title))
			result.Confidence -= 0.1
			continue
		}
		out = append(out, p)
	}
	return out
}

func firstCell(row []string) string {
	for _, cell := range row {
		if cell != "" {
			return cell
		}
	}
	return ""
}

func looksLikeHeading(s string) bool {
	if strings.HasSuffix(s, ":") {
		return true
	}
	if numberedHeading.MatchString(s) {
		return true
	}
	return isAllCaps(s)
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	// skip acronyms like "CPR"
	return letters >= 4
}

func cleanHeading(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ":"))
}

func cleanItem(s string) string {
	return strings.TrimSpace(listMarker.ReplaceAllString(s, ""))
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// mergeRepeatedPhases folds a phase title seen again later in the sheet into
// its first occurrence, keeping item order.
func mergeRepeatedPhases(result *Result, phases []types.Phase) []types.Phase {
	out := make([]types.Phase, 0, len(phases))
	index := make(map[string]int, len(phases))
	for _, p := range phases {
		key := strings.ToLower(p.Title)
		if i, ok := index[key]; ok {
			out[i].Items = append(out[i].Items, p.Items...)
			result.Warnings = append(result.Warnings, fmt.Sprintf("phase %q appears more than once, items merged", p.Title))
			result.Confidence -= 0.1
			continue
		}
		index[key] = len(out)
		out = append(out, p)
	}
	return out
}
