package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"tabcopy/pkg/models"
)

type FilterMode int

const (
	FilterModeNone FilterMode = iota
	FilterModeExact
	FilterModeContains
	FilterModeRegex
	FilterModeFuzzy
)

type StringFilter struct {
	Pattern string
	Mode    FilterMode
	regex   *regexp.Regexp
}

func NewStringFilter(pattern string, mode FilterMode) (*StringFilter, error) {
	f := &StringFilter{
		Pattern: pattern,
		Mode:    mode,
	}

	if mode == FilterModeRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern '%s': %w", pattern, err)
		}
		f.regex = re
	}

	return f, nil
}

func (f *StringFilter) Match(s string) bool {
	if f.Mode == FilterModeNone {
		return true
	}

	switch f.Mode {
	case FilterModeExact:
		return strings.EqualFold(s, f.Pattern)
	case FilterModeContains:
		return strings.Contains(strings.ToLower(s), strings.ToLower(f.Pattern))
	case FilterModeRegex:
		return f.regex != nil && f.regex.MatchString(s)
	case FilterModeFuzzy:
		return FuzzyMatch(f.Pattern, s)
	default:
		return true
	}
}

func FuzzyMatch(pattern, text string) bool {
	if pattern == "" {
		return true
	}
	if text == "" {
		return false
	}

	pattern = strings.ToLower(pattern)
	text = strings.ToLower(text)

	return fuzzyMatchRecursive(pattern, text, 0, 0, 0)
}

func fuzzyMatchRecursive(pattern, text string, pIdx, tIdx, consecutiveMatches int) bool {
	if pIdx >= len(pattern) {
		return true
	}
	if tIdx >= len(text) {
		return false
	}

	pChar := rune(pattern[pIdx])
	tChar := rune(text[tIdx])

	if pChar == tChar {
		remainingChars := len(text) - tIdx - 1
		remainingPattern := len(pattern) - pIdx - 1

		if remainingPattern == 0 {
			return true
		}

		if remainingChars >= remainingPattern {
			return fuzzyMatchRecursive(pattern, text, pIdx+1, tIdx+1, consecutiveMatches+1)
		}
	}

	return fuzzyMatchRecursive(pattern, text, pIdx, tIdx+1, 0)
}

func FuzzyMatchRanked(pattern, text string, threshold float64) bool {
	if pattern == "" {
		return true
	}
	if text == "" {
		return false
	}

	distance := LevenshteinDistance(pattern, text)
	maxLen := max(len(pattern), len(text))

	if maxLen == 0 {
		return true
	}

	similarity := 1.0 - float64(distance)/float64(maxLen)
	return similarity >= threshold
}

func LevenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	previousRow := make([]int, len(s2)+1)
	currentRow := make([]int, len(s2)+1)

	for i := 0; i <= len(s2); i++ {
		previousRow[i] = i
	}

	for i := 0; i < len(s1); i++ {
		currentRow[0] = i + 1

		for j := 0; j < len(s2); j++ {
			cost := 1
			if unicode.ToLower(rune(s1[i])) == unicode.ToLower(rune(s2[j])) {
				cost = 0
			}

			deletion := currentRow[j] + 1
			insertion := previousRow[j+1] + 1
			substitution := previousRow[j] + cost

			currentRow[j+1] = min(min(deletion, insertion), substitution)
		}

		previousRow, currentRow = currentRow, previousRow
	}

	return previousRow[len(s2)]
}

// ParseMode maps a --match flag value to a FilterMode.
func ParseMode(s string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "contains":
		return FilterModeContains, nil
	case "exact":
		return FilterModeExact, nil
	case "regex":
		return FilterModeRegex, nil
	case "fuzzy":
		return FilterModeFuzzy, nil
	default:
		return FilterModeNone, fmt.Errorf("unknown match mode '%s' (want exact, contains, regex or fuzzy)", s)
	}
}

// ModeNames lists the accepted --match values.
func ModeNames() []string {
	return []string{"exact", "contains", "regex", "fuzzy"}
}

// TableFilter selects tables by position and caption. An empty filter
// selects every table.
type TableFilter struct {
	Indices []int
	Caption *StringFilter
}

// NewTableFilter builds a filter from --table indices and a --caption
// pattern interpreted with mode.
func NewTableFilter(indices []int, caption string, mode FilterMode) (*TableFilter, error) {
	for _, idx := range indices {
		if idx < 0 {
			return nil, fmt.Errorf("table index must not be negative: %d", idx)
		}
	}

	f := &TableFilter{Indices: indices}
	if caption != "" {
		sf, err := NewStringFilter(caption, mode)
		if err != nil {
			return nil, err
		}
		f.Caption = sf
	}
	return f, nil
}

// IsEmpty reports whether the filter selects everything.
func (f *TableFilter) IsEmpty() bool {
	return f == nil || (len(f.Indices) == 0 && f.Caption == nil)
}

// Matches reports whether the table at index with the given caption is
// selected.
func (f *TableFilter) Matches(index int, caption string) bool {
	if f.IsEmpty() {
		return true
	}

	if len(f.Indices) > 0 {
		found := false
		for _, idx := range f.Indices {
			if idx == index {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.Caption != nil && !f.Caption.Match(caption) {
		return false
	}

	return true
}

// MatchesInfo applies the filter to a table listing entry.
func (f *TableFilter) MatchesInfo(info models.TableInfo) bool {
	return f.Matches(info.Index, info.Caption)
}

// Closest returns the candidate most similar to pattern, for "did you mean"
// hints. It returns "" when nothing reaches threshold.
func Closest(pattern string, candidates []string, threshold float64) string {
	best := ""
	bestScore := -1.0
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if !FuzzyMatchRanked(pattern, c, threshold) {
			continue
		}
		maxLen := max(len(pattern), len(c))
		score := 1.0 - float64(LevenshteinDistance(pattern, c))/float64(maxLen)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}
