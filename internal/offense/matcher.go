package offense

import (
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// keywordMatcher pairs an Aho-Corasick automaton with the category each
// pattern belongs to, so one scan of a description yields every candidate
// category at once.
type keywordMatcher struct {
	matcher    *ahocorasick.Matcher
	categories []Category
}

// exactIndex maps each known offense description to its category, with
// precedence fixed by exactMatchOrder for descriptions listed twice.
var exactIndex = buildExactIndex()

var matcher = buildKeywordMatcher()

func buildExactIndex() map[string]Category {
	index := make(map[string]Category)
	for _, category := range exactMatchOrder {
		for _, description := range offenseTypes[category] {
			if _, exists := index[description]; !exists {
				index[description] = category
			}
		}
	}
	return index
}

// buildKeywordMatcher compiles every category keyword into one automaton.
// Patterns are lowercased; Match input must be lowercased to agree.
func buildKeywordMatcher() *keywordMatcher {
	var patterns []string
	var categories []Category
	for _, category := range keywordMatchOrder {
		for _, keyword := range categoryKeywords[category] {
			patterns = append(patterns, strings.ToLower(keyword))
			categories = append(categories, category)
		}
	}
	return &keywordMatcher{
		matcher:    ahocorasick.NewStringMatcher(patterns),
		categories: categories,
	}
}

// categorize returns the earliest category in keywordMatchOrder whose
// keywords appear in the description, or false when nothing hits.
func (m *keywordMatcher) categorize(description string) (Category, bool) {
	hits := m.matcher.Match([]byte(strings.ToLower(description)))
	if len(hits) == 0 {
		return "", false
	}

	matched := make(map[Category]bool, len(hits))
	for _, hit := range hits {
		matched[m.categories[hit]] = true
	}
	for _, category := range keywordMatchOrder {
		if matched[category] {
			return category, true
		}
	}
	return "", false
}

// Categorize resolves an offense description to a category: exact table
// match first, then keyword scan. Descriptions matching neither report
// CategoryOther with ok false.
func Categorize(description string) (Category, bool) {
	description = strings.TrimSpace(description)
	if description == "" {
		return CategoryOther, false
	}

	if category, ok := exactIndex[strings.ToUpper(description)]; ok {
		return category, true
	}
	if category, ok := matcher.categorize(description); ok {
		return category, true
	}
	return CategoryOther, false
}

// OffensesFor returns the literal offense descriptions for a category tag,
// or nil when the tag is unknown. The slice is a copy; callers may mutate.
func OffensesFor(tag string) []string {
	category, ok := ParseCategory(tag)
	if !ok {
		return nil
	}
	return append([]string(nil), offenseTypes[category]...)
}

// SearchByKeyword returns every known offense description containing the
// keyword, case-insensitively, in sorted order.
func SearchByKeyword(keyword string) []string {
	keyword = strings.ToUpper(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil
	}

	seen := make(map[string]bool)
	var matches []string
	for _, descriptions := range offenseTypes {
		for _, description := range descriptions {
			if seen[description] {
				continue
			}
			if strings.Contains(strings.ToUpper(description), keyword) {
				seen[description] = true
				matches = append(matches, description)
			}
		}
	}
	sort.Strings(matches)
	return matches
}
