package stats

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidTopic reports whether a message text can be counted as a topic.
// Lengths are measured in runes.
func IsValidTopic(text string) bool {
	cleaned := strings.TrimSpace(text)
	n := utf8.RuneCountInString(cleaned)
	if n < 2 || strings.HasPrefix(cleaned, "/") {
		return false
	}

	hasLetter := false
	distinct := make(map[rune]struct{}, 4)
	for _, r := range cleaned {
		if unicode.IsLetter(r) {
			hasLetter = true
		}
		distinct[r] = struct{}{}
	}
	if !hasLetter {
		return false
	}
	return n <= 4 || len(distinct) > 2
}

type topicCount struct {
	text  string
	count int64
}

// countTopics counts exact texts that pass IsValidTopic and returns the top
// limit by frequency. Ties keep first-seen order.
func countTopics(texts []string, limit int) []topicCount {
	index := make(map[string]int)
	var counts []topicCount
	for _, t := range texts {
		if !IsValidTopic(t) {
			continue
		}
		if i, ok := index[t]; ok {
			counts[i].count++
			continue
		}
		index[t] = len(counts)
		counts = append(counts, topicCount{text: t, count: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool { return counts[i].count > counts[j].count })
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
