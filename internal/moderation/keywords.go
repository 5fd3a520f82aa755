package moderation

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var linkPattern = regexp.MustCompile(`https?://\S+`)

// KeywordFilter flags texts containing a blocked keyword or an http(s) link.
type KeywordFilter struct {
	path string

	mu       sync.RWMutex
	keywords []string
}

// NewKeywordFilter returns a filter over the given keywords, lowercased.
func NewKeywordFilter(keywords ...string) *KeywordFilter {
	f := &KeywordFilter{}
	f.set(keywords)
	return f
}

// LoadKeywordFilter reads one keyword per line from path. A missing file is
// created empty.
func LoadKeywordFilter(path string) (*KeywordFilter, error) {
	f := &KeywordFilter{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload re-reads the keyword file. It is a no-op for filters without a file.
func (f *KeywordFilter) Reload() error {
	if f.path == "" {
		return nil
	}

	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return fmt.Errorf("failed to create keyword directory: %w", err)
		}
		if err := os.WriteFile(f.path, nil, 0o644); err != nil {
			return fmt.Errorf("failed to create keyword file: %w", err)
		}
		f.set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open keyword file: %w", err)
	}
	defer file.Close()

	var keywords []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		keywords = append(keywords, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read keyword file: %w", err)
	}
	f.set(keywords)
	return nil
}

func (f *KeywordFilter) set(raw []string) {
	seen := make(map[string]struct{}, len(raw))
	keywords := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keywords = append(keywords, k)
	}

	f.mu.Lock()
	f.keywords = keywords
	f.mu.Unlock()
}

// Len returns the number of loaded keywords.
func (f *KeywordFilter) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.keywords)
}

// Flagged reports whether text should be removed.
func (f *KeywordFilter) Flagged(text string) bool {
	if text == "" {
		return false
	}
	if linkPattern.MatchString(text) {
		return true
	}

	lower := strings.ToLower(text)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, k := range f.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
