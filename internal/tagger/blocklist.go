package tagger

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Blocklist holds URL patterns that must never be crawled or tagged. It
// doubles as a frontier offer policy, so blocked URLs are rejected before
// they consume crawl budget.
type Blocklist struct {
	patterns []*regexp.Regexp
}

// blocklistFile is the on-disk YAML shape:
//
//	patterns:
//	  - 'badsite\.example'
//	  - '\.onion/admin'
type blocklistFile struct {
	Patterns []string `yaml:"patterns"`
}

// NewBlocklist compiles the given regular expression patterns.
func NewBlocklist(patterns []string) (*Blocklist, error) {
	b := &Blocklist{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid blocklist pattern %q: %w", p, err)
		}
		b.patterns = append(b.patterns, re)
	}
	return b, nil
}

// LoadBlocklist reads a YAML blocklist file and compiles its patterns.
func LoadBlocklist(path string) (*Blocklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blocklist %s: %w", path, err)
	}

	var file blocklistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse blocklist %s: %w", path, err)
	}

	return NewBlocklist(file.Patterns)
}

// Blocked reports whether any pattern matches the URL.
func (b *Blocklist) Blocked(rawURL string) bool {
	for _, re := range b.patterns {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// Allow implements the frontier's offer policy interface: a URL is allowed
// when no pattern blocks it.
func (b *Blocklist) Allow(rawURL string) bool {
	return !b.Blocked(rawURL)
}
