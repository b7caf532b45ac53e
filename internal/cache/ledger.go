package cache

import (
	"sort"
	"sync"

	"github.com/tilequest/missionengine/pkg/core"
)

// ContributionLedger remembers which physical items have already counted
// toward mission progress. A token contributes at most once in its lifetime.
type ContributionLedger struct {
	mu     sync.RWMutex
	tokens map[core.ItemToken]struct{}
}

// NewContributionLedger creates an empty ledger.
func NewContributionLedger() *ContributionLedger {
	return &ContributionLedger{
		tokens: make(map[core.ItemToken]struct{}),
	}
}

// Contributed reports whether token has already counted.
func (l *ContributionLedger) Contributed(token core.ItemToken) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.tokens[token]
	return ok
}

// Mark records token as having counted. Empty tokens are ignored.
func (l *ContributionLedger) Mark(token core.ItemToken) {
	if token == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[token] = struct{}{}
}

// Tokens returns every recorded token in sorted order.
func (l *ContributionLedger) Tokens() []string {
	l.mu.RLock()
	out := make([]string, 0, len(l.tokens))
	for t := range l.tokens {
		out = append(out, string(t))
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Restore replaces the ledger contents with tokens.
func (l *ContributionLedger) Restore(tokens []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = make(map[core.ItemToken]struct{}, len(tokens))
	for _, t := range tokens {
		if t != "" {
			l.tokens[core.ItemToken(t)] = struct{}{}
		}
	}
}

// Len returns the number of recorded tokens.
func (l *ContributionLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tokens)
}

// Reset forgets every token.
func (l *ContributionLedger) Reset() {
	l.Restore(nil)
}
