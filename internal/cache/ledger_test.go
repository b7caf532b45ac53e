package cache

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilequest/missionengine/pkg/core"
)

func TestContributionLedger_NewContributionLedger(t *testing.T) {
	l := NewContributionLedger()

	require.NotNil(t, l)
	assert.NotNil(t, l.tokens)
	assert.Equal(t, 0, l.Len())
}

func TestContributionLedger_MarkAndContributed(t *testing.T) {
	l := NewContributionLedger()
	token := core.ItemToken(uuid.NewString())

	assert.False(t, l.Contributed(token))
	l.Mark(token)
	assert.True(t, l.Contributed(token))

	l.Mark(token)
	assert.Equal(t, 1, l.Len(), "marking twice keeps one entry")
}

func TestContributionLedger_IgnoresEmptyToken(t *testing.T) {
	l := NewContributionLedger()

	l.Mark("")
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Contributed(""))
}

func TestContributionLedger_RestoreAndTokens(t *testing.T) {
	l := NewContributionLedger()
	l.Mark("stale")

	l.Restore([]string{"b", "a", ""})

	assert.Equal(t, []string{"a", "b"}, l.Tokens())
	assert.False(t, l.Contributed("stale"))

	l.Reset()
	assert.Empty(t, l.Tokens())
}

func TestContributionLedger_ConcurrentAccess(t *testing.T) {
	l := NewContributionLedger()
	var wg sync.WaitGroup

	for range 100 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Mark(core.ItemToken(uuid.NewString()))
		}()
		go func() {
			defer wg.Done()
			_ = l.Tokens()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, l.Len())
}
