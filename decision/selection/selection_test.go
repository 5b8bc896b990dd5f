package selection

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmperrors "saas-compare/pkg/errors"
)

func TestAddEnforcesPolicy(t *testing.T) {
	ctx := context.Background()
	sel := NewSelector(NewMemoryStore())
	anon := DefaultLimits().PolicyFor(false)

	ids, err := sel.Add(ctx, "s1", anon, "slack", "teams")
	require.NoError(t, err)
	assert.Equal(t, []string{"slack", "teams"}, ids)

	ids, err = sel.Add(ctx, "s1", anon, "teams", "zoom")
	require.NoError(t, err)
	assert.Equal(t, []string{"slack", "teams", "zoom"}, ids)

	_, err = sel.Add(ctx, "s1", anon, "notion")
	assert.ErrorIs(t, err, cmperrors.ErrSelectionLimit)

	ids, err = sel.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"slack", "teams", "zoom"}, ids, "rejected add leaves the selection unchanged")

	ids, err = sel.Add(ctx, "s1", DefaultLimits().PolicyFor(true), "notion")
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}

func TestSetRemoveClear(t *testing.T) {
	ctx := context.Background()
	sel := NewSelector(NewMemoryStore())
	policy := Policy{MaxSelectable: 2}

	_, err := sel.Set(ctx, "s", policy, []string{"a", "b", "c"})
	assert.ErrorIs(t, err, cmperrors.ErrSelectionLimit)

	ids, err := sel.Set(ctx, "s", policy, []string{"a", "", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	ids, err = sel.Remove(ctx, "s", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	require.NoError(t, sel.Clear(ctx, "s"))
	ids, err = sel.Get(ctx, "s")
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestEmptySessionRejected(t *testing.T) {
	sel := NewSelector(NewMemoryStore())
	_, err := sel.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptySession)
	_, err = sel.Add(context.Background(), "", Policy{}, "a")
	assert.ErrorIs(t, err, ErrEmptySession)
}

func TestZeroPolicyIsUncapped(t *testing.T) {
	assert.NoError(t, Policy{}.Check(1000))
	assert.Error(t, Policy{MaxSelectable: 1}.Check(2))
}

func TestConcurrentAddsRespectCap(t *testing.T) {
	ctx := context.Background()
	sel := NewSelector(NewMemoryStore())
	policy := Policy{MaxSelectable: 5}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = sel.Add(ctx, "shared", policy, fmt.Sprintf("e%d", i))
		}(i)
	}
	wg.Wait()

	ids, err := sel.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, ids, 5)
}
