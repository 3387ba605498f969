package ports

import (
	"context"
	"testing"

	"github.com/aretw0/thicket/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunChoiceStoreContract runs a suite of tests to verify that a ChoiceStore implementation
// adheres to the defined interface contract. The store must start empty.
func RunChoiceStoreContract(t *testing.T, store ChoiceStore) {
	ctx := context.Background()

	wildcard := func(name string, scope domain.Scope, values ...string) *domain.Wildcard {
		w := &domain.Wildcard{Name: name, Scope: scope, Format: domain.FormatJSON}
		for _, v := range values {
			w.Choices = append(w.Choices, domain.Choice{Value: v, Weight: 1})
		}
		return w
	}

	t.Run("Save and Get", func(t *testing.T) {
		w := wildcard("color", domain.ScopeShared, "red", "blue")
		w.Choices[1].Requires = map[string]string{"mood": "calm"}
		require.NoError(t, store.Save(ctx, w), "Save should not return error")

		got, err := store.Get(ctx, domain.WorkflowSFW, "color")
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, []string{"red", "blue"}, got.Values())
		assert.Equal(t, map[string]string{"mood": "calm"}, got.Choices[1].Requires)
		assert.Equal(t, domain.ScopeShared, got.Scope)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, domain.WorkflowSFW, "non-existent")
		assert.ErrorIs(t, err, domain.ErrMissingWildcard)
	})

	t.Run("Scope Overlay", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, wildcard("mood", domain.ScopeShared, "calm")))
		require.NoError(t, store.Save(ctx, wildcard("mood", domain.ScopeNSFW, "sultry")))
		require.NoError(t, store.Save(ctx, wildcard("secret", domain.ScopeNSFW, "hidden")))

		sfw, err := store.Get(ctx, domain.WorkflowSFW, "mood")
		require.NoError(t, err)
		assert.Equal(t, []string{"calm"}, sfw.Values())

		nsfw, err := store.Get(ctx, domain.WorkflowNSFW, "mood")
		require.NoError(t, err)
		assert.Equal(t, []string{"sultry"}, nsfw.Values())

		_, err = store.Get(ctx, domain.WorkflowSFW, "secret")
		assert.ErrorIs(t, err, domain.ErrMissingWildcard, "nsfw wildcards are invisible to the sfw workflow")
	})

	t.Run("Load and Snapshot", func(t *testing.T) {
		cat, err := store.Load(ctx, domain.ScopeNSFW)
		require.NoError(t, err)
		assert.Equal(t, domain.ScopeNSFW, cat.Scope)
		assert.Contains(t, cat.Wildcards, "mood")
		assert.Contains(t, cat.Wildcards, "secret")
		assert.NotContains(t, cat.Wildcards, "color")

		corpus, err := store.Snapshot(ctx, domain.WorkflowNSFW)
		require.NoError(t, err)
		assert.Equal(t, []string{"color", "mood", "secret"}, corpus.Names())
		mood, _ := corpus.Get("mood")
		assert.Equal(t, domain.ScopeNSFW, mood.Scope)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, wildcard("color", domain.ScopeShared, "green")))
		got, err := store.Get(ctx, domain.WorkflowSFW, "color")
		require.NoError(t, err)
		assert.Equal(t, []string{"green"}, got.Values())
	})

	t.Run("Invalidate Keeps Data", func(t *testing.T) {
		store.Invalidate("color", domain.ScopeShared)
		got, err := store.Get(ctx, domain.WorkflowSFW, "color")
		require.NoError(t, err)
		assert.Equal(t, []string{"green"}, got.Values())

		store.InvalidateAll()
		_, err = store.Get(ctx, domain.WorkflowNSFW, "secret")
		require.NoError(t, err)
	})

	t.Run("Invalid Name", func(t *testing.T) {
		err := store.Save(ctx, wildcard("../escape", domain.ScopeShared, "x"))
		assert.ErrorIs(t, err, domain.ErrInvalidName)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, wildcard("doomed", domain.ScopeShared, "x")))
		require.NoError(t, store.Delete(ctx, "doomed", domain.ScopeShared), "Delete should not return error")

		_, err := store.Get(ctx, domain.WorkflowSFW, "doomed")
		assert.ErrorIs(t, err, domain.ErrMissingWildcard, "Get after Delete should return ErrMissingWildcard")

		assert.NoError(t, store.Delete(ctx, "doomed", domain.ScopeShared), "deleting twice is not an error")
	})

	t.Run("Archive", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, wildcard("old", domain.ScopeShared, "x")))
		require.NoError(t, store.Archive(ctx, "old", domain.ScopeShared))

		_, err := store.Get(ctx, domain.WorkflowSFW, "old")
		assert.ErrorIs(t, err, domain.ErrMissingWildcard)

		cat, err := store.Load(ctx, domain.ScopeShared)
		require.NoError(t, err)
		assert.NotContains(t, cat.Wildcards, "old")

		assert.ErrorIs(t, store.Archive(ctx, "old", domain.ScopeShared), domain.ErrMissingWildcard)
	})
}
