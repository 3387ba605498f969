package file_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/thicket/internal/adapters/file"
	"github.com/aretw0/thicket/internal/testutils"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/ports"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFileStore_Contract(t *testing.T) {
	ports.RunChoiceStoreContract(t, file.New(t.TempDir()))
}

var _ ports.ChoiceStore = (*file.Store)(nil)

func TestFileStore_Formats(t *testing.T) {
	root := t.TempDir()
	testutils.WriteFiles(t, root, map[string]string{
		"wildcards/color.json":     `["red", "blue"]`,
		"wildcards/color.txt":      "ignored\n",
		"wildcards/mood.yaml":      "- calm\n- value: tense\n  weight: 2\n",
		"wildcards/place.yml":      "[forest]",
		"wildcards/legacy.txt":     "# header\none\ntwo\n",
		"wildcards/notes.md":       "not a wildcard",
		"wildcards/archive/x.json": `["archived"]`,
		"wildcards/nsfw/mood.json": `["sultry"]`,
	})

	store := file.New(root, file.WithConcurrency(2))
	cat, err := store.Load(context.Background(), domain.ScopeShared)
	require.NoError(t, err)
	require.Empty(t, cat.Corrupt)

	assert.Len(t, cat.Wildcards, 4)
	assert.Equal(t, []string{"red", "blue"}, cat.Wildcards["color"].Values(), ".json wins over .txt")
	assert.Equal(t, domain.FormatJSON, cat.Wildcards["color"].Format)
	assert.Equal(t, 2.0, cat.Wildcards["mood"].Choices[1].Weight)
	assert.Equal(t, domain.FormatYAML, cat.Wildcards["place"].Format)
	assert.Equal(t, []string{"one", "two"}, cat.Wildcards["legacy"].Values())
	assert.Equal(t, filepath.Join(root, "wildcards", "legacy.txt"), cat.Wildcards["legacy"].Path)
}

func TestFileStore_CorruptIsolation(t *testing.T) {
	root := t.TempDir()
	testutils.WriteFiles(t, root, map[string]string{
		"wildcards/good.json":      `["ok"]`,
		"wildcards/bad.json":       `["unterminated"`,
		"wildcards/weights.json":   `[{"value": "x", "weight": -3}]`,
		"wildcards/huge.yaml":      "- a\n- value: huge\n  weight: .inf\n",
		"wildcards/mood.json":      `["calm"]`,
		"wildcards/nsfw/mood.json": `{"choices": 5}`,
	})
	store := file.New(root)
	ctx := context.Background()

	cat, err := store.Load(ctx, domain.ScopeShared)
	require.NoError(t, err)
	assert.Contains(t, cat.Wildcards, "good")
	require.Contains(t, cat.Corrupt, "bad")
	require.Contains(t, cat.Corrupt, "weights")
	require.Contains(t, cat.Corrupt, "huge", "an infinite weight would starve every sibling")
	assert.ErrorIs(t, cat.Corrupt["bad"], domain.ErrCorruptWildcard)
	assert.Equal(t, filepath.Join(root, "wildcards", "bad.json"), cat.Corrupt["bad"].Path)

	_, err = store.Get(ctx, domain.WorkflowSFW, "mood")
	require.NoError(t, err)

	_, err = store.Get(ctx, domain.WorkflowNSFW, "mood")
	var cerr *domain.CorruptWildcardError
	require.ErrorAs(t, err, &cerr, "corrupt nsfw file shadows the shared one")
	assert.Equal(t, domain.ScopeNSFW, cerr.Scope)

	corpus, err := store.Snapshot(ctx, domain.WorkflowNSFW)
	require.NoError(t, err)
	assert.False(t, corpus.Has("nothing"))
	assert.True(t, corpus.Has("mood"))
	_, ok := corpus.Get("mood")
	assert.False(t, ok)
}

func TestFileStore_ExternalModification(t *testing.T) {
	root := t.TempDir()
	testutils.WriteFiles(t, root, map[string]string{"wildcards/color.json": `["red"]`})
	store := file.New(root)
	ctx := context.Background()

	first, err := store.Get(ctx, domain.WorkflowSFW, "color")
	require.NoError(t, err)
	again, err := store.Get(ctx, domain.WorkflowSFW, "color")
	require.NoError(t, err)
	assert.Same(t, first, again, "unchanged file is served from cache")

	path := filepath.Join(root, "wildcards", "color.json")
	require.NoError(t, os.WriteFile(path, []byte(`["green", "violet"]`), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	changed, err := store.Get(ctx, domain.WorkflowSFW, "color")
	require.NoError(t, err)
	assert.Equal(t, []string{"green", "violet"}, changed.Values())
	assert.Equal(t, []string{"red"}, first.Values(), "previous snapshot is immutable")

	require.NoError(t, os.Remove(path))
	_, err = store.Get(ctx, domain.WorkflowSFW, "color")
	assert.ErrorIs(t, err, domain.ErrMissingWildcard, "a vanished file is missing, not a crash")
}

func TestFileStore_TextMigration(t *testing.T) {
	root := t.TempDir()
	testutils.WriteFiles(t, root, map[string]string{"wildcards/legacy.txt": "one\ntwo\n"})
	store := file.New(root)
	ctx := context.Background()

	w, err := store.Get(ctx, domain.WorkflowSFW, "legacy")
	require.NoError(t, err)

	edited := w.Clone()
	edited.Choices = append(edited.Choices, domain.Choice{Value: "three", Weight: 1})
	require.NoError(t, store.Save(ctx, edited))

	assert.NoFileExists(t, filepath.Join(root, "wildcards", "legacy.txt"))
	assert.JSONEq(t, `["one", "two", "three"]`, testutils.ReadFile(t, root, "wildcards/legacy.json"))

	got, err := store.Get(ctx, domain.WorkflowSFW, "legacy")
	require.NoError(t, err)
	assert.Equal(t, domain.FormatJSON, got.Format)
	assert.Len(t, got.Choices, 3)
}

func TestFileStore_SaveKeepsYAML(t *testing.T) {
	root := t.TempDir()
	testutils.WriteFiles(t, root, map[string]string{"wildcards/place.yml": "- forest\n"})
	store := file.New(root)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Wildcard{
		Name:    "place",
		Scope:   domain.ScopeShared,
		Choices: []domain.Choice{{Value: "desert", Weight: 1}},
	}))
	assert.Equal(t, "- desert\n", testutils.ReadFile(t, root, "wildcards/place.yml"))
}

func TestFileStore_MissingHint(t *testing.T) {
	root := t.TempDir()
	testutils.WriteFiles(t, root, map[string]string{
		"wildcards/color.json":  `["red"]`,
		"wildcards/lights.json": `["neon"]`,
	})
	store := file.New(root)

	_, err := store.Get(context.Background(), domain.WorkflowSFW, "colr")
	require.ErrorIs(t, err, domain.ErrMissingWildcard)
	assert.Contains(t, errors.FlattenHints(err), `"color"`)
}

func TestFileStore_Archive(t *testing.T) {
	root := t.TempDir()
	testutils.WriteFiles(t, root, map[string]string{
		"wildcards/nsfw/old.json":         `["x"]`,
		"wildcards/nsfw/archive/old.json": `["previous"]`,
	})
	store := file.New(root)
	ctx := context.Background()

	require.NoError(t, store.Archive(ctx, "old", domain.ScopeNSFW))
	assert.NoFileExists(t, filepath.Join(root, "wildcards", "nsfw", "old.json"))
	assert.JSONEq(t, `["previous"]`, testutils.ReadFile(t, root, "wildcards/nsfw/archive/old.json"), "existing archive is kept")

	matches, err := filepath.Glob(filepath.Join(root, "wildcards", "nsfw", "archive", "old-*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFileStore_ConcurrentReaders(t *testing.T) {
	root := t.TempDir()
	files := make(map[string]string)
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files["wildcards/"+n+".json"] = `["` + n + `1", "` + n + `2"]`
	}
	testutils.WriteFiles(t, root, files)
	store := file.New(root, file.WithConcurrency(3))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				store.InvalidateAll()
			}
			corpus, err := store.Snapshot(ctx, domain.WorkflowSFW)
			assert.NoError(t, err)
			assert.Len(t, corpus.Names(), 8)
		}(i)
	}
	wg.Wait()
}
