package loam_test

import (
	"context"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	loamAdapter "github.com/aretw0/thicket/pkg/adapters/loam"
	"github.com/aretw0/thicket/internal/testutils"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, files map[string]string) (string, *loamAdapter.Library) {
	t.Helper()
	dir, repo := testutils.SetupTestRepo(t, loam.WithVersioning(false))
	testutils.WriteFiles(t, dir, files)
	return dir, loamAdapter.New(dir, loam.NewTypedRepository[loamAdapter.TemplateMetadata](repo))
}

func TestLibrary_Contract(t *testing.T) {
	_, lib := setup(t, nil)
	tests.TemplateStoreContractTest(t, lib)
}

func TestLibrary_Templates(t *testing.T) {
	_, lib := setup(t, map[string]string{
		"sfw/portrait.md": `---
title: Portrait
tags: [people]
---
a __color__ portrait`,
		"nsfw/night.txt":   "__!mood__ night\n",
		"misc/scene.md":    "---\nworkflow: nsfw\n---\n__scene__",
		"plain.txt":        "just __color__",
		"archive/old.txt":  "__gone__",
	})
	ctx := context.Background()

	all, err := lib.Templates(ctx, "")
	require.NoError(t, err)
	var names []string
	for _, d := range all {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"misc/scene", "nsfw/night", "plain", "sfw/portrait"}, names)

	nsfw, err := lib.Templates(ctx, domain.WorkflowNSFW)
	require.NoError(t, err)
	require.Len(t, nsfw, 2)
	assert.Equal(t, "misc/scene", nsfw[0].Name, "front matter workflow wins over the path")

	portrait, err := lib.Template(ctx, "sfw/portrait")
	require.NoError(t, err)
	assert.Equal(t, "a __color__ portrait", portrait.Text)
	assert.Equal(t, "Portrait", portrait.Title)
	assert.Equal(t, []string{"people"}, portrait.Tags)
	assert.Equal(t, domain.WorkflowSFW, portrait.Workflow)

	night, err := lib.Template(ctx, "nsfw/night")
	require.NoError(t, err)
	assert.Equal(t, "__!mood__ night", night.Text)
	assert.Equal(t, domain.WorkflowNSFW, night.Workflow)

	_, err = lib.Template(ctx, "archive/old")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
	_, err = lib.Template(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestLibrary_Collision(t *testing.T) {
	_, lib := setup(t, map[string]string{
		"look.md":  "---\ntitle: a\n---\n__a__",
		"look.txt": "__b__",
	})
	_, err := lib.Templates(context.Background(), "")
	assert.ErrorContains(t, err, "collision detected")
}

func TestLibrary_PlainTextRoundTrip(t *testing.T) {
	dir, lib := setup(t, map[string]string{"sfw/look.txt": "a __color__ look"})
	ctx := context.Background()

	require.NoError(t, lib.SaveTemplate(ctx, domain.TemplateDoc{Name: "sfw/look", Text: "a __hue__ look"}))
	assert.Equal(t, "a __hue__ look", testutils.ReadFile(t, dir, "sfw/look.txt"), "plain text stays plain text")

	require.NoError(t, lib.ArchiveTemplate(ctx, "sfw/look"))
	assert.Equal(t, "a __hue__ look", testutils.ReadFile(t, dir, "archive/sfw/look.txt"))
	_, err := lib.Template(ctx, "sfw/look")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	assert.ErrorIs(t, lib.SaveTemplate(ctx, domain.TemplateDoc{Name: "archive/x"}), domain.ErrInvalidName)
}

// Documents written straight through the repository are visible to the library.
func TestLibrary_RepositoryDocuments(t *testing.T) {
	dir, repo := testutils.SetupTestRepo(t, loam.WithVersioning(false))
	require.NoError(t, repo.Save(context.Background(), core.Document{
		ID:      "sfw/street.md",
		Content: "---\ntitle: Street\n---\n__weather__ street",
	}))

	lib := loamAdapter.New(dir, loam.NewTypedRepository[loamAdapter.TemplateMetadata](repo))
	doc, err := lib.Template(context.Background(), "sfw/street")
	require.NoError(t, err)
	assert.Equal(t, "__weather__ street", doc.Text)
}
