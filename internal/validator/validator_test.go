package validator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/thicket/internal/depgraph"
	"github.com/aretw0/thicket/internal/validator"
	"github.com/aretw0/thicket/pkg/adapters/memory"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/scopelock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corpusOf(ws ...*domain.Wildcard) *domain.Corpus {
	c := domain.MergeCatalogs(domain.WorkflowSFW)
	for _, w := range ws {
		if w.Scope == "" {
			w.Scope = domain.ScopeShared
		}
		c.Wildcards[w.Name] = w
	}
	return c
}

func choices(values ...string) []domain.Choice {
	out := make([]domain.Choice, len(values))
	for i, v := range values {
		out[i] = domain.Choice{Value: v}
	}
	return out
}

func kinds(diags []domain.Diagnostic) []domain.DiagnosticKind {
	out := make([]domain.DiagnosticKind, len(diags))
	for i, d := range diags {
		out[i] = d.Kind
	}
	return out
}

func TestValidate_Clean(t *testing.T) {
	corpus := corpusOf(
		&domain.Wildcard{Name: "time", Choices: choices("day", "night")},
		&domain.Wildcard{Name: "lighting", Choices: []domain.Choice{
			{Value: "soft", Requires: map[string]string{"time": "day"}},
			{Value: "neon", Requires: map[string]string{"time": "night"}},
		}},
	)
	diags := validator.Validate(depgraph.Build(corpus), domain.TemplateDoc{Name: "sfw/street", Text: "__time__, __lighting__"})
	assert.Empty(t, diags)
}

func TestValidate_CyclicInclude(t *testing.T) {
	corpus := corpusOf(
		&domain.Wildcard{Name: "A", Choices: []domain.Choice{{Value: "a", Includes: []string{"B"}}}},
		&domain.Wildcard{Name: "B", Choices: []domain.Choice{{Value: "b", Includes: []string{"C"}}}},
		&domain.Wildcard{Name: "C", Choices: []domain.Choice{{Value: "c", Includes: []string{"A"}}}},
	)
	diags := validator.Validate(depgraph.Build(corpus))
	require.Len(t, diags, 1)
	assert.Equal(t, domain.DiagCyclicInclude, diags[0].Kind)
	assert.Equal(t, domain.SeverityError, diags[0].Severity)
	assert.Equal(t, []string{"A", "B", "C", "A"}, diags[0].Cycle)
	assert.Equal(t, "include cycle: A -> B -> C -> A", diags[0].Message)
}

func TestValidate_AllChecksRun(t *testing.T) {
	corpus := corpusOf(
		&domain.Wildcard{Name: "outfit", Path: "/w/outfit.json", Choices: []domain.Choice{
			{Value: "coat", Includes: []string{"colr"}},
			{Value: "dress", Requires: map[string]string{"season": "monsoon"}},
			{Value: "Coat "},
		}},
		&domain.Wildcard{Name: "color", Choices: choices("red")},
		&domain.Wildcard{Name: "season", Choices: choices("winter", "summer")},
		&domain.Wildcard{Name: "blank"},
		&domain.Wildcard{Name: "loop", Choices: choices("__loop__ again")},
	)
	corpus.Corrupt["broken"] = &domain.CorruptWildcardError{Name: "broken", Scope: domain.ScopeShared, Path: "/w/broken.json", Err: errors.New("unexpected EOF")}

	templates := []domain.TemplateDoc{
		{Name: "sfw/look", Text: "__outfit__ in __season__ with __ghost__"},
		{Name: "sfw/bad", Text: "__color:0__"},
	}

	diags := validator.Validate(depgraph.Build(corpus), templates...)
	assert.Equal(t, []domain.DiagnosticKind{
		domain.DiagBrokenReference,
		domain.DiagBrokenReference,
		domain.DiagCyclicInclude,
		domain.DiagEmptyWildcard,
		domain.DiagDuplicateChoice,
		domain.DiagMissingRequiredValue,
		domain.DiagOutOfOrderRequires,
		domain.DiagCorruptWildcard,
		domain.DiagTemplateSyntax,
	}, kinds(diags))

	tmplRef, fileRef := diags[0], diags[1]
	assert.Equal(t, "sfw/look", tmplRef.Template)
	assert.Equal(t, "ghost", tmplRef.Target)
	assert.Equal(t, 2, tmplRef.Directive)

	assert.Equal(t, "outfit", fileRef.File)
	assert.Equal(t, 0, fileRef.ChoiceIndex)
	assert.Equal(t, "colr", fileRef.Target)
	assert.Equal(t, "include", fileRef.EdgeKind)
	assert.Equal(t, "/w/outfit.json", fileRef.Path)
	assert.Contains(t, fileRef.Hint, `"color"`)

	assert.Equal(t, []string{"loop", "loop"}, diags[2].Cycle)
	assert.Equal(t, "blank", diags[3].File)

	dup := diags[4]
	assert.Equal(t, domain.SeverityWarning, dup.Severity)
	assert.Equal(t, []int{0, 2}, dup.Indexes)
	assert.Equal(t, []string{"coat", "Coat "}, dup.Values)

	missing := diags[5]
	assert.Equal(t, 1, missing.ChoiceIndex)
	assert.Equal(t, "season", missing.Target)
	assert.Equal(t, []string{"monsoon"}, missing.Values)

	order := diags[6]
	assert.Equal(t, domain.SeverityWarning, order.Severity)
	assert.Equal(t, "sfw/look", order.Template)
	assert.Equal(t, "season", order.Target)
	assert.Contains(t, order.Message, "later")

	assert.Equal(t, "/w/broken.json", diags[7].Path)
	assert.Equal(t, "sfw/bad", diags[8].Template)

	assert.Len(t, domain.Errors(diags), 7)
}

func TestValidate_OutOfOrderRequires(t *testing.T) {
	corpus := corpusOf(
		&domain.Wildcard{Name: "time", Choices: choices("day")},
		&domain.Wildcard{Name: "scene", Choices: []domain.Choice{{Value: "street", Includes: []string{"time"}}}},
		&domain.Wildcard{Name: "lighting", Choices: []domain.Choice{
			{Value: "soft", Requires: map[string]string{"time": "day"}},
			{Value: "moody", Requires: map[string]string{"time": "day", "weather": "rain"}},
		}},
		&domain.Wildcard{Name: "weather", Choices: choices("rain")},
	)
	g := depgraph.Build(corpus)

	tests := []struct {
		name    string
		text    string
		targets []string
		message string
	}{
		{"Bound Earlier", "__time__ __weather__ __lighting__", nil, ""},
		{"Bound Through Includes", "__scene__ __weather__ __lighting__", nil, ""},
		{"Bound Later", "__lighting__ __time__ __weather__", []string{"time", "weather"}, "later"},
		{"Never Bound", "__time__ __lighting__ __lighting__", []string{"weather"}, "never"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := validator.Validate(g, domain.TemplateDoc{Name: "sfw/t", Text: tt.text})
			var targets []string
			for _, d := range diags {
				require.Equal(t, domain.DiagOutOfOrderRequires, d.Kind)
				targets = append(targets, d.Target)
				assert.Contains(t, d.Message, tt.message)
			}
			assert.Equal(t, tt.targets, targets)
		})
	}
}

func TestValidate_OutOfOrderRequiresThroughIncludes(t *testing.T) {
	corpus := corpusOf(
		&domain.Wildcard{Name: "mood", Choices: choices("dark", "bright")},
		&domain.Wildcard{Name: "lighting", Choices: []domain.Choice{
			{Value: "candles", Requires: map[string]string{"mood": "dark"}},
		}},
		&domain.Wildcard{Name: "scene", Choices: choices("a cellar lit by __lighting__")},
		&domain.Wildcard{Name: "staged", Choices: []domain.Choice{
			{Value: "a stage", Includes: []string{"mood", "lighting"}},
		}},
		&domain.Wildcard{Name: "weather", Choices: []domain.Choice{
			{Value: "storm", Conditions: domain.Rule{{Op: domain.OpOr, Terms: []domain.Rule{
				{{Name: "mood", AnyOf: []string{"dark"}}},
				{{Name: "time", AnyOf: []string{"night"}}},
			}}}},
		}},
		&domain.Wildcard{Name: "time", Choices: choices("night")},
	)
	g := depgraph.Build(corpus)

	t.Run("Nested Requires Reported", func(t *testing.T) {
		diags := validator.Validate(g, domain.TemplateDoc{Name: "sfw/t", Text: "__scene__, __mood__"})
		require.Len(t, diags, 1)
		d := diags[0]
		assert.Equal(t, domain.DiagOutOfOrderRequires, d.Kind)
		assert.Equal(t, "mood", d.Target)
		assert.Equal(t, 0, d.Directive)
		assert.Contains(t, d.Message, "scene (through lighting) requires mood")
		assert.Contains(t, d.Message, "later")
	})

	t.Run("Nested Requires Bound Earlier", func(t *testing.T) {
		diags := validator.Validate(g, domain.TemplateDoc{Name: "sfw/t", Text: "__mood__, __scene__"})
		assert.Empty(t, diags)
	})

	t.Run("Sibling Include Binds", func(t *testing.T) {
		diags := validator.Validate(g, domain.TemplateDoc{Name: "sfw/t", Text: "__staged__"})
		assert.Empty(t, diags)
	})

	t.Run("Condition Names", func(t *testing.T) {
		diags := validator.Validate(g, domain.TemplateDoc{Name: "sfw/t", Text: "__weather__ __time__"})
		var targets []string
		for _, d := range diags {
			targets = append(targets, d.Target)
		}
		assert.Equal(t, []string{"mood", "time"}, targets)
	})
}

func TestValidate_MissingValueInCondition(t *testing.T) {
	corpus := corpusOf(
		&domain.Wildcard{Name: "mood", Choices: choices("dark", "calm")},
		&domain.Wildcard{Name: "sky", Choices: []domain.Choice{
			{Value: "grey", Conditions: domain.Rule{{Name: "mood", AnyOf: []string{"dark", "gloomy"}}}},
			{Value: "blue", Conditions: domain.Rule{{Name: "mood", NoneOf: []string{"dark"}}}},
			{Value: "any", Conditions: domain.Rule{{Name: "mood"}}},
		}},
	)
	diags := validator.Validate(depgraph.Build(corpus))
	require.Len(t, diags, 1)
	assert.Equal(t, domain.DiagMissingRequiredValue, diags[0].Kind)
	assert.Equal(t, 0, diags[0].ChoiceIndex)
	assert.Equal(t, []string{"gloomy"}, diags[0].Values)
}

func TestValidator_Run(t *testing.T) {
	store := memory.NewStore(
		&domain.Wildcard{Name: "mood", Scope: domain.ScopeShared, Choices: choices("calm")},
		&domain.Wildcard{Name: "secret", Scope: domain.ScopeNSFW, Choices: choices("x", "X")},
	)
	lib := memory.NewFromTexts(map[string]string{
		"sfw/a":  "__mood__",
		"nsfw/b": "__secret__ __nothing__",
	})
	v := validator.New(store, validator.WithTemplates(lib))
	ctx := context.Background()

	sfw, err := v.Run(ctx, domain.WorkflowSFW)
	require.NoError(t, err)
	assert.Empty(t, sfw, "nsfw files and templates are out of scope")

	nsfw, err := v.Run(ctx, domain.WorkflowNSFW)
	require.NoError(t, err)
	assert.Equal(t, []domain.DiagnosticKind{domain.DiagBrokenReference, domain.DiagDuplicateChoice}, kinds(nsfw))
	assert.Equal(t, domain.ScopeNSFW, nsfw[1].Scope)
}

func TestValidator_RunWaitsForWriters(t *testing.T) {
	store := memory.NewStore(&domain.Wildcard{Name: "mood", Scope: domain.ScopeShared, Choices: choices("calm")})
	locks := scopelock.NewManager()
	v := validator.New(store, validator.WithLocks(locks))
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	writer := make(chan error, 1)
	go func() {
		writer <- locks.WithLock(ctx, []domain.Scope{domain.ScopeShared}, func(ctx context.Context) error {
			close(held)
			<-release
			return store.Save(ctx, &domain.Wildcard{Name: "mood", Scope: domain.ScopeShared, Choices: choices("calm", "Calm")})
		})
	}()
	<-held

	type result struct {
		diags []domain.Diagnostic
		err   error
	}
	done := make(chan result, 1)
	go func() {
		diags, err := v.Run(ctx, domain.WorkflowSFW)
		done <- result{diags, err}
	}()

	select {
	case <-done:
		t.Fatal("Run finished while a refactor held the scope")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-writer)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, []domain.DiagnosticKind{domain.DiagDuplicateChoice}, kinds(res.diags), "Run reads the finished write")
}
