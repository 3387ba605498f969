/*
Package thicket expands prompt templates containing wildcard placeholders against a
corpus of weighted, conditional choice lists.

# Concept

A wildcard is a named list of choices stored as one file. A template is text with
directives such as __color__, __!color__ (a value not used yet) and __color:1-3__
(several distinct values). Choices may include other wildcards and may require
values already bound to other names, so a resolution walks the include graph in
template order and keeps every pick consistent with what came before.

The sfw workflow sees the shared wildcards; the nsfw workflow additionally sees the
nsfw scope, whose files override shared ones of the same name.

# Usage

	eng, err := thicket.New("./prompts")
	if err != nil {
		log.Fatal(err)
	}

	seed := int64(42)
	res, err := eng.Resolve(ctx, thicket.ResolveRequest{
		Text: "a __!color__ coat over a __color__ dress",
		Seed: &seed,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Text)

Beyond resolution the Engine validates the corpus (Validate), exposes the
dependency graph (Graph, Usage) and performs project wide refactors (Rename,
ReplaceValue, Merge, Archive, Import). Refactors report the outcome of every file
they touch; a failed write does not roll back the others.
*/
package thicket
