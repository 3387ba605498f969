/*
Package domain contains the core domain models of the Thicket resolution engine.

It defines the wildcard corpus (Choices grouped into Wildcards, visible through a
Workflow), the parsed Template structure, the result of a resolution pass and the
Diagnostics emitted by static validation. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Choice: One candidate value of a wildcard, with weight, tags, requires conditions and includes.
  - Wildcard: A named, scoped collection of Choices backed by one persisted file.
  - Corpus: The merged, read-only view of every Wildcard visible to one Workflow.
  - Template: Literal spans interleaved with placeholder Directives.
  - ResolvedPrompt: The expanded text plus the Bindings and Problems of one resolution.
  - Diagnostic: A structured, locatable finding of the validator.
*/
package domain
