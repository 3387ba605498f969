/*
Package ports defines the driven ports (interfaces) for the Thicket engine.

These interfaces decouple the resolution core from storage and collaborators,
allowing the engine to work with the filesystem, memory, or remote backends.

# Key Interfaces

  - ChoiceStore: Loads, caches and persists wildcard files per scope.
  - TemplateLibrary: Lists and reads stored prompt templates.
  - DistributedLocker: Extends the per-scope write lock across processes.
  - Generator: Opaque text generator whose output is imported as choices.
*/
package ports
