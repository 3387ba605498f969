package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/thicket/internal/dto"
	"github.com/aretw0/thicket/internal/logging"
	"github.com/aretw0/thicket/internal/suggest"
	"github.com/aretw0/thicket/pkg/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// WildcardsDir is the shared scope directory under the data root.
	// The nsfw scope lives in its "nsfw" subdirectory.
	WildcardsDir = "wildcards"
	// ArchiveDir is created inside each scope directory.
	ArchiveDir = "archive"
)

// extensions lists the recognized wildcard file extensions in order of
// preference when several files share a basename.
var extensions = []string{".json", ".yaml", ".yml", ".txt"}

// Store implements ports.ChoiceStore using the local filesystem.
//
// Decoded wildcards are cached per (name, scope). An entry is reused while the
// file's mod time and size are unchanged, so edits made by other programs are
// picked up on the next read.
type Store struct {
	root        string
	logger      *slog.Logger
	concurrency int

	mu    sync.RWMutex
	cache map[cacheKey]*entry
	group singleflight.Group
}

type cacheKey struct {
	name  string
	scope domain.Scope
}

// entry is immutable once published in the cache.
type entry struct {
	wildcard *domain.Wildcard
	corrupt  *domain.CorruptWildcardError
	path     string
	modTime  time.Time
	size     int64
}

func (e *entry) fresh(path string, info os.FileInfo) bool {
	return e.path == path && e.modTime.Equal(info.ModTime()) && e.size == info.Size()
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger used for cache and write events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConcurrency bounds the number of files decoded in parallel by Load.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a Store rooted at the data directory.
// If root is empty, it defaults to the working directory.
func New(root string, opts ...Option) *Store {
	if root == "" {
		root = "."
	}
	s := &Store{
		root:        root,
		logger:      logging.NewNop(),
		concurrency: runtime.GOMAXPROCS(0),
		cache:       make(map[cacheKey]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the data directory.
func (s *Store) Root() string {
	return s.root
}

// ScopeDir returns the directory holding the scope's wildcard files.
func (s *Store) ScopeDir(scope domain.Scope) string {
	if scope == domain.ScopeNSFW {
		return filepath.Join(s.root, WildcardsDir, string(domain.ScopeNSFW))
	}
	return filepath.Join(s.root, WildcardsDir)
}

// Load decodes every wildcard file of the scope, in parallel.
func (s *Store) Load(ctx context.Context, scope domain.Scope) (*domain.Catalog, error) {
	files, err := s.listFiles(scope)
	if err != nil {
		return nil, err
	}

	cat := domain.NewCatalog(scope)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for name, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e := s.entryFor(name, scope, path)
			if e == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if e.corrupt != nil {
				cat.Corrupt[name] = e.corrupt
			} else {
				cat.Wildcards[name] = e.wildcard
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.prune(scope, files)
	return cat, nil
}

// Snapshot merges the scopes visible to the workflow.
func (s *Store) Snapshot(ctx context.Context, workflow domain.Workflow) (*domain.Corpus, error) {
	var cats []*domain.Catalog
	for _, scope := range workflow.Scopes() {
		cat, err := s.Load(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s wildcards: %w", scope, err)
		}
		cats = append(cats, cat)
	}
	return domain.MergeCatalogs(workflow, cats...), nil
}

// Get returns the wildcard visible to the workflow under name. The most
// specific scope wins, including when its file is corrupt.
func (s *Store) Get(ctx context.Context, workflow domain.Workflow, name string) (*domain.Wildcard, error) {
	if domain.ValidateName(name) == nil {
		scopes := workflow.Scopes()
		for i := len(scopes) - 1; i >= 0; i-- {
			path := s.locate(name, scopes[i])
			if path == "" {
				continue
			}
			e := s.entryFor(name, scopes[i], path)
			if e == nil {
				continue
			}
			if e.corrupt != nil {
				return nil, e.corrupt
			}
			return e.wildcard, nil
		}
	}

	var known []string
	for _, scope := range workflow.Scopes() {
		files, err := s.listFiles(scope)
		if err != nil {
			return nil, err
		}
		for n := range files {
			known = append(known, n)
		}
	}
	sort.Strings(known)
	return nil, suggest.MissingWildcard(name, known)
}

// Save writes the wildcard atomically and replaces its cache entry.
// Legacy text files are migrated: the new file is written first, then the
// old one is removed.
func (s *Store) Save(ctx context.Context, w *domain.Wildcard) error {
	if err := domain.ValidateName(w.Name); err != nil {
		return err
	}
	scope, err := domain.ParseScope(string(w.Scope))
	if err != nil {
		return err
	}

	old := s.locate(w.Name, scope)
	format := w.Format
	if format == "" && old != "" {
		format = formatOf(filepath.Ext(old))
	}
	format = dto.WriteFormat(format)

	ext := ".json"
	if format == domain.FormatYAML {
		ext = ".yaml"
		if strings.EqualFold(filepath.Ext(old), ".yml") {
			ext = ".yml"
		}
	}
	path := filepath.Join(s.ScopeDir(scope), w.Name+ext)

	data, err := dto.Encode(w, format)
	if err != nil {
		return fmt.Errorf("failed to encode wildcard %s: %w", w.Name, err)
	}
	if err := WriteAtomic(path, data); err != nil {
		return fmt.Errorf("failed to save wildcard %s: %w", w.Name, err)
	}

	if old != "" && old != path {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove migrated file %s: %w", filepath.Base(old), err)
		}
		s.logger.Info("wildcard migrated", "name", w.Name, "from", filepath.Base(old), "to", filepath.Base(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		s.Invalidate(w.Name, scope)
		return nil
	}

	saved := w.Clone()
	saved.Scope = scope
	saved.Path = path
	saved.Format = format
	saved.ModTime = info.ModTime()
	saved.Size = info.Size()

	s.mu.Lock()
	s.cache[cacheKey{w.Name, scope}] = &entry{
		wildcard: saved,
		path:     path,
		modTime:  info.ModTime(),
		size:     info.Size(),
	}
	s.mu.Unlock()

	s.logger.Debug("wildcard saved", "name", w.Name, "scope", scope, "path", path)
	return nil
}

// Delete removes every file backing the wildcard.
func (s *Store) Delete(ctx context.Context, name string, scope domain.Scope) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	dir := s.ScopeDir(scope)
	for _, ext := range extensions {
		err := os.Remove(filepath.Join(dir, name+ext))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete wildcard %s: %w", name, err)
		}
	}
	s.Invalidate(name, scope)
	return nil
}

// Archive moves the wildcard file into the scope's archive directory.
// An archived file with the same name is never overwritten.
func (s *Store) Archive(ctx context.Context, name string, scope domain.Scope) error {
	path := ""
	if domain.ValidateName(name) == nil {
		path = s.locate(name, scope)
	}
	if path == "" {
		return fmt.Errorf("%w: %q in scope %s", domain.ErrMissingWildcard, name, scope)
	}

	archive := filepath.Join(s.ScopeDir(scope), ArchiveDir)
	if err := os.MkdirAll(archive, 0755); err != nil {
		return fmt.Errorf("failed to ensure archive directory: %w", err)
	}

	dest := filepath.Join(archive, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		stamp := time.Now().Format("20060102-150405")
		dest = filepath.Join(archive, name+"-"+stamp+filepath.Ext(path))
	}
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("failed to archive wildcard %s: %w", name, err)
	}

	s.Invalidate(name, scope)
	s.logger.Info("wildcard archived", "name", name, "scope", scope, "dest", dest)
	return nil
}

// Invalidate drops one cache entry.
func (s *Store) Invalidate(name string, scope domain.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, cacheKey{name, scope})
}

// InvalidateAll drops every cache entry.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[cacheKey]*entry)
}

// entryFor returns the cached entry for the file when fresh, decoding it
// otherwise. Concurrent misses for the same key share one decode.
// It returns nil when the file no longer exists.
func (s *Store) entryFor(name string, scope domain.Scope, path string) *entry {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.Invalidate(name, scope)
			return nil
		}
		return s.corrupt(name, scope, path, err)
	}

	k := cacheKey{name, scope}
	s.mu.RLock()
	e := s.cache[k]
	s.mu.RUnlock()
	if e != nil && e.fresh(path, info) {
		return e
	}

	v, _, _ := s.group.Do(string(scope)+"/"+name, func() (any, error) {
		return s.read(name, scope, path), nil
	})
	return v.(*entry)
}

func (s *Store) read(name string, scope domain.Scope, path string) *entry {
	s.logger.Debug("wildcard cache miss", "name", name, "scope", scope)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.Invalidate(name, scope)
			return nil
		}
		return s.corrupt(name, scope, path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.Invalidate(name, scope)
			return nil
		}
		return s.corrupt(name, scope, path, err)
	}

	e := &entry{path: path, modTime: info.ModTime(), size: info.Size()}
	w, err := dto.Decode(name, scope, formatOf(filepath.Ext(path)), data)
	if err != nil {
		s.logger.Warn("corrupt wildcard", "name", name, "scope", scope, "path", path, "error", err)
		e.corrupt = &domain.CorruptWildcardError{Name: name, Scope: scope, Path: path, Err: err}
	} else {
		w.Path = path
		w.ModTime = info.ModTime()
		w.Size = info.Size()
		e.wildcard = w
	}

	s.mu.Lock()
	s.cache[cacheKey{name, scope}] = e
	s.mu.Unlock()
	return e
}

// corrupt records an unreadable file without caching it, so the next read retries.
func (s *Store) corrupt(name string, scope domain.Scope, path string, err error) *entry {
	return &entry{
		path:    path,
		corrupt: &domain.CorruptWildcardError{Name: name, Scope: scope, Path: path, Err: err},
	}
}

// prune drops cache entries of the scope whose file is gone.
func (s *Store) prune(scope domain.Scope, files map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.cache {
		if k.scope != scope {
			continue
		}
		if _, ok := files[k.name]; !ok {
			delete(s.cache, k)
		}
	}
}

// listFiles maps each wildcard name of the scope to its preferred file.
func (s *Store) listFiles(scope domain.Scope) (map[string]string, error) {
	dir := s.ScopeDir(scope)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to list wildcards: %w", err)
	}

	files := make(map[string]string)
	ranks := make(map[string]int)
	for _, de := range entries {
		fname := de.Name()
		if de.IsDir() || strings.HasPrefix(fname, ".") {
			continue
		}
		ext := filepath.Ext(fname)
		rank := rankOf(ext)
		if rank < 0 {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		if domain.ValidateName(name) != nil {
			s.logger.Debug("skipping file with invalid wildcard name", "file", fname)
			continue
		}
		if prev, ok := ranks[name]; ok && prev <= rank {
			continue
		}
		ranks[name] = rank
		files[name] = filepath.Join(dir, fname)
	}
	return files, nil
}

// locate returns the preferred file for the wildcard, or "".
func (s *Store) locate(name string, scope domain.Scope) string {
	dir := s.ScopeDir(scope)
	for _, ext := range extensions {
		p := filepath.Join(dir, name+ext)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

func rankOf(ext string) int {
	ext = strings.ToLower(ext)
	for i, e := range extensions {
		if e == ext {
			return i
		}
	}
	return -1
}

func formatOf(ext string) domain.Format {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return domain.FormatYAML
	case ".txt":
		return domain.FormatText
	}
	return domain.FormatJSON
}
