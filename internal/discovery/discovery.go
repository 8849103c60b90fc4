// Package discovery enumerates candidate file paths below an archive root.
//
// Three strategies are available:
//   - all: every file, walking first-level folders one at a time so that
//     paths start flowing before the whole tree has been listed
//   - per-leaf: the first file of every leaf directory, i.e. one file per
//     series in a patient/study/series layout
//   - per-folder: the first file below every directory whose subdirectories
//     are all leaves, i.e. one file per study in the same layout
//
// Directory entries are visited in sorted order, so a strategy yields the
// same sequence for the same tree. Strategies only list directories; they
// never open files.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"dicom-index/internal/filesystem"
)

// Strategy names.
const (
	All       = "all"
	PerLeaf   = "per-leaf"
	PerFolder = "per-folder"
)

// Names lists the available strategies.
func Names() []string {
	return []string{All, PerLeaf, PerFolder}
}

// Strategy produces candidate paths below root, passing each to emit. It
// stops at the first error returned by emit.
type Strategy interface {
	Name() string
	Discover(ctx context.Context, root string, emit func(path string) error) error
}

// Options apply to every strategy.
type Options struct {
	// SkipHidden ignores files and directories whose name starts with ".".
	SkipHidden bool
	// Exclude holds doublestar patterns matched against the slash-separated
	// path relative to the root. A matching directory is not descended.
	Exclude []string
	Retry   filesystem.RetryConfig
	Log     zerolog.Logger
}

// New returns the strategy called name.
func New(name string, opts Options) (Strategy, error) {
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	w := &walker{opts: opts}
	switch name {
	case All:
		return &allFiles{w}, nil
	case PerLeaf:
		return &perLeaf{w}, nil
	case PerFolder:
		return &perFolder{w}, nil
	default:
		return nil, fmt.Errorf("unknown discovery strategy %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
}

// walker holds the listing logic shared by the strategies.
type walker struct {
	opts Options
	root string
	// seen holds the resolved directories listed so far, so symlink
	// cycles are walked once.
	seen map[string]struct{}
}

// listing is a filtered directory listing.
type listing struct {
	files []string
	dirs  []string
}

// at returns a walker bound to root. Strategies stay reusable across runs.
func (w *walker) at(root string) (*walker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &walker{opts: w.opts, root: abs, seen: make(map[string]struct{})}, nil
}

func (w *walker) excluded(path string) bool {
	if len(w.opts.Exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range w.opts.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// list reads dir and splits it into files and subdirectories, both sorted.
func (w *walker) list(dir string) (listing, error) {
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		if _, ok := w.seen[real]; ok {
			w.opts.Log.Debug().Str("dir", dir).Msg("directory already walked, skipping")
			return listing{}, nil
		}
		w.seen[real] = struct{}{}
	}

	entries, err := filesystem.ReadDirWithRetry(dir, w.opts.Retry)
	if err != nil {
		return listing{}, err
	}

	var l listing
	for _, e := range entries {
		name := e.Name()
		if w.opts.SkipHidden && strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		if w.excluded(path) {
			continue
		}
		switch {
		case e.IsDir():
			l.dirs = append(l.dirs, path)
		case e.Type().IsRegular():
			l.files = append(l.files, path)
		case e.Type()&fs.ModeSymlink != 0:
			info, err := filesystem.StatWithRetry(path, w.opts.Retry)
			if err != nil {
				w.opts.Log.Warn().Err(err).Str("path", path).Msg("dangling symlink, skipping")
				continue
			}
			if info.IsDir() {
				l.dirs = append(l.dirs, path)
			} else if info.Mode().IsRegular() {
				l.files = append(l.files, path)
			}
		}
	}
	return l, nil
}

// listSub lists a subdirectory, logging and skipping it when unreadable.
func (w *walker) listSub(dir string) (listing, bool) {
	l, err := w.list(dir)
	if err != nil {
		w.opts.Log.Warn().Err(err).Str("dir", dir).Msg("cannot list directory, skipping")
		return listing{}, false
	}
	return l, true
}

type allFiles struct{ *walker }

func (s *allFiles) Name() string { return All }

func (s *allFiles) Discover(ctx context.Context, root string, emit func(string) error) error {
	w, err := s.at(root)
	if err != nil {
		return err
	}
	top, err := w.list(w.root)
	if err != nil {
		return fmt.Errorf("list root: %w", err)
	}

	for _, f := range top.files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(f); err != nil {
			return err
		}
	}
	for _, d := range top.dirs {
		w.opts.Log.Debug().Str("dir", d).Msg("walking first-level folder")
		if err := walkAll(ctx, w, d, emit); err != nil {
			return err
		}
	}
	return nil
}

func walkAll(ctx context.Context, w *walker, dir string, emit func(string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l, ok := w.listSub(dir)
	if !ok {
		return nil
	}
	for _, f := range l.files {
		if err := emit(f); err != nil {
			return err
		}
	}
	for _, d := range l.dirs {
		if err := walkAll(ctx, w, d, emit); err != nil {
			return err
		}
	}
	return nil
}

type perLeaf struct{ *walker }

func (s *perLeaf) Name() string { return PerLeaf }

func (s *perLeaf) Discover(ctx context.Context, root string, emit func(string) error) error {
	w, err := s.at(root)
	if err != nil {
		return err
	}
	l, err := w.list(w.root)
	if err != nil {
		return fmt.Errorf("list root: %w", err)
	}
	return visitLeaves(ctx, w, l, emit)
}

func visitLeaves(ctx context.Context, w *walker, l listing, emit func(string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(l.dirs) == 0 {
		if len(l.files) == 0 {
			return nil
		}
		return emit(l.files[0])
	}
	for _, d := range l.dirs {
		sub, ok := w.listSub(d)
		if !ok {
			continue
		}
		if err := visitLeaves(ctx, w, sub, emit); err != nil {
			return err
		}
	}
	return nil
}

type perFolder struct{ *walker }

func (s *perFolder) Name() string { return PerFolder }

func (s *perFolder) Discover(ctx context.Context, root string, emit func(string) error) error {
	w, err := s.at(root)
	if err != nil {
		return err
	}
	l, err := w.list(w.root)
	if err != nil {
		return fmt.Errorf("list root: %w", err)
	}
	return visitFolders(ctx, w, l, emit)
}

// visitFolders emits one file for a directory whose subdirectories are all leaves
// and recurses otherwise. A leaf reached directly stands for itself.
func visitFolders(ctx context.Context, w *walker, l listing, emit func(string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(l.dirs) == 0 {
		if len(l.files) == 0 {
			return nil
		}
		return emit(l.files[0])
	}

	subs := make([]listing, 0, len(l.dirs))
	allLeaves := true
	for _, d := range l.dirs {
		sub, ok := w.listSub(d)
		if !ok {
			continue
		}
		if len(sub.dirs) > 0 {
			allLeaves = false
		}
		subs = append(subs, sub)
	}

	if allLeaves {
		for _, sub := range subs {
			if len(sub.files) > 0 {
				return emit(sub.files[0])
			}
		}
		return nil
	}

	for _, sub := range subs {
		if err := visitFolders(ctx, w, sub, emit); err != nil {
			return err
		}
	}
	return nil
}
