package services

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/djherbis/times"
	"github.com/huangang/deployguide/internal/metrics"
	"github.com/huangang/deployguide/pkg/logger"
)

const (
	artifactPrefix  = "deployment_"
	artifactExt     = ".md"
	UnknownPlatform = "Unknown"
)

// ArtifactEntry is a directory entry that matches the artifact convention.
type ArtifactEntry struct {
	Filename string
	Path     string
}

// ArtifactRepository reads and deletes artifacts by scanning the output
// directory. Every *.md regular file counts as an artifact. It never writes.
type ArtifactRepository struct {
	dir         string
	filesPrefix string
	events      *ArtifactHub
	createdAt   func(path string, info fs.FileInfo) time.Time
	remove      func(path string) error
	now         func() time.Time
}

func NewArtifactRepository(dir, filesPrefix string, events *ArtifactHub) *ArtifactRepository {
	return &ArtifactRepository{
		dir:         dir,
		filesPrefix: filesPrefix,
		events:      events,
		createdAt:   fileCreatedAt,
		remove:      os.Remove,
		now:         time.Now,
	}
}

// Scan yields matching entries in directory order. Each range over the
// returned sequence re-reads the directory.
func (r *ArtifactRepository) Scan() iter.Seq2[ArtifactEntry, error] {
	return func(yield func(ArtifactEntry, error) bool) {
		entries, err := os.ReadDir(r.dir)
		if err != nil {
			yield(ArtifactEntry{}, &StorageError{Op: "scan", Path: r.dir, Err: err})
			return
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), artifactExt) {
				continue
			}
			if !yield(ArtifactEntry{Filename: entry.Name(), Path: filepath.Join(r.dir, entry.Name())}, nil) {
				return
			}
		}
	}
}

// List returns artifact metadata, newest first. Content is not loaded.
func (r *ArtifactRepository) List() ([]GeneratedArtifact, error) {
	artifacts := []GeneratedArtifact{}
	for entry, err := range r.Scan() {
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(entry.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// removed between scan and stat
				continue
			}
			return nil, &StorageError{Op: "stat", Path: entry.Path, Err: err}
		}
		artifacts = append(artifacts, r.metadata(entry.Filename, entry.Path, info))
	}

	slices.SortFunc(artifacts, func(a, b GeneratedArtifact) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Filename, a.Filename)
	})
	return artifacts, nil
}

// Get returns one artifact including its content.
func (r *ArtifactRepository) Get(filename string) (*GeneratedArtifact, error) {
	path, err := r.resolve(filename)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Filename: filename}
		}
		return nil, &StorageError{Op: "stat", Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &NotFoundError{Filename: filename}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}

	artifact := r.metadata(filename, path, info)
	artifact.Content = string(data)
	return &artifact, nil
}

// Delete removes one artifact. A missing file is a *NotFoundError.
func (r *ArtifactRepository) Delete(filename string) error {
	path, err := r.resolve(filename)
	if err != nil {
		return err
	}
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &NotFoundError{Filename: filename}
		}
		return &StorageError{Op: "stat", Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &NotFoundError{Filename: filename}
	}
	if err := r.remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &NotFoundError{Filename: filename}
		}
		return &StorageError{Op: "delete", Path: path, Err: err}
	}

	metrics.ArtifactsDeletedTotal.WithLabelValues("single").Inc()
	logger.Info().Str("filename", filename).Msg("[Artifact] Deleted")
	r.publish(ArtifactEvent{Type: ArtifactDeleted, Filename: filename, Platform: PlatformFromFilename(filename)})
	return nil
}

// DeleteAll removes every artifact. It stops at the first failure and reports
// how many files were removed before it.
func (r *ArtifactRepository) DeleteAll() (int, error) {
	deleted := 0
	defer func() {
		if deleted > 0 {
			metrics.ArtifactsDeletedTotal.WithLabelValues("all").Add(float64(deleted))
			r.publish(ArtifactEvent{Type: ArtifactCleared, Count: deleted})
		}
	}()

	for entry, err := range r.Scan() {
		if err != nil {
			return deleted, err
		}
		if err := r.remove(entry.Path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return deleted, &StorageError{Op: "delete", Path: entry.Path, Err: err}
		}
		deleted++
	}

	logger.Info().Int("deleted", deleted).Msg("[Artifact] Cleared output directory")
	return deleted, nil
}

// Prune deletes artifacts created before now-maxAge. Unlike DeleteAll it
// keeps going after a failure and returns all failures joined.
func (r *ArtifactRepository) Prune(maxAge time.Duration) (int, error) {
	artifacts, err := r.List()
	if err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-maxAge)
	var (
		deleted int
		errs    []error
	)
	for _, a := range artifacts {
		if !a.CreatedAt.Before(cutoff) {
			continue
		}
		path := filepath.Join(r.dir, a.Filename)
		if err := r.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, &StorageError{Op: "delete", Path: path, Err: err})
			continue
		}
		deleted++
		r.publish(ArtifactEvent{Type: ArtifactDeleted, Filename: a.Filename, Platform: a.Platform})
	}

	if deleted > 0 {
		metrics.ArtifactsDeletedTotal.WithLabelValues("retention").Add(float64(deleted))
	}
	return deleted, errors.Join(errs...)
}

func (r *ArtifactRepository) metadata(filename, path string, info fs.FileInfo) GeneratedArtifact {
	return GeneratedArtifact{
		Filename:  filename,
		Platform:  PlatformFromFilename(filename),
		CreatedAt: r.createdAt(path, info),
		FilePath:  FilePath(r.filesPrefix, filename),
	}
}

func (r *ArtifactRepository) resolve(filename string) (string, error) {
	if err := validateFilename(filename); err != nil {
		return "", err
	}
	return filepath.Join(r.dir, filename), nil
}

func (r *ArtifactRepository) publish(event ArtifactEvent) {
	if r.events != nil {
		r.events.Publish(event)
	}
}

// validateFilename accepts only plain names inside the output directory.
func validateFilename(filename string) error {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, `/\`) || strings.ContainsRune(filename, 0) {
		return &ValidationError{Field: "filename", Msg: "must be a plain file name"}
	}
	return nil
}

// PlatformFromFilename returns the capitalised second "_" segment of a
// deployment_* name, or "Unknown" for anything else.
func PlatformFromFilename(filename string) string {
	parts := strings.Split(filename, "_")
	if len(parts) >= 2 && strings.HasPrefix(filename, artifactPrefix) {
		return capitalize(parts[1])
	}
	return UnknownPlatform
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}

// fileCreatedAt prefers the birth time, then the inode change time, then the
// modification time, depending on what the platform exposes.
func fileCreatedAt(path string, info fs.FileInfo) time.Time {
	ts, err := times.Stat(path)
	if err != nil {
		return info.ModTime()
	}
	if ts.HasBirthTime() {
		return ts.BirthTime()
	}
	if ts.HasChangeTime() {
		return ts.ChangeTime()
	}
	return ts.ModTime()
}
