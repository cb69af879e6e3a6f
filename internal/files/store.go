package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNotFound is returned when a stored file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidName is returned when a name sanitises to nothing.
	ErrInvalidName = errors.New("invalid file name")
	// ErrTooLarge is returned when an upload exceeds the store limit.
	ErrTooLarge = errors.New("file exceeds size limit")
	// ErrExtensionNotAllowed is returned for uploads with a rejected extension.
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// FileInfo describes a stored file
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Store keeps files in a single flat directory under sanitised names.
type Store struct {
	dir        string
	maxBytes   int64
	extensions map[string]bool
	logger     *slog.Logger
}

// NewStore creates a store rooted at dir. maxBytes <= 0 disables the size
// limit and an empty extension list accepts any extension.
func NewStore(dir string, maxBytes int64, extensions []string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &Store{
		dir:        dir,
		maxBytes:   maxBytes,
		extensions: allowed,
		logger:     logger.With(slog.String("component", "file_store"), slog.String("dir", dir)),
	}
}

// Dir returns the store directory
func (s *Store) Dir() string { return s.dir }

// SecureFilename reduces name to an ASCII base name safe to join to a
// directory. Accents are folded, whitespace becomes '_' and anything outside
// [A-Za-z0-9_.-] is dropped. The result may be empty.
func SecureFilename(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	folded = strings.NewReplacer("/", " ", `\`, " ").Replace(folded)
	folded = strings.Join(strings.Fields(folded), "_")
	folded = unsafeChars.ReplaceAllString(folded, "")
	return strings.Trim(folded, "._")
}

// Save writes r under the sanitised form of name and returns that name.
// An existing file with the same name is replaced.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	safe := SecureFilename(name)
	if safe == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if len(s.extensions) > 0 && !s.extensions[strings.ToLower(filepath.Ext(safe))] {
		return "", fmt.Errorf("%w: %q", ErrExtensionNotAllowed, filepath.Ext(safe))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file content: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		tmp.Close()
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxBytes)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, safe)); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}

	s.logger.InfoContext(ctx, "file stored",
		slog.String("name", safe),
		slog.Int64("size_bytes", n))
	return safe, nil
}

// WriteFile stores data under name as given, after sanitising it.
func (s *Store) WriteFile(ctx context.Context, name string, data []byte) (string, error) {
	return s.Save(ctx, name, bytes.NewReader(data))
}

// Path returns the absolute location of name, which must already be stored.
func (s *Store) Path(name string) (string, error) {
	safe := SecureFilename(name)
	if safe == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := filepath.Join(s.dir, safe)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, safe)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// Open opens a stored file for reading
func (s *Store) Open(name string) (*os.File, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Delete removes a stored file
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	s.logger.Debug("deleting file", slog.String("path", path))
	return os.Remove(path)
}

// List returns the stored files, newest first. Temporary upload files are
// skipped.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(s.dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ModTime.After(out[j].ModTime)
	})
	return out, nil
}

// Prune keeps the newest keep files and deletes the rest. Names in protect
// are never removed and count toward keep. It returns the number of files
// removed.
func (s *Store) Prune(keep int, protect ...string) (int, error) {
	stored, err := s.List()
	if err != nil {
		return 0, err
	}

	protected := make(map[string]bool, len(protect))
	for _, name := range protect {
		protected[name] = true
	}
	kept := 0
	for _, f := range stored {
		if protected[f.Name] {
			kept++
		}
	}

	removed := 0
	for _, f := range stored {
		if protected[f.Name] {
			continue
		}
		if kept < keep {
			kept++
			continue
		}
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Debug("pruned files", slog.Int("removed", removed), slog.Int("kept", kept))
	}
	return removed, nil
}
