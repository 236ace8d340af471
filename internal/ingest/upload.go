package ingest

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// AllowedExtensions are the accepted upload types, lowercase, without the dot.
var AllowedExtensions = map[string]bool{"jpg": true, "jpeg": true, "png": true}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// UploadedImage is a file as received from a client.
type UploadedImage struct {
	Filename string
	Data     []byte
}

// Ext is the lowercased text after the last dot, or "" when there is no dot.
func (u UploadedImage) Ext() string {
	i := strings.LastIndex(u.Filename, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(u.Filename[i+1:])
}

// StoredImage references a persisted upload.
type StoredImage struct {
	// Ref is the slash-separated reference handed back to clients.
	Ref string
	// Path is the file on disk.
	Path string
	// Filename is the sanitized base name.
	Filename string
}

// Validate checks the filename of an upload.
func Validate(u UploadedImage) error {
	if u.Filename == "" {
		return ErrEmptyFilename
	}
	if !AllowedExtensions[u.Ext()] {
		return ErrDisallowedExtension
	}
	return nil
}

// SanitizeFilename turns a client supplied name into a safe flat file name:
// ASCII only, path separators and whitespace folded into underscores, only
// [A-Za-z0-9_.-] kept, leading and trailing dots and underscores removed.
// The result can be empty.
func SanitizeFilename(name string) string {
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	flat := strings.NewReplacer("/", " ", `\`, " ").Replace(b.String())
	flat = strings.Join(strings.Fields(flat), "_")
	flat = unsafeFilenameChars.ReplaceAllString(flat, "")
	return strings.Trim(flat, "._")
}

// Store persists uploads under a single directory. Two uploads with the same
// sanitized name overwrite each other unless unique names are enabled.
type Store struct {
	dir         string
	refPrefix   string
	uniqueNames bool
	logger      *zap.Logger
}

// NewStore creates dir if needed.
func NewStore(dir string, uniqueNames bool, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create upload directory")
	}
	prefix := strings.TrimPrefix(path.Clean(filepath.ToSlash(dir)), "/")
	if prefix == "." {
		prefix = ""
	}
	return &Store{
		dir:         dir,
		refPrefix:   prefix,
		uniqueNames: uniqueNames,
		logger:      logger,
	}, nil
}

// Dir is the upload directory.
func (s *Store) Dir() string { return s.dir }

// Accept validates, sanitizes and writes an upload.
func (s *Store) Accept(u UploadedImage) (StoredImage, error) {
	if err := Validate(u); err != nil {
		return StoredImage{}, err
	}

	name := SanitizeFilename(u.Filename)
	if name == "" {
		return StoredImage{}, ErrEmptyFilename
	}
	if s.uniqueNames {
		name = uuid.NewString() + "_" + name
	}

	dst := filepath.Join(s.dir, name)
	if err := os.WriteFile(dst, u.Data, 0o644); err != nil {
		return StoredImage{}, errors.Wrapf(err, "failed to store %s", name)
	}

	s.logger.Debug("Stored upload",
		zap.String("filename", u.Filename),
		zap.String("path", dst),
		zap.Int("bytes", len(u.Data)))

	return StoredImage{
		Ref:      s.ref(name),
		Path:     dst,
		Filename: name,
	}, nil
}

// Resolve maps a reference produced by Accept back to a stored file. A
// reference that does not name a file directly inside the upload directory
// is refused.
func (s *Store) Resolve(ref string) (StoredImage, error) {
	clean := strings.TrimPrefix(path.Clean("/"+ref), "/")
	name := clean
	if s.refPrefix != "" {
		name = strings.TrimPrefix(clean, s.refPrefix+"/")
		if name == clean {
			name = ""
		}
	}
	if name == "" || strings.Contains(name, "/") {
		return StoredImage{}, errors.Errorf("reference %q is outside the upload directory", ref)
	}
	return StoredImage{
		Ref:      clean,
		Path:     filepath.Join(s.dir, name),
		Filename: name,
	}, nil
}

func (s *Store) ref(name string) string {
	if s.refPrefix == "" {
		return name
	}
	return s.refPrefix + "/" + name
}
