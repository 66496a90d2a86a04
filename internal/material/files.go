package material

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-materials/internal/storage"
)

// Upload is a file received with a create or edit request.
type Upload struct {
	Name string
	Body io.Reader
}

// sniffLen matches the read limit mimetype uses for detection.
const sniffLen = 3072

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Files keeps blobs in step with material rows. Writes happen before the
// database transaction; deletes of replaced or rolled-back blobs happen
// after it and never fail the request.
type Files struct {
	blobs storage.BlobStore
	log   *log.Logger
	newID func() string
}

func NewFiles(blobs storage.BlobStore, logger *log.Logger) *Files {
	if logger == nil {
		logger = log.Default()
	}
	return &Files{blobs: blobs, log: logger, newID: uuid.NewString}
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "._")
	if name == "" {
		return "upload"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}

// Store writes the upload under a fresh key and reports its path and
// sniffed MIME type.
func (f *Files) Store(up Upload) (FileRef, error) {
	if up.Body == nil {
		return FileRef{}, ErrFileRequired
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(up.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FileRef{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	mt := mimetype.Detect(head)

	key := "materials/" + f.newID() + "-" + sanitizeName(up.Name)
	key, err = f.blobs.Put(key, io.MultiReader(bytes.NewReader(head), up.Body))
	if err != nil {
		return FileRef{}, fmt.Errorf("store upload: %w", err)
	}
	return FileRef{Path: key, Type: mt.String()}, nil
}

// Discard removes a blob that is no longer referenced. Failures are logged
// as warnings; a blob that is already gone is not an error.
func (f *Files) Discard(p, reason string) {
	if p == "" {
		return
	}
	err := f.blobs.Delete(p)
	switch {
	case err == nil:
		f.log.Printf("file removed: %s (%s)", p, reason)
	case errors.Is(err, fs.ErrNotExist):
		f.log.Printf("FileIoWarning: %s already absent (%s)", p, reason)
	default:
		f.log.Printf("FileIoWarning: remove %s (%s): %v", p, reason, err)
	}
}
