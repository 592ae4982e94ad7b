// Package media manages ephemeral locators for user-selected files and the
// transferable forms of media sent to or received from the service.
package media

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// LocatorPrefix marks ephemeral locators issued by a Store.
const LocatorPrefix = "blob:"

// Payload is the transferable form of a local file.
type Payload struct {
	// Data is the standard base64 encoding of the file contents.
	Data     string
	MIMEType string
}

// Bytes decodes the payload.
func (p Payload) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Data)
}

// Store tracks ephemeral locators for local files. Every locator stays valid
// until it is released, replaced, or the store is closed.
type Store struct {
	logger *slog.Logger

	mu    sync.Mutex
	paths map[string]string
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger, paths: make(map[string]string)}
}

// RegisterLocalFile issues a locator for the file at path for preview.
func (s *Store) RegisterLocalFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", core.NewInvalidRequestError(fmt.Sprintf("cannot open %s: %v", path, err))
	}
	if info.IsDir() {
		return "", core.NewInvalidRequestError(path + " is a directory")
	}

	locator := LocatorPrefix + uuid.NewString()
	s.mu.Lock()
	s.paths[locator] = path
	s.mu.Unlock()
	s.logger.Debug("media locator issued", "locator", locator, "path", path)
	return locator, nil
}

// Replace releases old and issues a locator for path. old may be empty.
func (s *Store) Replace(old, path string) (string, error) {
	locator, err := s.RegisterLocalFile(path)
	if err != nil {
		return "", err
	}
	if old != "" {
		s.Release(old)
	}
	return locator, nil
}

// Release invalidates a locator. Releasing an unknown locator is a no-op.
func (s *Store) Release(locator string) {
	s.mu.Lock()
	_, ok := s.paths[locator]
	delete(s.paths, locator)
	s.mu.Unlock()
	if ok {
		s.logger.Debug("media locator released", "locator", locator)
	}
}

// Resolve returns the file path behind a live locator.
func (s *Store) Resolve(locator string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paths[locator]
	return p, ok
}

// Len returns the number of live locators.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

// Close releases every outstanding locator.
func (s *Store) Close() error {
	s.mu.Lock()
	n := len(s.paths)
	clear(s.paths)
	s.mu.Unlock()
	if n > 0 {
		s.logger.Debug("media store closed", "released", n)
	}
	return nil
}

// ToTransferable reads the file at path into a base64 payload with its
// detected MIME type.
func ToTransferable(path string) (Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, core.NewInvalidRequestError(fmt.Sprintf("cannot read %s: %v", path, err))
	}
	return Payload{
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: DetectMIME(data),
	}, nil
}

// DetectMIME sniffs the media type of data, without parameters.
func DetectMIME(data []byte) string {
	mt, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return mt
}

// FromGenerated wraps a generated binary payload as a message attachment with
// an embedded data URI.
func FromGenerated(kind types.MediaKind, data []byte, mimeType, prompt string) types.MediaRef {
	if mimeType == "" {
		mimeType = DetectMIME(data)
	}
	return types.MediaRef{
		Kind:     kind,
		Locator:  DataURI(mimeType, data),
		Prompt:   prompt,
		MIMEType: mimeType,
	}
}

// FromRemote wraps a remote URL as a message attachment.
func FromRemote(kind types.MediaKind, url, mimeType, prompt string) types.MediaRef {
	return types.MediaRef{Kind: kind, Locator: url, Prompt: prompt, MIMEType: mimeType}
}
