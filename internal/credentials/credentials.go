// Package credentials persists linked accounts in a JSON file.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/thellimist/oauthlink/internal/oauthflow"
)

// File represents the ~/.oauthlink/credentials.json file.
type File struct {
	Version int             `json:"version"`
	Links   map[string]Link `json:"links"`
}

// Link is one linked storage account, keyed by provider base URL.
type Link struct {
	ClientID      string                `json:"client_id"`
	TokenEndpoint string                `json:"token_endpoint"`
	Token         oauthflow.TokenResult `json:"token"`
	LinkedAt      time.Time             `json:"linked_at"`
	RefreshedAt   *time.Time            `json:"refreshed_at,omitempty"`
}

func emptyFile() *File {
	return &File{Version: 1, Links: make(map[string]Link)}
}

// Load reads the credentials file at path. A missing file yields an empty
// File.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return emptyFile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	f := emptyFile()
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if f.Links == nil {
		f.Links = make(map[string]Link)
	}
	return f, nil
}

// Save replaces the file at path with f. The parent directory is created
// 0700 and the file is written 0600 through a rename, so readers never see
// a partial file.
func Save(path string, f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// GetLink returns the link stored for baseURL, or nil.
func GetLink(f *File, baseURL string) *Link {
	if f.Links == nil {
		return nil
	}
	l, ok := f.Links[baseURL]
	if !ok {
		return nil
	}
	return &l
}

// SetLink stores l for baseURL, replacing any previous link.
func SetLink(f *File, baseURL string, l Link) {
	if f.Links == nil {
		f.Links = make(map[string]Link)
	}
	f.Links[baseURL] = l
}

// UpdateToken replaces the token of an existing link and stamps the refresh
// time. It reports false if no link exists for baseURL.
func UpdateToken(f *File, baseURL string, tok oauthflow.TokenResult, now time.Time) bool {
	l := GetLink(f, baseURL)
	if l == nil {
		return false
	}
	l.Token = tok
	l.RefreshedAt = &now
	f.Links[baseURL] = *l
	return true
}

// DefaultPath returns the path to the credentials file.
// It checks the OAUTHLINK_CREDENTIALS_FILE env var first; if set, that
// path is returned. Otherwise it returns ~/.oauthlink/credentials.json.
func DefaultPath() string {
	if p := os.Getenv("OAUTHLINK_CREDENTIALS_FILE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".oauthlink", "credentials.json")
}
