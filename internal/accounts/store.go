package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/oauth2"
)

// Document is the persisted account store.
type Document struct {
	Accounts       map[string]*Account `json:"accounts"`
	DefaultAccount string              `json:"default_account,omitempty"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Accounts: map[string]*Account{}}
}

// Ordered returns the accounts in iteration order: by AddedAt, then email.
func (d *Document) Ordered() []*Account {
	list := make([]*Account, 0, len(d.Accounts))
	for _, a := range d.Accounts {
		list = append(list, a)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].AddedAt.Equal(list[j].AddedAt) {
			return list[i].AddedAt.Before(list[j].AddedAt)
		}
		return list[i].Email < list[j].Email
	})
	return list
}

// repairDefault makes DefaultAccount point at an existing entry, falling
// back to the first account in iteration order, or to none.
func (d *Document) repairDefault() {
	if _, ok := d.Accounts[d.DefaultAccount]; ok && d.DefaultAccount != "" {
		return
	}
	d.DefaultAccount = ""
	if ordered := d.Ordered(); len(ordered) > 0 {
		d.DefaultAccount = ordered[0].Email
	}
}

// Store loads and saves the account document.
type Store interface {
	Load() (*Document, error)
	Save(doc *Document) error
}

// FileStore keeps the document as a JSON file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns <user config dir>/meetsched/accounts.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, "meetsched", "accounts.json"), nil
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document. A missing file yields an empty document. A file
// written before multi-account support (a bare token object) is lifted under
// LegacyPlaceholder and made the default.
func (s *FileStore) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account store %s: %w", s.path, err)
	}
	return decodeDocument(data)
}

func decodeDocument(data []byte) (*Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse account store: %w", err)
	}

	if _, ok := fields["accounts"]; !ok && isLegacyToken(fields) {
		var tok oauth2.Token
		if err := json.Unmarshal(data, &tok); err != nil {
			return nil, fmt.Errorf("failed to parse legacy token: %w", err)
		}
		doc := NewDocument()
		doc.Accounts[LegacyPlaceholder] = &Account{Email: LegacyPlaceholder, Token: &tok}
		doc.DefaultAccount = LegacyPlaceholder
		return doc, nil
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse account store: %w", err)
	}
	if doc.Accounts == nil {
		doc.Accounts = map[string]*Account{}
	}
	for email, a := range doc.Accounts {
		if a == nil {
			delete(doc.Accounts, email)
			continue
		}
		a.Email = email
	}
	return doc, nil
}

func isLegacyToken(fields map[string]json.RawMessage) bool {
	_, access := fields["access_token"]
	_, refresh := fields["refresh_token"]
	return access || refresh
}

// Save writes the whole document through a temporary file and rename.
func (s *FileStore) Save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode account store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".accounts-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary account store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict account store permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write account store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write account store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace account store: %w", err)
	}
	return nil
}
