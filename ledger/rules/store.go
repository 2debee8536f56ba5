package rules

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml"

	"github.com/plenert/ledger/ledger/store"
)

type ruleFile struct {
	Rules []Rule `toml:"rule"`
}

// Store is a rule file on disk.
type Store struct {
	path     string
	rules    []Rule
	backedUp map[string]bool
}

// Load reads the rule file at path. A missing file is an empty store.
func Load(path string) (*Store, error) {
	s := &Store{path: path, backedUp: make(map[string]bool)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var f ruleFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.rules = f.Rules
	return s, nil
}

// Path returns the rule file location.
func (s *Store) Path() string { return s.path }

// Rules returns the rules in file order.
func (s *Store) Rules() []Rule { return s.rules }

// Add appends a rule. It is not written until Save.
func (s *Store) Add(r Rule) { s.rules = append(s.rules, r) }

// BackupPath returns where the rule file is backed up for a session.
func BackupPath(path, session string) string {
	return store.BackupPath(path, session)
}

// Save writes all rules. The first save of a session keeps a compressed
// copy of the previous file next to it.
func (s *Store) Save(session string) error {
	if !s.backedUp[session] {
		if err := store.Backup(s.path, session); err != nil {
			return fmt.Errorf("backup rules: %w", err)
		}
		s.backedUp[session] = true
	}

	return store.WriteFile(s.path, func(w io.Writer) error {
		if _, err := io.WriteString(w, "# classification rules, first match wins\n\n"); err != nil {
			return err
		}
		return toml.NewEncoder(w).Order(toml.OrderPreserve).Indentation("  ").Encode(ruleFile{Rules: s.rules})
	})
}

// Restore replaces the rule file with the backup of a session.
func Restore(path, session string) error {
	return store.Restore(path, session)
}
