package bib

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/quirelab/quire/core/doc"
	qerrors "github.com/quirelab/quire/core/errors"
)

// Store holds the parsed entries of one bibliography file, keyed for
// citation lookup and ordered as authored.
type Store struct {
	// Path is the file the store was loaded from, empty for stores
	// built in memory.
	Path string

	// Checksum is the blake3 hash of the source bytes, recorded for
	// change detection.
	Checksum string

	entries map[string]*Entry
	order   []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// Parse builds a store from .bib source bytes. Records that fail to
// parse and duplicate keys degrade to warnings; the first occurrence of
// a key wins.
func Parse(src []byte) (*Store, []doc.Warning) {
	s := NewStore()
	sum := blake3.Sum256(src)
	s.Checksum = hex.EncodeToString(sum[:])

	records, warnings := splitRecords(string(src))
	for _, record := range records {
		entry, err := parseRecord(record)
		if err != nil {
			warnings = append(warnings, doc.Warningf(doc.WarnLossyConstruct,
				"malformed bibliography record ignored: %v", err))
			continue
		}
		if entry.Key == "" {
			warnings = append(warnings, doc.Warningf(doc.WarnLossyConstruct,
				"@%s record without a citation key ignored", entry.Type))
			continue
		}
		if !s.Add(entry) {
			warnings = append(warnings, doc.Warningf(doc.WarnDuplicateEntry,
				"duplicate citation key %q: keeping the first definition", entry.Key))
		}
	}
	return s, warnings
}

// Load reads and parses the bibliography file at path.
func Load(path string) (*Store, []doc.Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &qerrors.IOError{Operation: "read", Path: path, Err: err}
	}
	s, warnings := Parse(data)
	s.Path = path
	return s, warnings, nil
}

// CompanionPath resolves the bibliography file for a manuscript:
// the explicit metadata path when given (relative paths resolve
// against the manuscript's directory), otherwise the manuscript's own
// name with a .bib extension.
func CompanionPath(docPath, explicit string) string {
	if explicit != "" {
		if filepath.IsAbs(explicit) || docPath == "" {
			return explicit
		}
		return filepath.Join(filepath.Dir(docPath), explicit)
	}
	ext := filepath.Ext(docPath)
	return strings.TrimSuffix(docPath, ext) + ".bib"
}

// Add inserts an entry, reporting false when the key already exists.
// Existing entries are never overwritten.
func (s *Store) Add(e *Entry) bool {
	if s.entries == nil {
		s.entries = make(map[string]*Entry)
	}
	if _, exists := s.entries[e.Key]; exists {
		return false
	}
	s.entries[e.Key] = e
	s.order = append(s.order, e.Key)
	return true
}

// Get looks up an entry by citation key.
func (s *Store) Get(key string) (*Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Keys returns citation keys in authored order.
func (s *Store) Keys() []string {
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Entries returns all entries in authored order.
func (s *Store) Entries() []*Entry {
	out := make([]*Entry, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.entries[key])
	}
	return out
}

// Len reports the number of entries.
func (s *Store) Len() int {
	return len(s.order)
}

// SortedKeys returns citation keys ordered by first author family name,
// then year, then key, the order bibliographies render in.
func (s *Store) SortedKeys() []string {
	keys := s.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := s.entries[keys[i]], s.entries[keys[j]]
		af, bf := strings.ToLower(a.FirstAuthorFamily()), strings.ToLower(b.FirstAuthorFamily())
		if af != bf {
			return af < bf
		}
		if a.Year() != b.Year() {
			return a.Year() < b.Year()
		}
		return keys[i] < keys[j]
	})
	return keys
}
