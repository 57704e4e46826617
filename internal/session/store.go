package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates no state file exists for the session.
	ErrNotFound = errors.New("session state not found")
)

const (
	// Transient JSON decode failures are retried this many times before the
	// session is treated as absent. A reader can observe a rename mid-flight
	// or a torn read under concurrent access.
	readRetries  = 3
	readBackoff  = 50 * time.Millisecond
	hashLen      = 8
	filePerm     = 0o600
	dirPerm      = 0o700
	filePrefix   = "session_"
	fileSuffix   = ".json"
	dateFormat   = "20060102"
	hourFormat   = "15"
	lookbackDays = 2
)

// Store owns all on-disk access to session state files.
//
// Writes go to a uniquely named temporary file in the same directory followed
// by an atomic rename, so a concurrent reader sees either the fully old or
// the fully new document, never a partial write. Last writer wins; losing an
// occasional counter increment under true concurrency is accepted.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("state directory not configured")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// SessionHash derives the 8-character file-name component for a session id:
// the first 8 lowercase-alphanumeric characters of the identifier when it
// yields enough of them, otherwise the first 8 hex characters of its SHA-256.
func SessionHash(sessionID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(sessionID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == hashLen {
				return b.String()
			}
		}
	}
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// fileName builds the hour-bucketed canonical file name.
func fileName(t time.Time, hash string) string {
	return filePrefix + t.Format(dateFormat) + "_" + t.Format(hourFormat) + "_" + hash + fileSuffix
}

// legacyFileName builds the pre-hour-bucket file name still honored on read.
func legacyFileName(t time.Time, hash string) string {
	return filePrefix + t.Format(dateFormat) + "_" + hash + fileSuffix
}

// Create returns a fresh State for the session. The caller persists it with
// Save.
func (s *Store) Create(sessionID string) *State {
	return &State{
		SessionID: sessionID,
		CreatedAt: s.now().Unix(),
		Gates:     make(map[string]*GateState),
	}
}

// Load reads the most recent state file for the session.
//
// Lookup order: today's hour buckets (newest hour first), yesterday's hour
// buckets, then the legacy no-hour names for both days. Sessions spanning
// midnight are found through the yesterday fallback.
func (s *Store) Load(sessionID string) (*State, error) {
	path, err := s.find(sessionID)
	if err != nil {
		return nil, err
	}
	return s.readFile(path)
}

// LoadOrCreate loads the session state, creating a fresh document when no
// file exists. Any other failure is returned unchanged.
func (s *Store) LoadOrCreate(sessionID string) (*State, error) {
	st, err := s.Load(sessionID)
	if errors.Is(err, ErrNotFound) {
		return s.Create(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Save persists the state atomically.
//
// When a file for the session already exists it is overwritten in place, so
// a long-lived session keeps one file rather than shedding copies across
// hour buckets. Otherwise the current hour bucket names the new file.
func (s *Store) Save(st *State) error {
	if st == nil || st.SessionID == "" {
		return errors.New("state has no session id")
	}

	path, err := s.find(st.SessionID)
	if errors.Is(err, ErrNotFound) {
		path = filepath.Join(s.dir, fileName(s.now(), SessionHash(st.SessionID)))
	} else if err != nil {
		return err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	tmp := filepath.Join(s.dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming session state: %w", err)
	}
	return nil
}

// Path returns the canonical path Save would use right now. Inspection
// commands use it; the engine itself goes through Load/Save.
func (s *Store) Path(sessionID string) string {
	if path, err := s.find(sessionID); err == nil {
		return path
	}
	return filepath.Join(s.dir, fileName(s.now(), SessionHash(sessionID)))
}

// find locates the newest existing state file for the session.
func (s *Store) find(sessionID string) (string, error) {
	hash := SessionHash(sessionID)
	now := s.now()

	for day := 0; day < lookbackDays; day++ {
		t := now.AddDate(0, 0, -day)
		pattern := filepath.Join(s.dir, filePrefix+t.Format(dateFormat)+"_*_"+hash+fileSuffix)
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return "", fmt.Errorf("scanning state directory: %w", err)
		}
		if len(matches) > 0 {
			// Hour is zero-padded, so lexical order is chronological.
			sort.Sort(sort.Reverse(sort.StringSlice(matches)))
			return matches[0], nil
		}
	}

	for day := 0; day < lookbackDays; day++ {
		t := now.AddDate(0, 0, -day)
		legacy := filepath.Join(s.dir, legacyFileName(t, hash))
		if _, err := os.Stat(legacy); err == nil {
			return legacy, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, sessionID)
}

// readFile decodes a state file, retrying transient decode failures.
func (s *Store) readFile(path string) (*State, error) {
	var lastErr error
	for attempt := 0; attempt < readRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(readBackoff)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				// Renamed away between find and read.
				return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return nil, fmt.Errorf("reading session state: %w", err)
		}

		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			lastErr = err
			continue
		}
		if st.Gates == nil {
			st.Gates = make(map[string]*GateState)
		}
		return &st, nil
	}

	// Persistent decode failure reads as absent rather than fatal; the
	// engine starts the session over instead of wedging every hook.
	return nil, fmt.Errorf("%w: undecodable after %d attempts: %v", ErrNotFound, readRetries, lastErr)
}
