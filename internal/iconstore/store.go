// Package iconstore is the on-disk favicon cache. Each site key owns one
// payload file and one JSON sidecar; both are replaced atomically so a
// reader never observes a half-written icon.
package iconstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/nikbrunner/favmark/internal/model"
)

const (
	payloadExt = ".icon"
	sidecarExt = ".json"
)

// DefaultErrorCooldown is the staleness threshold for network_error records.
const DefaultErrorCooldown = 5 * time.Minute

// Record is one cached icon with its freshness metadata.
type Record struct {
	SiteKey   string
	Payload   []byte // nil for not_found, and on List
	Format    string
	FetchedAt time.Time
	Outcome   model.FetchOutcome
	Size      int64
}

// sidecar is the persisted metadata record.
type sidecar struct {
	SiteKey   string             `json:"siteKey"`
	Format    string             `json:"format"`
	FetchedAt time.Time          `json:"fetchTimestamp"`
	Outcome   model.FetchOutcome `json:"outcome"`
	Size      int64              `json:"size"`
	Checksum  string             `json:"sha256,omitempty"`
}

// Options configures a Store.
type Options struct {
	Dir           string
	ErrorCooldown time.Duration // retry interval after network_error
	Now           func() time.Time
	Logger        *slog.Logger
}

// Store is the icon cache rooted at one directory.
type Store struct {
	dir           string
	errorCooldown time.Duration
	now           func() time.Time
	logger        *slog.Logger

	mu     sync.RWMutex
	pinned map[string]int
}

// New opens (creating if needed) the cache directory.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: icon cache directory is empty", model.ErrInvalidInput)
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create icon cache: %w", err)
	}
	if opts.ErrorCooldown <= 0 {
		opts.ErrorCooldown = DefaultErrorCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Store{
		dir:           opts.Dir,
		errorCooldown: opts.ErrorCooldown,
		now:           opts.Now,
		logger:        opts.Logger,
		pinned:        map[string]int{},
	}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// PayloadPath returns where the icon payload for siteKey lives on disk.
func (s *Store) PayloadPath(siteKey string) string {
	return filepath.Join(s.dir, fileKey(siteKey)+payloadExt)
}

func (s *Store) sidecarPath(siteKey string) string {
	return filepath.Join(s.dir, fileKey(siteKey)+sidecarExt)
}

// Lookup reads the record for siteKey from disk. A missing, unreadable or
// inconsistent record is reported as a miss.
func (s *Store) Lookup(siteKey string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.read(siteKey, true)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("icon cache entry unreadable, treating as miss",
				"siteKey", siteKey, "error", err)
		}
		return Record{}, false
	}
	return rec, true
}

func (s *Store) read(siteKey string, withPayload bool) (Record, error) {
	meta, err := readSidecar(s.sidecarPath(siteKey))
	if err != nil {
		return Record{}, err
	}
	if meta.SiteKey != siteKey {
		return Record{}, fmt.Errorf("%w: sidecar belongs to %q", model.ErrCorruptData, meta.SiteKey)
	}

	rec := Record{
		SiteKey:   meta.SiteKey,
		Format:    meta.Format,
		FetchedAt: meta.FetchedAt,
		Outcome:   meta.Outcome,
		Size:      meta.Size,
	}
	if !withPayload || meta.Size == 0 {
		return rec, nil
	}

	payload, err := os.ReadFile(s.PayloadPath(siteKey))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, fmt.Errorf("%w: payload missing", model.ErrCorruptData)
		}
		return Record{}, err
	}
	if int64(len(payload)) != meta.Size || checksum(payload) != meta.Checksum {
		return Record{}, fmt.Errorf("%w: payload does not match sidecar", model.ErrCorruptData)
	}
	rec.Payload = payload
	return rec, nil
}

func readSidecar(path string) (sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sidecar{}, err
	}
	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		return sidecar{}, fmt.Errorf("%w: %w", model.ErrCorruptData, err)
	}
	if meta.SiteKey == "" || !meta.Outcome.Valid() || meta.Size < 0 {
		return sidecar{}, fmt.Errorf("%w: invalid sidecar", model.ErrCorruptData)
	}
	return meta, nil
}

// Put stores a fetch result, replacing any existing record for siteKey.
//
// A network_error result without payload keeps the previously cached payload
// so a transient failure does not blank an icon that is already displayed;
// only the outcome and timestamp change. Writing an identical payload again
// leaves the payload file untouched.
func (s *Store) Put(siteKey string, payload []byte, format string, outcome model.FetchOutcome) (Record, error) {
	if siteKey == "" {
		return Record{}, fmt.Errorf("%w: empty site key", model.ErrInvalidInput)
	}
	if !outcome.Valid() {
		return Record{}, fmt.Errorf("%w: unknown outcome %q", model.ErrInvalidInput, outcome)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, prevErr := s.read(siteKey, true)
	if outcome == model.OutcomeNetworkError && len(payload) == 0 && prevErr == nil && len(prev.Payload) > 0 {
		payload, format = prev.Payload, prev.Format
	}
	if outcome == model.OutcomeNotFound {
		payload = nil
	}

	meta := sidecar{
		SiteKey:   siteKey,
		Format:    format,
		FetchedAt: s.now().UTC(),
		Outcome:   outcome,
		Size:      int64(len(payload)),
	}

	payloadPath := s.PayloadPath(siteKey)
	if len(payload) > 0 {
		meta.Checksum = checksum(payload)
		unchanged := prevErr == nil && prev.Size == meta.Size && checksum(prev.Payload) == meta.Checksum
		if !unchanged {
			if err := atomic.WriteFile(payloadPath, bytes.NewReader(payload)); err != nil {
				return Record{}, fmt.Errorf("write icon payload: %w", err)
			}
		}
	} else if err := os.Remove(payloadPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Record{}, fmt.Errorf("remove icon payload: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Record{}, err
	}
	if err := atomic.WriteFile(s.sidecarPath(siteKey), bytes.NewReader(data)); err != nil {
		return Record{}, fmt.Errorf("write icon sidecar: %w", err)
	}

	return Record{
		SiteKey:   siteKey,
		Payload:   payload,
		Format:    format,
		FetchedAt: meta.FetchedAt,
		Outcome:   outcome,
		Size:      meta.Size,
	}, nil
}

// IsStale reports whether rec needs refetching. Every record expires after
// maxAge; network_error records also expire once the error cooldown has
// elapsed, whichever comes first.
func (s *Store) IsStale(rec Record, maxAge time.Duration) bool {
	age := s.now().Sub(rec.FetchedAt)
	if rec.Outcome == model.OutcomeNetworkError {
		return age > maxAge || age >= s.errorCooldown
	}
	return age > maxAge
}

// Pin protects keys from eviction until a matching Unpin.
func (s *Store) Pin(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.pinned[k]++
	}
}

// Unpin releases keys pinned with Pin.
func (s *Store) Unpin(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if s.pinned[k] <= 1 {
			delete(s.pinned, k)
			continue
		}
		s.pinned[k]--
	}
}

// List returns metadata for every readable record, without payloads.
func (s *Store) List() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, _, err := s.scan()
	return records, err
}

// scan reads all sidecars. Unreadable ones are returned as garbage paths.
func (s *Store) scan() ([]Record, []string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read icon cache: %w", err)
	}

	var records []Record
	var garbage []string
	sidecars := map[string]bool{}

	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, sidecarExt) {
			continue
		}
		base := strings.TrimSuffix(name, sidecarExt)
		sidecars[base] = true

		meta, err := readSidecar(filepath.Join(s.dir, name))
		if err != nil || fileKey(meta.SiteKey) != base {
			garbage = append(garbage, filepath.Join(s.dir, name), filepath.Join(s.dir, base+payloadExt))
			continue
		}
		records = append(records, Record{
			SiteKey:   meta.SiteKey,
			Format:    meta.Format,
			FetchedAt: meta.FetchedAt,
			Outcome:   meta.Outcome,
			Size:      meta.Size,
		})
	}

	// payloads whose sidecar was never written
	for _, de := range dirEntries {
		name := de.Name()
		if !de.IsDir() && strings.HasSuffix(name, payloadExt) && !sidecars[strings.TrimSuffix(name, payloadExt)] {
			garbage = append(garbage, filepath.Join(s.dir, name))
		}
	}

	return records, garbage, nil
}

// Evict removes least-recently-fetched records until the total payload size
// is at most capacityBytes. Pinned records are never removed, and unreadable
// cache files are always reclaimed. It returns the evicted site keys.
func (s *Store) Evict(capacityBytes int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, garbage, err := s.scan()
	if err != nil {
		return nil, err
	}
	for _, path := range garbage {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove corrupt icon cache file", "path", path, "error", err)
		}
	}

	var total int64
	for _, r := range records {
		total += r.Size
	}
	if total <= capacityBytes {
		return nil, nil
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].FetchedAt.Before(records[j].FetchedAt)
	})

	var evicted []string
	for _, r := range records {
		if total <= capacityBytes {
			break
		}
		if s.pinned[r.SiteKey] > 0 || r.Size == 0 {
			continue
		}
		if err := s.remove(r.SiteKey); err != nil {
			return evicted, err
		}
		total -= r.Size
		evicted = append(evicted, r.SiteKey)
	}

	s.logger.Info("icon cache evicted", "records", len(evicted), "bytes", total, "capacity", capacityBytes)
	return evicted, nil
}

// remove deletes the sidecar first so a concurrent reader sees a clean miss.
func (s *Store) remove(siteKey string) error {
	for _, path := range []string{s.sidecarPath(siteKey), s.PayloadPath(siteKey)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("evict %q: %w", siteKey, err)
		}
	}
	return nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
