package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mockify/interviewstats/internal/metrics"
	"github.com/mockify/interviewstats/internal/transcript"
	"github.com/mockify/interviewstats/internal/wordbank"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("duplicate session id")
	ErrInvalidScore     = errors.New("score must be between 0 and 100")
)

// corruptSuffix marks the key a corrupt blob is copied to before
// it is overwritten.
const corruptSuffix = ".corrupt"

// batchSetter is implemented by stores that can write several
// keys atomically.
type batchSetter interface {
	SetMany(ctx context.Context, pairs map[string]string) error
}

// Repository reads and writes the typed aggregates over a KV.
// Read-modify-write operations are serialized within the
// process; nothing coordinates separate processes.
type Repository struct {
	kv    KV
	mu    sync.Mutex
	now   func() time.Time
	newID func() string

	// bankMu holds a cache swap and its save together so
	// concurrent rebuilds leave cache and storage in agreement.
	bankMu sync.Mutex
}

// RepoOption configures a Repository.
type RepoOption func(*Repository)

// WithClock overrides the ingestion clock.
func WithClock(now func() time.Time) RepoOption {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator overrides how missing session ids are filled.
func WithIDGenerator(fn func() string) RepoOption {
	return func(r *Repository) { r.newID = fn }
}

// NewRepository wraps kv.
func NewRepository(kv KV, opts ...RepoOption) *Repository {
	r := &Repository{kv: kv, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadSessions returns the persisted collection. A missing key
// yields an empty collection. A blob that does not decode is
// logged and also yields an empty collection; only a failing
// read returns an error.
func (r *Repository) LoadSessions(
	ctx context.Context,
) ([]transcript.Session, error) {
	sessions, _, err := r.loadSessions(ctx)
	return sessions, err
}

func (r *Repository) loadSessions(
	ctx context.Context,
) (sessions []transcript.Session, corrupt string, err error) {
	raw, ok, err := r.kv.Get(ctx, KeyPastInterviews)
	if err != nil {
		return nil, "", fmt.Errorf("loading sessions: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		metrics.SetSessions(0)
		return []transcript.Session{}, "", nil
	}
	sessions, skipped, err := transcript.DecodeSessions([]byte(raw))
	if err != nil {
		log.Printf(
			"store: %s is corrupt, treating as empty: %v",
			KeyPastInterviews, err,
		)
		metrics.RecordCorruptBlob(KeyPastInterviews)
		metrics.SetSessions(0)
		return []transcript.Session{}, raw, nil
	}
	if skipped > 0 {
		log.Printf(
			"store: skipped %d non-object records in %s",
			skipped, KeyPastInterviews,
		)
	}
	metrics.SetSessions(len(sessions))
	return sessions, "", nil
}

// SaveSessions replaces the persisted collection.
func (r *Repository) SaveSessions(
	ctx context.Context, sessions []transcript.Session,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveSessions(ctx, sessions, "")
}

func (r *Repository) saveSessions(
	ctx context.Context, sessions []transcript.Session, corrupt string,
) error {
	data, err := transcript.EncodeSessions(sessions)
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}
	if corrupt != "" {
		backup := KeyPastInterviews + corruptSuffix
		if err := r.kv.Set(ctx, backup, corrupt); err != nil {
			return fmt.Errorf("backing up corrupt sessions: %w", err)
		}
		log.Printf("store: kept corrupt %s under %s", KeyPastInterviews, backup)
	}
	if err := r.kv.Set(ctx, KeyPastInterviews, string(data)); err != nil {
		return fmt.Errorf("saving sessions: %w", err)
	}
	metrics.SetSessions(len(sessions))
	return nil
}

// mutate runs fn over the loaded collection and saves the result
// when fn succeeds.
func (r *Repository) mutate(
	ctx context.Context,
	fn func([]transcript.Session) ([]transcript.Session, error),
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions, corrupt, err := r.loadSessions(ctx)
	if err != nil {
		return err
	}
	next, err := fn(sessions)
	if err != nil {
		return err
	}
	return r.saveSessions(ctx, next, corrupt)
}

// GetSession returns the session with the given id.
func (r *Repository) GetSession(
	ctx context.Context, id string,
) (transcript.Session, error) {
	sessions, err := r.LoadSessions(ctx)
	if err != nil {
		return transcript.Session{}, err
	}
	if i := indexOf(sessions, id); i >= 0 {
		return sessions[i], nil
	}
	return transcript.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

func indexOf(sessions []transcript.Session, id string) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// AppendSessions adds sessions to the collection and returns
// their ids. A missing id is generated and a missing timestamp
// is set to the current instant. An id that already exists,
// in storage or earlier in the batch, fails the whole batch with
// ErrDuplicateSession.
func (r *Repository) AppendSessions(
	ctx context.Context, incoming ...transcript.Session,
) ([]string, error) {
	ids := make([]string, 0, len(incoming))
	err := r.mutate(ctx, func(
		sessions []transcript.Session,
	) ([]transcript.Session, error) {
		seen := make(map[string]bool, len(sessions)+len(incoming))
		for _, s := range sessions {
			seen[s.ID] = true
		}
		now := transcript.FormatInstant(r.now())
		for _, s := range incoming {
			if strings.TrimSpace(s.ID) == "" {
				s.ID = r.newID()
			}
			if strings.TrimSpace(s.Timestamp) == "" {
				s.Timestamp = now
			}
			if seen[s.ID] {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, s.ID)
			}
			seen[s.ID] = true
			sessions = append(sessions, s)
			ids = append(ids, s.ID)
		}
		return sessions, nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateFeedbackScore sets the feedback score of one session,
// creating its feedback record when absent.
func (r *Repository) UpdateFeedbackScore(
	ctx context.Context, id string, score float64,
) (transcript.Session, error) {
	if math.IsNaN(score) || score < 0 || score > 100 {
		return transcript.Session{}, fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	var updated transcript.Session
	err := r.mutate(ctx, func(
		sessions []transcript.Session,
	) ([]transcript.Session, error) {
		i := indexOf(sessions, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		fb := transcript.Feedback{}
		if sessions[i].Feedback != nil {
			fb = *sessions[i].Feedback
		}
		fb.Score = &score
		sessions[i].Feedback = &fb
		updated = sessions[i]
		return sessions, nil
	})
	return updated, err
}

// DeleteSession removes one session.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	n, err := r.DeleteSessions(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// DeleteSessions removes every session whose id is listed and
// returns how many were removed.
func (r *Repository) DeleteSessions(
	ctx context.Context, ids []string,
) (int, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	removed := 0
	err := r.mutate(ctx, func(
		sessions []transcript.Session,
	) ([]transcript.Session, error) {
		kept := sessions[:0]
		for _, s := range sessions {
			if drop[s.ID] {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// LoadWordBank returns the persisted bank and its provenance. A
// missing or corrupt bank yields an empty one.
func (r *Repository) LoadWordBank(
	ctx context.Context,
) (wordbank.Bank, wordbank.Provenance, error) {
	var prov wordbank.Provenance
	raw, ok, err := r.kv.Get(ctx, KeyWordBank)
	if err != nil {
		return nil, prov, fmt.Errorf("loading word bank: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return wordbank.Bank{}, prov, nil
	}
	bank, err := wordbank.Parse([]byte(raw))
	if err != nil {
		log.Printf("store: %s is corrupt, treating as empty: %v", KeyWordBank, err)
		metrics.RecordCorruptBlob(KeyWordBank)
		return wordbank.Bank{}, prov, nil
	}

	meta, ok, err := r.kv.Get(ctx, KeyWordBankMeta)
	if err != nil {
		return nil, prov, fmt.Errorf("loading word bank provenance: %w", err)
	}
	if ok {
		if err := json.Unmarshal([]byte(meta), &prov); err != nil {
			log.Printf("store: ignoring corrupt %s: %v", KeyWordBankMeta, err)
			metrics.RecordCorruptBlob(KeyWordBankMeta)
			prov = wordbank.Provenance{}
		}
	}
	metrics.SetWordBankTokens(len(bank))
	return bank, prov, nil
}

// SaveWordBank replaces the persisted bank and its provenance.
func (r *Repository) SaveWordBank(
	ctx context.Context, bank wordbank.Bank, prov wordbank.Provenance,
) error {
	if bank == nil {
		bank = wordbank.Bank{}
	}
	data, err := json.Marshal(bank)
	if err != nil {
		return fmt.Errorf("encoding word bank: %w", err)
	}
	meta, err := json.Marshal(prov)
	if err != nil {
		return fmt.Errorf("encoding word bank provenance: %w", err)
	}

	pairs := map[string]string{
		KeyWordBank:     string(data),
		KeyWordBankMeta: string(meta),
	}
	if bs, ok := r.kv.(batchSetter); ok {
		err = bs.SetMany(ctx, pairs)
	} else {
		err = r.kv.Set(ctx, KeyWordBank, pairs[KeyWordBank])
		if err == nil {
			err = r.kv.Set(ctx, KeyWordBankMeta, pairs[KeyWordBankMeta])
		}
	}
	if err != nil {
		return fmt.Errorf("saving word bank: %w", err)
	}
	return nil
}

// ClearWordBank persists an empty bank and drops its provenance.
func (r *Repository) ClearWordBank(ctx context.Context) error {
	if err := r.kv.Set(ctx, KeyWordBank, "{}"); err != nil {
		return fmt.Errorf("clearing word bank: %w", err)
	}
	if err := r.kv.Delete(ctx, KeyWordBankMeta); err != nil {
		return fmt.Errorf("clearing word bank provenance: %w", err)
	}
	metrics.SetWordBankTokens(0)
	return nil
}

// WarmCache installs the persisted bank into cache.
func (r *Repository) WarmCache(
	ctx context.Context, cache *wordbank.Cache,
) (wordbank.Snapshot, error) {
	bank, prov, err := r.LoadWordBank(ctx)
	if err != nil {
		return wordbank.Snapshot{}, err
	}
	cache.Load(bank, prov)
	return wordbank.Snapshot{Bank: bank, Provenance: prov}, nil
}

// RebuildWordBank rebuilds cache over sessions and persists the
// result. When the write fails the rebuilt bank stays in cache,
// so it can still be viewed and exported, and the error is
// returned.
func (r *Repository) RebuildWordBank(
	ctx context.Context, cache *wordbank.Cache,
	sessions []transcript.Session, now time.Time, trigger string,
) (wordbank.Snapshot, error) {
	r.bankMu.Lock()
	defer r.bankMu.Unlock()
	snap := cache.Rebuild(sessions, now)
	err := r.SaveWordBank(ctx, snap.Bank, snap.Provenance)
	metrics.RecordRebuild(trigger, len(snap.Bank), err)
	if err != nil {
		log.Printf("store: word bank rebuilt but not saved: %v", err)
		return snap, err
	}
	return snap, nil
}
