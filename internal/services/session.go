package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/delivery-backend/internal/logger"
	"github.com/Ananth-NQI/delivery-backend/internal/models"
	"github.com/Ananth-NQI/delivery-backend/internal/storage"
)

// ErrCorruptedSession is returned when a session's draft does not hold the
// variant its step works on.
var ErrCorruptedSession = errors.New("session draft does not match its step")

// Session is a decoded conversation session
type Session struct {
	Phone      string
	Step       models.Step
	CategoryID *string
	Draft      models.Draft
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Expired is set when the session was idle past the timeout. An expired
	// session must be discarded, never resumed.
	Expired bool
	IdleFor time.Duration

	draftErr error
}

// draftAs returns the session draft as T, or ErrCorruptedSession
func draftAs[T models.Draft](s *Session) (T, error) {
	var zero T
	if s.draftErr != nil {
		return zero, fmt.Errorf("%w: %v", ErrCorruptedSession, s.draftErr)
	}
	d, ok := s.Draft.(T)
	if !ok {
		return zero, fmt.Errorf("%w: step %s holds %T", ErrCorruptedSession, s.Step, s.Draft)
	}
	return d, nil
}

// SessionStore keeps at most one in-progress guided flow per phone
type SessionStore struct {
	store   storage.Store
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewSessionStore creates a SessionStore expiring sessions idle for timeout
func NewSessionStore(store storage.Store, timeout time.Duration, log *zap.Logger) *SessionStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionStore{store: store, timeout: timeout, now: time.Now, logger: log}
}

// SetClock replaces the clock used for expiry checks
func (s *SessionStore) SetClock(now func() time.Time) {
	s.now = now
}

// Timeout returns the idle expiry
func (s *SessionStore) Timeout() time.Duration {
	return s.timeout
}

// Get returns the session for phone, or nil if none exists. An undecodable
// draft is not an error here; it surfaces when a step reads the draft.
func (s *SessionStore) Get(ctx context.Context, phone string) (*Session, error) {
	row, err := s.store.GetSession(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session := &Session{
		Phone:      row.Phone,
		Step:       row.Step,
		CategoryID: row.CategoryID,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	session.Draft, session.draftErr = models.DecodeDraft(row.DraftData)
	if session.draftErr != nil {
		s.logger.Warn("session draft could not be decoded",
			logger.Phone(phone), zap.String("step", string(row.Step)), zap.Error(session.draftErr))
	}

	session.IdleFor = s.now().Sub(row.UpdatedAt)
	session.Expired = session.IdleFor > s.timeout
	return session, nil
}

// Upsert writes the whole session in one store call, refreshes its
// activity timestamp and returns the session as stored.
func (s *SessionStore) Upsert(ctx context.Context, phone string, step models.Step, categoryID *string, draft models.Draft) (*Session, error) {
	if draft != nil && step.DraftKind() != draft.Kind() {
		return nil, fmt.Errorf("%w: step %s cannot hold %s", ErrCorruptedSession, step, draft.Kind())
	}
	data, err := models.EncodeDraft(draft)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.store.SaveSession(ctx, &models.ConversationSession{
		Phone:      phone,
		Step:       step,
		CategoryID: categoryID,
		DraftData:  data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	// re-read so CreatedAt reflects the original start of the flow
	session, err := s.Get(ctx, phone)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("failed to save session: %w", storage.ErrNotFound)
	}
	return session, nil
}

// Delete removes the session for phone. It reports whether one existed.
func (s *SessionStore) Delete(ctx context.Context, phone string) (bool, error) {
	existed, err := s.store.DeleteSession(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return existed, nil
}
