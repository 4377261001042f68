package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
)

// SessionStore persists session snapshots using GORM.
type SessionStore struct {
	store *Store
}

// NewSessionStore creates a new session store.
func NewSessionStore(store *Store) *SessionStore {
	return &SessionStore{store: store}
}

// SaveSnapshot upserts the session's persisted state. Last write wins on
// session_id; flush loops and end-of-session writes share this path.
func (s *SessionStore) SaveSnapshot(ctx context.Context, sess models.SessionContext, ended bool) error {
	timeoutCtx, cancel := s.store.WithTimeout(ctx, DefaultQueryTimeout, "save_session_snapshot")
	defer cancel()

	metrics, err := marshalColumn(sess.SessionMetrics)
	if err != nil {
		return err
	}
	userState, err := marshalColumn(sess.UserState)
	if err != nil {
		return err
	}

	endedFlag := 0
	if ended {
		endedFlag = 1
	}

	record := &SessionSnapshot{
		SessionID:         sess.SessionID,
		UserID:            sess.UserID,
		StartedAtEpoch:    sess.StartTime.UnixMilli(),
		LastActivityEpoch: sess.CurrentTime.UnixMilli(),
		InteractionCount:  len(sess.Interactions),
		Metrics:           metrics,
		UserState:         userState,
		Ended:             endedFlag,
	}

	return s.store.DB.WithContext(timeoutCtx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "last_activity_epoch", "interaction_count",
				"metrics", "user_state", "ended",
			}),
		}).
		Create(record).Error
}

// StoredSnapshot is a persisted session read back from the database.
type StoredSnapshot struct {
	SessionID         string
	UserID            string
	StartedAtEpoch    int64
	LastActivityEpoch int64
	InteractionCount  int
	Metrics           models.SessionMetrics
	UserState         models.UserState
	Ended             bool
}

// GetSnapshot fetches a persisted session. Returns nil when absent.
func (s *SessionStore) GetSnapshot(ctx context.Context, sessionID string) (*StoredSnapshot, error) {
	timeoutCtx, cancel := s.store.WithTimeout(ctx, DefaultQueryTimeout, "get_session_snapshot")
	defer cancel()

	var record SessionSnapshot
	err := s.store.DB.WithContext(timeoutCtx).
		Where("session_id = ?", sessionID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := &StoredSnapshot{
		SessionID:         record.SessionID,
		UserID:            record.UserID,
		StartedAtEpoch:    record.StartedAtEpoch,
		LastActivityEpoch: record.LastActivityEpoch,
		InteractionCount:  record.InteractionCount,
		Ended:             record.Ended != 0,
	}
	if err := unmarshalColumn(record.Metrics, &out.Metrics); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(record.UserState, &out.UserState); err != nil {
		return nil, err
	}
	return out, nil
}
