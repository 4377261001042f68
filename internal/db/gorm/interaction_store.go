package gorm

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
)

// InteractionStore provides interaction persistence using GORM.
type InteractionStore struct {
	store *Store
}

// NewInteractionStore creates a new interaction store.
func NewInteractionStore(store *Store) *InteractionStore {
	return &InteractionStore{store: store}
}

// Put persists one interaction. Idempotent on the interaction ID: replays
// from the offline queue do nothing.
func (s *InteractionStore) Put(ctx context.Context, in models.UserInteraction) error {
	timeoutCtx, cancel := s.store.WithTimeout(ctx, FastQueryTimeout, "put_interaction")
	defer cancel()

	return s.store.DB.WithContext(timeoutCtx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(toRecord(in)).Error
}

// BatchPut persists a batch of interactions in one transaction. Used by the
// offline-queue flush loop; all-or-nothing so a failed flush can requeue the
// whole batch.
func (s *InteractionStore) BatchPut(ctx context.Context, batch []models.UserInteraction) error {
	if len(batch) == 0 {
		return nil
	}

	timeoutCtx, cancel := s.store.WithTimeout(ctx, SlowQueryTimeout, "batch_put_interactions")
	defer cancel()

	records := make([]*Interaction, len(batch))
	for i, in := range batch {
		records[i] = toRecord(in)
	}

	return s.store.DB.WithContext(timeoutCtx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(records).Error
	})
}

// RecentByUser returns the user's most recent interactions, newest first.
func (s *InteractionStore) RecentByUser(ctx context.Context, userID string, limit int) ([]models.UserInteraction, error) {
	if limit <= 0 {
		limit = 50
	}

	timeoutCtx, cancel := s.store.WithTimeout(ctx, DefaultQueryTimeout, "recent_interactions")
	defer cancel()

	var records []Interaction
	err := s.store.DB.WithContext(timeoutCtx).
		Where("user_id = ?", userID).
		Order("created_at_epoch DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.UserInteraction, len(records))
	for i := range records {
		out[i] = fromRecord(&records[i])
	}
	return out, nil
}

// CountBySession returns how many interactions a session has persisted.
func (s *InteractionStore) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	timeoutCtx, cancel := s.store.WithTimeout(ctx, DefaultQueryTimeout, "count_session_interactions")
	defer cancel()

	var count int64
	err := s.store.DB.WithContext(timeoutCtx).
		Model(&Interaction{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

func toRecord(in models.UserInteraction) *Interaction {
	return &Interaction{
		ID:             in.ID,
		UserID:         in.UserID,
		CardID:         in.CardID,
		CardType:       string(in.CardType),
		Action:         string(in.Action),
		SessionID:      in.SessionID,
		TimeOfDay:      in.Context.TimeOfDay,
		DayOfWeek:      in.Context.DayOfWeek,
		PositionInFeed: in.Context.PositionInFeed,
		TimeSpentMs:    in.Context.TimeSpentMs,
		CreatedAtEpoch: in.Timestamp.UnixMilli(),
	}
}

func fromRecord(r *Interaction) models.UserInteraction {
	return models.UserInteraction{
		ID:        r.ID,
		UserID:    r.UserID,
		CardID:    r.CardID,
		CardType:  models.CardType(r.CardType),
		Action:    models.ActionType(r.Action),
		SessionID: r.SessionID,
		Timestamp: epochToTime(r.CreatedAtEpoch),
		Context: models.InteractionContext{
			TimeOfDay:      r.TimeOfDay,
			DayOfWeek:      r.DayOfWeek,
			SessionID:      r.SessionID,
			PositionInFeed: r.PositionInFeed,
			TimeSpentMs:    r.TimeSpentMs,
		},
	}
}
