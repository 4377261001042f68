package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultStrength is the personalization weight for users without history.
const DefaultStrength = 0.5

// StrengthStore persists per-user personalization strengths using GORM.
type StrengthStore struct {
	store *Store
}

// NewStrengthStore creates a new strength store.
func NewStrengthStore(store *Store) *StrengthStore {
	return &StrengthStore{store: store}
}

// Get returns the user's current personalization strength, falling back to
// DefaultStrength when the user has no stored value.
func (s *StrengthStore) Get(ctx context.Context, userID string) (float64, error) {
	timeoutCtx, cancel := s.store.WithTimeout(ctx, FastQueryTimeout, "get_strength")
	defer cancel()

	var record PersonalizationStrength
	err := s.store.DB.WithContext(timeoutCtx).
		Where("user_id = ?", userID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultStrength, nil
	}
	if err != nil {
		return DefaultStrength, err
	}
	return record.Strength, nil
}

// Save upserts the user's personalization strength.
func (s *StrengthStore) Save(ctx context.Context, userID string, strength float64, reason string) error {
	timeoutCtx, cancel := s.store.WithTimeout(ctx, DefaultQueryTimeout, "save_strength")
	defer cancel()

	record := &PersonalizationStrength{
		UserID:         userID,
		Strength:       strength,
		Reason:         reason,
		UpdatedAtEpoch: time.Now().UnixMilli(),
	}

	return s.store.DB.WithContext(timeoutCtx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"strength", "reason", "updated_at_epoch",
			}),
		}).
		Create(record).Error
}
