package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
)

// OrderStore persists per-user content orders using GORM.
type OrderStore struct {
	store *Store
}

// NewOrderStore creates a new order store.
func NewOrderStore(store *Store) *OrderStore {
	return &OrderStore{store: store}
}

// Save upserts the user's current content order. Last write wins on user_id.
func (s *OrderStore) Save(ctx context.Context, userID, sessionID string, result models.ReorderResult) error {
	timeoutCtx, cancel := s.store.WithTimeout(ctx, DefaultQueryTimeout, "save_content_order")
	defer cancel()

	cards, err := marshalColumn(result.Cards)
	if err != nil {
		return err
	}
	reasons, err := marshalColumn(result.Reasons)
	if err != nil {
		return err
	}

	record := &ContentOrder{
		UserID:              userID,
		SessionID:           sessionID,
		Cards:               cards,
		Reasons:             reasons,
		ExpectedImprovement: result.ExpectedImprovement,
		Confidence:          result.Confidence,
		UpdatedAtEpoch:      time.Now().UnixMilli(),
	}

	return s.store.DB.WithContext(timeoutCtx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"session_id", "cards", "reasons",
				"expected_improvement", "confidence", "updated_at_epoch",
			}),
		}).
		Create(record).Error
}

// Get fetches the user's current content order. Returns nil when the user
// has no stored order.
func (s *OrderStore) Get(ctx context.Context, userID string) (*models.ReorderResult, error) {
	timeoutCtx, cancel := s.store.WithTimeout(ctx, DefaultQueryTimeout, "get_content_order")
	defer cancel()

	var record ContentOrder
	err := s.store.DB.WithContext(timeoutCtx).
		Where("user_id = ?", userID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := &models.ReorderResult{
		ExpectedImprovement: record.ExpectedImprovement,
		Confidence:          record.Confidence,
	}
	if err := unmarshalColumn(record.Cards, &out.Cards); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(record.Reasons, &out.Reasons); err != nil {
		return nil, err
	}
	return out, nil
}
