package gorm

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
)

// CatalogStore provides read access to the content catalog the reorderer
// draws candidates from.
type CatalogStore struct {
	store *Store
}

// NewCatalogStore creates a new catalog store.
func NewCatalogStore(store *Store) *CatalogStore {
	return &CatalogStore{store: store}
}

// ListCandidates returns active catalog cards ordered by relevance prior,
// highest first. An empty catalog returns an empty slice, not an error.
func (s *CatalogStore) ListCandidates(ctx context.Context, limit int) ([]models.PersonalizedCard, error) {
	if limit <= 0 {
		limit = 50
	}

	timeoutCtx, cancel := s.store.WithTimeout(ctx, DefaultQueryTimeout, "list_candidates")
	defer cancel()

	var records []ContentItem
	err := s.store.DB.WithContext(timeoutCtx).
		Where("active = ?", 1).
		Order("relevance_score DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.PersonalizedCard, len(records))
	for i, r := range records {
		out[i] = models.PersonalizedCard{
			ID:             r.CardID,
			Type:           models.CardType(r.CardType),
			Title:          r.Title,
			RelevanceScore: r.RelevanceScore,
		}
	}
	return out, nil
}

// Upsert inserts or refreshes one catalog card.
func (s *CatalogStore) Upsert(ctx context.Context, card models.PersonalizedCard) error {
	timeoutCtx, cancel := s.store.WithTimeout(ctx, DefaultQueryTimeout, "upsert_content_item")
	defer cancel()

	record := &ContentItem{
		CardID:         card.ID,
		CardType:       string(card.Type),
		Title:          card.Title,
		RelevanceScore: card.RelevanceScore,
		Active:         1,
		CreatedAtEpoch: time.Now().UnixMilli(),
	}

	return s.store.DB.WithContext(timeoutCtx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "card_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"card_type", "title", "relevance_score", "active",
			}),
		}).
		Create(record).Error
}

// Deactivate removes a card from the candidate pool without deleting it.
func (s *CatalogStore) Deactivate(ctx context.Context, cardID string) error {
	timeoutCtx, cancel := s.store.WithTimeout(ctx, DefaultQueryTimeout, "deactivate_content_item")
	defer cancel()

	return s.store.DB.WithContext(timeoutCtx).
		Model(&ContentItem{}).
		Where("card_id = ?", cardID).
		Update("active", 0).Error
}
