// Package models contains domain models for the Dekr engagement engine.
package models

import (
	"errors"
	"time"
)

// CardType identifies the kind of content a card carries.
type CardType string

const (
	CardTypeLesson    CardType = "lesson"
	CardTypePodcast   CardType = "podcast"
	CardTypeNews      CardType = "news"
	CardTypeStock     CardType = "stock"
	CardTypeCrypto    CardType = "crypto"
	CardTypeChallenge CardType = "challenge"
)

// AllCardTypes lists every known card type. The size of this universe is the
// denominator for content-type diversity calculations.
var AllCardTypes = []CardType{
	CardTypeLesson, CardTypePodcast, CardTypeNews,
	CardTypeStock, CardTypeCrypto, CardTypeChallenge,
}

// ActionType identifies a user action on a card.
type ActionType string

const (
	ActionSwipeRight ActionType = "swipe_right"
	ActionSwipeLeft  ActionType = "swipe_left"
	ActionSave       ActionType = "save"
	ActionShare      ActionType = "share"
	ActionPlay       ActionType = "play"
	ActionComplete   ActionType = "complete"
	ActionView       ActionType = "view"
	ActionBookmark   ActionType = "bookmark"
)

// positiveActions are the actions that count as positive engagement signals.
var positiveActions = map[ActionType]bool{
	ActionSwipeRight: true,
	ActionSave:       true,
	ActionShare:      true,
	ActionComplete:   true,
}

// IsPositive reports whether the action counts as a positive engagement signal.
func (a ActionType) IsPositive() bool {
	return positiveActions[a]
}

// Validation errors surfaced to ingestion callers.
var (
	ErrMissingUserID = errors.New("interaction missing user id")
	ErrMissingCardID = errors.New("interaction missing card id")
)

// InteractionContext captures the situation an interaction happened in.
type InteractionContext struct {
	TimeOfDay      string `json:"time_of_day"`
	DayOfWeek      string `json:"day_of_week"`
	SessionID      string `json:"session_id"`
	PositionInFeed int    `json:"position_in_feed"`
	TimeSpentMs    int64  `json:"time_spent_ms"`
}

// UserInteraction is one recorded user action. Immutable once created:
// ingestion stamps it and nothing mutates it afterwards.
type UserInteraction struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	CardID    string             `json:"card_id"`
	CardType  CardType           `json:"card_type"`
	Action    ActionType         `json:"action"`
	Timestamp time.Time          `json:"timestamp"`
	SessionID string             `json:"session_id"`
	Context   InteractionContext `json:"context"`
}

// Validate checks the fields a caller must supply.
func (i *UserInteraction) Validate() error {
	if i.UserID == "" {
		return ErrMissingUserID
	}
	if i.CardID == "" {
		return ErrMissingCardID
	}
	return nil
}
