package gorm

import (
	"database/sql/driver"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	gormlib "gorm.io/gorm"
)

// JSONColumn stores an arbitrary JSON document in a text column.
type JSONColumn []byte

// Value implements driver.Valuer.
func (j JSONColumn) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSONColumn) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	return nil
}

func marshalColumn(v any) (JSONColumn, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return JSONColumn(data), nil
}

func unmarshalColumn(col JSONColumn, v any) error {
	if len(col) == 0 {
		return nil
	}
	return json.Unmarshal(col, v)
}

// Interaction is one recorded user action.
type Interaction struct {
	ID             string `gorm:"primaryKey"`
	UserID         string `gorm:"index:idx_interactions_user;index:idx_interactions_user_created,priority:1;not null"`
	CardID         string `gorm:"index;not null"`
	CardType       string `gorm:"not null"`
	Action         string `gorm:"not null"`
	SessionID      string `gorm:"index;not null"`
	TimeOfDay      string
	DayOfWeek      string
	PositionInFeed int
	TimeSpentMs    int64
	CreatedAtEpoch int64 `gorm:"index:idx_interactions_created,sort:desc;index:idx_interactions_user_created,priority:2,sort:desc;not null"`
}

func (Interaction) TableName() string { return "interactions" }

// BeforeCreate hook to ensure the timestamp is set.
func (i *Interaction) BeforeCreate(tx *gormlib.DB) error {
	if i.CreatedAtEpoch == 0 {
		i.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// SessionSnapshot is the persisted state of one session, written on session
// end and on periodic flushes. Metrics and user state are denormalized JSON.
type SessionSnapshot struct {
	SessionID         string `gorm:"uniqueIndex;not null"`
	UserID            string `gorm:"index;not null"`
	StartedAtEpoch    int64  `gorm:"not null"`
	LastActivityEpoch int64  `gorm:"index"`
	InteractionCount  int
	Metrics           JSONColumn `gorm:"type:text"`
	UserState         JSONColumn `gorm:"type:text"`
	Ended             int        `gorm:"default:0;index"`
	ID                int64      `gorm:"primaryKey;autoIncrement"`
}

func (SessionSnapshot) TableName() string { return "session_snapshots" }

// ContentOrder is the latest personalized order for a user.
type ContentOrder struct {
	UserID              string     `gorm:"uniqueIndex;not null"`
	SessionID           string     `gorm:"index"`
	Cards               JSONColumn `gorm:"type:text"`
	Reasons             JSONColumn `gorm:"type:text"`
	ExpectedImprovement float64
	Confidence          float64
	UpdatedAtEpoch      int64 `gorm:"not null"`
	ID                  int64 `gorm:"primaryKey;autoIncrement"`
}

func (ContentOrder) TableName() string { return "content_orders" }

// PersonalizationStrength is a user's current personalization weight.
type PersonalizationStrength struct {
	UserID         string  `gorm:"uniqueIndex;not null"`
	Strength       float64 `gorm:"type:real;not null"`
	Reason         string
	UpdatedAtEpoch int64 `gorm:"not null"`
	ID             int64 `gorm:"primaryKey;autoIncrement"`
}

func (PersonalizationStrength) TableName() string { return "personalization_strengths" }

// ContentItem is a catalog card the reorderer can draw candidates from.
type ContentItem struct {
	CardID         string `gorm:"uniqueIndex;not null"`
	CardType       string `gorm:"index;not null"`
	Title          string
	RelevanceScore float64 `gorm:"type:real;default:0.5"`
	Active         int     `gorm:"default:1;index"`
	CreatedAtEpoch int64   `gorm:"not null"`
	ID             int64   `gorm:"primaryKey;autoIncrement"`
}

func (ContentItem) TableName() string { return "content_items" }
