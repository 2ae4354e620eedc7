package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Email string `gorm:"uniqueIndex;not null"`
	Name  string

	CreditBalance decimal.Decimal `gorm:"type:numeric;not null"`

	CreatedAt time.Time
}

// ChatTurn is one persisted message within a session. User turns carry
// Message, system turns carry Response and optionally ImageUrl. For a given
// (session_id, message_id) there is at most one system turn; it is upserted,
// never duplicated.
type ChatTurn struct {
	Id uint `gorm:"primaryKey"`

	UserId uuid.UUID `gorm:"type:uuid"`
	User   *User     `gorm:"foreignKey:UserId"`

	SessionId string `gorm:"index;not null"`
	MessageId string `gorm:"index;not null"`

	IsUser   bool
	Message  *string
	Response *string
	ImageUrl *string

	CreatedAt time.Time
}

// FileUpload is a document or image the user attached to a session. Exactly
// one of FileContent (extracted document text) or FileUrl (stored binary) is
// populated.
type FileUpload struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	SessionId string `gorm:"index;not null"`

	FileType    string `gorm:"size:100"`
	FileContent *string
	FileUrl     *string

	CreatedAt time.Time
}

const (
	ActionResonanceArtQuery    string = "RESONANCE_ART_QUERY"
	ActionResonanceArtImageGen string = "RESONANCE_ART_IMAGE_GENERATION"
)

type CostPerAction struct {
	Action   string          `gorm:"primaryKey;size:50"`
	Endpoint string          `gorm:"not null"`
	Cost     decimal.Decimal `gorm:"type:numeric;not null"`
}

type CreditTransaction struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserId uuid.UUID `gorm:"type:uuid;index"`
	User   *User     `gorm:"foreignKey:UserId"`

	Amount      decimal.Decimal `gorm:"type:numeric;not null"`
	Endpoint    string
	Description string

	CreatedAt time.Time
}

// UserPrompt holds a user's custom persona instructions, appended to the
// reply system prompt when active.
type UserPrompt struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserId uuid.UUID `gorm:"type:uuid;index"`
	User   *User     `gorm:"foreignKey:UserId"`

	Prompt   string
	IsActive bool `gorm:"default:false"`

	CreatedAt time.Time
}
