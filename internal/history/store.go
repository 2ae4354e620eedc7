package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sra-backend/internal/database"
)

var ErrUserNotFound = errors.New("user not found")

// DefaultWindow bounds the chat history considered when prompting.
const DefaultWindow = 24 * time.Hour

// Store is the history adapter shared by every pipeline stage. Read
// operations degrade to empty results on failure; only UpsertSystemResponse
// surfaces errors, since losing a completed reply is worth reporting.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// RecentTurns returns the session's turns within the window, oldest first.
func (s *Store) RecentTurns(ctx context.Context, sessionId string, window time.Duration) []database.ChatTurn {
	var turns []database.ChatTurn
	cutoff := time.Now().Add(-window)

	err := s.db.WithContext(ctx).
		Where("session_id = ? AND created_at >= ?", sessionId, cutoff).
		Order("created_at ASC").
		Find(&turns).Error
	if err != nil {
		slog.Error("error fetching chat history", "session_id", sessionId, "error", err)
		return nil
	}
	return turns
}

// LatestUpload returns the most recent upload for the session, or nil.
func (s *Store) LatestUpload(ctx context.Context, sessionId string) *database.FileUpload {
	var upload database.FileUpload
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Order("created_at DESC").
		First(&upload).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Error("error fetching latest upload", "session_id", sessionId, "error", err)
		}
		return nil
	}
	return &upload
}

// Uploads returns all uploads for the session, newest first.
func (s *Store) Uploads(ctx context.Context, sessionId string) []database.FileUpload {
	var uploads []database.FileUpload
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Order("created_at DESC").
		Find(&uploads).Error
	if err != nil {
		slog.Error("error fetching uploads", "session_id", sessionId, "error", err)
		return nil
	}
	return uploads
}

// UpsertSystemResponse records a system-authored turn. If a system turn
// already exists for (session_id, message_id) its response is overwritten, so
// repeated writes for the same message never duplicate rows.
func (s *Store) UpsertSystemResponse(ctx context.Context, sessionId, messageId, email, response string) error {
	return s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var user database.User
		if err := txn.Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrUserNotFound, email)
			}
			return fmt.Errorf("error looking up user: %w", err)
		}

		var existing database.ChatTurn
		err := txn.
			Where("session_id = ? AND message_id = ? AND is_user = ?", sessionId, messageId, false).
			First(&existing).Error
		if err == nil {
			existing.Response = &response
			return txn.Save(&existing).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("error querying existing turn: %w", err)
		}

		turn := database.ChatTurn{
			UserId:    user.Id,
			SessionId: sessionId,
			MessageId: messageId,
			IsUser:    false,
			Response:  &response,
		}
		return txn.Create(&turn).Error
	})
}

// AttachImage sets the image url on the turn for (session_id, message_id). If
// no turn exists yet (the reply's write may not have landed), a system turn
// carrying only the image is inserted so the url is never dropped.
func (s *Store) AttachImage(ctx context.Context, sessionId, messageId, imageUrl string) error {
	var turn database.ChatTurn
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND message_id = ?", sessionId, messageId).
		First(&turn).Error
	if err == nil {
		turn.ImageUrl = &imageUrl
		return s.db.WithContext(ctx).Save(&turn).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		slog.Error("error locating turn for image", "session_id", sessionId, "message_id", messageId, "error", err)
		return err
	}

	slog.Warn("no turn found for generated image, inserting system turn", "session_id", sessionId, "message_id", messageId)
	turn = database.ChatTurn{
		SessionId: sessionId,
		MessageId: messageId,
		IsUser:    false,
		ImageUrl:  &imageUrl,
	}
	return s.db.WithContext(ctx).Create(&turn).Error
}

// LatestGeneratedImage returns the url of the most recent system turn that
// carries an image, or empty if the session has none.
func (s *Store) LatestGeneratedImage(ctx context.Context, sessionId string) string {
	var turn database.ChatTurn
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND is_user = ? AND image_url IS NOT NULL", sessionId, false).
		Order("created_at DESC").
		First(&turn).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Error("error fetching latest generated image", "session_id", sessionId, "error", err)
		}
		return ""
	}
	if turn.ImageUrl == nil {
		return ""
	}
	return *turn.ImageUrl
}

// SaveUserTurn records the user's message for a turn.
func (s *Store) SaveUserTurn(ctx context.Context, sessionId, messageId, email, message string) error {
	var user database.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrUserNotFound, email)
		}
		return fmt.Errorf("error looking up user: %w", err)
	}

	turn := database.ChatTurn{
		UserId:    user.Id,
		SessionId: sessionId,
		MessageId: messageId,
		IsUser:    true,
		Message:   &message,
	}
	return s.db.WithContext(ctx).Create(&turn).Error
}

// ActiveUserPrompt returns the user's active custom persona prompt, or empty.
func (s *Store) ActiveUserPrompt(ctx context.Context, email string) string {
	var user database.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return ""
	}

	var prompt database.UserPrompt
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", user.Id, true).
		First(&prompt).Error
	if err != nil {
		return ""
	}
	return prompt.Prompt
}

// SaveUpload stores upload metadata for a session.
func (s *Store) SaveUpload(ctx context.Context, upload *database.FileUpload) error {
	if upload.Id == uuid.Nil {
		upload.Id = uuid.New()
	}
	return s.db.WithContext(ctx).Create(upload).Error
}
