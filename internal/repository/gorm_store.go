package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/directfanz/interact-service/internal/domain"
	"github.com/directfanz/interact-service/pkg/log"
)

// GormStore implements Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-based store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// CreateChatMessage appends one chat entry.
func (s *GormStore) CreateChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	model := domain.ChatMessageToModel(msg)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, msg.StreamID).Msg("failed to store chat message")
		return err
	}
	l.Debug().Str("message_id", msg.ID).Str(log.FieldStreamID, msg.StreamID).Msg("chat message stored")
	return nil
}

// CreateDonationWithChat writes the donation and its chat annotation
// atomically. The chat entry is stamped with the donation's id and shares its
// timestamp.
func (s *GormStore) CreateDonationWithChat(ctx context.Context, donation *domain.DonationEvent, chat *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	if donation.ID == "" {
		donation.ID = uuid.New().String()
	}
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = time.Now().UTC()
	}
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	chat.Type = domain.ChatTypeDonation
	chat.DonationID = &donation.ID
	chat.CreatedAt = donation.CreatedAt

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(domain.DonationEventToModel(donation)).Error; err != nil {
			return err
		}
		return tx.Create(domain.ChatMessageToModel(chat)).Error
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, donation.StreamID).Msg("failed to store donation pair")
		return err
	}
	l.Debug().
		Str("donation_id", donation.ID).
		Str(log.FieldStreamID, donation.StreamID).
		Int64("amount", donation.Amount).
		Msg("donation stored")
	return nil
}

// UpsertLike inserts the (stream, user) tally row, ignoring conflicts. The
// RowsAffected count distinguishes a first like from a repeat.
func (s *GormStore) UpsertLike(ctx context.Context, streamID, userID string) (bool, error) {
	l := log.Ctx(ctx)

	row := &domain.LikeTallyModel{
		StreamID:  streamID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldStreamID, streamID).Msg("failed to upsert like")
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountLikes counts distinct likers for a stream.
func (s *GormStore) CountLikes(ctx context.Context, streamID string) (int, error) {
	l := log.Ctx(ctx)

	var count int64
	result := s.db.WithContext(ctx).Model(&domain.LikeTallyModel{}).
		Where("stream_id = ?", streamID).
		Count(&count)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldStreamID, streamID).Msg("failed to count likes")
		return 0, result.Error
	}
	return int(count), nil
}

// OpenViewerSession opens a session row unless one is already open for this
// viewer and stream, so a rejoin on the same connection does not fork the
// watch-time record.
func (s *GormStore) OpenViewerSession(ctx context.Context, streamID, userID string) error {
	l := log.Ctx(ctx)

	var open int64
	result := s.db.WithContext(ctx).Model(&domain.ViewerRecordModel{}).
		Where("stream_id = ? AND user_id = ? AND left_at IS NULL", streamID, userID).
		Count(&open)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldStreamID, streamID).Msg("failed to check open viewer session")
		return result.Error
	}
	if open > 0 {
		return nil
	}

	rec := &domain.ViewerRecordModel{
		ID:       uuid.New().String(),
		StreamID: streamID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, streamID).Str(log.FieldUserID, userID).Msg("failed to open viewer session")
		return err
	}
	return nil
}

// CloseViewerSessions stamps left_at on the viewer's open sessions.
func (s *GormStore) CloseViewerSessions(ctx context.Context, streamID, userID string) error {
	l := log.Ctx(ctx)

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&domain.ViewerRecordModel{}).
		Where("stream_id = ? AND user_id = ? AND left_at IS NULL", streamID, userID).
		Update("left_at", now)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldStreamID, streamID).Str(log.FieldUserID, userID).Msg("failed to close viewer session")
		return result.Error
	}
	return nil
}
