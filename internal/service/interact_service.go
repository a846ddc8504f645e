package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/directfanz/interact-service/internal/access"
	"github.com/directfanz/interact-service/internal/audit"
	"github.com/directfanz/interact-service/internal/config"
	"github.com/directfanz/interact-service/internal/domain"
	"github.com/directfanz/interact-service/internal/firehose"
	"github.com/directfanz/interact-service/internal/hub"
	"github.com/directfanz/interact-service/internal/metrics"
	"github.com/directfanz/interact-service/internal/registry"
	"github.com/directfanz/interact-service/internal/repository"
	"github.com/directfanz/interact-service/pkg/log"
)

type interactService struct {
	hub      *hub.Hub
	store    repository.Store
	access   access.Checker
	producer firehose.Producer // optional
	registry registry.Registry // optional
	chatCfg  config.ChatConfig
}

func NewInteractService(
	h *hub.Hub,
	store repository.Store,
	checker access.Checker,
	producer firehose.Producer,
	reg registry.Registry,
	chatCfg config.ChatConfig,
) InteractService {
	return &interactService{
		hub:      h,
		store:    store,
		access:   checker,
		producer: producer,
		registry: reg,
		chatCfg:  chatCfg,
	}
}

// reject answers the originating client with an error frame. Nothing is
// broadcast and no state changes.
func (s *interactService) reject(c *hub.Client, code, message string) error {
	metrics.RejectedEventsTotal.WithLabelValues(code).Inc()
	return c.SendMessage(domain.NewErrorMessage(code, message))
}

// HandleConnect attaches the connection. A user holds one connection at a
// time; a replaced connection is reconciled here so its rooms and viewer
// records do not outlive it.
func (s *interactService) HandleConnect(ctx context.Context, c *hub.Client) {
	old := s.hub.AttachClient(c)
	if old != nil {
		audit.Log(ctx, audit.ActionReplace, c.Identity.UserID, "existing connection replaced")
		s.reconcileDeparture(ctx, old)
	}
	audit.Log(ctx, audit.ActionConnect, c.Identity.UserID, "client connected")
}

func (s *interactService) HandleJoinStream(ctx context.Context, c *hub.Client, streamID string) error {
	if streamID == "" {
		return s.reject(c, domain.ErrCodeBadRequest, "Stream id is required")
	}

	identity := c.Identity
	if err := s.access.CheckAccess(ctx, streamID, identity.UserID, identity.Role); err != nil {
		if errors.Is(err, access.ErrDenied) {
			audit.LogWithTarget(ctx, audit.ActionJoinDenied, identity.UserID, streamID, "stream join denied")
			return s.reject(c, domain.ErrCodeAccessDenied, "You do not have access to this stream")
		}
		log.Ctx(ctx).Error().Err(err).Str(log.FieldStreamID, streamID).Msg("access check failed")
		return s.reject(c, domain.ErrCodeInternalError, "Could not verify stream access")
	}

	// Seed for the case where this join creates the room. A failed count
	// starts the room at zero; the tally self-corrects when the room is
	// next rebuilt.
	seed, err := s.store.CountLikes(ctx, streamID)
	if err != nil {
		metrics.PersistenceFailures.Inc()
		seed = 0
	}

	viewers, joined := s.hub.JoinStream(c, streamID, seed)
	if !joined {
		return nil
	}

	// Viewer records are history, not access control: a failed write is
	// logged and the join stands.
	if err := s.store.OpenViewerSession(ctx, streamID, identity.UserID); err != nil {
		metrics.PersistenceFailures.Inc()
	}

	s.mirrorPresence(ctx, streamID, viewers, true)
	audit.LogWithTarget(ctx, audit.ActionJoinStream, identity.UserID, streamID, "joined stream")
	s.emit(ctx, &firehose.Event{
		Type:     firehose.EventJoin,
		StreamID: streamID,
		UserID:   identity.UserID,
		Username: identity.Username,
		Count:    viewers,
	})
	return nil
}

func (s *interactService) HandleLeaveStream(ctx context.Context, c *hub.Client, streamID string) error {
	if streamID == "" {
		return s.reject(c, domain.ErrCodeBadRequest, "Stream id is required")
	}

	remaining, left := s.hub.LeaveStream(c, streamID)
	if !left {
		return nil
	}

	if err := s.store.CloseViewerSessions(ctx, streamID, c.Identity.UserID); err != nil {
		metrics.PersistenceFailures.Inc()
	}

	s.mirrorPresence(ctx, streamID, remaining, false)
	audit.LogWithTarget(ctx, audit.ActionLeaveStream, c.Identity.UserID, streamID, "left stream")
	s.emit(ctx, &firehose.Event{
		Type:     firehose.EventLeave,
		StreamID: streamID,
		UserID:   c.Identity.UserID,
		Username: c.Identity.Username,
		Count:    remaining,
	})
	return nil
}

func (s *interactService) HandleChat(ctx context.Context, c *hub.Client, streamID, content string) error {
	if !c.HasJoined(streamID) {
		return s.reject(c, domain.ErrCodeNotInStream, "Join the stream before chatting")
	}
	if strings.TrimSpace(content) == "" {
		return s.reject(c, domain.ErrCodeBadRequest, "Message is empty")
	}
	if utf8.RuneCountInString(content) > s.chatCfg.MaxContentLength {
		return s.reject(c, domain.ErrCodeBadRequest, "Message is too long")
	}

	identity := c.Identity
	msg := &domain.ChatMessage{
		StreamID:   streamID,
		AuthorID:   identity.UserID,
		AuthorName: identity.Username,
		Type:       domain.ChatTypeMessage,
		Content:    content,
	}
	if err := s.store.CreateChatMessage(ctx, msg); err != nil {
		metrics.PersistenceFailures.Inc()
		return s.reject(c, domain.ErrCodeInternalError, "Failed to send message")
	}

	if _, err := s.hub.BroadcastToStream(streamID, domain.NewChatMessageOut(msg)); err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldStreamID, streamID).Msg("chat broadcast failed")
	}

	audit.LogWithTarget(ctx, audit.ActionChat, identity.UserID, streamID, "chat message sent")
	s.emit(ctx, &firehose.Event{
		Type:     firehose.EventChat,
		StreamID: streamID,
		UserID:   identity.UserID,
		Username: identity.Username,
		RefID:    msg.ID,
	})
	return nil
}

// HandleDonation records a donation whose payment was already captured
// upstream, then announces it: the donation broadcast first, its chat
// annotation second, under one room lock hold.
func (s *interactService) HandleDonation(ctx context.Context, c *hub.Client, streamID string, amount int64, message string) error {
	if !c.HasJoined(streamID) {
		return s.reject(c, domain.ErrCodeNotInStream, "Join the stream before donating")
	}
	if amount <= 0 {
		return s.reject(c, domain.ErrCodeBadRequest, "Donation amount must be positive")
	}
	if utf8.RuneCountInString(message) > s.chatCfg.MaxContentLength {
		return s.reject(c, domain.ErrCodeBadRequest, "Message is too long")
	}

	identity := c.Identity
	donation := &domain.DonationEvent{
		StreamID:  streamID,
		DonorID:   identity.UserID,
		DonorName: identity.Username,
		Amount:    amount,
		Message:   message,
	}
	chat := &domain.ChatMessage{
		StreamID:   streamID,
		AuthorID:   identity.UserID,
		AuthorName: identity.Username,
		Content:    message,
	}
	if err := s.store.CreateDonationWithChat(ctx, donation, chat); err != nil {
		metrics.PersistenceFailures.Inc()
		return s.reject(c, domain.ErrCodeInternalError, "Failed to record donation")
	}

	if _, err := s.hub.BroadcastToStream(streamID,
		domain.NewDonationOut(donation),
		domain.NewChatMessageOut(chat),
	); err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldStreamID, streamID).Msg("donation broadcast failed")
	}

	audit.LogWithTarget(ctx, audit.ActionDonation, identity.UserID, streamID,
		fmt.Sprintf("donation recorded: %d", amount))
	s.emit(ctx, &firehose.Event{
		Type:     firehose.EventDonation,
		StreamID: streamID,
		UserID:   identity.UserID,
		Username: identity.Username,
		RefID:    donation.ID,
		Amount:   amount,
	})
	return nil
}

// HandleLike upserts the durable tally first; only a genuinely new row moves
// the live count, so repeats cannot inflate it. The resulting count is
// broadcast either way.
func (s *interactService) HandleLike(ctx context.Context, c *hub.Client, streamID string) error {
	if !c.HasJoined(streamID) {
		return s.reject(c, domain.ErrCodeNotInStream, "Join the stream before liking")
	}

	identity := c.Identity
	added, err := s.store.UpsertLike(ctx, streamID, identity.UserID)
	if err != nil {
		metrics.PersistenceFailures.Inc()
		return s.reject(c, domain.ErrCodeInternalError, "Failed to record like")
	}

	count, ok := s.hub.ApplyLike(c, streamID, added)
	if !ok {
		// Membership vanished mid-flight; the tally row stands and the
		// count converges when the room is next seeded.
		return nil
	}

	audit.LogWithTarget(ctx, audit.ActionLike, identity.UserID, streamID, "stream liked")
	s.emit(ctx, &firehose.Event{
		Type:     firehose.EventLike,
		StreamID: streamID,
		UserID:   identity.UserID,
		Username: identity.Username,
		Count:    count,
	})
	return nil
}

// HandleDisconnect runs when a connection's read pump exits for any reason.
// Detach reports false for a connection that was already replaced, which
// makes the duplicate unregister a no-op.
func (s *interactService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	if !s.hub.DetachClient(c) {
		return
	}
	s.reconcileDeparture(ctx, c)
	audit.Log(ctx, audit.ActionDisconnect, c.Identity.UserID, "client disconnected")
}

// reconcileDeparture removes a dead connection's memberships and closes its
// viewer records, notifying each affected room.
func (s *interactService) reconcileDeparture(ctx context.Context, c *hub.Client) {
	for _, streamID := range c.JoinedStreams() {
		remaining, left := s.hub.LeaveStream(c, streamID)
		if !left {
			continue
		}
		if err := s.store.CloseViewerSessions(ctx, streamID, c.Identity.UserID); err != nil {
			metrics.PersistenceFailures.Inc()
		}
		s.mirrorPresence(ctx, streamID, remaining, false)
		s.emit(ctx, &firehose.Event{
			Type:     firehose.EventLeave,
			StreamID: streamID,
			UserID:   c.Identity.UserID,
			Username: c.Identity.Username,
			Count:    remaining,
		})
	}
}

// mirrorPresence reflects a count change into the stream registry. The
// mirror is best effort and never blocks the live path.
func (s *interactService) mirrorPresence(ctx context.Context, streamID string, count int, joined bool) {
	if s.registry == nil {
		return
	}
	l := log.Ctx(ctx)
	if joined && count == 1 {
		if err := s.registry.RegisterStream(ctx, streamID); err != nil {
			l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to register stream")
		}
	}
	if count == 0 {
		if err := s.registry.DeregisterStream(ctx, streamID); err != nil {
			l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to deregister stream")
		}
		return
	}
	if err := s.registry.PublishViewerCount(ctx, streamID, count); err != nil {
		l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to publish viewer count")
	}
}

func (s *interactService) emit(ctx context.Context, event *firehose.Event) {
	if s.producer == nil {
		return
	}
	event.At = time.Now().UnixMilli()
	if err := s.producer.Publish(ctx, event); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("event_type", event.Type).Msg("failed to publish firehose event")
	}
}

func (s *interactService) Start(ctx context.Context) error {
	if s.registry != nil {
		if err := s.registry.StartHeartbeat(ctx); err != nil {
			return fmt.Errorf("failed to start registry heartbeat: %w", err)
		}
	}
	log.L().Info().Msg("interact service started")
	return nil
}

func (s *interactService) Stop() error {
	if s.registry != nil {
		s.registry.StopHeartbeat()
	}
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			log.L().Warn().Err(err).Msg("failed to close firehose producer")
		}
	}
	return nil
}
