package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/directfanz/interact-service/internal/audit"
	"github.com/directfanz/interact-service/internal/config"
	"github.com/directfanz/interact-service/internal/domain"
	"github.com/directfanz/interact-service/internal/hub"
	"github.com/directfanz/interact-service/internal/metrics"
	"github.com/directfanz/interact-service/internal/service"
	"github.com/directfanz/interact-service/pkg/jwt"
	"github.com/directfanz/interact-service/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub      *hub.Hub
	service  service.InteractService
	verifier *jwt.Verifier
	wsCfg    config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.InteractService, verifier *jwt.Verifier, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		service:  svc,
		verifier: verifier,
		wsCfg:    wsCfg,
	}
}

// HandleWebSocket authenticates the handshake and upgrades it. The token is
// checked before the upgrade, so an unauthenticated caller costs one 401 and
// leaves no hub state behind.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.verifier.ValidateToken(token)
	if err != nil {
		audit.Log(r.Context(), audit.ActionAuthFailed, "", "websocket auth rejected")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	identity := domain.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}
	client := hub.NewClient(uuid.New().String(), identity, h.hub, conn, h.wsCfg)

	h.service.HandleConnect(h.connContext(client), client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage, h.handleDisconnect)
}

// bearerToken pulls the JWT from the token query parameter, the form browser
// WebSocket clients can actually send, or from the Authorization header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return ""
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	ctx := h.connContext(client)

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypeJoinStream:
		metrics.EventsTotal.WithLabelValues(base.Type).Inc()
		var msg domain.JoinStreamMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join_stream message"))
			return
		}
		if err := h.service.HandleJoinStream(ctx, client, msg.StreamID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("join stream failed")
		}

	case domain.MsgTypeLeaveStream:
		metrics.EventsTotal.WithLabelValues(base.Type).Inc()
		var msg domain.LeaveStreamMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid leave_stream message"))
			return
		}
		if err := h.service.HandleLeaveStream(ctx, client, msg.StreamID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("leave stream failed")
		}

	case domain.MsgTypeStreamChat:
		metrics.EventsTotal.WithLabelValues(base.Type).Inc()
		var msg domain.StreamChatInbound
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid stream_chat message"))
			return
		}
		if err := h.service.HandleChat(ctx, client, msg.StreamID, msg.Message); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("chat failed")
		}

	case domain.MsgTypeStreamDonation:
		metrics.EventsTotal.WithLabelValues(base.Type).Inc()
		var msg domain.StreamDonationInbound
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid stream_donation message"))
			return
		}
		if err := h.service.HandleDonation(ctx, client, msg.StreamID, msg.Amount, msg.Message); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("donation failed")
		}

	case domain.MsgTypeStreamLike:
		metrics.EventsTotal.WithLabelValues(base.Type).Inc()
		var msg domain.StreamLikeInbound
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid stream_like message"))
			return
		}
		if err := h.service.HandleLike(ctx, client, msg.StreamID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("like failed")
		}

	case domain.MsgTypePing:
		client.SendMessage(domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}

func (h *WSHandler) handleDisconnect(client *hub.Client) {
	h.service.HandleDisconnect(h.connContext(client), client)
}

func (h *WSHandler) connContext(client *hub.Client) context.Context {
	l := log.L().With().
		Str(log.FieldConnID, client.ID).
		Str(log.FieldUserID, client.Identity.UserID).
		Logger()
	return log.WithLogger(context.Background(), l)
}

// RegisterRoutes mounts the WebSocket endpoint with the request-logging
// middleware; its wrapped writer keeps http.Hijacker so the upgrade works.
func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/ws", log.HTTPMiddleware(log.L())(http.HandlerFunc(h.HandleWebSocket)))
}
