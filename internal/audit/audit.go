package audit

import (
	"context"

	"github.com/directfanz/interact-service/pkg/log"
)

// Audit actions for the interaction hub.
const (
	ActionConnect     = "interact.connect"
	ActionAuthFailed  = "interact.auth_failed"
	ActionReplace     = "interact.replace_connection"
	ActionJoinStream  = "interact.join_stream"
	ActionJoinDenied  = "interact.join_denied"
	ActionLeaveStream = "interact.leave_stream"
	ActionChat        = "interact.chat"
	ActionDonation    = "interact.donation"
	ActionLike        = "interact.like"
	ActionDisconnect  = "interact.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithTarget emits an audit log naming the stream or record acted on.
func LogWithTarget(ctx context.Context, action string, userID string, targetID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}
