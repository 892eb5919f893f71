package jwtgate

import (
	"context"

	"github.com/MrEthical07/jwtgate/internal/audit"
)

const (
	auditEventTokenIssued          = "token_issued"
	auditEventIssueFailure         = "token_issue_failure"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshFailure       = "refresh_failure"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventLogout               = "logout"
	auditEventLogoutAll            = "logout_all"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Subject:   subject,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if kind := KindOf(err); kind != "" {
		event.Error = string(kind)
	}

	e.audit.Emit(ctx, event)
}

func reasonMetadata(reason string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": reason}
	}
}

func auditDispatcherConfig(cfg AuditConfig, onDrop func()) audit.Config {
	return audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
		OnDrop:     onDrop,
	}
}
