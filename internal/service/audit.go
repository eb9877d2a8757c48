package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/session-auth-api/internal/models"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit writes an auth audit entry. Failures are logged and dropped so
// they never undo a committed operation.
func recordAudit(ctx context.Context, writer auditWriter, logger *zap.Logger, userID, action, newValues, ip, userAgent string) {
	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   models.AuditResourceAuth,
		ResourceID: &userID,
		NewValues:  []byte(newValues),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if err := writer.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.String("user_id", userID), zap.Error(err))
	}
}
