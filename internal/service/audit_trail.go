package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/articulacion-api/internal/models"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// writeAudit stores an audit row. Failures are logged and never abort the operation.
func writeAudit(ctx context.Context, writer auditWriter, logger *zap.Logger, actor models.Actor, action, resource, resourceID string, before, after interface{}) {
	if writer == nil {
		return
	}
	entry := &models.AuditLog{Action: action, Resource: resource}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := writer.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
	}
}
