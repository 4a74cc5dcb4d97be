package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// Repository reads persisted audit logs.
// Writes go through the ledger transaction that caused them.
type Repository interface {
	ListAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLog, int64, error)
}

// Service provides audit log queries
type Service struct {
	repo Repository
}

// NewService creates a new audit service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewChange builds an audit log tracking a change of entity state
func NewChange(actorID, action, entity, entityID string, oldValue, newValue any, description string, at time.Time) *AuditLog {
	oldJSON, err := toJSON(oldValue)
	if err != nil {
		log.Warn().Err(err).Str("entity_id", entityID).Msg("failed to serialize audit old value")
	}

	newJSON, err := toJSON(newValue)
	if err != nil {
		log.Warn().Err(err).Str("entity_id", entityID).Msg("failed to serialize audit new value")
	}

	return &AuditLog{
		ID:          uuid.New(),
		ActorID:     actorID,
		Action:      action,
		Entity:      entity,
		EntityID:    entityID,
		OldValue:    oldJSON,
		NewValue:    newJSON,
		Description: description,
		CreatedAt:   at,
	}
}

// GetLogs retrieves audit logs with filtering
func (s *Service) GetLogs(ctx context.Context, filter AuditFilter) (*AuditLogResponse, error) {
	filter.Normalize()

	logs, totalCount, err := s.repo.ListAuditLogs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	if logs == nil {
		logs = []AuditLog{}
	}

	totalPages := int(totalCount) / filter.PageSize
	if int(totalCount)%filter.PageSize > 0 {
		totalPages++
	}

	return &AuditLogResponse{
		Logs:       logs,
		TotalCount: totalCount,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	}, nil
}

func toJSON(value any) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}

	bytes, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	return datatypes.JSON(bytes), nil
}
