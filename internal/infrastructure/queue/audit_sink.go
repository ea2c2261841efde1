package queue

import (
	"context"

	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/ports"
)

// AuditSink appends every broadcast event to an EventRepository.
type AuditSink struct {
	repo ports.EventRepository
}

func NewAuditSink(repo ports.EventRepository) *AuditSink {
	return &AuditSink{repo: repo}
}

func (s *AuditSink) Name() string { return "audit" }

func (s *AuditSink) Deliver(ctx context.Context, event domain.Event) error {
	return s.repo.InsertEvent(ctx, event)
}
