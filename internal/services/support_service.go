package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/calmwave/calmwave/internal/models"
	"github.com/calmwave/calmwave/internal/repositories/postgres"
	"github.com/calmwave/calmwave/internal/utils"
)

type SupportTicketService interface {
	Open(ctx context.Context, userID, subject, body string, tags []string) (*models.SupportTicket, error)
	Get(ctx context.Context, id, userID string, admin bool) (*models.SupportTicket, error)
	ListByUser(ctx context.Context, userID string) ([]models.SupportTicket, error)
	// ListAll is admin-only; authorization happens at the route layer.
	ListAll(ctx context.Context) ([]models.SupportTicket, error)
	Close(ctx context.Context, id, userID string, admin bool) (*models.SupportTicket, error)
}

type supportService struct {
	tickets postgres.SupportTicketRepository
}

func NewSupportTicketService(tickets postgres.SupportTicketRepository) SupportTicketService {
	return &supportService{tickets: tickets}
}

func (s *supportService) Open(ctx context.Context, userID, subject, body string, tags []string) (*models.SupportTicket, error) {
	const op = "SupportTicketService.Open"

	if subject == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "subject is required", nil)
	}

	t := &models.SupportTicket{
		ID:        uuid.NewString(),
		UserID:    userID,
		Subject:   subject,
		Body:      body,
		Status:    "open",
		Tags:      pq.StringArray(tags),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.tickets.Insert(ctx, t); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to open ticket", err)
	}
	return t, nil
}

func (s *supportService) Get(ctx context.Context, id, userID string, admin bool) (*models.SupportTicket, error) {
	const op = "SupportTicketService.Get"

	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "ticket not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load ticket", err)
	}
	if t.UserID != userID && !admin {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return t, nil
}

func (s *supportService) ListByUser(ctx context.Context, userID string) ([]models.SupportTicket, error) {
	const op = "SupportTicketService.ListByUser"

	out, err := s.tickets.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list tickets", err)
	}
	return out, nil
}

func (s *supportService) ListAll(ctx context.Context) ([]models.SupportTicket, error) {
	const op = "SupportTicketService.ListAll"

	out, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list tickets", err)
	}
	return out, nil
}

func (s *supportService) Close(ctx context.Context, id, userID string, admin bool) (*models.SupportTicket, error) {
	const op = "SupportTicketService.Close"

	t, err := s.Get(ctx, id, userID, admin)
	if err != nil {
		return nil, err
	}
	if t.Status == "closed" {
		return t, nil
	}
	t.Status = "closed"
	t.UpdatedAt = time.Now().UTC()
	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to close ticket", err)
	}
	return t, nil
}
