package services

import (
	"context"
	"errors"

	"github.com/charlesng35/expensely/internal/extraction"
	"github.com/charlesng35/expensely/internal/permissions"
)

// Extractor produces a normalised receipt draft from an image data URI.
type Extractor interface {
	Extract(ctx context.Context, userID, dataURI string) (*extraction.Receipt, error)
}

// ExtractionService runs AI-assisted receipt extraction for authorised actors.
// The draft is returned to the caller and stored only when submitted as an expense.
type ExtractionService struct {
	extractor Extractor
	audit     *AuditService
}

// NewExtractionService constructs an ExtractionService.
func NewExtractionService(extractor Extractor, audit *AuditService) (*ExtractionService, error) {
	if extractor == nil {
		return nil, errors.New("extraction service: extractor is required")
	}
	return &ExtractionService{extractor: extractor, audit: audit}, nil
}

// Extract returns the draft expense read from the receipt image.
func (s *ExtractionService) Extract(ctx context.Context, actor permissions.Actor, dataURI string) (*extraction.Receipt, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanCreateExpense(actor); err != nil {
		return nil, err
	}

	receipt, err := s.extractor.Extract(ctx, actor.UserID, dataURI)
	result := auditResultSuccess
	if err != nil {
		result = "failure"
	}
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: actor.CompanyID,
		Action:    "expense.extract",
		Result:    result,
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
