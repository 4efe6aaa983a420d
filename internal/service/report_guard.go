package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
	"github.com/noah-isme/gema-progress-api/internal/lifecycle"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/repository"
)

// GuardResult reports whether a reporting period already holds a report.
type GuardResult struct {
	Exists      bool
	CanResubmit bool
	ExistingID  string
}

// SubmissionGuard decides whether a new report may be created for a period.
// It is a fast pre-check; the store's unique active key is what enforces the rule.
type SubmissionGuard interface {
	CheckExists(ctx context.Context, key models.ReportKey) (GuardResult, error)
}

type submissionGuard struct {
	repo      repository.ReportRepository
	validator *validator.Validate
}

// NewSubmissionGuard constructs the guard.
func NewSubmissionGuard(repo repository.ReportRepository, validator *validator.Validate) SubmissionGuard {
	return &submissionGuard{repo: repo, validator: validator}
}

func (g *submissionGuard) CheckExists(ctx context.Context, key models.ReportKey) (GuardResult, error) {
	if err := g.validator.Struct(key); err != nil {
		return GuardResult{}, apperror.Validation(err)
	}

	reports, err := g.repo.FindByKey(ctx, key)
	if err != nil {
		return GuardResult{}, storeError(err)
	}

	return evaluateGuard(reports), nil
}

// evaluateGuard prefers an active report, then a draft, then the newest rejected report.
// reports must be ordered newest first.
func evaluateGuard(reports []models.Report) GuardResult {
	var draft, rejected *models.Report
	for i := range reports {
		report := &reports[i]
		switch {
		case report.Status.IsActive():
			return GuardResult{Exists: true, CanResubmit: false, ExistingID: report.ID}
		case report.Status == models.ReportStatusDraft && draft == nil:
			draft = report
		case lifecycle.CanResubmit(report.Status) && rejected == nil:
			rejected = report
		}
	}

	switch {
	case draft != nil:
		return GuardResult{Exists: true, CanResubmit: false, ExistingID: draft.ID}
	case rejected != nil:
		return GuardResult{Exists: true, CanResubmit: true, ExistingID: rejected.ID}
	default:
		return GuardResult{}
	}
}

// storeError keeps classified store errors and treats anything else as transient.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{apperror.ErrConflict, apperror.ErrNotFound, apperror.ErrTransient, apperror.ErrValidation, apperror.ErrPermission} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return apperror.Transient(err)
}
