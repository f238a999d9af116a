package service

import (
	"context"
	"errors"

	"github.com/Khaledxab/mygym-backend/internal/apierror"
	"github.com/Khaledxab/mygym-backend/internal/model"
	"github.com/Khaledxab/mygym-backend/internal/permission"
	"github.com/Khaledxab/mygym-backend/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/Khaledxab/mygym-backend/internal/service")

// runTx executes fn inside a GORM transaction. Everything fn does must go
// through tx so the unit commits or rolls back as a whole.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// notFoundOr maps a missing row to NotFound(entity) and anything else to
// Internal.
func notFoundOr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.NotFound(entity)
	}
	return apierror.Internal(err)
}

// classify passes classified errors through and hides everything else behind
// Internal.
func classify(err error) error {
	var e *apierror.Error
	if errors.As(err, &e) {
		return err
	}
	return apierror.Internal(err)
}

// ensureAdministers fails NotFound for an unknown gym, then Forbidden unless
// caller may act on gymID.
func ensureAdministers(ctx context.Context, gyms repository.GymRepository, caller model.Identity, gymID uuid.UUID) error {
	if _, err := gyms.FindByID(ctx, gymID); err != nil {
		return notFoundOr(err, "gym")
	}
	if permission.BypassesOwnership(caller.Role) {
		return nil
	}
	ok, err := gyms.IsAdmin(ctx, gymID, caller.AccountID)
	if err != nil {
		return apierror.Internal(err)
	}
	if !ok {
		return apierror.Wrap(apierror.KindForbidden, "you do not administer this gym", nil)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apierror.KindOf(err)))
	}
	span.End()
}
