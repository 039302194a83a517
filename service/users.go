package service

import (
	"context"

	"github.com/Okprime/MVP-Match-Assessment/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func (e Engine) ListUsers(ctx context.Context, offset, limit int) ([]models.User, error) {
	offset, limit = clampPage(offset, limit)
	return e.repo.ListUsers(ctx, offset, limit)
}

// UpdateUsername renames the caller's own account. Balance and role are not
// editable here; they change only through the ledger and registration.
func (e Engine) UpdateUsername(
	ctx context.Context,
	p models.Principal,
	userID int,
	username string,
) (models.User, error) {
	ctx, span := e.tracer.Start(ctx, "engine.update_username", trace.WithAttributes(
		attribute.Int("user.id", p.ID),
		attribute.Int("target.id", userID),
	))
	defer span.End()

	var user models.User
	err := e.gate.AuthorizeOwner(p, OpUpdateProfile, userID)
	if err == nil {
		username, err = normalizeUsername(username)
	}
	if err == nil {
		err = e.repo.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			current, version, err := tx.ReadUserForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			current.Username = username
			user, err = tx.WriteUserIf(ctx, version, current)
			return err
		})
	}
	e.observe(span, OpUpdateProfile, p, err, zap.Int("target_id", userID))
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}
