package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/services/backend/internal/events"
)

var (
	ErrValidation   = errors.New("validation")   // 400
	ErrUnauthorized = errors.New("unauthorized") // 401
	ErrForbidden    = errors.New("forbidden")    // 403
	ErrNotFound     = errors.New("not found")    // 404
	ErrConflict     = errors.New("conflict")     // 409
)

func notFound(err error, what error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return what
	}
	return err
}

// publish runs after the write has committed, so a broker failure is only
// logged.
func publish(ctx context.Context, p events.Publisher, topic, key string, e events.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, topic, key, e); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "topic", topic, "type", e["type"], "error", err)
	}
}
