package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/sicilica/yachu-server/storage"

// Traced wraps a Store with one span per call. Expected outcomes such as a
// wrong password are recorded as attributes, not span errors.
type Traced struct {
	next   Store
	tracer trace.Tracer
}

func NewTraced(next Store) *Traced {
	return &Traced{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (t *Traced) Login(ctx context.Context, name, password string) (Account, error) {
	ctx, span := t.tracer.Start(ctx, "storage.Login", trace.WithAttributes(attribute.String("account.name", name)))
	defer span.End()

	a, err := t.next.Login(ctx, name, password)
	finish(span, err, ErrInvalidAccount, ErrInvalidPassword)
	return a, err
}

func (t *Traced) Register(ctx context.Context, name, password string) (Account, error) {
	ctx, span := t.tracer.Start(ctx, "storage.Register", trace.WithAttributes(attribute.String("account.name", name)))
	defer span.End()

	a, err := t.next.Register(ctx, name, password)
	finish(span, err, ErrDuplicateName)
	return a, err
}

func (t *Traced) ChangeName(ctx context.Context, id uuid.UUID, name string) error {
	ctx, span := t.tracer.Start(ctx, "storage.ChangeName", trace.WithAttributes(
		attribute.String("account.id", id.String()),
		attribute.String("account.name", name),
	))
	defer span.End()

	err := t.next.ChangeName(ctx, id, name)
	finish(span, err, ErrDuplicateName)
	return err
}

func (t *Traced) UserData(ctx context.Context, id uuid.UUID) (UserData, error) {
	ctx, span := t.tracer.Start(ctx, "storage.UserData", trace.WithAttributes(attribute.String("account.id", id.String())))
	defer span.End()

	d, err := t.next.UserData(ctx, id)
	finish(span, err)
	return d, err
}

func (t *Traced) SetUserData(ctx context.Context, id uuid.UUID, data UserData) error {
	ctx, span := t.tracer.Start(ctx, "storage.SetUserData", trace.WithAttributes(
		attribute.String("account.id", id.String()),
		attribute.Int("user.play_count", int(data.PlayCount)),
	))
	defer span.End()

	err := t.next.SetUserData(ctx, id, data)
	finish(span, err)
	return err
}

func finish(span trace.Span, err error, expected ...error) {
	if err == nil {
		return
	}
	for _, e := range expected {
		if errors.Is(err, e) {
			span.SetAttributes(attribute.String("storage.outcome", e.Error()))
			return
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

var _ Store = (*Traced)(nil)
