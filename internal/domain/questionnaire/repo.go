package questionnaire

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TemplateRepository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	GetByKey(ctx context.Context, key string) (*Template, error)
	Update(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Template, int, error)
}

type InstanceRepository interface {
	Create(ctx context.Context, inst *Instance) error
	GetByID(ctx context.Context, id uuid.UUID) (*Instance, error)
	// GetByToken matches the access token exactly.
	GetByToken(ctx context.Context, token string) (*Instance, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Instance, int, error)
	// Complete stores responses and marks the instance completed in one
	// statement, only if it is still pending. It reports whether a row
	// changed.
	Complete(ctx context.Context, id uuid.UUID, responses Responses, completedAt time.Time) (bool, error)
	// SetCompletionDate changes the completion date of a completed instance.
	SetCompletionDate(ctx context.Context, id uuid.UUID, date time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error)
}
