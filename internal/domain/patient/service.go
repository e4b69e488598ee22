package patient

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/questionnaire"
	"github.com/clinic/clinic/internal/platform/apperr"
)

// Questionnaires is the part of the questionnaire service a patient needs:
// assigning templates on creation and removing instances on deletion.
type Questionnaires interface {
	AssignTemplates(ctx context.Context, patientID uuid.UUID, templateIDs []uuid.UUID, createdBy string) ([]*questionnaire.Instance, error)
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error)
}

// TxRunner runs fn in a transaction carried by the context it receives.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo           Repository
	questionnaires Questionnaires
	tx             TxRunner
	logger         zerolog.Logger
}

func NewService(repo Repository, questionnaires Questionnaires, tx TxRunner, logger zerolog.Logger) *Service {
	return &Service{repo: repo, questionnaires: questionnaires, tx: tx, logger: logger}
}

const maxAge = 150

func normalize(p *Patient) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Condition = strings.TrimSpace(p.Condition)
}

func validate(p *Patient) error {
	var fields []string
	var problems []string
	if p.Name == "" {
		fields = append(fields, "name")
		problems = append(problems, "name is required")
	}
	if p.Age != nil && (*p.Age < 0 || *p.Age > maxAge) {
		fields = append(fields, "age")
		problems = append(problems, "age must be between 0 and 150")
	}
	if p.Email != "" {
		if addr, err := mail.ParseAddress(p.Email); err != nil || addr.Address != p.Email {
			fields = append(fields, "email")
			problems = append(problems, "email is not a valid address")
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return apperr.Validation(strings.Join(problems, "; "), fields...)
}

// Created is a new patient with the questionnaires assigned at creation.
type Created struct {
	Patient        *Patient                  `json:"patient"`
	Questionnaires []*questionnaire.Instance `json:"questionnaires"`
}

// CreatePatient stores the patient and assigns the selected templates in one
// transaction; a failed assignment leaves no patient behind.
func (s *Service) CreatePatient(ctx context.Context, p *Patient, templateIDs []uuid.UUID, createdBy string) (*Created, error) {
	normalize(p)
	if err := validate(p); err != nil {
		return nil, err
	}
	p.ID = uuid.New()
	p.CreatedBy = createdBy

	out := &Created{Patient: p}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		if len(templateIDs) == 0 {
			return nil
		}
		assigned, err := s.questionnaires.AssignTemplates(ctx, p.ID, templateIDs, createdBy)
		if err != nil {
			return err
		}
		out.Questionnaires = assigned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, search, limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	normalize(p)
	if err := validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

// DeletePatient removes the patient and every questionnaire instance that
// belongs to them. Both happen in one transaction.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	var removed int64
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return err
		}
		n, err := s.questionnaires.DeleteByPatient(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id.String()).Int64("questionnaires_removed", removed).Msg("patient deleted")
	return nil
}
