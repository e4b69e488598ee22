package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

// =========== Template Store ===========

type TemplateService struct {
	repo TemplateRepository
}

func NewTemplateService(repo TemplateRepository) *TemplateService {
	return &TemplateService{repo: repo}
}

func requireAdmin(sess *auth.Session) error {
	if sess == nil {
		return apperr.Unauthenticated("no session")
	}
	if !sess.IsAdmin() {
		return apperr.Unauthorized("template management requires the admin role")
	}
	return nil
}

func normalizeTemplate(t *Template) {
	t.Title = strings.TrimSpace(t.Title)
	for i := range t.Questions {
		t.Questions[i].ID = strings.TrimSpace(t.Questions[i].ID)
		if qt, ok := ParseQuestionType(string(t.Questions[i].Type)); ok {
			t.Questions[i].Type = qt
		}
	}
}

func (s *TemplateService) CreateTemplate(ctx context.Context, sess *auth.Session, t *Template) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	normalizeTemplate(t)
	if err := validateTemplate(t); err != nil {
		return err
	}
	t.ID = uuid.New()
	t.CreatedBy = sess.UserID
	t.LastModifiedBy = sess.UserID
	return s.repo.Create(ctx, t)
}

// UpdateTemplate replaces title, texts and questions. Instances already
// created keep their own copy of the questions.
func (s *TemplateService) UpdateTemplate(ctx context.Context, sess *auth.Session, t *Template) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	normalizeTemplate(t)
	if err := validateTemplate(t); err != nil {
		return err
	}
	t.Key = existing.Key
	t.CreatedBy = existing.CreatedBy
	t.CreatedAt = existing.CreatedAt
	t.LastModifiedBy = sess.UserID
	return s.repo.Update(ctx, t)
}

func (s *TemplateService) DeleteTemplate(ctx context.Context, sess *auth.Session, id uuid.UUID) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *TemplateService) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TemplateService) ListTemplates(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// SeedBuiltins installs the standard questionnaires that are not yet present,
// matching on their stable key. It returns how many were created.
func (s *TemplateService) SeedBuiltins(ctx context.Context, actor string) (int, error) {
	created := 0
	for _, t := range BuiltinTemplates() {
		_, err := s.repo.GetByKey(ctx, *t.Key)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return created, err
		}
		if err := validateTemplate(t); err != nil {
			return created, fmt.Errorf("builtin %s: %w", *t.Key, err)
		}
		t.ID = uuid.New()
		t.CreatedBy = actor
		t.LastModifiedBy = actor
		if err := s.repo.Create(ctx, t); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// =========== Instance lifecycle ===========

type Options struct {
	// LinkTTL gives new instances an expiry date; zero means links never
	// expire.
	LinkTTL       time.Duration
	OverdueAfter  time.Duration
	PublicBaseURL string
}

// Service owns questionnaire instances: creation from a template, the token
// gate, submission, and staff corrections.
type Service struct {
	templates TemplateRepository
	instances InstanceRepository
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time
	newToken  func() (string, error)
}

func NewService(templates TemplateRepository, instances InstanceRepository, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		templates: templates,
		instances: instances,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		newToken:  NewAccessToken,
	}
}

// CreateInstance copies the template's questions into a new pending
// instance for the patient. The patient is not looked up.
func (s *Service) CreateInstance(ctx context.Context, patientID, templateID uuid.UUID, createdBy string) (*Instance, error) {
	tmpl, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if len(tmpl.Questions) == 0 {
		return nil, apperr.Validation(fmt.Sprintf("template %q has no questions", tmpl.Title), "template_id")
	}
	token, err := s.newToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	inst := &Instance{
		ID:           uuid.New(),
		PatientID:    patientID,
		TemplateID:   tmpl.ID,
		Title:        tmpl.Title,
		Description:  tmpl.Description,
		Instructions: tmpl.Instructions,
		Questions:    cloneQuestions(tmpl.Questions),
		AccessToken:  token,
		Status:       StatusPending,
		AssignedDate: now,
		CreatedBy:    createdBy,
	}
	if s.opts.LinkTTL > 0 {
		exp := now.Add(s.opts.LinkTTL)
		inst.ExpiryDate = &exp
	}
	if err := s.instances.Create(ctx, inst); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("patient_id", patientID.String()).
		Str("template_id", tmpl.ID.String()).
		Str("instance_id", inst.ID.String()).
		Msg("questionnaire instance created")
	return inst, nil
}

// AssignTemplates creates one instance per template in order and stops at
// the first failure, returning the instances created so far.
func (s *Service) AssignTemplates(ctx context.Context, patientID uuid.UUID, templateIDs []uuid.UUID, createdBy string) ([]*Instance, error) {
	created := make([]*Instance, 0, len(templateIDs))
	for _, tid := range templateIDs {
		inst, err := s.CreateInstance(ctx, patientID, tid, createdBy)
		if err != nil {
			return created, err
		}
		created = append(created, inst)
	}
	return created, nil
}

func (s *Service) GetInstance(ctx context.Context, id uuid.UUID) (*Instance, error) {
	return s.instances.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Instance, int, error) {
	return s.instances.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	return s.instances.Delete(ctx, id)
}

// DeleteByPatient removes every instance of a patient and returns the count.
func (s *Service) DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	return s.instances.DeleteByPatient(ctx, patientID)
}

// ValidateAccess decides whether a link may still be used. Expiry is only
// enforced when the instance carries an expiry date.
func ValidateAccess(inst *Instance, now time.Time) error {
	if inst == nil {
		return apperr.NotFound("questionnaire")
	}
	if inst.IsCompleted() {
		return apperr.AlreadyCompleted("questionnaire already completed")
	}
	if inst.ExpiryDate != nil && now.After(*inst.ExpiryDate) {
		return apperr.Expired("questionnaire link expired")
	}
	return nil
}

// ResolveByToken finds the instance behind a link token and checks that it
// can still be answered. Possession of the token is the only check.
func (s *Service) ResolveByToken(ctx context.Context, token string) (*Instance, error) {
	if token == "" {
		return nil, apperr.NotFound("questionnaire")
	}
	inst, err := s.instances.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := ValidateAccess(inst, s.now()); err != nil {
		return nil, err
	}
	return inst, nil
}

// Submit validates the responses and completes the instance in a single
// conditional write. A concurrent submission that lands first makes this
// one fail with AlreadyCompleted.
func (s *Service) Submit(ctx context.Context, instanceID uuid.UUID, responses Responses) (*Instance, error) {
	inst, err := s.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := ValidateAccess(inst, now); err != nil {
		return nil, err
	}
	if err := ValidateResponses(inst.Questions, responses); err != nil {
		return nil, err
	}

	stored := responses.clone()
	if stored == nil {
		stored = Responses{}
	}
	completedAt := now.UTC()
	ok, err := s.instances.Complete(ctx, instanceID, stored, completedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.instances.GetByID(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		if current.IsCompleted() {
			return nil, apperr.AlreadyCompleted("questionnaire already completed")
		}
		return nil, apperr.Conflict("questionnaire changed during submission")
	}

	inst.Status = StatusCompleted
	inst.DateCompleted = &completedAt
	inst.Responses = stored
	s.logger.Info().
		Str("patient_id", inst.PatientID.String()).
		Str("instance_id", inst.ID.String()).
		Int("responses", len(stored)).
		Msg("questionnaire instance completed")
	return inst, nil
}

// SubmitByToken runs the token gate and then submits.
func (s *Service) SubmitByToken(ctx context.Context, token string, responses Responses) (*Instance, error) {
	inst, err := s.ResolveByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, inst.ID, responses)
}

// CorrectCompletionDate lets staff fix the recorded completion date of a
// completed instance.
func (s *Service) CorrectCompletionDate(ctx context.Context, id uuid.UUID, date time.Time) (*Instance, error) {
	if date.IsZero() {
		return nil, apperr.Validation("completion date is required", "date_completed")
	}
	if date.After(s.now()) {
		return nil, apperr.Validation("completion date cannot be in the future", "date_completed")
	}
	inst, err := s.instances.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inst.IsCompleted() {
		return nil, apperr.Validation("only completed questionnaires have a completion date", "date_completed")
	}
	date = date.UTC()
	ok, err := s.instances.SetCompletionDate(ctx, id, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("questionnaire")
	}
	inst.DateCompleted = &date
	return inst, nil
}

func (s *Service) DisplayStatus(inst *Instance) Status {
	return DisplayStatus(inst, s.now(), s.opts.OverdueAfter)
}

// Link builds the patient-facing URL for an instance. The clinic in ctx is
// carried as a query parameter so the link resolves to the same schema.
func (s *Service) Link(ctx context.Context, inst *Instance) string {
	link := fmt.Sprintf("%s/questionnaire/%s/%s/%s", s.opts.PublicBaseURL, inst.PatientID, inst.ID, url.PathEscape(inst.AccessToken))
	if clinic := db.ClinicFromContext(ctx); clinic != "" {
		link += "?" + url.Values{db.ClinicQueryParam: {clinic}}.Encode()
	}
	return link
}
