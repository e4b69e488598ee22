package questionnaire

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

// ── Mock Repositories ──

type mockTemplateRepo struct {
	data map[uuid.UUID]*Template
}

func (m *mockTemplateRepo) Create(_ context.Context, t *Template) error {
	for _, existing := range m.data {
		if t.Key != nil && existing.Key != nil && *t.Key == *existing.Key {
			return apperr.Conflict("duplicate template key")
		}
	}
	c := *t
	c.Questions = cloneQuestions(t.Questions)
	m.data[t.ID] = &c
	return nil
}
func (m *mockTemplateRepo) GetByID(_ context.Context, id uuid.UUID) (*Template, error) {
	if t, ok := m.data[id]; ok {
		c := *t
		c.Questions = cloneQuestions(t.Questions)
		return &c, nil
	}
	return nil, apperr.NotFound("questionnaire template")
}
func (m *mockTemplateRepo) GetByKey(_ context.Context, key string) (*Template, error) {
	for _, t := range m.data {
		if t.Key != nil && *t.Key == key {
			c := *t
			return &c, nil
		}
	}
	return nil, apperr.NotFound("questionnaire template")
}
func (m *mockTemplateRepo) Update(_ context.Context, t *Template) error {
	if _, ok := m.data[t.ID]; !ok {
		return apperr.NotFound("questionnaire template")
	}
	c := *t
	c.Questions = cloneQuestions(t.Questions)
	m.data[t.ID] = &c
	return nil
}
func (m *mockTemplateRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.data[id]; !ok {
		return apperr.NotFound("questionnaire template")
	}
	delete(m.data, id)
	return nil
}
func (m *mockTemplateRepo) List(_ context.Context, limit, offset int) ([]*Template, int, error) {
	var out []*Template
	for _, t := range m.data {
		out = append(out, t)
	}
	return out, len(out), nil
}

// mockInstanceRepo stores copies so callers cannot mutate stored state, and
// applies Complete only to pending rows like the SQL guard does.
type mockInstanceRepo struct {
	mu     sync.Mutex
	data   map[uuid.UUID]*Instance
	tokens map[string]uuid.UUID
	// completeHook runs before Complete applies, to simulate a racing writer.
	completeHook func()
}

func copyInstance(i *Instance) *Instance {
	c := *i
	c.Questions = cloneQuestions(i.Questions)
	c.Responses = i.Responses.clone()
	if i.DateCompleted != nil {
		d := *i.DateCompleted
		c.DateCompleted = &d
	}
	return &c
}

func (m *mockInstanceRepo) Create(_ context.Context, inst *Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = make(map[string]uuid.UUID)
	}
	if _, dup := m.tokens[inst.AccessToken]; dup {
		return apperr.Conflict("duplicate access token")
	}
	m.tokens[inst.AccessToken] = inst.ID
	m.data[inst.ID] = copyInstance(inst)
	return nil
}
func (m *mockInstanceRepo) GetByID(_ context.Context, id uuid.UUID) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.data[id]; ok {
		return copyInstance(i), nil
	}
	return nil, apperr.NotFound("questionnaire")
}
func (m *mockInstanceRepo) GetByToken(_ context.Context, token string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.data[m.tokens[token]]; ok && i.AccessToken == token {
		return copyInstance(i), nil
	}
	return nil, apperr.NotFound("questionnaire")
}
func (m *mockInstanceRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Instance, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Instance
	for _, i := range m.data {
		if i.PatientID == patientID {
			out = append(out, copyInstance(i))
		}
	}
	return out, len(out), nil
}
func (m *mockInstanceRepo) Complete(_ context.Context, id uuid.UUID, responses Responses, completedAt time.Time) (bool, error) {
	if m.completeHook != nil {
		m.completeHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.data[id]
	if !ok || i.Status != StatusPending {
		return false, nil
	}
	i.Responses = responses.clone()
	i.Status = StatusCompleted
	d := completedAt
	i.DateCompleted = &d
	return true, nil
}
func (m *mockInstanceRepo) SetCompletionDate(_ context.Context, id uuid.UUID, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.data[id]
	if !ok || i.Status != StatusCompleted {
		return false, nil
	}
	d := date
	i.DateCompleted = &d
	return true, nil
}
func (m *mockInstanceRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return apperr.NotFound("questionnaire")
	}
	delete(m.data, id)
	return nil
}
func (m *mockInstanceRepo) DeleteByPatient(_ context.Context, patientID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, i := range m.data {
		if i.PatientID == patientID {
			delete(m.data, id)
			n++
		}
	}
	return n, nil
}

// ── Fixtures ──

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	templates *mockTemplateRepo
	instances *mockInstanceRepo
	tsvc      *TemplateService
	svc       *Service
}

func newTestEnv(opts Options) *testEnv {
	tr := &mockTemplateRepo{data: make(map[uuid.UUID]*Template)}
	ir := &mockInstanceRepo{data: make(map[uuid.UUID]*Instance)}
	svc := NewService(tr, ir, opts, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return &testEnv{templates: tr, instances: ir, tsvc: NewTemplateService(tr), svc: svc}
}

func adminSession() *auth.Session {
	return &auth.Session{TokenID: "jti-admin", UserID: "admin-1", Role: auth.RoleAdmin}
}

func employeeSession() *auth.Session {
	return &auth.Session{TokenID: "jti-emp", UserID: "emp-1", Role: auth.RoleEmployee}
}

// who5Template is five required 0..5 scale questions q1..q5.
func who5Template() *Template {
	t := &Template{Title: "WHO-5"}
	for _, id := range []string{"q1", "q2", "q3", "q4", "q5"} {
		t.Questions = append(t.Questions, Question{
			ID: id, Type: TypeScale, Text: "Spørgsmål " + id, Required: true,
			Min: intPtr(0), Max: intPtr(5),
		})
	}
	return t
}

func (e *testEnv) createTemplate(t *Template) *Template {
	if err := e.tsvc.CreateTemplate(context.Background(), adminSession(), t); err != nil {
		panic(err)
	}
	return t
}

func who5Answers() Responses {
	return Responses{
		"q1": NumberAnswer(3), "q2": NumberAnswer(4), "q3": NumberAnswer(2),
		"q4": NumberAnswer(5), "q5": NumberAnswer(1),
	}
}
