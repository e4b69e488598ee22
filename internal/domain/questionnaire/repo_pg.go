package questionnaire

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== Template Repository ===========

type templateRepoPG struct{ pool *pgxpool.Pool }

func NewTemplateRepoPG(pool *pgxpool.Pool) TemplateRepository {
	return &templateRepoPG{pool: pool}
}

const templateCols = `id, key, title, description, instructions, questions,
	created_by, last_modified_by, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var questions []byte
	if err := row.Scan(&t.ID, &t.Key, &t.Title, &t.Description, &t.Instructions, &questions,
		&t.CreatedBy, &t.LastModifiedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &t.Questions); err != nil {
		return nil, fmt.Errorf("decode template %s questions: %w", t.ID, err)
	}
	return &t, nil
}

func (r *templateRepoPG) Create(ctx context.Context, t *Template) error {
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	err = connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO questionnaire_template (id, key, title, description, instructions,
			questions, created_by, last_modified_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		t.ID, t.Key, t.Title, t.Description, t.Instructions,
		questions, t.CreatedBy, t.LastModifiedBy).Scan(&t.CreatedAt, &t.UpdatedAt)
	return db.Classify(err, "create questionnaire template")
}

func (r *templateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	t, err := scanTemplate(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+templateCols+` FROM questionnaire_template WHERE id = $1`, id))
	return t, db.Classify(err, "questionnaire template not found")
}

func (r *templateRepoPG) GetByKey(ctx context.Context, key string) (*Template, error) {
	t, err := scanTemplate(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+templateCols+` FROM questionnaire_template WHERE key = $1`, key))
	return t, db.Classify(err, "questionnaire template not found")
}

func (r *templateRepoPG) Update(ctx context.Context, t *Template) error {
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	err = connFor(ctx, r.pool).QueryRow(ctx, `
		UPDATE questionnaire_template SET title=$2, description=$3, instructions=$4,
			questions=$5, last_modified_by=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Title, t.Description, t.Instructions, questions, t.LastModifiedBy).Scan(&t.UpdatedAt)
	return db.Classify(err, "questionnaire template not found")
}

func (r *templateRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM questionnaire_template WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err, "delete questionnaire template")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("questionnaire template")
	}
	return nil
}

func (r *templateRepoPG) List(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	q := connFor(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM questionnaire_template`).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "count questionnaire templates")
	}
	rows, err := q.Query(ctx, `SELECT `+templateCols+` FROM questionnaire_template
		ORDER BY title, created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, db.Classify(err, "list questionnaire templates")
	}
	defer rows.Close()
	var items []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, db.Classify(err, "list questionnaire templates")
		}
		items = append(items, t)
	}
	return items, total, db.Classify(rows.Err(), "list questionnaire templates")
}

// =========== Instance Repository ===========

type instanceRepoPG struct{ pool *pgxpool.Pool }

func NewInstanceRepoPG(pool *pgxpool.Pool) InstanceRepository {
	return &instanceRepoPG{pool: pool}
}

const instanceCols = `id, patient_id, template_id, title, description, instructions,
	questions, access_token, status, assigned_date, date_completed, expiry_date,
	responses, created_by, created_at, updated_at`

func scanInstance(row pgx.Row) (*Instance, error) {
	var i Instance
	var questions, responses []byte
	if err := row.Scan(&i.ID, &i.PatientID, &i.TemplateID, &i.Title, &i.Description, &i.Instructions,
		&questions, &i.AccessToken, &i.Status, &i.AssignedDate, &i.DateCompleted, &i.ExpiryDate,
		&responses, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &i.Questions); err != nil {
		return nil, fmt.Errorf("decode instance %s questions: %w", i.ID, err)
	}
	if responses != nil {
		if err := json.Unmarshal(responses, &i.Responses); err != nil {
			return nil, fmt.Errorf("decode instance %s responses: %w", i.ID, err)
		}
	}
	return &i, nil
}

func (r *instanceRepoPG) Create(ctx context.Context, inst *Instance) error {
	questions, err := json.Marshal(inst.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	err = connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO questionnaire_instance (id, patient_id, template_id, title, description,
			instructions, questions, access_token, status, assigned_date, expiry_date, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		inst.ID, inst.PatientID, inst.TemplateID, inst.Title, inst.Description,
		inst.Instructions, questions, inst.AccessToken, inst.Status, inst.AssignedDate,
		inst.ExpiryDate, inst.CreatedBy).Scan(&inst.CreatedAt, &inst.UpdatedAt)
	return db.Classify(err, "create questionnaire instance")
}

func (r *instanceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Instance, error) {
	i, err := scanInstance(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+instanceCols+` FROM questionnaire_instance WHERE id = $1`, id))
	return i, db.Classify(err, "questionnaire not found")
}

func (r *instanceRepoPG) GetByToken(ctx context.Context, token string) (*Instance, error) {
	i, err := scanInstance(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+instanceCols+` FROM questionnaire_instance WHERE access_token = $1`, token))
	return i, db.Classify(err, "questionnaire not found")
}

func (r *instanceRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Instance, int, error) {
	q := connFor(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM questionnaire_instance WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "count questionnaire instances")
	}
	rows, err := q.Query(ctx, `SELECT `+instanceCols+` FROM questionnaire_instance
		WHERE patient_id = $1 ORDER BY assigned_date DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, db.Classify(err, "list questionnaire instances")
	}
	defer rows.Close()
	var items []*Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, 0, db.Classify(err, "list questionnaire instances")
		}
		items = append(items, i)
	}
	return items, total, db.Classify(rows.Err(), "list questionnaire instances")
}

func (r *instanceRepoPG) Complete(ctx context.Context, id uuid.UUID, responses Responses, completedAt time.Time) (bool, error) {
	if responses == nil {
		responses = Responses{}
	}
	data, err := json.Marshal(responses)
	if err != nil {
		return false, fmt.Errorf("encode responses: %w", err)
	}
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE questionnaire_instance
		SET responses = $2, status = 'completed', date_completed = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		id, data, completedAt)
	if err != nil {
		return false, db.Classify(err, "complete questionnaire")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *instanceRepoPG) SetCompletionDate(ctx context.Context, id uuid.UUID, date time.Time) (bool, error) {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE questionnaire_instance SET date_completed = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'completed'`, id, date)
	if err != nil {
		return false, db.Classify(err, "set completion date")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *instanceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM questionnaire_instance WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err, "delete questionnaire instance")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("questionnaire")
	}
	return nil
}

func (r *instanceRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM questionnaire_instance WHERE patient_id = $1`, patientID)
	if err != nil {
		return 0, db.Classify(err, "delete patient questionnaires")
	}
	return tag.RowsAffected(), nil
}
