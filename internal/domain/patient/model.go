package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. Questionnaire instances reference a
// patient by id and are removed explicitly when the patient is deleted.
type Patient struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Age            *int      `db:"age" json:"age,omitempty"`
	Phone          string    `db:"phone" json:"phone"`
	Email          string    `db:"email" json:"email"`
	Condition      string    `db:"condition" json:"condition"`
	TreatmentNotes *string   `db:"treatment_notes" json:"treatment_notes,omitempty"`
	CreatedBy      string    `db:"created_by" json:"created_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
