package questionnaire

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// PublicHandler serves questionnaire links to patients. The token is the
// only credential; the patient and instance ids in the path are not
// checked.
type PublicHandler struct {
	svc *Service
}

func NewPublicHandler(svc *Service) *PublicHandler {
	return &PublicHandler{svc: svc}
}

func (h *PublicHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:patient_id/:instance_id/:token", h.Show)
	g.POST("/:patient_id/:instance_id/:token", h.Submit)
}

type PublicQuestion struct {
	Question
	Render RenderPlan `json:"render"`
}

// PublicView is what a patient sees: no responses, token or staff fields.
type PublicView struct {
	ID           uuid.UUID        `json:"id"`
	PatientID    uuid.UUID        `json:"patient_id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Instructions string           `json:"instructions"`
	Questions    []PublicQuestion `json:"questions"`
}

func publicView(inst *Instance) PublicView {
	qs := make([]PublicQuestion, 0, len(inst.Questions))
	for _, q := range inst.Questions {
		qs = append(qs, PublicQuestion{Question: q, Render: PlanFor(q)})
	}
	return PublicView{
		ID:           inst.ID,
		PatientID:    inst.PatientID,
		Title:        inst.Title,
		Description:  inst.Description,
		Instructions: inst.Instructions,
		Questions:    qs,
	}
}

func (h *PublicHandler) Show(c echo.Context) error {
	inst, err := h.svc.ResolveByToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, publicView(inst))
}

type submitRequest struct {
	Responses map[string]json.RawMessage `json:"responses"`
}

type submitResponse struct {
	Status        Status    `json:"status"`
	DateCompleted time.Time `json:"date_completed"`
}

// Submit feeds the posted answers through a Collector one question at a
// time and then completes the instance.
func (h *PublicHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()
	inst, err := h.svc.ResolveByToken(ctx, c.Param("token"))
	if err != nil {
		return err
	}

	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ids := make([]string, 0, len(req.Responses))
	for id := range req.Responses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	col := NewCollector(inst.Questions)
	var bad []string
	for _, id := range ids {
		var a Answer
		if err := json.Unmarshal(req.Responses[id], &a); err != nil {
			bad = append(bad, id)
			continue
		}
		if err := col.Set(id, a); err != nil {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return apperr.Validation(fmt.Sprintf("%d answer(s) rejected", len(bad)), bad...)
	}

	done, err := h.svc.Submit(ctx, inst.ID, col.Finalize())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, submitResponse{Status: done.Status, DateCompleted: *done.DateCompleted})
}
