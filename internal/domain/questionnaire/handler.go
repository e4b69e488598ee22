package questionnaire

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc       *Service
	templates *TemplateService
}

func NewHandler(svc *Service, templates *TemplateService) *Handler {
	return &Handler{svc: svc, templates: templates}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Template management: admin only. Registered before the staff group so
	// unmatched paths under api fall through to the weaker role gate.
	admin := api.Group("", auth.RequireAdmin())
	admin.POST("/questionnaire-templates", h.CreateTemplate)
	admin.PUT("/questionnaire-templates/:id", h.UpdateTemplate)
	admin.DELETE("/questionnaire-templates/:id", h.DeleteTemplate)

	// Read and delivery endpoints: any staff member
	staff := api.Group("", auth.RequireRole(auth.RoleEmployee))
	staff.GET("/patients/:id/questionnaires", h.ListPatientQuestionnaires)
	staff.POST("/patients/:id/questionnaires", h.AssignQuestionnaires)
	staff.GET("/questionnaires/:id", h.GetQuestionnaire)
	staff.DELETE("/questionnaires/:id", h.DeleteQuestionnaire)
	staff.PATCH("/questionnaires/:id/completion-date", h.CorrectCompletionDate)
	staff.GET("/questionnaire-templates", h.ListTemplates)
	staff.GET("/questionnaire-templates/:id", h.GetTemplate)
}

// InstanceView is an instance as shown to staff, with its derived status and
// the link to hand to the patient.
type InstanceView struct {
	*Instance
	DisplayStatus Status `json:"display_status"`
	Link          string `json:"link"`
}

func (h *Handler) view(c echo.Context, inst *Instance) InstanceView {
	return InstanceView{Instance: inst, DisplayStatus: h.svc.DisplayStatus(inst), Link: h.svc.Link(c.Request().Context(), inst)}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Instance Handlers --

func (h *Handler) ListPatientQuestionnaires(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	views := make([]InstanceView, 0, len(items))
	for _, inst := range items {
		views = append(views, h.view(c, inst))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}

type assignRequest struct {
	TemplateIDs []uuid.UUID `json:"template_ids"`
}

func (h *Handler) AssignQuestionnaires(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.TemplateIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "template_ids is required")
	}
	ctx := c.Request().Context()
	created, err := h.svc.AssignTemplates(ctx, patientID, req.TemplateIDs, auth.ActorFromContext(ctx))
	if err != nil {
		return err
	}
	views := make([]InstanceView, 0, len(created))
	for _, inst := range created {
		views = append(views, h.view(c, inst))
	}
	return c.JSON(http.StatusCreated, views)
}

func (h *Handler) GetQuestionnaire(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inst, err := h.svc.GetInstance(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.view(c, inst))
}

func (h *Handler) DeleteQuestionnaire(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteInstance(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type completionDateRequest struct {
	DateCompleted time.Time `json:"date_completed"`
}

func (h *Handler) CorrectCompletionDate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req completionDateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inst, err := h.svc.CorrectCompletionDate(c.Request().Context(), id, req.DateCompleted)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.view(c, inst))
}

// -- Template Handlers --

func (h *Handler) ListTemplates(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.templates.ListTemplates(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.templates.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) CreateTemplate(c echo.Context) error {
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := h.templates.CreateTemplate(ctx, auth.SessionFromContext(ctx), &t); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) UpdateTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	ctx := c.Request().Context()
	if err := h.templates.UpdateTemplate(ctx, auth.SessionFromContext(ctx), &t); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.templates.DeleteTemplate(ctx, auth.SessionFromContext(ctx), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
