package reporting

import (
	"context"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/i18n"
)

// Fetcher loads the data for one patient's export. A missing patient is an
// apperr NotFound.
type Fetcher interface {
	FetchExport(ctx context.Context, patientID uuid.UUID) (*Export, error)
}

type Handler struct {
	fetch  Fetcher
	logger zerolog.Logger
	now    func() time.Time
}

func NewHandler(fetch Fetcher, logger zerolog.Logger) *Handler {
	return &Handler{fetch: fetch, logger: logger, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/export", h.ExportPatient, auth.RequireRole(auth.RoleEmployee))
}

// ExportPatient streams the patient's questionnaires as an xlsx attachment.
func (h *Handler) ExportPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()

	exp, err := h.fetch.FetchExport(ctx, id)
	if err != nil {
		return err
	}
	exp.Locale = i18n.FromContext(ctx)

	f, err := BuildWorkbook(exp)
	if err != nil {
		return err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return err
	}

	h.logger.Info().Str("patient_id", id.String()).Int("questionnaires", len(exp.Items)).Msg("patient export")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": Filename(exp.Patient.Name, h.now())}))
	return c.Blob(http.StatusOK, ContentType, buf.Bytes())
}
