package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/bevanyudira/IPBB-sub000/internal/errors"
	"github.com/bevanyudira/IPBB-sub000/internal/middleware"
	"github.com/bevanyudira/IPBB-sub000/internal/obligation"
	"github.com/bevanyudira/IPBB-sub000/internal/services"
	"github.com/bevanyudira/IPBB-sub000/internal/taxrecords"
)

// XLSXContentType is the media type of exported workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ObligationHandler handles multi-year obligation requests.
type ObligationHandler struct {
	service services.ObligationService
}

// NewObligationHandler creates a new ObligationHandler instance.
func NewObligationHandler(service services.ObligationService) *ObligationHandler {
	return &ObligationHandler{service: service}
}

// Summary handles GET /api/v1/obligations/:nop.
// It loads every tax year and returns the projected report. A report that
// did not settle in time is still returned, with complete=false.
func (h *ObligationHandler) Summary(c *gin.Context) {
	rep, err := h.service.Summary(c.Request.Context(), c.Param("nop"))
	if err != nil {
		h.handleError(c, err, "Failed to load obligations")
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Export handles GET /api/v1/obligations/:nop/export.xlsx.
// The workbook is rendered into memory first so that a failure can still
// produce a JSON error.
func (h *ObligationHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	rep, err := h.service.Export(c.Request.Context(), c.Param("nop"), &buf)
	if err != nil {
		h.handleError(c, err, "Failed to export obligations")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="tagihan-pbb-%s.xlsx"`, rep.NOP))
	c.Data(http.StatusOK, XLSXContentType, buf.Bytes())
}

// StartViewing handles POST /api/v1/viewers/:viewer/obligations/:nop.
// The viewer's previous session, if any, is cancelled. Years keep loading
// after the response; poll CurrentView for progress.
func (h *ObligationHandler) StartViewing(c *gin.Context) {
	viewer := c.Param("viewer")
	snap, err := h.service.StartViewing(c.Request.Context(), viewer, c.Param("nop"))
	if err != nil {
		h.handleError(c, err, "Failed to start obligation session")
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Obligation session started", map[string]interface{}{
			"session_id": snap.SessionID,
			"years":      len(snap.Rows),
		})
	}
	c.JSON(http.StatusAccepted, snap)
}

// CurrentView handles GET /api/v1/viewers/:viewer/obligations.
func (h *ObligationHandler) CurrentView(c *gin.Context) {
	snap, err := h.service.CurrentView(c.Param("viewer"))
	if err != nil {
		h.handleError(c, err, "Failed to read obligation session")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// StopViewing handles DELETE /api/v1/viewers/:viewer/obligations.
func (h *ObligationHandler) StopViewing(c *gin.Context) {
	if !h.service.StopViewing(c.Param("viewer")) {
		apierrors.NotFound(c, "No obligation session for this viewer")
		return
	}
	c.Status(http.StatusNoContent)
}

// Session handles GET /api/v1/sessions/:id.
// Superseded and stopped sessions stay readable until they are evicted.
func (h *ObligationHandler) Session(c *gin.Context) {
	snap, err := h.service.SessionView(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrNoSession) {
			apierrors.NotFound(c, "Obligation session not found")
			return
		}
		h.handleError(c, err, "Failed to read obligation session")
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *ObligationHandler) handleError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrInvalidNOP):
		apierrors.InvalidNOP(c, err)
	case errors.Is(err, services.ErrNoData):
		apierrors.NoData(c, "No tax years found for this NOP")
	case errors.Is(err, services.ErrNoSession):
		apierrors.NotFound(c, "No obligation session for this viewer")
	case errors.Is(err, obligation.ErrSessionCancelled):
		// The tracker only refuses loads once it is closed.
		apierrors.ServiceUnavailable(c, "Server is shutting down")
	case errors.Is(err, taxrecords.ErrServer), errors.Is(err, taxrecords.ErrTransport):
		apierrors.UpstreamError(c, "Tax records service is unavailable", err)
	default:
		apierrors.InternalServerError(c, message, err)
	}
}
