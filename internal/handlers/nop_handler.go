package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/bevanyudira/IPBB-sub000/internal/errors"
	"github.com/bevanyudira/IPBB-sub000/internal/middleware"
	"github.com/bevanyudira/IPBB-sub000/internal/nop"
	"github.com/bevanyudira/IPBB-sub000/internal/services"
)

// NOPHandler exposes the identifier codec.
type NOPHandler struct {
	service services.ObligationService
}

// NewNOPHandler creates a new NOPHandler instance.
func NewNOPHandler(service services.ObligationService) *NOPHandler {
	return &NOPHandler{service: service}
}

// NOPResponse describes one decoded tax object identifier.
type NOPResponse struct {
	NOP        string         `json:"nop"`
	Formatted  string         `json:"formatted"`
	RegionCode string         `json:"region_code"`
	Components nop.Components `json:"components"`
}

func toNOPResponse(id nop.TaxObjectID) NOPResponse {
	return NOPResponse{
		NOP:        id.String(),
		Formatted:  id.Formatted(),
		RegionCode: id.RegionCode(),
		Components: id.Components(),
	}
}

// Decode handles GET /api/v1/nop/:nop.
// Accepts the 18 digit form or the dotted display form.
func (h *NOPHandler) Decode(c *gin.Context) {
	id, err := h.service.DecodeNOP(c.Param("nop"))
	if err != nil {
		apierrors.InvalidNOP(c, err)
		return
	}
	c.JSON(http.StatusOK, toNOPResponse(id))
}

// Encode handles POST /api/v1/nop/encode.
func (h *NOPHandler) Encode(c *gin.Context) {
	var req nop.Components
	if err := c.ShouldBindJSON(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	id, err := h.service.EncodeNOP(req)
	if err != nil {
		apierrors.InvalidNOP(c, err)
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Debug("Encoded NOP", map[string]interface{}{"nop": id.String()})
	}
	c.JSON(http.StatusOK, toNOPResponse(id))
}
