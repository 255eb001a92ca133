package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/bevanyudira/IPBB-sub000/internal/errors"
	"github.com/bevanyudira/IPBB-sub000/internal/penalty"
	"github.com/bevanyudira/IPBB-sub000/internal/services"
)

// QueryDateLayout is the date format accepted in query parameters.
const QueryDateLayout = "2006-01-02"

// PenaltyHandler answers ad-hoc penalty quotes.
type PenaltyHandler struct {
	service services.ObligationService
}

// NewPenaltyHandler creates a new PenaltyHandler instance.
func NewPenaltyHandler(service services.ObligationService) *PenaltyHandler {
	return &PenaltyHandler{service: service}
}

// PenaltyRequest represents the query parameters for the penalty endpoint.
type PenaltyRequest struct {
	Amount  *int64 `form:"amount" binding:"required,gte=0"`
	DueDate string `form:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Paid    bool   `form:"paid"`
	Region  string `form:"region" binding:"omitempty,numeric,len=4"`
	AsOf    string `form:"as_of" binding:"omitempty,datetime=2006-01-02"`
}

// PenaltyResponse is a quote plus the inputs it was computed for.
type PenaltyResponse struct {
	penalty.Quote
	BaseAmount int64  `json:"base_amount"`
	DueDate    string `json:"due_date,omitempty"`
	Paid       bool   `json:"paid"`
	RegionCode string `json:"region_code,omitempty"`
}

// Quote handles GET /api/v1/penalty.
func (h *PenaltyHandler) Quote(c *gin.Context) {
	var req PenaltyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	// Both dates already passed the datetime validator.
	in := penalty.Input{
		BaseAmount: *req.Amount,
		IsPaid:     req.Paid,
		RegionCode: req.Region,
	}
	if req.DueDate != "" {
		due, _ := time.Parse(QueryDateLayout, req.DueDate)
		in.DueDate = &due
	}
	if req.AsOf != "" {
		in.AsOf, _ = time.Parse(QueryDateLayout, req.AsOf)
	}

	c.JSON(http.StatusOK, PenaltyResponse{
		Quote:      h.service.QuotePenalty(in),
		BaseAmount: in.BaseAmount,
		DueDate:    req.DueDate,
		Paid:       req.Paid,
		RegionCode: req.Region,
	})
}
