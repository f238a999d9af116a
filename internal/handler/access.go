package handler

import (
	"net/http"

	"github.com/Khaledxab/mygym-backend/internal/dto"
	"github.com/Khaledxab/mygym-backend/internal/middleware"
	"github.com/Khaledxab/mygym-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type AccessHandler struct{ svc service.AccessService }

func NewAccessHandler(svc service.AccessService) *AccessHandler { return &AccessHandler{svc: svc} }

// Scan charges the caller for entry. Denials come back as the error envelope
// with a distinct code per reason (insufficient_points vs
// invalid_or_expired_code, and so on).
func (h *AccessHandler) Scan(c *gin.Context) {
	var req dto.ScanRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Scan(c.Request.Context(), middleware.GetIdentity(c).AccountID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
