package handler

import (
	"net/http"

	"github.com/Khaledxab/mygym-backend/internal/dto"
	"github.com/Khaledxab/mygym-backend/internal/middleware"
	"github.com/Khaledxab/mygym-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type GymsHandler struct{ svc service.GymService }

func NewGymsHandler(svc service.GymService) *GymsHandler { return &GymsHandler{svc: svc} }

func (h *GymsHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context(), c.Query("include_inactive") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GymsHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id", "gym")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GymsHandler) Create(c *gin.Context) {
	var req dto.CreateGymRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), middleware.GetIdentity(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *GymsHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id", "gym")
	if !ok {
		return
	}
	var req dto.UpdateGymRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), middleware.GetIdentity(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GymsHandler) Deactivate(c *gin.Context) {
	id, ok := uuidParam(c, "id", "gym")
	if !ok {
		return
	}
	if err := h.svc.Deactivate(c.Request.Context(), middleware.GetIdentity(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GymsHandler) AddAdmin(c *gin.Context) {
	id, ok := uuidParam(c, "id", "gym")
	if !ok {
		return
	}
	var req dto.AddGymAdminRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddAdmin(c.Request.Context(), middleware.GetIdentity(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GymsHandler) RemoveAdmin(c *gin.Context) {
	gymID, ok := uuidParam(c, "id", "gym")
	if !ok {
		return
	}
	accountID, ok := uuidParam(c, "account_id", "gym administrator")
	if !ok {
		return
	}
	if err := h.svc.RemoveAdmin(c.Request.Context(), middleware.GetIdentity(c), gymID, accountID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
