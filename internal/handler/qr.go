package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/Khaledxab/mygym-backend/internal/middleware"
	"github.com/Khaledxab/mygym-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type QRHandler struct{ svc service.QRService }

func NewQRHandler(svc service.QRService) *QRHandler { return &QRHandler{svc: svc} }

// Issue supersedes the gym's current code and returns the new one.
func (h *QRHandler) Issue(c *gin.Context) {
	id, ok := uuidParam(c, "id", "gym")
	if !ok {
		return
	}
	resp, err := h.svc.Issue(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *QRHandler) Status(c *gin.Context) {
	id, ok := uuidParam(c, "id", "gym")
	if !ok {
		return
	}
	resp, err := h.svc.Status(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Poster streams a printable PDF of the current code.
func (h *QRHandler) Poster(c *gin.Context) {
	id, ok := uuidParam(c, "id", "gym")
	if !ok {
		return
	}
	// buffered so a render failure can still produce a JSON error
	var buf bytes.Buffer
	if err := h.svc.WritePoster(c.Request.Context(), middleware.GetIdentity(c), id, &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="gym-%s-qr.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
