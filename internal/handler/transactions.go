package handler

import (
	"net/http"

	"github.com/Khaledxab/mygym-backend/internal/dto"
	"github.com/Khaledxab/mygym-backend/internal/middleware"
	"github.com/Khaledxab/mygym-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type TransactionsHandler struct{ svc service.LedgerService }

func NewTransactionsHandler(svc service.LedgerService) *TransactionsHandler {
	return &TransactionsHandler{svc: svc}
}

// Adjust is the manual grant/charge endpoint.
func (h *TransactionsHandler) Adjust(c *gin.Context) {
	var req dto.AdjustPointsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ManualAdjust(c.Request.Context(), middleware.GetIdentity(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *TransactionsHandler) List(c *gin.Context) {
	var filter dto.TransactionFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListTransactions(c.Request.Context(), middleware.GetIdentity(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Mine lists the caller's own history regardless of role.
func (h *TransactionsHandler) Mine(c *gin.Context) {
	var filter dto.TransactionFilter
	if !bindQuery(c, &filter) {
		return
	}
	ident := middleware.GetIdentity(c)
	filter.AccountID = ident.AccountID.String()
	resp, err := h.svc.ListTransactions(c.Request.Context(), ident, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TransactionsHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id", "transaction")
	if !ok {
		return
	}
	resp, err := h.svc.GetTransaction(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
