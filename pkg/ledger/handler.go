package ledger

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type EntryDTO struct {
	Id          int             `json:"id"`
	ProjectId   int             `json:"projectId"`
	CategoryId  *int            `json:"categoryId,omitempty"`
	ReceiptId   *int            `json:"receiptId,omitempty"`
	SupplierId  *int            `json:"supplierId,omitempty"`
	Kind        Kind            `json:"kind"`
	Status      Status          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	OccurredOn  string          `json:"occurredOn"`
	Description string          `json:"description"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service}
}

func entryToDTO(e Entry) EntryDTO {
	return EntryDTO{
		Id:          e.Id,
		ProjectId:   e.ProjectId,
		CategoryId:  e.CategoryId,
		ReceiptId:   e.ReceiptId,
		SupplierId:  e.SupplierId,
		Kind:        e.Kind,
		Status:      e.Status,
		Amount:      e.Amount,
		OccurredOn:  e.OccurredOn.Format(time.DateOnly),
		Description: e.Description,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// ListByProject godoc
// @Summary List the ledger entries of a project
// @Tags Ledger
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {array} EntryDTO
// @Router /api/project/{projectId}/ledger [get]
// @Security XUserId
func (h *Handler) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectId, err := strconv.Atoi(mux.Vars(r)["projectId"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entries, err := h.service.ListByProject(r.Context(), projectId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, entryToDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	entryId, err := strconv.Atoi(mux.Vars(r)["entryId"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	confirmed, err := h.service.Confirm(r.Context(), entryId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entryToDTO(confirmed))
}
