package receipt

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/pkg/ledger"
	"github.com/obrafin/obrafin/pkg/supplier"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type SupplierDTO struct {
	Name            string `json:"name" validate:"required"`
	TaxId           string `json:"taxId"`
	Address         string `json:"address"`
	City            string `json:"city"`
	Province        string `json:"province"`
	FiscalCondition string `json:"fiscalCondition"`
}

type ItemDTO struct {
	Id          int              `json:"id,omitempty"`
	Description string           `json:"description" validate:"required"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unitPrice"`
	Subtotal    *decimal.Decimal `json:"subtotal,omitempty"`
}

type SubmitReceiptDTO struct {
	Classification string          `json:"classification" validate:"omitempty,oneof=expense income"`
	CategoryId     *int            `json:"categoryId" validate:"required_if=Classification expense"`
	LedgerStatus   string          `json:"ledgerStatus" validate:"omitempty,oneof=pending confirmed"`
	Supplier       *SupplierDTO    `json:"supplier"`
	Type           string          `json:"type" validate:"max=32"`
	Number         string          `json:"number" validate:"max=64"`
	IssuedOn       string          `json:"issuedOn" validate:"omitempty,datetime=2006-01-02"`
	Currency       string          `json:"currency" validate:"omitempty,len=3,uppercase"`
	Total          decimal.Decimal `json:"total"`
	Tax            decimal.Decimal `json:"tax"`
	Confidence     decimal.Decimal `json:"confidence"`
	FileRef        string          `json:"fileRef"`
	Notes          string          `json:"notes"`
	Items          []ItemDTO       `json:"items" validate:"dive"`
}

type ReceiptDTO struct {
	Id            int             `json:"id"`
	ProjectId     int             `json:"projectId"`
	CategoryId    *int            `json:"categoryId,omitempty"`
	SupplierId    *int            `json:"supplierId,omitempty"`
	LedgerEntryId *int            `json:"ledgerEntryId,omitempty"`
	Type          string          `json:"type"`
	Number        string          `json:"number"`
	IssuedOn      string          `json:"issuedOn,omitempty"`
	Currency      string          `json:"currency"`
	Total         decimal.Decimal `json:"total"`
	Tax           decimal.Decimal `json:"tax"`
	Items         []ItemDTO       `json:"items,omitempty"`
}

type Handler struct {
	reconciler Reconciler
	validate   *validator.Validate
}

func NewHandler(reconciler Reconciler) *Handler {
	return &Handler{reconciler: reconciler, validate: apperr.NewValidator()}
}

func receiptToDTO(r Receipt) ReceiptDTO {
	dto := ReceiptDTO{
		Id:         r.Id,
		ProjectId:  r.ProjectId,
		CategoryId: r.CategoryId,
		SupplierId: r.SupplierId,
		Type:       r.Type,
		Number:     r.Number,
		Currency:   r.Currency,
		Total:      r.Total,
		Tax:        r.Tax,
	}
	if r.IssuedOn != nil {
		dto.IssuedOn = r.IssuedOn.Format(time.DateOnly)
	}
	for _, item := range r.Items {
		subtotal := item.Subtotal
		dto.Items = append(dto.Items, ItemDTO{
			Id:          item.Id,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    &subtotal,
		})
	}
	return dto
}

// dtoToSubmission converts a validated request body.
func dtoToSubmission(projectId int, dto SubmitReceiptDTO) Submission {
	sub := Submission{
		ProjectId:      projectId,
		Classification: Classification(dto.Classification),
		CategoryId:     dto.CategoryId,
		LedgerStatus:   ledger.Status(dto.LedgerStatus),
		Type:           dto.Type,
		Number:         dto.Number,
		Currency:       dto.Currency,
		Total:          dto.Total,
		Tax:            dto.Tax,
		Confidence:     dto.Confidence,
		FileRef:        dto.FileRef,
		Notes:          dto.Notes,
	}
	if dto.IssuedOn != "" {
		if issued, err := time.Parse(time.DateOnly, dto.IssuedOn); err == nil {
			sub.IssuedOn = &issued
		}
	}
	if dto.Supplier != nil {
		sub.Supplier = &supplier.Input{
			Name:            dto.Supplier.Name,
			TaxId:           dto.Supplier.TaxId,
			Address:         dto.Supplier.Address,
			City:            dto.Supplier.City,
			Province:        dto.Supplier.Province,
			FiscalCondition: dto.Supplier.FiscalCondition,
		}
	}
	for _, item := range dto.Items {
		sub.Items = append(sub.Items, ItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
		})
	}
	return sub
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// Submit godoc
// @Summary Submit an extracted receipt
// @Description Creates the supplier, receipt, items and, for classified receipts, the ledger entry.
// @Description A failure after the first write is compensated; the response tells whether it rolled back.
// @Tags Receipt
// @Accept json
// @Produce json
// @Param projectId path int true "Project ID"
// @Param receipt body SubmitReceiptDTO true "Receipt"
// @Success 201 {object} ReceiptDTO
// @Failure 402 {string} string "Monthly receipt quota reached"
// @Failure 422 {string} string "Invalid receipt"
// @Router /api/project/{projectId}/receipt [post]
// @Security XUserId
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	projectId, err := strconv.Atoi(mux.Vars(r)["projectId"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var dto SubmitReceiptDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		apperr.WriteError(w, apperr.FromValidation(err))
		return
	}

	result, err := h.reconciler.Submit(r.Context(), dtoToSubmission(projectId, dto))
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	body := receiptToDTO(result.Receipt)
	body.SupplierId = result.SupplierId
	body.LedgerEntryId = result.LedgerEntryId
	writeJSON(w, http.StatusCreated, body)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	receiptId, err := strconv.Atoi(mux.Vars(r)["receiptId"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec, err := h.reconciler.Get(r.Context(), receiptId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptToDTO(rec))
}

func (h *Handler) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectId, err := strconv.Atoi(mux.Vars(r)["projectId"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	receipts, err := h.reconciler.ListByProject(r.Context(), projectId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	dtos := make([]ReceiptDTO, 0, len(receipts))
	for _, rec := range receipts {
		dtos = append(dtos, receiptToDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}
