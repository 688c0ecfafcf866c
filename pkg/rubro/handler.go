package rubro

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/obrafin/obrafin/internal/apperr"
	log "github.com/sirupsen/logrus"
)

type CategoryDTO struct {
	Id        int    `json:"id"`
	BudgetId  int    `json:"budgetId"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

type PositionDTO struct {
	PrecedingId int `json:"precedingId"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service}
}

func categoryToDTO(c Category) CategoryDTO {
	return CategoryDTO{Id: c.Id, BudgetId: c.BudgetId, Name: c.Name, SortOrder: c.SortOrder}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// categoryFromPath resolves the category in the path and checks it belongs to the budget
// in the path.
func (h *Handler) categoryFromPath(w http.ResponseWriter, r *http.Request) (Category, bool) {
	vars := mux.Vars(r)
	budgetId, err := strconv.Atoi(vars["budgetId"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return Category{}, false
	}
	categoryId, err := strconv.Atoi(vars["categoryId"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return Category{}, false
	}
	c, err := h.service.Get(r.Context(), categoryId)
	if err != nil {
		apperr.WriteError(w, err)
		return Category{}, false
	}
	if c.BudgetId != budgetId {
		apperr.WriteError(w, ErrCategoryNotFound)
		return Category{}, false
	}
	return c, true
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	budgetId, err := strconv.Atoi(mux.Vars(r)["budgetId"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	categories, err := h.service.List(r.Context(), budgetId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	dtos := make([]CategoryDTO, 0, len(categories))
	for _, c := range categories {
		dtos = append(dtos, categoryToDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Create godoc
// @Summary Add a category to the budget directory
// @Tags Category
// @Accept json
// @Produce json
// @Param budgetId path int true "Budget ID"
// @Param category body CategoryDTO true "Category"
// @Success 201 {object} CategoryDTO
// @Failure 422 {string} string "Empty name"
// @Router /api/budget/{budgetId}/category [post]
// @Security XUserId
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	budgetId, err := strconv.Atoi(mux.Vars(r)["budgetId"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var dto CategoryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.service.Create(r.Context(), budgetId, dto.Name)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryToDTO(created))
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	c, ok := h.categoryFromPath(w, r)
	if !ok {
		return
	}
	var dto CategoryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	renamed, err := h.service.Rename(r.Context(), c.Id, dto.Name)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryToDTO(renamed))
}

func (h *Handler) SetPosition(w http.ResponseWriter, r *http.Request) {
	c, ok := h.categoryFromPath(w, r)
	if !ok {
		return
	}
	var dto PositionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.MoveAfter(r.Context(), c.Id, dto.PrecedingId); err != nil {
		apperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete godoc
// @Summary Delete a category
// @Description Removes the category and the draft section referencing it. Published versions are untouched.
// @Tags Category
// @Param budgetId path int true "Budget ID"
// @Param categoryId path int true "Category ID"
// @Success 204
// @Failure 404 {string} string "Category not found"
// @Router /api/budget/{budgetId}/category/{categoryId} [delete]
// @Security XUserId
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := h.categoryFromPath(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), c.Id); err != nil {
		apperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
