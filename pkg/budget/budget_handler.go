package budget

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/obrafin/obrafin/internal/apperr"
	"github.com/obrafin/obrafin/pkg/snapshot"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type BudgetDTO struct {
	Id             int       `json:"id"`
	ProjectId      int       `json:"projectId"`
	Status         string    `json:"status"`
	CurrentVersion int       `json:"currentVersion"`
	DraftRevision  int       `json:"draftRevision"`
	Updated        time.Time `json:"updated"`
}

type DraftDTO struct {
	Revision int             `json:"revision"`
	Snapshot json.RawMessage `json:"snapshot"`
}

type VersionDTO struct {
	Number    int             `json:"number"`
	Created   time.Time       `json:"created"`
	Total     decimal.Decimal `json:"total"`
	TotalCost decimal.Decimal `json:"totalCost"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
}

type Handler struct {
	drafts    DraftStore
	publisher Publisher
}

func NewHandler(drafts DraftStore, publisher Publisher) *Handler {
	return &Handler{drafts: drafts, publisher: publisher}
}

func budgetToDTO(b Budget) BudgetDTO {
	return BudgetDTO{
		Id:             b.Id,
		ProjectId:      b.ProjectId,
		Status:         string(b.Status),
		CurrentVersion: b.CurrentVersion,
		DraftRevision:  b.DraftRevision,
		Updated:        b.Updated,
	}
}

func versionToDTO(v Version, withSnapshot bool) (VersionDTO, error) {
	dto := VersionDTO{
		Number:    v.Number,
		Created:   v.Created,
		Total:     v.Snapshot.Total(),
		TotalCost: v.Snapshot.TotalCost(),
	}
	if withSnapshot {
		data, err := snapshot.Marshal(v.Snapshot)
		if err != nil {
			return VersionDTO{}, err
		}
		dto.Snapshot = data
	}
	return dto, nil
}

func pathInt(r *http.Request, name string) (int, error) {
	value, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// readSnapshot decodes an optional snapshot body. An empty body yields nil.
func readSnapshot(r *http.Request) (*snapshot.Snapshot, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	return snapshot.Parse(data)
}

// CreateBudget godoc
// @Summary Create the budget of a project
// @Tags Budget
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 201 {object} BudgetDTO
// @Failure 404 {string} string "Project not found"
// @Failure 409 {string} string "Project already has a budget"
// @Router /api/project/{projectId}/budget [post]
// @Security XUserId
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	projectId, err := pathInt(r, "projectId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, err := h.drafts.CreateBudget(r.Context(), projectId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, budgetToDTO(b))
}

func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	budgetId, err := pathInt(r, "budgetId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, err := h.drafts.GetBudget(r.Context(), budgetId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetToDTO(b))
}

func (h *Handler) GetProjectBudget(w http.ResponseWriter, r *http.Request) {
	projectId, err := pathInt(r, "projectId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, err := h.drafts.GetBudgetByProject(r.Context(), projectId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetToDTO(b))
}

// GetDraft godoc
// @Summary Get the draft snapshot
// @Description Returns the draft snapshot and its revision. The snapshot is null before the first save.
// @Tags Budget
// @Produce json
// @Param budgetId path int true "Budget ID"
// @Success 200 {object} DraftDTO
// @Failure 404 {string} string "Budget not found or published"
// @Router /api/budget/{budgetId}/draft [get]
// @Security XUserId
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	budgetId, err := pathInt(r, "budgetId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	draft, revision, err := h.drafts.GetDraft(r.Context(), budgetId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	dto := DraftDTO{Revision: revision, Snapshot: json.RawMessage("null")}
	if draft != nil {
		if dto.Snapshot, err = snapshot.Marshal(*draft); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("ETag", strconv.Itoa(revision))
	writeJSON(w, http.StatusOK, dto)
}

// SaveDraft godoc
// @Summary Save the draft snapshot
// @Description Autosave. Last write wins unless If-Match carries the revision the client last read.
// @Description A published budget answers 409 here, while GET of its draft answers 404: the
// @Description budget exists and must be reopened before it can be edited.
// @Tags Budget
// @Accept json
// @Produce json
// @Param budgetId path int true "Budget ID"
// @Success 200 {object} DraftDTO
// @Failure 404 {string} string "Budget not found"
// @Failure 409 {string} string "Budget is published, reopen it to edit"
// @Failure 412 {string} string "Stale revision"
// @Router /api/budget/{budgetId}/draft [put]
// @Security XUserId
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	budgetId, err := pathInt(r, "budgetId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var expectedRevision *int
	if ifMatch := strings.Trim(r.Header.Get("If-Match"), `" `); ifMatch != "" {
		revision, err := strconv.Atoi(ifMatch)
		if err != nil {
			http.Error(w, "invalid If-Match revision", http.StatusBadRequest)
			return
		}
		expectedRevision = &revision
	}
	draft, err := readSnapshot(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if draft == nil {
		http.Error(w, "missing snapshot body", http.StatusBadRequest)
		return
	}

	revision, err := h.drafts.SaveDraft(r.Context(), budgetId, *draft, expectedRevision)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	w.Header().Set("ETag", strconv.Itoa(revision))
	writeJSON(w, http.StatusOK, map[string]int{"revision": revision})
}

func (h *Handler) ResyncNames(w http.ResponseWriter, r *http.Request) {
	budgetId, err := pathInt(r, "budgetId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	changed, err := h.drafts.ResyncCategoryNames(r.Context(), budgetId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

// Publish godoc
// @Summary Publish the draft as a new version
// @Description An optional snapshot body is saved as the draft in the same transaction before publishing.
// @Tags Budget
// @Accept json
// @Produce json
// @Param budgetId path int true "Budget ID"
// @Success 201 {object} VersionDTO
// @Failure 409 {string} string "Budget is already published"
// @Failure 422 {string} string "Invalid snapshot"
// @Router /api/budget/{budgetId}/publish [post]
// @Security XUserId
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	budgetId, err := pathInt(r, "budgetId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flush, err := readSnapshot(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	version, err := h.publisher.Publish(r.Context(), budgetId, flush)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	dto, err := versionToDTO(version, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	budgetId, err := pathInt(r, "budgetId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, err := h.publisher.Reopen(r.Context(), budgetId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetToDTO(b))
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	budgetId, err := pathInt(r, "budgetId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	versions, err := h.publisher.ListVersions(r.Context(), budgetId)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	dtos := make([]VersionDTO, 0, len(versions))
	for _, v := range versions {
		dto, err := versionToDTO(v, false)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	budgetId, err := pathInt(r, "budgetId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	number, err := pathInt(r, "number")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	version, err := h.publisher.GetVersion(r.Context(), budgetId, number)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	dto, err := versionToDTO(version, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}
