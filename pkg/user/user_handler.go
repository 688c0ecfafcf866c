package user

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

type UserDTO struct {
	Uid         string `json:"uid"`
	TenantId    int    `json:"tenantId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
	CanEdit     bool   `json:"canEdit"`
}

type Handler struct {
	userService Service
}

func NewHandler(userService Service) *Handler {
	return &Handler{
		userService: userService,
	}
}

// CurrentUser godoc
// @Summary Get the current user
// @Tags User
// @Produce json
// @Success 200 {object} UserDTO
// @Failure 403 {string} string "User not found"
// @Router /api/user/current [get]
// @Security XUserId
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	log.Debug("Getting current user")

	u, err := h.userService.GetCurrentUser(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if err := json.NewEncoder(w).Encode(userToDTO(u)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func userToDTO(u User) UserDTO {
	return UserDTO{
		Uid:         u.Uid,
		TenantId:    u.TenantId,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CanEdit:     u.Role.CanEdit(),
	}
}
