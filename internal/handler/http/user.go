package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/lifedash-auth/internal/domain"
	"github.com/utafrali/lifedash-auth/internal/service"
	"github.com/utafrali/lifedash-auth/pkg/httputil"
	"github.com/utafrali/lifedash-auth/pkg/middleware"
	"github.com/utafrali/lifedash-auth/pkg/pagination"
)

// UserHandler handles the protected user endpoints.
type UserHandler struct {
	service *service.UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// UserData wraps a single user.
type UserData struct {
	User domain.PublicUser `json:"user"`
}

// UsersData wraps the user list. Pagination is set only when the client
// asked for a page.
type UsersData struct {
	Users      []domain.PublicUser `json:"users"`
	Count      int                 `json:"count"`
	Pagination *pagination.Meta    `json:"pagination,omitempty"`
}

// Me handles GET /user/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{Message: middleware.MsgNoToken})
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), id.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "", UserData{User: user.Public()})
}

// All handles GET /user/all[?page=&per_page=]
func (h *UserHandler) All(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	public := domain.PublicUsers(users)
	data := UsersData{Users: public}
	if p := pagination.FromRequest(r); p.Requested {
		page, meta := pagination.Apply(public, p)
		data.Users = page
		data.Pagination = &meta
	}
	data.Count = len(data.Users)
	httputil.WriteSuccess(w, http.StatusOK, "", data)
}
