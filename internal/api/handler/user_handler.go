package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"judge_zone/internal/api/middleware"
	"judge_zone/internal/app/service"
	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(us *service.UserService) *UserHandler {
	return &UserHandler{userService: us}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.listUsers)
	r.Get("/user/{username}", h.getUser)

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator)
		authed.Put("/user/{username}", h.updateUser)
	})
}

func (h *UserHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Get(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "username"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	user, err := h.userService.Update(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "username"), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}
