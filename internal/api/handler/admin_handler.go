package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"judge_zone/internal/api/middleware"
	"judge_zone/internal/app/service"
	"judge_zone/internal/common"
)

type AdminHandler struct {
	userService       *service.UserService
	submissionService *service.SubmissionService
	dataDir           string
}

func NewAdminHandler(us *service.UserService, ss *service.SubmissionService, dataDir string) *AdminHandler {
	return &AdminHandler{userService: us, submissionService: ss, dataDir: dataDir}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(judgeRouter chi.Router) {
		judgeRouter.Use(middleware.Authenticator)
		judgeRouter.Use(middleware.JudgeOnly)
		judgeRouter.Get("/admin/testlib", h.getTestlib)
	})

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Get("/admin/users", h.listUsers)
		adminRouter.Get("/admin/submissions", h.listSubmissions)
	})
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.AdminList(r.Context())
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.submissionService.AdminList(r.Context(), parsePositiveInt(r.URL.Query().Get("limit"), 0))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}

func (h *AdminHandler) getTestlib(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(h.dataDir, "testlib.h")
	if _, err := os.Stat(path); err != nil {
		common.RespondWithErr(w, common.ErrNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, path)
}
