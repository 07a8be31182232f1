package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"judge_zone/internal/api/middleware"
	"judge_zone/internal/app/service"
	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
)

type ContestHandler struct {
	contestService    *service.ContestService
	submissionService *service.SubmissionService
}

func NewContestHandler(cs *service.ContestService, ss *service.SubmissionService) *ContestHandler {
	return &ContestHandler{contestService: cs, submissionService: ss}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/contests", h.listContests)
	r.Get("/contest/{contestSlug}", h.getContest)
	r.Get("/contest/{contestSlug}/scoreboard", h.getScoreboard)

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator)
		authed.Post("/contest/{contestSlug}/register", h.register)
		authed.Post("/contest/{contestSlug}/submit", h.submit)
	})

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Post("/contests", h.createContest)
		adminRouter.Put("/contest/{contestSlug}", h.updateContest)
		adminRouter.Delete("/contest/{contestSlug}", h.deleteContest)
	})
}

func (h *ContestHandler) listContests(w http.ResponseWriter, r *http.Request) {
	contests, err := h.contestService.List(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contests)
}

func (h *ContestHandler) getContest(w http.ResponseWriter, r *http.Request) {
	contest, err := h.contestService.Get(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "contestSlug"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contest)
}

func (h *ContestHandler) createContest(w http.ResponseWriter, r *http.Request) {
	var req model.ContestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	contest, err := h.contestService.Create(r.Context(), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, contest)
}

func (h *ContestHandler) updateContest(w http.ResponseWriter, r *http.Request) {
	var req model.ContestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	contest, err := h.contestService.Update(r.Context(), chi.URLParam(r, "contestSlug"), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, contest)
}

func (h *ContestHandler) deleteContest(w http.ResponseWriter, r *http.Request) {
	if err := h.contestService.Delete(r.Context(), chi.URLParam(r, "contestSlug")); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContestHandler) register(w http.ResponseWriter, r *http.Request) {
	if err := h.contestService.Register(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "contestSlug")); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContestHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req model.ContestSubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	resp, err := h.submissionService.SubmitToContest(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "contestSlug"), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *ContestHandler) getScoreboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.contestService.Scoreboard(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "contestSlug"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, board)
}
