package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"judge_zone/internal/api/middleware"
	"judge_zone/internal/app/service"
	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
)

type ProblemHandler struct {
	problemService    *service.ProblemService
	submissionService *service.SubmissionService
}

func NewProblemHandler(ps *service.ProblemService, ss *service.SubmissionService) *ProblemHandler {
	return &ProblemHandler{problemService: ps, submissionService: ss}
}

func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/problems", h.listProblems)
	r.Get("/problem/{problemSlug}", h.getProblem)

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator)
		authed.Post("/problem/{problemSlug}/submit", h.submit)
	})

	r.Group(func(judgeRouter chi.Router) {
		judgeRouter.Use(middleware.Authenticator)
		judgeRouter.Use(middleware.JudgeOnly)
		judgeRouter.Get("/problem/{problemSlug}/checker", h.getChecker)
		judgeRouter.Get("/problem/{problemSlug}/interactor", h.getInteractor)
		judgeRouter.Get("/problem/{problemSlug}/metadata", h.getMetadata)
	})

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Post("/problems", h.createProblem)
		adminRouter.Put("/problem/{problemSlug}", h.updateProblem)
		adminRouter.Delete("/problem/{problemSlug}", h.deleteProblem)
		adminRouter.Get("/problem/{problemSlug}/testcases", h.getTestCases)
		adminRouter.Put("/problem/{problemSlug}/testcases", h.putTestCases)
	})
}

func respondText(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *ProblemHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.problemService.List(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problems)
}

func (h *ProblemHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	problem, err := h.problemService.Get(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "problemSlug"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) createProblem(w http.ResponseWriter, r *http.Request) {
	var req model.ProblemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	problem, err := h.problemService.Create(r.Context(), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, problem)
}

func (h *ProblemHandler) updateProblem(w http.ResponseWriter, r *http.Request) {
	var req model.ProblemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	problem, err := h.problemService.Update(r.Context(), chi.URLParam(r, "problemSlug"), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) deleteProblem(w http.ResponseWriter, r *http.Request) {
	if err := h.problemService.Delete(r.Context(), chi.URLParam(r, "problemSlug")); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProblemHandler) getTestCases(w http.ResponseWriter, r *http.Request) {
	tcs, err := h.problemService.TestCases(r.Context(), chi.URLParam(r, "problemSlug"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, model.TestCasesRequest{TestCases: tcs})
}

func (h *ProblemHandler) putTestCases(w http.ResponseWriter, r *http.Request) {
	var req model.TestCasesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	tcs, err := h.problemService.SetTestCases(r.Context(), chi.URLParam(r, "problemSlug"), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, model.TestCasesRequest{TestCases: tcs})
}

func (h *ProblemHandler) getChecker(w http.ResponseWriter, r *http.Request) {
	src, err := h.problemService.Checker(r.Context(), chi.URLParam(r, "problemSlug"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	respondText(w, "text/plain; charset=utf-8", []byte(src))
}

func (h *ProblemHandler) getInteractor(w http.ResponseWriter, r *http.Request) {
	src, err := h.problemService.Interactor(r.Context(), chi.URLParam(r, "problemSlug"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	respondText(w, "text/plain; charset=utf-8", []byte(src))
}

func (h *ProblemHandler) getMetadata(w http.ResponseWriter, r *http.Request) {
	out, err := h.problemService.Metadata(r.Context(), chi.URLParam(r, "problemSlug"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	respondText(w, "application/yaml", out)
}

func (h *ProblemHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	resp, err := h.submissionService.SubmitToProblem(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "problemSlug"), req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp) // Judging runs asynchronously
}
