package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"judge_zone/internal/api/middleware"
	"judge_zone/internal/app/service"
	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
)

type SubmissionHandler struct {
	submissionService *service.SubmissionService
	judgeService      *service.JudgeService
}

func NewSubmissionHandler(ss *service.SubmissionService, js *service.JudgeService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: ss, judgeService: js}
}

func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/submissions", h.listSubmissions)
	r.Get("/submission/{submissionID}", h.getSubmission)

	// Result callback from the judge worker.
	r.Group(func(judgeRouter chi.Router) {
		judgeRouter.Use(middleware.Authenticator)
		judgeRouter.Use(middleware.JudgeOnly)
		judgeRouter.Put("/submission/{submissionID}/judge", h.reportResult)
	})

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Post("/submission/{submissionID}/rejudge", h.rejudge)
	})
}

func (h *SubmissionHandler) getSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "submissionID")
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	sub, err := h.submissionService.Fetch(r.Context(), middleware.ActorFromContext(r.Context()), id)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sub)
}

func (h *SubmissionHandler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter model.SubmissionFilter
	var err error
	if filter.UserID, err = optionalID(q.Get("user")); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	if filter.ProblemID, err = optionalID(q.Get("problem")); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	if filter.ContestID, err = optionalID(q.Get("contest")); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	if v := q.Get("verdict"); v != "" {
		filter.Verdict = &v
	}
	filter.Limit = parsePositiveInt(q.Get("limit"), service.DefaultSubmissionPage)
	filter.Offset = parsePositiveInt(q.Get("offset"), 0)

	subs, err := h.submissionService.List(r.Context(), middleware.ActorFromContext(r.Context()), filter)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}

func (h *SubmissionHandler) reportResult(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "submissionID")
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	var report model.JudgeReport
	if err := decodeJSON(w, r, &report); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	if err := h.judgeService.ReportResult(r.Context(), id, report); err != nil {
		common.RespondWithErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SubmissionHandler) rejudge(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "submissionID")
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	sub, err := h.submissionService.Rejudge(r.Context(), id)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sub)
}
