package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
	"judge_zone/internal/domain/repository"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]model.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return common.ErrConflict
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.RegistrationTime = time.Now()
	r.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return common.ErrNotFound
	}
	r.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) List(context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeProblemRepo struct {
	problems map[int64]model.Problem
	nextID   int64
}

func newFakeProblemRepo(problems ...model.Problem) *fakeProblemRepo {
	r := &fakeProblemRepo{problems: make(map[int64]model.Problem)}
	for _, p := range problems {
		r.problems[p.ID] = p
		if p.ID > r.nextID {
			r.nextID = p.ID
		}
	}
	return r
}

func (r *fakeProblemRepo) slugTaken(slug string, except int64) bool {
	for id, p := range r.problems {
		if id != except && p.Slug == slug {
			return true
		}
	}
	return false
}

func (r *fakeProblemRepo) CreateProblem(_ context.Context, _ *sql.Tx, p *model.Problem) error {
	if r.slugTaken(p.Slug, 0) {
		return common.ErrConflict
	}
	r.nextID++
	p.ID = r.nextID
	r.problems[p.ID] = *p
	return nil
}

func (r *fakeProblemRepo) UpdateProblem(_ context.Context, _ *sql.Tx, p *model.Problem) error {
	if _, ok := r.problems[p.ID]; !ok {
		return common.ErrNotFound
	}
	if r.slugTaken(p.Slug, p.ID) {
		return common.ErrConflict
	}
	r.problems[p.ID] = *p
	return nil
}

func (r *fakeProblemRepo) DeleteProblem(_ context.Context, id int64) error {
	if _, ok := r.problems[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.problems, id)
	return nil
}

func (r *fakeProblemRepo) FindProblemByID(_ context.Context, id int64) (*model.Problem, error) {
	p, ok := r.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (r *fakeProblemRepo) FindProblemBySlug(_ context.Context, slug string) (*model.Problem, error) {
	for _, p := range r.problems {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeProblemRepo) ListProblems(_ context.Context, publicOnly bool) ([]model.Problem, error) {
	out := []model.Problem{}
	for _, p := range r.problems {
		if !publicOnly || p.IsPublic {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeContestRepo struct {
	contests      map[int64]model.Contest
	problems      map[int64][]model.ContestProblem
	registrations map[[2]int64]bool
	rows          []model.ScoreboardRow
	referenced    map[int64]bool // contest problem ids that have submissions
	nextID        int64
	nextCPID      int64
}

func newFakeContestRepo(contests ...model.Contest) *fakeContestRepo {
	r := &fakeContestRepo{
		contests:      make(map[int64]model.Contest),
		problems:      make(map[int64][]model.ContestProblem),
		registrations: make(map[[2]int64]bool),
		referenced:    make(map[int64]bool),
	}
	for _, c := range contests {
		r.contests[c.ID] = c
		if c.ID > r.nextID {
			r.nextID = c.ID
		}
	}
	return r
}

func (r *fakeContestRepo) slugTaken(slug string, except int64) bool {
	for id, c := range r.contests {
		if id != except && c.Slug == slug {
			return true
		}
	}
	return false
}

func (r *fakeContestRepo) CreateContest(_ context.Context, _ *sql.Tx, c *model.Contest) error {
	if r.slugTaken(c.Slug, 0) {
		return common.ErrConflict
	}
	r.nextID++
	c.ID = r.nextID
	stored := *c
	stored.Problems = nil
	r.contests[c.ID] = stored
	return nil
}

func (r *fakeContestRepo) UpdateContest(_ context.Context, _ *sql.Tx, c *model.Contest) error {
	if _, ok := r.contests[c.ID]; !ok {
		return common.ErrNotFound
	}
	if r.slugTaken(c.Slug, c.ID) {
		return common.ErrConflict
	}
	stored := *c
	stored.Problems = nil
	r.contests[c.ID] = stored
	return nil
}

func (r *fakeContestRepo) DeleteContest(_ context.Context, id int64) error {
	if _, ok := r.contests[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.contests, id)
	delete(r.problems, id)
	return nil
}

func (r *fakeContestRepo) FindContestByID(_ context.Context, id int64) (*model.Contest, error) {
	c, ok := r.contests[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &c, nil
}

func (r *fakeContestRepo) FindContestBySlug(_ context.Context, slug string) (*model.Contest, error) {
	for _, c := range r.contests {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeContestRepo) ListContests(_ context.Context, filter repository.ContestListFilter) ([]model.Contest, error) {
	out := []model.Contest{}
	for _, c := range r.contests {
		visible := filter.All || c.IsPublic
		if !visible && filter.RegisteredUserID != nil {
			visible = r.registrations[[2]int64{c.ID, *filter.RegisteredUserID}]
		}
		if visible {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeContestRepo) ReplaceContestProblems(_ context.Context, _ *sql.Tx, contestID int64, problems []model.ContestProblem) error {
	current := r.problems[contestID]
	plan := repository.PlanContestProblems(current, problems)
	for _, id := range plan.Remove {
		if r.referenced[id] {
			return common.ErrConflict
		}
	}
	for _, cp := range current {
		if cp.ID > r.nextCPID {
			r.nextCPID = cp.ID
		}
	}
	for _, i := range plan.Insert {
		r.nextCPID++
		problems[i].ID = r.nextCPID
	}
	stored := make([]model.ContestProblem, 0, len(problems))
	for i := range problems {
		problems[i].ContestID = contestID
		stored = append(stored, problems[i])
	}
	r.problems[contestID] = stored
	return nil
}

func (r *fakeContestRepo) ListContestProblems(_ context.Context, contestID int64) ([]model.ContestProblem, error) {
	return append([]model.ContestProblem{}, r.problems[contestID]...), nil
}

func (r *fakeContestRepo) FindContestProblem(_ context.Context, contestID int64, slug string) (*model.ContestProblem, error) {
	for _, cp := range r.problems[contestID] {
		if cp.Slug == slug {
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeContestRepo) Register(_ context.Context, contestID, userID int64) error {
	r.registrations[[2]int64{contestID, userID}] = true
	return nil
}

func (r *fakeContestRepo) IsRegistered(_ context.Context, contestID, userID int64) (bool, error) {
	return r.registrations[[2]int64{contestID, userID}], nil
}

func (r *fakeContestRepo) ScoreboardRows(context.Context, int64) ([]model.ScoreboardRow, error) {
	return r.rows, nil
}

type fakeSubmissionRepo struct {
	mu         sync.Mutex
	subs       map[int64]model.Submission
	nextID     int64
	lastFilter model.SubmissionFilter
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{subs: make(map[int64]model.Submission)}
}

func (r *fakeSubmissionRepo) put(s model.Submission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.ID] = s
	if s.ID > r.nextID {
		r.nextID = s.ID
	}
}

func (r *fakeSubmissionRepo) get(id int64) model.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[id]
}

func (r *fakeSubmissionRepo) CreateSubmission(_ context.Context, s *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	s.Date = time.Now()
	r.subs[s.ID] = *s
	return nil
}

func (r *fakeSubmissionRepo) GetSubmissionByID(_ context.Context, id int64) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSubmissionRepo) ApplyJudgeReport(_ context.Context, id int64, report model.JudgeReport, verdictJSON []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return common.ErrNotFound
	}
	s.Verdict = report.Verdict
	s.Time = report.Time
	s.Memory = report.Memory
	s.CompileMessage = report.CompileMessage
	s.VerdictJSON = json.RawMessage(append([]byte(nil), verdictJSON...))
	r.subs[id] = s
	return nil
}

func (r *fakeSubmissionRepo) ResetForRejudge(_ context.Context, id int64) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	s.Verdict = model.VerdictWaiting
	s.Time, s.Memory, s.VerdictJSON, s.CompileMessage = nil, nil, nil, nil
	r.subs[id] = s
	return &s, nil
}

func (r *fakeSubmissionRepo) ListSubmissions(_ context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	out := []model.Submission{}
	for _, s := range r.subs {
		if filter.UserID != nil && s.UserID != *filter.UserID {
			continue
		}
		if filter.ProblemID != nil && s.ProblemID != *filter.ProblemID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeSubmissionRepo) ListAdminSubmissions(_ context.Context, limit int) ([]model.AdminSubmission, error) {
	subs, _ := r.ListSubmissions(context.Background(), model.SubmissionFilter{Limit: limit})
	out := make([]model.AdminSubmission, 0, len(subs))
	for i := range subs {
		out = append(out, model.AdminSubmission{SlimSubmission: subs[i].Slim()})
	}
	return out, nil
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (q *fakeQueue) Enqueue(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type published struct {
	channel string
	payload any
}

type fakePublisher struct {
	events []published
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{channel: channel, payload: payload})
	return nil
}

// fakeTx runs fn without a real transaction and counts calls.
type fakeTx struct {
	calls int
}

func (f *fakeTx) WithTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	f.calls++
	return fn(nil)
}

var errBoom = errors.New("boom")

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }
