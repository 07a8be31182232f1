package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"judge_zone/internal/app/service"
	"judge_zone/internal/common"
	"judge_zone/internal/common/security"
	"judge_zone/internal/domain/model"
	"judge_zone/internal/domain/repository"
	"judge_zone/internal/platform/metrics"
	"judge_zone/internal/platform/notify"
	"judge_zone/internal/platform/queue"
)

// Only the methods the routes under test reach are implemented; the
// embedded interfaces panic on anything else.
type stubProblems struct {
	repository.ProblemRepository
	problems []model.Problem
}

func (s *stubProblems) FindProblemBySlug(_ context.Context, slug string) (*model.Problem, error) {
	for i := range s.problems {
		if s.problems[i].Slug == slug {
			p := s.problems[i]
			return &p, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *stubProblems) FindProblemByID(_ context.Context, id int64) (*model.Problem, error) {
	for i := range s.problems {
		if s.problems[i].ID == id {
			p := s.problems[i]
			return &p, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *stubProblems) ListProblems(_ context.Context, publicOnly bool) ([]model.Problem, error) {
	var out []model.Problem
	for _, p := range s.problems {
		if !publicOnly || p.IsPublic {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubSubmissions struct {
	repository.SubmissionRepository
	mu   sync.Mutex
	subs map[int64]model.Submission
}

func (s *stubSubmissions) CreateSubmission(_ context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = int64(len(s.subs) + 1)
	sub.Date = time.Now()
	s.subs[sub.ID] = *sub
	return nil
}

func (s *stubSubmissions) GetSubmissionByID(_ context.Context, id int64) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &sub, nil
}

func (s *stubSubmissions) ApplyJudgeReport(_ context.Context, id int64, report model.JudgeReport, verdictJSON []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return common.ErrNotFound
	}
	sub.Verdict = report.Verdict
	sub.Time = report.Time
	sub.Memory = report.Memory
	sub.VerdictJSON = verdictJSON
	s.subs[id] = sub
	return nil
}

type testServer struct {
	handler http.Handler
	tokens  *security.TokenIssuer
	metrics *metrics.Metrics
	subs    *stubSubmissions
	queue   *queue.RedisJudgeQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dataDir, "testlib.h"), []byte("// testlib\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	problems := &stubProblems{problems: []model.Problem{
		{ID: 1, Slug: "two-sum", Title: "Two Sum", IsPublic: true},
		{ID: 2, Slug: "secret", Title: "Secret", IsPublic: false},
	}}
	subs := &stubSubmissions{subs: make(map[int64]model.Submission)}
	q := queue.NewRedisJudgeQueue(rdb, "JUDGE_QUEUE")
	notifier := notify.NewRedisNotifier(rdb)
	m := metrics.New()
	m.WatchQueue(q)
	log := zap.NewNop()
	tokens := security.NewTokenIssuer([]byte("test-secret"), time.Minute, time.Hour)

	h := NewRouter(Deps{
		JWTAuth:        tokens.JWTAuth(),
		Problems:       service.NewProblemService(problems, log),
		Submissions:    service.NewSubmissionService(subs, problems, nil, q, m, log, 100),
		Judge:          service.NewJudgeService(subs, notifier, m, log),
		Subscriber:     notifier,
		Metrics:        m,
		Log:            log,
		AllowedOrigins: []string{"*"},
		DataDir:        dataDir,
	})
	return &testServer{handler: h, tokens: tokens, metrics: m, subs: subs, queue: q}
}

func (s *testServer) token(t *testing.T, userID int64, perms ...string) string {
	t.Helper()
	tok, err := s.tokens.GenerateAccessToken(security.Principal{UserID: userID, Username: "u", Permissions: perms})
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSubmitRequiresToken(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/problem/two-sum/submit", "", `{"language":"cpp","source_code":"int main(){}"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRefreshTokenRejectedForAPI(t *testing.T) {
	s := newTestServer(t)
	refresh, err := s.tokens.GenerateRefreshToken(security.Principal{UserID: 1, Username: "u"})
	if err != nil {
		t.Fatal(err)
	}
	rec := s.do(t, http.MethodPost, "/api/v1/problem/two-sum/submit", refresh, `{"language":"cpp","source_code":"x"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "refresh token") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestSubmitQueuesAndCounts(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/problem/two-sum/submit", s.token(t, 5), `{"language":"cpp","source_code":"int main(){}"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.SubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != 1 {
		t.Errorf("expected id 1, got %d", resp.ID)
	}

	id, err := s.queue.Dequeue(context.Background(), time.Second)
	if err != nil || id != 1 {
		t.Fatalf("expected queued id 1, got %d (%v)", id, err)
	}
	if got := testutil.ToFloat64(s.metrics.SubmissionsCreated); got != 1 {
		t.Errorf("submissions created = %v", got)
	}

	metricsRec := s.do(t, http.MethodGet, "/metrics", "", "")
	if !strings.Contains(metricsRec.Body.String(), "judge_submissions_created_total 1") {
		t.Errorf("metrics output missing counter")
	}
	if !strings.Contains(metricsRec.Body.String(), `judge_queue_depth{queue="JUDGE_QUEUE"} 0`) {
		t.Errorf("metrics output missing queue depth after dequeue")
	}
}

func TestSubmitHiddenProblemIsNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/problem/secret/submit", s.token(t, 5), `{"language":"cpp","source_code":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSubmitValidation(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/problem/two-sum/submit", s.token(t, 5), `{"language":"","source_code":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body common.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body.Fields["language"]; !ok {
		t.Errorf("expected language field error, got %+v", body)
	}
}

func TestProblemListHidesPrivate(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/problems", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []model.PublicProblem
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Slug != "two-sum" {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestPermissionGates(t *testing.T) {
	s := newTestServer(t)
	user := s.token(t, 5)
	judge := s.token(t, 9, model.PermissionJudge)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"create problem as user", http.MethodPost, "/api/v1/problems", user, http.StatusForbidden},
		{"create problem as judge", http.MethodPost, "/api/v1/problems", judge, http.StatusForbidden},
		{"report as user", http.MethodPut, "/api/v1/submission/1/judge", user, http.StatusForbidden},
		{"rejudge anonymous", http.MethodPost, "/api/v1/submission/1/rejudge", "", http.StatusUnauthorized},
		{"testlib as user", http.MethodGet, "/api/v1/admin/testlib", user, http.StatusForbidden},
		{"testlib as judge", http.MethodGet, "/api/v1/admin/testlib", judge, http.StatusOK},
		{"admin users as judge", http.MethodGet, "/api/v1/admin/users", judge, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.token, `{}`)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMalformedSubmissionIDIsNotFound(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/v1/submission/abc", "/api/v1/submission/0", "/api/v1/submission/abc/events"} {
		if rec := s.do(t, http.MethodGet, path, "", ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestReportResultAndFetchViews(t *testing.T) {
	s := newTestServer(t)
	s.subs.subs[1] = model.Submission{ID: 1, UserID: 5, ProblemID: 1, Language: "cpp", SourceCode: "secret code", Verdict: model.VerdictWaiting}

	report := `{"verdict":"AC","time":12,"memory":2048,"testcases":[{"verdict":"AC","time":12,"memory":2048}]}`
	rec := s.do(t, http.MethodPut, "/api/v1/submission/1/judge", s.token(t, 9, model.PermissionJudge), report)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	owner := s.do(t, http.MethodGet, "/api/v1/submission/1", s.token(t, 5), "")
	if owner.Code != http.StatusOK || !strings.Contains(owner.Body.String(), "secret code") {
		t.Fatalf("owner should see full view, got %d %s", owner.Code, owner.Body.String())
	}
	other := s.do(t, http.MethodGet, "/api/v1/submission/1", s.token(t, 6), "")
	if other.Code != http.StatusOK {
		t.Fatalf("expected 200 for public problem, got %d", other.Code)
	}
	if strings.Contains(other.Body.String(), "secret code") {
		t.Errorf("slim view leaked source: %s", other.Body.String())
	}
	if !strings.Contains(other.Body.String(), `"verdict":"AC"`) {
		t.Errorf("slim view missing verdict: %s", other.Body.String())
	}
}

func TestEventsHiddenFromStrangers(t *testing.T) {
	s := newTestServer(t)
	s.subs.subs[1] = model.Submission{ID: 1, UserID: 5, ProblemID: 2, Verdict: model.VerdictWaiting}
	rec := s.do(t, http.MethodGet, "/api/v1/submission/1/events", s.token(t, 6), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEventsStreamProgress(t *testing.T) {
	s := newTestServer(t)
	s.subs.subs[1] = model.Submission{ID: 1, UserID: 5, ProblemID: 2, Verdict: model.VerdictWaiting}
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/submission/1/events?jwt="+s.token(t, 5), nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	// The opening comment is written once the subscription is live.
	if line, err := reader.ReadString('\n'); err != nil || line != ":\n" {
		t.Fatalf("expected keep-alive comment, got %q (%v)", line, err)
	}

	report := `{"verdict":"WJ","time":10,"memory":1024,"testcases":[{"verdict":"AC"},{"verdict":"WJ"}]}`
	if rec := s.do(t, http.MethodPut, "/api/v1/submission/1/judge", s.token(t, 9, model.PermissionJudge), report); rec.Code != http.StatusNoContent {
		t.Fatalf("report failed: %d %s", rec.Code, rec.Body.String())
	}

	var event, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended early: %v", err)
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	if event != "submission.1" {
		t.Errorf("unexpected event name %q", event)
	}
	var got model.ProgressEvent
	if err := json.Unmarshal([]byte(data), &got); err != nil {
		t.Fatal(err)
	}
	if got.Progress != 1 || got.Total != 2 || got.Time == nil || *got.Time != 10 {
		t.Errorf("unexpected event %+v", got)
	}
}
