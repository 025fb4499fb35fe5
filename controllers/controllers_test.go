package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"civicreport-be/config"
	"civicreport-be/controllers"
	"civicreport-be/metrics"
	"civicreport-be/middlewares"
	"civicreport-be/models"
	"civicreport-be/notify"
	"civicreport-be/reportform"
	"civicreport-be/routes"
	"civicreport-be/session"
	"civicreport-be/store"
	"civicreport-be/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var testNow = time.Date(2024, time.January, 20, 12, 0, 0, 0, time.UTC)

type recordingChannel struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (r *recordingChannel) Send(ctx context.Context, user *models.User, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

// onceHook runs its function the next time it fires, then disarms.
type onceHook struct {
	mu sync.Mutex
	fn func()
}

func (h *onceHook) set(fn func()) {
	h.mu.Lock()
	h.fn = fn
	h.mu.Unlock()
}

func (h *onceHook) fire() {
	h.mu.Lock()
	fn := h.fn
	h.fn = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// hookedSessions lets a test run another request between a handler's
// session read and its write.
type hookedSessions struct {
	*session.Memory
	afterGet onceHook
}

func (s *hookedSessions) Get(ctx context.Context, id string) (*session.State, error) {
	state, err := s.Memory.Get(ctx, id)
	s.afterGet.fire()
	return state, err
}

type hookedStore struct {
	*store.Memory
	afterGetIssue onceHook
}

func (s *hookedStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	issue, err := s.Memory.GetIssue(ctx, id)
	s.afterGetIssue.fire()
	return issue, err
}

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (m *memoryCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return redis.NewIntResult(m.counts[key], nil)
}

func (m *memoryCounter) Decr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]--
	return redis.NewIntResult(m.counts[key], nil)
}

func (m *memoryCounter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func (m *memoryCounter) TTL(ctx context.Context, key string) *redis.DurationCmd {
	return redis.NewDurationResult(time.Hour, nil)
}

type testServer struct {
	router   *gin.Engine
	handler  *controllers.Handler
	store    *hookedStore
	sessions *hookedSessions
	push     *recordingChannel
}

func newTestServer(t *testing.T) *testServer {
	return newLimitedTestServer(t, nil, 10)
}

func newLimitedTestServer(t *testing.T, limiter middlewares.Counter, dailyLimit int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	mem.SetClock(func() time.Time { return testNow })
	require.NoError(t, store.Seed(context.Background(), mem))
	st := &hookedStore{Memory: mem}

	sessions := &hookedSessions{Memory: session.NewMemory()}
	push := &recordingChannel{}
	h := &controllers.Handler{
		Store:       st,
		Sessions:    sessions,
		Notifier:    notify.NewDispatcher(map[string]notify.Channel{notify.ChannelPush: push}),
		Transcriber: reportform.LabelTranscriber{},
		Metrics:     metrics.New(prometheus.NewRegistry()),
		Config: config.Config{
			JWTSecret:        testSecret,
			VoiceNoteTimeout: time.Second,
			MaxUploadBytes:   1 << 20,
			IssueLimitQueue:  "issue-limit",
			IssueDailyLimit:  dailyLimit,
		},
		Log: zerolog.Nop(),
		Now: func() time.Time { return testNow },
	}

	r := gin.New()
	routes.Setup(r, h, limiter)
	return &testServer{router: r, handler: h, store: st, sessions: sessions, push: push}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return s.serve(t, req, token)
}

func (s *testServer) upload(t *testing.T, path, token, field, filename string, data []byte, extra map[string]string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.serve(t, req, token)
}

func (s *testServer) serve(t *testing.T, req *http.Request, token string) (int, map[string]any) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 && json.Valid(w.Body.Bytes()) {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": store.SeedPassword})
	require.Equal(t, http.StatusOK, code, body)
	token, ok := body["token"].(string)
	require.True(t, ok)
	return token
}

func idsOf(t *testing.T, list any) []string {
	t.Helper()
	items, ok := list.([]any)
	require.True(t, ok, "expected a list, got %T", list)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.(map[string]any)["id"].(string))
	}
	return out
}

var (
	wavBytes = append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
)

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Ann Lee", "email": "Ann@Example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "ann@example.com", body["email"])
	assert.Equal(t, "citizen", body["role"])

	code, _ = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Ann Again", "email": "ann@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ann@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	token := s.login(t, "ann@example.com")
	code, body = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ann Lee", body["name"])
}

func TestLogoutDiscardsSession(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "john.doe@email.com")

	code, body := s.do(t, http.MethodGet, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "dashboard", body["page"])

	code, _ = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestNavigation(t *testing.T) {
	s := newTestServer(t)
	john := s.login(t, "john.doe@email.com")
	admin := s.login(t, "admin@city.gov")

	code, body := s.do(t, http.MethodPut, "/api/session/page", john, gin.H{"page": "reports"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "reports", body["page"])

	code, body = s.do(t, http.MethodPut, "/api/session/page", john, gin.H{"page": "settings"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "dashboard", body["page"])

	code, _ = s.do(t, http.MethodPut, "/api/session/admin-view", john, gin.H{"enabled": true})
	assert.Equal(t, http.StatusForbidden, code)

	code, body = s.do(t, http.MethodPut, "/api/session/admin-view", admin, gin.H{"enabled": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["adminView"])
}

func TestDashboardFilter(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "john.doe@email.com")

	code, body := s.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"CR2024-001", "CR2024-002", "CR2024-003"}, idsOf(t, body["issues"]))
	assert.Len(t, body["pins"], 3)

	code, body = s.do(t, http.MethodGet, "/api/dashboard?filter=pothole", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"CR2024-002"}, idsOf(t, body["issues"]))
	issue := body["issues"].([]any)[0].(map[string]any)
	assert.Equal(t, "pending", issue["status"])

	// the selection is remembered
	code, body = s.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pothole", body["filter"])
	assert.EqualValues(t, 1, body["count"])

	code, body = s.do(t, http.MethodGet, "/api/dashboard?filter=streetlight", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "progress", body["issues"].([]any)[0].(map[string]any)["status"])

	code, _ = s.do(t, http.MethodGet, "/api/dashboard?filter=volcano", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSubmitReportFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "john.doe@email.com")

	code, body := s.do(t, http.MethodPost, "/api/report/submit", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, []any{"category", "description", "location"}, body["missing"])

	code, body = s.do(t, http.MethodPatch, "/api/report/draft", token, gin.H{
		"category":    "pothole",
		"description": "Deep <b>hole</b> near the bus stop",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["canSubmit"])
	assert.Equal(t, []any{"location"}, body["missing"])

	code, body = s.do(t, http.MethodPost, "/api/report/draft/location", token, gin.H{
		"address": "Current Location", "latitude": 40.7128, "longitude": -74.006,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["canSubmit"])

	code, body = s.do(t, http.MethodPost, "/api/report/submit", token, nil)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "dashboard", body["redirect"])
	assert.EqualValues(t, 2000, body["redirectAfterMs"])
	report := body["report"].(map[string]any)
	assert.Equal(t, "CR2024-004", report["id"])
	assert.Equal(t, "pending", report["status"])
	assert.Equal(t, "Road Maintenance", report["category"])
	assert.Equal(t, "Deep hole near the bus stop", report["description"])
	assert.EqualValues(t, 20, report["progress"])

	// the new report is in my reports, after the seeded one
	code, body = s.do(t, http.MethodGet, "/api/reports", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"CR2024-001", "CR2024-004"}, idsOf(t, body["reports"]))

	code, body = s.do(t, http.MethodGet, "/api/reports?status=pending", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"CR2024-004"}, idsOf(t, body["reports"]))

	code, body = s.do(t, http.MethodGet, "/api/reports?status=in-progress", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"CR2024-001"}, idsOf(t, body["reports"]))

	// the next draft starts empty
	code, body = s.do(t, http.MethodGet, "/api/report/draft", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "editing", body["draft"].(map[string]any)["state"])
	assert.Equal(t, "", body["draft"].(map[string]any)["description"])
}

func TestMyReportDetailIsPrivate(t *testing.T) {
	s := newTestServer(t)
	john := s.login(t, "john.doe@email.com")

	code, body := s.do(t, http.MethodGet, "/api/reports/CR2024-001", john, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 60, body["progress"])
	timeline := body["timeline"].([]any)
	require.Len(t, timeline, 5)
	assert.Equal(t, true, timeline[1].(map[string]any)["connectorFilled"])
	assert.Equal(t, false, timeline[3].(map[string]any)["connectorFilled"])
	assert.Equal(t, "", timeline[3].(map[string]any)["date"])

	code, _ = s.do(t, http.MethodGet, "/api/reports/CR2024-002", john, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestVoiceNoteAndPhoto(t *testing.T) {
	s := newTestServer(t)
	john := s.login(t, "john.doe@email.com")
	jane := s.login(t, "jane.smith@email.com")

	code, _ := s.do(t, http.MethodPatch, "/api/report/draft", john, gin.H{"description": "Lamp is dark"})
	require.Equal(t, http.StatusOK, code)

	code, body := s.upload(t, "/api/report/draft/voice", john, "audio", "recording.wav", wavBytes, map[string]string{"label": "lamp-note.wav"})
	require.Equal(t, http.StatusOK, code, body)
	draft := body["draft"].(map[string]any)
	assert.Equal(t, "Lamp is dark [Voice note: lamp-note]", draft["description"])
	assert.Equal(t, false, draft["recording"])
	assert.NotEmpty(t, draft["voiceNoteId"])

	code, _ = s.upload(t, "/api/report/draft/photo", john, "photo", "lamp.wav", wavBytes, nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, code)

	code, body = s.upload(t, "/api/report/draft/photo", john, "photo", "lamp.png", pngBytes, nil)
	require.Equal(t, http.StatusOK, code, body)
	photoID := body["draft"].(map[string]any)["photoId"].(string)

	code, _ = s.do(t, http.MethodGet, "/api/attachments/"+photoID, john, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/attachments/"+photoID, jane, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestVoiceNoteWhileRecording(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "john.doe@email.com")
	claims, err := utils.ParseToken(testSecret, token)
	require.NoError(t, err)

	unlock, err := s.sessions.Lock(context.Background(), "voice:"+claims.SessionID, time.Minute)
	require.NoError(t, err)
	defer unlock()

	code, _ := s.upload(t, "/api/report/draft/voice", token, "audio", "note.wav", wavBytes, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestAdminIssues(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@city.gov")
	john := s.login(t, "john.doe@email.com")

	code, _ := s.do(t, http.MethodGet, "/api/admin/issues", john, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(t, http.MethodGet, "/api/admin/issues?status=resolved", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"CR2024-003"}, idsOf(t, body["issues"]))

	// status is remembered, search narrows it further
	code, body = s.do(t, http.MethodGet, "/api/admin/issues?status=all&search=OAK", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"CR2024-002"}, idsOf(t, body["issues"]))

	code, body = s.do(t, http.MethodGet, "/api/admin/issues?search=&category=streetlight", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"CR2024-001"}, idsOf(t, body["issues"]))
	issue := body["issues"].([]any)[0].(map[string]any)
	assert.Equal(t, "in-progress", issue["status"])
	assert.Equal(t, "40.7128,-74.0060", issue["location"])
	assert.Equal(t, "Public Works", issue["department"])

	code, body = s.do(t, http.MethodGet, "/api/admin/issues?category=all&sort=oldest&limit=2", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"CR2024-003", "CR2024-002"}, idsOf(t, body["issues"]))
	assert.EqualValues(t, 2, body["totalPages"])

	for _, q := range []string{"limit=0", "limit=101", "page=0", "sort=random", "status=progress"} {
		code, _ = s.do(t, http.MethodGet, "/api/admin/issues?"+q, admin, nil)
		assert.Equal(t, http.StatusBadRequest, code, q)
	}
}

func TestAdminUpdateNotifiesReporter(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@city.gov")

	code, body := s.do(t, http.MethodGet, "/api/admin/issues/CR2024-002", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 6, body["daysSinceReported"])

	code, body = s.do(t, http.MethodPatch, "/api/admin/issues/CR2024-002", admin, gin.H{
		"status": "assigned", "department": "transportation", "assignedTo": "Mike Johnson", "priority": "high",
	})
	require.Equal(t, http.StatusOK, code, body)
	issue := body["issue"].(map[string]any)
	assert.Equal(t, "assigned", issue["status"])
	assert.Equal(t, "high", issue["priority"])
	assert.Equal(t, "Transportation", issue["department"])
	assert.EqualValues(t, 60, issue["progress"])
	assert.Equal(t, []any{"push"}, body["notified"])

	require.Len(t, s.push.sent, 1)
	assert.Equal(t, "CR2024-002", s.push.sent[0].IssueID)

	// jane sees it as in progress
	jane := s.login(t, "jane.smith@email.com")
	code, body = s.do(t, http.MethodGet, "/api/reports/CR2024-002", jane, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "in-progress", body["status"])

	code, _ = s.do(t, http.MethodPatch, "/api/admin/issues/CR2024-002", admin, gin.H{"status": "closed"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPatch, "/api/admin/issues/CR2024-999", admin, gin.H{"priority": "low"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminTimelineAndNotes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@city.gov")

	code, body := s.do(t, http.MethodPost, "/api/admin/issues/CR2024-001/timeline/advance", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 80, body["issue"].(map[string]any)["progress"])

	code, _ = s.do(t, http.MethodPost, "/api/admin/issues/CR2024-003/timeline/advance", admin, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, body = s.do(t, http.MethodPost, "/api/admin/issues/CR2024-001/notes", admin, gin.H{"text": "Crew booked for Monday"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "City Admin", body["author"])

	code, body = s.do(t, http.MethodGet, "/api/admin/issues/CR2024-001/notes", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["notes"], 1)

	code, _ = s.do(t, http.MethodPost, "/api/admin/issues/CR2024-001/notes", admin, gin.H{"text": "<i></i>"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAdminOverviewAndAnalytics(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@city.gov")

	code, body := s.do(t, http.MethodGet, "/api/admin/overview", admin, nil)
	require.Equal(t, http.StatusOK, code)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 3, stats["totalIssues"])
	assert.EqualValues(t, 1, stats["resolvedIssues"])
	assert.Equal(t, []string{"CR2024-001", "CR2024-002", "CR2024-003"}, idsOf(t, body["recent"]))

	code, body = s.do(t, http.MethodGet, "/api/admin/analytics?static=true", admin, nil)
	require.Equal(t, http.StatusOK, code)
	monthly := body["monthlyReports"].([]any)
	require.Len(t, monthly, 6)
	assert.EqualValues(t, 73, monthly[5].(map[string]any)["reports"])

	code, body = s.do(t, http.MethodGet, "/api/admin/analytics", admin, nil)
	require.Equal(t, http.StatusOK, code)
	monthly = body["monthlyReports"].([]any)
	assert.EqualValues(t, 3, monthly[5].(map[string]any)["reports"])

	code, body = s.do(t, http.MethodPut, "/api/admin/tab", admin, gin.H{"tab": "analytics"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "analytics", body["filters"].(map[string]any)["adminTab"])
}

func TestProfileEditing(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "john.doe@email.com")

	code, _ := s.do(t, http.MethodPatch, "/api/profile/edit", token, gin.H{"name": "Johnny"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/profile/edit", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPatch, "/api/profile/edit", token, gin.H{"name": "Johnny"})
	require.Equal(t, http.StatusOK, code)
	code, body := s.do(t, http.MethodPatch, "/api/profile/edit", token, gin.H{"phone": "555-0000"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Johnny", body["profile"].(map[string]any)["name"])

	code, body = s.do(t, http.MethodPost, "/api/profile/edit/cancel", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["editing"])
	assert.Equal(t, "John Doe", body["profile"].(map[string]any)["name"])
	assert.Equal(t, "+1 (555) 123-4567", body["profile"].(map[string]any)["phone"])

	code, _ = s.do(t, http.MethodPost, "/api/profile/edit", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPatch, "/api/profile/edit", token, gin.H{"email": "jane.smith@email.com"})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/api/profile/edit/save", token, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, body = s.do(t, http.MethodPatch, "/api/profile/edit", token, gin.H{"email": "John@New.Example", "name": "John Q. Doe"})
	require.Equal(t, http.StatusOK, code)
	buffer := body["profile"].(map[string]any)
	assert.Equal(t, "john@new.example", buffer["email"])

	code, body = s.do(t, http.MethodPost, "/api/profile/edit/save", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, false, body["editing"])
	assert.Equal(t, buffer, body["profile"])

	code, body = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "John Q. Doe", body["name"])
	assert.Equal(t, "john@new.example", body["email"])
}

func TestNotificationToggles(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "john.doe@email.com")

	code, body := s.do(t, http.MethodPut, "/api/profile/notifications", token, gin.H{"sms": true, "push": false})
	require.Equal(t, http.StatusOK, code)
	prefs := body["notifications"].(map[string]any)
	assert.Equal(t, true, prefs["sms"])
	assert.Equal(t, false, prefs["push"])
	assert.Equal(t, true, prefs["email"])

	code, body = s.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["notifications"].(map[string]any)["sms"])

	code, _ = s.do(t, http.MethodPut, "/api/profile/notifications", token, gin.H{"fax": true})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRejectedSubmitsKeepDailyQuota(t *testing.T) {
	counter := &memoryCounter{counts: map[string]int64{}}
	s := newLimitedTestServer(t, counter, 2)
	token := s.login(t, "john.doe@email.com")

	for range 3 {
		code, body := s.do(t, http.MethodPost, "/api/report/submit", token, nil)
		require.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Contains(t, body["error"], "missing required fields")
	}

	fillDraft := func() {
		code, _ := s.do(t, http.MethodPatch, "/api/report/draft", token, gin.H{"category": "garbage", "description": "Overflowing bin"})
		require.Equal(t, http.StatusOK, code)
		code, _ = s.do(t, http.MethodPost, "/api/report/draft/location", token, gin.H{
			"address": "Park Ave", "latitude": 40.7, "longitude": -74.0,
		})
		require.Equal(t, http.StatusOK, code)
	}

	fillDraft()
	code, body := s.do(t, http.MethodPost, "/api/report/submit", token, nil)
	require.Equal(t, http.StatusCreated, code, body)

	fillDraft()
	code, body = s.do(t, http.MethodPost, "/api/report/submit", token, nil)
	require.Equal(t, http.StatusCreated, code, body)

	fillDraft()
	code, _ = s.do(t, http.MethodPost, "/api/report/submit", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, code)

	user, err := s.store.GetUserByEmail(context.Background(), "john.doe@email.com")
	require.NoError(t, err)
	assert.EqualValues(t, 2, counter.counts["issue-limit:"+user.ID])
}

func TestSubmitClearsStaleRecordingFlag(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "john.doe@email.com")
	claims, err := utils.ParseToken(testSecret, token)
	require.NoError(t, err)
	ctx := context.Background()

	code, _ := s.do(t, http.MethodPatch, "/api/report/draft", token, gin.H{"category": "pothole", "description": "Deep hole"})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/api/report/draft/location", token, gin.H{
		"address": "Main St", "latitude": 40.7, "longitude": -74.0,
	})
	require.Equal(t, http.StatusOK, code)

	// a capture that died after raising the flag
	state, err := s.sessions.Get(ctx, claims.SessionID)
	require.NoError(t, err)
	require.NoError(t, state.Draft.StartRecording())
	require.NoError(t, s.sessions.Save(ctx, state))

	unlock, err := s.sessions.Lock(ctx, "voice:"+claims.SessionID, time.Minute)
	require.NoError(t, err)
	code, body := s.do(t, http.MethodPost, "/api/report/submit", token, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Voice note still recording", body["error"])
	unlock()

	code, body = s.do(t, http.MethodPost, "/api/report/submit", token, nil)
	require.Equal(t, http.StatusCreated, code, body)
}

func TestScreenReadKeepsConcurrentDraftEdit(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "john.doe@email.com")

	// the draft is edited while the dashboard request holds a stale session
	s.sessions.afterGet.set(func() {
		code, _ := s.do(t, http.MethodPatch, "/api/report/draft", token, gin.H{"description": "deep hole"})
		require.Equal(t, http.StatusOK, code)
	})
	code, body := s.do(t, http.MethodGet, "/api/dashboard?filter=pothole", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pothole", body["filter"])

	code, body = s.do(t, http.MethodGet, "/api/report/draft", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "deep hole", body["draft"].(map[string]any)["description"])

	// an unchanged screen read writes nothing back
	s.sessions.afterGet.set(func() {
		code, _ := s.do(t, http.MethodPatch, "/api/report/draft", token, gin.H{"description": "deeper hole"})
		require.Equal(t, http.StatusOK, code)
	})
	code, _ = s.do(t, http.MethodGet, "/api/reports", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodGet, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pothole", body["filters"].(map[string]any)["dashboard"])
	code, body = s.do(t, http.MethodGet, "/api/report/draft", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "deeper hole", body["draft"].(map[string]any)["description"])
}

func TestConcurrentDraftEditsConflict(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "john.doe@email.com")

	s.sessions.afterGet.set(func() {
		code, _ := s.do(t, http.MethodPatch, "/api/report/draft", token, gin.H{"description": "first"})
		require.Equal(t, http.StatusOK, code)
	})
	code, body := s.do(t, http.MethodPatch, "/api/report/draft", token, gin.H{"description": "second"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Session was changed by another request", body["error"])

	code, body = s.do(t, http.MethodGet, "/api/report/draft", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "first", body["draft"].(map[string]any)["description"])
}

func TestAdminStatusCannotRewindTimeline(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@city.gov")

	code, body := s.do(t, http.MethodPatch, "/api/admin/issues/CR2024-003", admin, gin.H{"status": "pending"})
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, models.ErrStatusBehindTimeline.Error(), body["error"])
	assert.Empty(t, s.push.sent)

	code, body = s.do(t, http.MethodGet, "/api/admin/issues/CR2024-003", admin, nil)
	require.Equal(t, http.StatusOK, code)
	issue := body["issue"].(map[string]any)
	assert.Equal(t, "resolved", issue["status"])
	assert.EqualValues(t, 100, issue["progress"])

	// a pending issue only advances as far as Under Review
	code, body = s.do(t, http.MethodPost, "/api/admin/issues/CR2024-002/timeline/advance", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 40, body["issue"].(map[string]any)["progress"])
	code, _ = s.do(t, http.MethodPost, "/api/admin/issues/CR2024-002/timeline/advance", admin, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestAdminConcurrentUpdatesBothApply(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@city.gov")

	s.store.afterGetIssue.set(func() {
		code, _ := s.do(t, http.MethodPatch, "/api/admin/issues/CR2024-002", admin, gin.H{"assignedTo": "Mike Johnson"})
		require.Equal(t, http.StatusOK, code)
	})
	code, body := s.do(t, http.MethodPatch, "/api/admin/issues/CR2024-002", admin, gin.H{"priority": "high"})
	require.Equal(t, http.StatusOK, code, body)

	stored, err := s.store.GetIssue(context.Background(), "CR2024-002")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, stored.Priority)
	assert.Equal(t, "Mike Johnson", stored.AssignedTo)
	assert.EqualValues(t, 2, stored.Version)
}
