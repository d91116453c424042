package tracker_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildtrack/buildtrack-backend/internal/export"
	"github.com/buildtrack/buildtrack-backend/internal/filestore"
	"github.com/buildtrack/buildtrack-backend/internal/middleware"
	"github.com/buildtrack/buildtrack-backend/internal/receiptparser"
	"github.com/buildtrack/buildtrack-backend/internal/tracker"
	"github.com/buildtrack/buildtrack-backend/internal/utils"
)

// cookieSessions treats the session cookie value as the user id.
type cookieSessions struct{}

func (cookieSessions) FindSessionByID(id string) (utils.SessionData, error) {
	return utils.SessionData{UserID: id, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	jobs  []receiptparser.Job
	tasks map[string]receiptparser.TaskStatus
}

func (q *fakeQueue) Submit(job receiptparser.Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	id := fmt.Sprintf("task-%d", len(q.jobs))
	if q.tasks == nil {
		q.tasks = map[string]receiptparser.TaskStatus{}
	}
	q.tasks[id] = receiptparser.TaskStatus{ID: id, ReceiptID: job.ReceiptID, State: receiptparser.TaskQueued}
	return id, nil
}

func (q *fakeQueue) Status(id string) (receiptparser.TaskStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.tasks[id]
	return st, ok
}

type testServer struct {
	handler http.Handler
	store   *tracker.Storage
	queue   *fakeQueue
	files   *filestore.Local
}

const maxTestUpload = 4 << 10

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := newStorage(t)
	files, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)
	queue := &fakeQueue{}

	h := tracker.NewHandler(store, files, queue, maxTestUpload)
	limiter := middleware.NewRateLimiter(100, time.Minute, "Too many uploads")
	return &testServer{
		handler: tracker.SetupRoutes(h, cookieSessions{}, limiter),
		store:   store,
		queue:   queue,
		files:   files,
	}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: user})
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type uploadFile struct {
	name        string
	contentType string
	data        []byte
}

func (s *testServer) upload(t *testing.T, user string, file *uploadFile, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="receipt"; filename=%q`, file.name))
		hdr.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/receipts/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: user})
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rec)["message"]
}

func (s *testServer) receiptCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.store.DB().Model(&tracker.Receipt{}).Count(&n).Error)
	return n
}

func (s *testServer) storedFiles(t *testing.T) []string {
	t.Helper()
	paths, err := s.files.List()
	require.NoError(t, err)
	return paths
}

func TestRoutes_RequireSession(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/clients", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClientLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/clients", "u1", map[string]any{"name": "Acme", "email": "ops@acme.test"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[tracker.Client](t, rec)
	assert.Equal(t, "u1", created.UserID)
	path := "/clients/" + created.ID.String()

	rec = s.do(t, http.MethodPut, path, "u1", map[string]any{"phone": "555-0100"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[tracker.Client](t, rec)
	assert.Equal(t, "Acme", updated.Name)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, "555-0100", *updated.Phone)
	require.NotNil(t, updated.Email)

	rec = s.do(t, http.MethodGet, "/clients", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]tracker.Client](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/clients", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, path, "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", message(t, rec))

	rec = s.do(t, http.MethodDelete, path, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Client deleted successfully", message(t, rec))

	rec = s.do(t, http.MethodGet, path, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClient_BadInput(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/clients", "u1", map[string]any{"email": "ops@acme.test"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/clients", "u1", map[string]any{"name": "Acme", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/clients/not-a-uuid", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/clients/"+uuid.NewString(), "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProject_ChecksClientOwnership(t *testing.T) {
	s := newTestServer(t)
	client := seedClient(t, s.store, "u1", "Acme")

	rec := s.do(t, http.MethodPost, "/projects", "u2", map[string]any{"clientId": client.ID, "name": "Stolen"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/projects", "u1", map[string]any{
		"clientId":  client.ID,
		"name":      "Kitchen",
		"budget":    "25000",
		"startDate": "2024-05-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var project map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
	assert.Equal(t, tracker.ProjectPlanning, project["status"])
	assert.Equal(t, "25000.00", project["budget"])
	assert.Equal(t, "0.00", project["actualCost"])

	rec = s.do(t, http.MethodPost, "/projects", "u1", map[string]any{"clientId": client.ID, "name": "Bad", "status": "demolished"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProject_MoveRequiresOwningTarget(t *testing.T) {
	s := newTestServer(t)
	mine := seedClient(t, s.store, "u1", "Mine")
	theirs := seedClient(t, s.store, "u2", "Theirs")
	project := seedProject(t, s.store, mine.ID, "Deck", "")

	rec := s.do(t, http.MethodPut, "/projects/"+project.ID.String(), "u1", map[string]any{"clientId": theirs.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/projects/"+project.ID.String(), "u1", map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tracker.ProjectActive, decode[tracker.Project](t, rec).Status)
}

func TestUpdateProject_StatusOnlyKeepsOtherFields(t *testing.T) {
	s := newTestServer(t)
	client := seedClient(t, s.store, "u1", "Acme")

	rec := s.do(t, http.MethodPost, "/projects", "u1", map[string]any{
		"clientId":    client.ID,
		"name":        "Basement",
		"description": "Finish and frame",
		"status":      "active",
		"budget":      "500",
		"actualCost":  "12.5",
		"startDate":   "2024-03-01",
		"endDate":     "2024-04-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	before := decode[map[string]any](t, rec)
	path := "/projects/" + before["id"].(string)

	rec = s.do(t, http.MethodPut, path, "u1", map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	after := decode[map[string]any](t, rec)

	assert.Equal(t, tracker.ProjectCompleted, after["status"])
	for _, field := range []string{"id", "clientId", "name", "description", "budget", "actualCost", "startDate", "endDate"} {
		assert.Equal(t, before[field], after[field], field)
	}
	assert.Equal(t, "500.00", after["budget"])
	assert.Equal(t, "12.50", after["actualCost"])

	rec = s.do(t, http.MethodGet, path, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[map[string]any](t, rec)
	assert.Equal(t, tracker.ProjectCompleted, stored["status"])
	assert.Equal(t, before["name"], stored["name"])
	assert.Equal(t, before["startDate"], stored["startDate"])
}

func TestCreateLineItem_TotalDefaultsToQuantityTimesPrice(t *testing.T) {
	s := newTestServer(t)
	project := seedProject(t, s.store, seedClient(t, s.store, "u1", "Acme").ID, "Deck", "")
	contract := seedContract(t, s.store, project.ID, "EST-100", "", "0", false)

	rec := s.do(t, http.MethodPost, "/line-items", "u1", map[string]any{
		"contractId":  contract.ID,
		"description": "Deck boards",
		"quantity":    3,
		"unitPrice":   "19.99",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[map[string]any](t, rec)
	assert.Equal(t, "59.97", item["totalPrice"])
	assert.Equal(t, "19.99", item["unitPrice"])

	rec = s.do(t, http.MethodPost, "/line-items", "u1", map[string]any{
		"contractId":  contract.ID,
		"description": "Labor",
		"quantity":    1,
		"unitPrice":   100,
		"totalPrice":  50,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "50.00", decode[map[string]any](t, rec)["totalPrice"])

	rec = s.do(t, http.MethodPost, "/line-items", "u1", map[string]any{
		"contractId":  contract.ID,
		"description": "Nothing",
		"quantity":    0,
		"unitPrice":   1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/contracts/"+contract.ID.String()+"/line-items", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/contracts/"+contract.ID.String()+"/line-items", "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUploadReceipt(t *testing.T) {
	s := newTestServer(t)
	project := seedProject(t, s.store, seedClient(t, s.store, "u1", "Acme").ID, "Deck", "")

	rec := s.upload(t, "u1", &uploadFile{"receipt.jpg", "image/jpeg", []byte("\xff\xd8\xff\xe0 fake jpeg")},
		map[string]string{"projectId": project.ID.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "task-1", rec.Header().Get(tracker.TaskHeader))

	receipt := decode[tracker.Receipt](t, rec)
	assert.Equal(t, tracker.ReceiptPending, receipt.Status)
	assert.Equal(t, "receipt.jpg", receipt.FileName)
	require.NotNil(t, receipt.ProjectID)
	assert.Equal(t, project.ID, *receipt.ProjectID)
	assert.False(t, receipt.AIParsed)

	require.Len(t, s.queue.jobs, 1)
	assert.Equal(t, receipt.ID, s.queue.jobs[0].ReceiptID)
	assert.Equal(t, receipt.FilePath, s.queue.jobs[0].FilePath)

	data, err := os.ReadFile(receipt.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "\xff\xd8\xff\xe0 fake jpeg", string(data))

	rec = s.do(t, http.MethodGet, "/parse-tasks/task-1", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, receipt.ID, decode[receiptparser.TaskStatus](t, rec).ReceiptID)

	rec = s.do(t, http.MethodGet, "/parse-tasks/task-1", "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/parse-tasks/nope", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadReceipt_Rejections(t *testing.T) {
	s := newTestServer(t)
	project := seedProject(t, s.store, seedClient(t, s.store, "u1", "Acme").ID, "Deck", "")

	cases := []struct {
		name   string
		user   string
		file   *uploadFile
		fields map[string]string
		status int
	}{
		{"no file", "u1", nil, nil, http.StatusBadRequest},
		{"gif extension", "u1", &uploadFile{"receipt.gif", "image/gif", []byte("GIF89a")}, nil, http.StatusBadRequest},
		{"extension ok but content type wrong", "u1", &uploadFile{"receipt.png", "text/plain", []byte("hello")}, nil, http.StatusBadRequest},
		{"too large", "u1", &uploadFile{"big.pdf", "application/pdf", bytes.Repeat([]byte("x"), maxTestUpload+1)}, nil, http.StatusBadRequest},
		{"project not owned", "u2", &uploadFile{"r.pdf", "application/pdf", []byte("%PDF-1.4")},
			map[string]string{"projectId": project.ID.String()}, http.StatusForbidden},
		{"bad project id", "u1", &uploadFile{"r.pdf", "application/pdf", []byte("%PDF-1.4")},
			map[string]string{"projectId": "nope"}, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := s.upload(t, c.user, c.file, c.fields)
			assert.Equal(t, c.status, rec.Code, rec.Body.String())
		})
	}

	assert.Zero(t, s.receiptCount(t))
	assert.Empty(t, s.storedFiles(t))
	assert.Empty(t, s.queue.jobs)
}

func TestUploadReceipt_NoFileMessage(t *testing.T) {
	s := newTestServer(t)
	rec := s.upload(t, "u1", nil, map[string]string{"projectId": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file uploaded", message(t, rec))
}

func TestReparseReceipt(t *testing.T) {
	s := newTestServer(t)
	receipt := seedReceipt(t, s.store, nil, tracker.ReceiptPending)

	rec := s.do(t, http.MethodPost, "/receipts/"+receipt.ID.String()+"/parse", "u1", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "task-1", body["taskId"])
	assert.Equal(t, receipt.ID.String(), body["receiptId"])
	require.Len(t, s.queue.jobs, 1)
	assert.Equal(t, receipt.FilePath, s.queue.jobs[0].FilePath)
}

func TestUpdateReceipt_Review(t *testing.T) {
	s := newTestServer(t)
	project := seedProject(t, s.store, seedClient(t, s.store, "u1", "Acme").ID, "Deck", "")
	receipt := seedReceipt(t, s.store, nil, tracker.ReceiptPending)
	path := "/receipts/" + receipt.ID.String()

	rec := s.do(t, http.MethodPut, path, "u1", map[string]any{
		"projectId":   project.ID,
		"vendor":      "Lumber Yard",
		"totalAmount": "120.5",
		"status":      "approved",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "approved", got["status"])
	assert.Equal(t, "120.50", got["totalAmount"])
	assert.Equal(t, project.ID.String(), got["projectId"])

	// now assigned, so only the project owner sees it
	rec = s.do(t, http.MethodGet, path, "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, path, "u1", map[string]any{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProducts(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/products", "u1", map[string]any{"name": "2x4 Lumber", "category": "Lumber", "unitPrice": 4.25})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[map[string]any](t, rec)
	assert.Equal(t, "LUM-0001", first["sku"])
	assert.Equal(t, "each", first["unit"])
	assert.Equal(t, "4.25", first["unitPrice"])

	rec = s.do(t, http.MethodPost, "/products", "u1", map[string]any{"name": "2x6 Lumber", "category": "lumber"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "LUM-0002", decode[map[string]any](t, rec)["sku"])

	rec = s.do(t, http.MethodPost, "/products", "u1", map[string]any{"name": "Other", "sku": "LUM-0001"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/products/similar/2x4%20lumber", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	similar := decode[[]map[string]any](t, rec)
	require.NotEmpty(t, similar)
	assert.Equal(t, "2x4 Lumber", similar[0]["name"])

	rec = s.do(t, http.MethodGet, "/products", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDashboardStatsRoute(t *testing.T) {
	s := newTestServer(t)
	project := seedProject(t, s.store, seedClient(t, s.store, "u1", "Acme").ID, "Deck", tracker.ProjectActive)
	seedContract(t, s.store, project.ID, "C-1", tracker.ContractApproved, "45.50", false)

	rec := s.do(t, http.MethodGet, "/dashboard/stats", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"activeProjects":1,"pendingReceipts":0,"totalRevenue":45.5,"changeOrders":0}`, rec.Body.String())
}

func TestExportReceipts(t *testing.T) {
	s := newTestServer(t)
	seedReceipt(t, s.store, nil, tracker.ReceiptPending)

	rec := s.do(t, http.MethodGet, "/receipts/export", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "PK", rec.Body.String()[:2])
}

func TestDeleteProject_ThroughRoutes(t *testing.T) {
	s := newTestServer(t)
	project := seedProject(t, s.store, seedClient(t, s.store, "u1", "Acme").ID, "Deck", "")
	receipt := seedReceipt(t, s.store, &project.ID, tracker.ReceiptPending)
	path := "/projects/" + project.ID.String()

	rec := s.do(t, http.MethodDelete, path, "u1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Cannot delete project while receipts are assigned to it", message(t, rec))

	// the receipt stays hidden from other users
	rec = s.do(t, http.MethodGet, "/receipts/"+receipt.ID.String(), "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/receipts/"+receipt.ID.String(), "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, path, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Project deleted successfully", message(t, rec))
}
