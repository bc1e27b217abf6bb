package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/equiptrack/internal/config"
	"github.com/Wikid82/equiptrack/internal/database"
	"github.com/Wikid82/equiptrack/internal/models"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Services) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := config.Config{
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		LockTimeout:   15 * time.Minute,
		FilesDir:      t.TempDir(),
		MaxUploadMiB:  1,
		SeedEnabled:   true,
		DueWindowDays: 30,
	}
	router := gin.New()
	svc, err := Register(router, db, cfg)
	require.NoError(t, err)
	return router, svc
}

type client struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var r *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(raw)
	} else {
		r = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func login(t *testing.T, router *gin.Engine, email, password string) *client {
	t.Helper()
	anon := &client{t: t, router: router}
	w := anon.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return &client{t: t, router: router, token: decode(t, w)["token"].(string)}
}

func TestRegister(t *testing.T) {
	router, svc := newTestRouter(t)
	require.NotNil(t, svc.Compliance)

	paths := map[string]bool{}
	for _, r := range router.Routes() {
		paths[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"POST /api/v1/seed",
		"POST /api/v1/auth/login",
		"POST /api/v1/equipment/lock",
		"POST /api/v1/equipment/override-lock",
		"POST /api/v1/equipment/release-lock",
		"POST /api/v1/equipment/upsert",
		"POST /api/v1/attachments/upload",
		"GET /api/v1/files/:name",
		"GET /api/v1/compliance/report.xlsx",
	} {
		assert.True(t, paths[want], "route %s should be registered", want)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "equiptrack_attachment_uploads_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)
	anon := &client{t: t, router: router}

	w := anon.do(http.MethodPost, "/api/v1/equipment/lock", gin.H{"number": "TRUCK-01"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = anon.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "nobody@example.com", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEditSessionFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	anon := &client{t: t, router: router}

	w := anon.do(http.MethodPost, "/api/v1/seed", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["ok"])

	admin := login(t, router, "admin@example.com", "admin123")
	for _, u := range []gin.H{
		{"email": "alice@example.com", "password": "password123", "name": "Alice"},
		{"email": "bob@example.com", "password": "password123", "name": "Bob"},
		{"email": "sam@example.com", "password": "password123", "name": "Sam", "role": "supervisor"},
	} {
		w = admin.do(http.MethodPost, "/api/v1/users", u)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	alice := login(t, router, "alice@example.com", "password123")
	bob := login(t, router, "bob@example.com", "password123")
	sam := login(t, router, "sam@example.com", "password123")

	// Employees cannot create users.
	w = alice.do(http.MethodPost, "/api/v1/users", gin.H{"email": "x@example.com", "password": "password123", "name": "X"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = alice.do(http.MethodPost, "/api/v1/equipment/lock", gin.H{"number": "TRUCK-01"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["editable"])

	w = bob.do(http.MethodPost, "/api/v1/equipment/lock", gin.H{"number": "TRUCK-01"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["editable"])
	assert.Equal(t, "Alice", body["locked_by_name"])

	w = bob.do(http.MethodPost, "/api/v1/equipment/override-lock", gin.H{"number": "TRUCK-01", "reason": "mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = bob.do(http.MethodPost, "/api/v1/equipment/upsert", gin.H{"number": "TRUCK-01"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "lock_required", decode(t, w)["code"])

	upload := uploadRequest(t, alice.token, "TRUCK-01", "DIELECTRIC", "cert.txt", "dielectric pass")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, upload)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	fileURL := decode(t, w)["file_url"].(string)
	require.True(t, strings.HasPrefix(fileURL, "/api/v1/files/"))

	w = alice.do(http.MethodPost, "/api/v1/equipment/upsert", gin.H{
		"number":      "TRUCK-01",
		"description": "Bucket truck",
		"type":        "Bucket Truck",
		"mileage":     1200,
		"tests": []gin.H{
			{"area_code": "DIELECTRIC", "applies": true, "last_date": "2023-01-01"},
			{"area_code": "NOPE", "applies": true, "last_date": "2023-01-01"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = alice.do(http.MethodGet, "/api/v1/equipment/TRUCK-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Tests []struct {
			DueDate *time.Time `json:"due_date"`
		} `json:"tests"`
		Attachments []models.Attachment `json:"attachments"`
		Lock        struct {
			Locked bool `json:"locked"`
		} `json:"lock"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.Len(t, detail.Tests, 1)
	assert.Equal(t, "2024-01-01", detail.Tests[0].DueDate.Format("2006-01-02"))
	assert.Len(t, detail.Attachments, 1)
	assert.False(t, detail.Lock.Locked)

	w = bob.do(http.MethodPost, "/api/v1/equipment/lock", gin.H{"number": "TRUCK-01"})
	assert.Equal(t, true, decode(t, w)["editable"])

	w = sam.do(http.MethodPost, "/api/v1/equipment/override-lock", gin.H{"number": "TRUCK-01", "reason": "shift change"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["ok"])

	w = bob.do(http.MethodPost, "/api/v1/equipment/release-lock", gin.H{"number": "TRUCK-01"})
	assert.Equal(t, false, decode(t, w)["ok"])
	w = sam.do(http.MethodPost, "/api/v1/equipment/release-lock", gin.H{"number": "TRUCK-01"})
	assert.Equal(t, true, decode(t, w)["ok"])

	w = bob.do(http.MethodGet, fileURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dielectric pass", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cert.txt")

	w = alice.do(http.MethodGet, "/api/v1/equipment/TRUCK-01/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var events []models.AuditEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Equal(t, models.AuditUnlock, events[0].Action)

	w = alice.do(http.MethodGet, "/api/v1/compliance/due?days=36500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	w = alice.do(http.MethodGet, "/api/v1/compliance/due?days=soon", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = alice.do(http.MethodGet, "/api/v1/compliance/report.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestLockAcceptsFormBody(t *testing.T) {
	router, _ := newTestRouter(t)
	anon := &client{t: t, router: router}
	require.Equal(t, http.StatusOK, anon.do(http.MethodPost, "/api/v1/seed", nil).Code)
	admin := login(t, router, "admin@example.com", "admin123")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/equipment/lock", strings.NewReader("number=FORM-1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+admin.token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "FORM-1", decode(t, w)["number"])
}

func uploadRequest(t *testing.T, token, number, area, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("number", number))
	require.NoError(t, mw.WriteField("area_code", area))
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attachments/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
