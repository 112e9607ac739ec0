package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicshield/backend/internal/authz"
	"civicshield/backend/internal/complaint"
	"civicshield/backend/internal/config"
	"civicshield/backend/internal/metrics"
	"civicshield/backend/internal/models"
	"civicshield/backend/internal/statushub"
	"civicshield/backend/internal/storage/storagetest"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	citizen  = models.Actor{ID: "u-1", Role: models.RoleUser, AnonID: "VOTER1234"}
	stranger = models.Actor{ID: "u-2", Role: models.RoleUser, AnonID: "VOTER9999"}
	admin    = models.Actor{ID: "a-1", Name: "Asha", Role: models.RoleAdmin, Department: "water"}
)

type testServer struct {
	router *gin.Engine
	auth   *Authenticator
	svc    *complaint.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	az, err := authz.New(context.Background())
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	svc := complaint.NewService(complaint.Deps{Storage: storagetest.NewService(t), Authz: az, Metrics: m})
	auth, err := NewAuthenticator("test-secret")
	require.NoError(t, err)
	hub := statushub.NewHub(nil, nil)

	h := NewHandler(svc, hub, config.DefaultDirectory(), auth, nil)
	return &testServer{
		router: NewRouter(h, RouterOptions{Gatherer: reg}),
		auth:   auth,
		svc:    svc,
	}
}

func (s *testServer) do(t *testing.T, method, path string, actor *models.Actor, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := s.auth.IssueToken(*actor, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) submit(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/complaints", &citizen, gin.H{
		"department":    "water",
		"heading":       "No water supply",
		"description":   "There has been no water supply in ward 12 for five days now.",
		"address":       "Ward 12",
		"agreedToTerms": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		ComplaintID string `json:"complaintId"`
		AnonymousID string `json:"anonymousId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Unknown-1234", resp.AnonymousID)
	return resp.ComplaintID
}

func TestAuth_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/complaints/my", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/complaints/my", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticator_RoundTrip(t *testing.T) {
	auth, err := NewAuthenticator("secret")
	require.NoError(t, err)

	token, err := auth.IssueToken(admin, time.Minute)
	require.NoError(t, err)
	got, err := auth.ParseToken(token)

	require.NoError(t, err)
	assert.Equal(t, admin, got)
}

func TestAuthenticator_Rejects(t *testing.T) {
	auth, err := NewAuthenticator("secret")
	require.NoError(t, err)
	other, err := NewAuthenticator("another-secret")
	require.NoError(t, err)

	expired, err := auth.IssueToken(citizen, -time.Minute)
	require.NoError(t, err)
	_, err = auth.ParseToken(expired)
	assert.Error(t, err, "expired")

	foreign, err := other.IssueToken(citizen, time.Minute)
	require.NoError(t, err)
	_, err = auth.ParseToken(foreign)
	assert.Error(t, err, "wrong signature")

	badRole, err := auth.IssueToken(models.Actor{ID: "x", Role: "guest"}, time.Minute)
	require.NoError(t, err)
	_, err = auth.ParseToken(badRole)
	assert.Error(t, err, "unknown role")

	_, err = NewAuthenticator("")
	assert.Error(t, err)
}

func TestSubmitAndGet(t *testing.T) {
	s := newTestServer(t)
	id := s.submit(t)

	w := s.do(t, http.MethodGet, "/api/complaints/"+id, &citizen, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, id, got.ComplaintID)
	assert.Equal(t, models.StatusSubmitted, got.Status)
	assert.NotContains(t, w.Body.String(), "u-1", "owner id must not leak")

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/complaints/"+id, &stranger, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/complaints/CS-999999", &citizen, nil).Code)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/complaints", &citizen, gin.H{"department": "water", "heading": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/complaints", &admin, gin.H{
		"department": "water", "heading": "h", "description": "d", "agreedToTerms": true,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTransitionErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.submit(t)

	w := s.do(t, http.MethodPut, "/api/complaints/"+id+"/user-resolve", &citizen, gin.H{"accepted": true})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, "/api/complaints/"+id+"/user-resolve", &citizen, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/complaints/"+id+"/admin-action", &admin, gin.H{"action": "approve"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	id := s.submit(t)
	_, err := s.svc.BeginReview(ctx, id)
	require.NoError(t, err)
	ok := true
	_, err = s.svc.ApplyAnalysis(ctx, id, complaint.AnalysisResult{Analysis: models.AIAnalysis{IsValid: &ok, Score: 80}})
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/api/complaints/admin", &admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)

	w = s.do(t, http.MethodPut, "/api/complaints/"+id+"/request-data", &admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPut, "/api/complaints/"+id+"/consent", &citizen, gin.H{"consent": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Data sharing accepted")

	w = s.do(t, http.MethodPut, "/api/complaints/"+id+"/admin-action", &admin, gin.H{
		"action": "approve", "targetAuthority": "Municipal Water Board",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Complaint approved successfully")
	assert.Contains(t, w.Body.String(), `"status":"sent_to_authority"`)
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.submit(t)

	w := s.do(t, http.MethodGet, "/api/departments", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"water"`)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", nil, nil).Code)

	w = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `civicshield_status_transitions_total{status="submitted"} 1`)

	w = s.do(t, http.MethodGet, "/api/complaints/lawsuit-info", &citizen, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rtionline.gov.in")
}

func TestStatusStream_UserNeedsComplaintID(t *testing.T) {
	s := newTestServer(t)
	id := s.submit(t)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/ws/status", &citizen, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/ws/status?complaintId="+id, &stranger, nil).Code)
}
