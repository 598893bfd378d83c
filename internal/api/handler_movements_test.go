package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gate-access-backend/config"
	"gate-access-backend/internal/gate"
	"gate-access-backend/internal/model"
	"gate-access-backend/internal/store"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Person{},
		&model.Vendor{},
		&model.MovementRecord{},
		&model.GuestVisitRequest{},
		&model.Guest{},
		&model.OfficerSubscription{},
	))

	appStore := store.NewGormStore(db, store.CodeSpace{})
	svc := gate.NewService(appStore, nil, nil)
	cacheStore := cache.New(time.Minute, time.Minute)
	// Generous rate limit so test bursts never throttle.
	cfg := &config.ServerConfig{RateLimitPerSec: 10000, RateLimitBurst: 1000, CacheTTLSeconds: 1}
	return NewRouter(svc, appStore, nil, cacheStore, cfg), db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func seedDirectory(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&model.Person{ID: "student-1", Name: "Asha", Role: model.RoleStudent, Room: "A-101", Mobile: "555-0100"}).Error)
	require.NoError(t, db.Create(&model.Person{ID: "officer-1", Name: "Officer Rao", Role: model.RoleOfficer}).Error)
	require.NoError(t, db.Create(&model.Vendor{ID: "vendor-1", Name: "Vikram", Company: "Acme Supplies"}).Error)
}

func TestPostMovement_StudentRequestFlow(t *testing.T) {
	router, db := setupTestRouter(t)
	seedDirectory(t, db)

	// Student files a self-service entry request.
	w := doJSON(t, router, "POST", "/api/movements", gin.H{
		"entity_type":   "STUDENT",
		"movement_type": "ENTRY",
		"entity_ref":    "student-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var rec model.MovementRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, model.MovementPending, rec.Status)

	// A duplicate of the same kind conflicts.
	w = doJSON(t, router, "POST", "/api/movements", gin.H{
		"entity_type":   "STUDENT",
		"movement_type": "ENTRY",
		"entity_ref":    "student-1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// The pending queue shows it; the ledger view does not.
	w = doJSON(t, router, "GET", "/api/movements/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var queue []model.MovementRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	require.Len(t, queue, 1)

	w = doJSON(t, router, "GET", "/api/movements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ledger []model.MovementRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ledger))
	assert.Empty(t, ledger)

	// Officer resolves; a second resolution conflicts.
	w = doJSON(t, router, "POST", "/api/movements/"+rec.ID+"/resolution", gin.H{
		"officer_ref": "officer-1",
		"outcome":     "COMPLETED",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "POST", "/api/movements/"+rec.ID+"/resolution", gin.H{
		"officer_ref": "officer-1",
		"outcome":     "REJECTED",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostMovement_ErrorMapping(t *testing.T) {
	router, db := setupTestRouter(t)
	seedDirectory(t, db)

	// Unknown entity: 404.
	w := doJSON(t, router, "POST", "/api/movements", gin.H{
		"entity_type":   "STUDENT",
		"movement_type": "ENTRY",
		"entity_ref":    "ghost",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Vendor without an officer: 400.
	w = doJSON(t, router, "POST", "/api/movements", gin.H{
		"entity_type":   "VENDOR",
		"movement_type": "ENTRY",
		"entity_ref":    "vendor-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing body fields: 400 from binding.
	w = doJSON(t, router, "POST", "/api/movements", gin.H{"entity_type": "STUDENT"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// An outcome outside the enum is malformed input: 400, not 409.
	w = doJSON(t, router, "POST", "/api/movements", gin.H{
		"entity_type":   "STUDENT",
		"movement_type": "ENTRY",
		"entity_ref":    "student-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var rec model.MovementRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))

	w = doJSON(t, router, "POST", "/api/movements/"+rec.ID+"/resolution", gin.H{
		"officer_ref": "officer-1",
		"outcome":     "SIDEWAYS",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVisitEndpoints(t *testing.T) {
	router, db := setupTestRouter(t)
	seedDirectory(t, db)
	now := time.Now().UTC()

	w := doJSON(t, router, "POST", "/api/visits", gin.H{
		"student_ref":        "student-1",
		"purpose":            "family visit",
		"arrival_date":       now.Add(24 * time.Hour).Format(time.RFC3339),
		"entry_window_start": now.Add(24 * time.Hour).Format(time.RFC3339),
		"exit_window_end":    now.Add(30 * time.Hour).Format(time.RFC3339),
		"guests": []gin.H{
			{"name": "Meera", "relation": "mother"},
			{"name": "Ravi", "relation": "father"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var visit model.GuestVisitRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &visit))
	require.Len(t, visit.Guests, 2)

	// Unknown approver: 422, request untouched.
	w = doJSON(t, router, "POST", "/api/visits/"+visit.ID+"/resolution", gin.H{
		"outcome":      "APPROVED",
		"approver_ref": "ghost",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Approval issues codes and reports no failures.
	w = doJSON(t, router, "POST", "/api/visits/"+visit.ID+"/resolution", gin.H{
		"outcome":      "APPROVED",
		"approver_ref": "officer-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resolution struct {
		Visit        model.GuestVisitRequest `json:"visit"`
		CodeFailures []store.CodeFailure     `json:"code_failures"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolution))
	assert.Empty(t, resolution.CodeFailures)
	require.Len(t, resolution.Visit.Guests, 2)
	require.NotNil(t, resolution.Visit.Guests[0].EntryCode)

	// The issued code resolves at the gate.
	code := *resolution.Visit.Guests[0].EntryCode
	w = doJSON(t, router, "GET", "/api/guests/lookup?code="+code, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// An unknown code does not.
	w = doJSON(t, router, "GET", "/api/guests/lookup?code=no-such-code", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
