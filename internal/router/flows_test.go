package router

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/testutil"
	"github.com/jwalitptl/fieldservice-api/pkg/messaging"
	livefeed "github.com/jwalitptl/fieldservice-api/pkg/websocket"
)

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func (s *testServer) seedService(t *testing.T, seed testutil.ServiceSeed) string {
	t.Helper()
	return testutil.SeedService(t, s.repos.DB, seed).String()
}

func TestReportRoutesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "admin@example.com", model.RoleAdmin)
	s.createUser(t, "tech@example.com", model.RoleTechnician)
	s.createUser(t, "other@example.com", model.RoleTechnician)

	adminToken, adminID := s.login(t, "admin@example.com")
	techToken, techID := s.login(t, "tech@example.com")
	otherToken, _ := s.login(t, "other@example.com")

	id := s.seedService(t, testutil.ServiceSeed{Status: "IN_PROGRESS", TechnicianID: &techID, CreatedByID: adminID})
	path := "/api/v1/services/" + id + "/report"

	// No report yet
	code, _ := s.do(t, http.MethodGet, path, techToken, "")
	assert.Equal(t, http.StatusNotFound, code)

	// Write the report
	code, env := s.do(t, http.MethodPut, path, techToken, `{"final_report":"Replaced the valve"}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	var details model.ReportDetails
	decode(t, env, &details)
	require.NotNil(t, details.FinalReport)
	assert.Equal(t, "Replaced the valve", *details.FinalReport)

	// Photos
	code, env = s.do(t, http.MethodPost, path+"/photos", techToken, `{"url":"https://cdn.example.com/a.jpg","technical_notes":"before"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var photo model.ServicePhoto
	decode(t, env, &photo)
	code, _ = s.do(t, http.MethodPost, path+"/photos", techToken, `{"url":"https://cdn.example.com/b.jpg","display_order":5}`)
	require.Equal(t, http.StatusCreated, code)
	code, _ = s.do(t, http.MethodPost, path+"/photos", techToken, `{"url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	// Spare parts, one by one and in bulk
	code, env = s.do(t, http.MethodPost, path+"/parts", techToken, `{"name":"Valve","quantity":2,"unit_price":"12.50"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var valve model.SparePart
	decode(t, env, &valve)
	assert.Equal(t, "25.00", valve.TotalPrice.StringFixed(2))

	code, env = s.do(t, http.MethodPost, path+"/parts/bulk", techToken,
		`{"parts":[{"name":"Gasket","quantity":4,"unit_price":"1.25"},{"name":"Sealant","quantity":1,"unit_price":"7"}]}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var bulk []model.SparePart
	decode(t, env, &bulk)
	assert.Len(t, bulk, 2)

	code, _ = s.do(t, http.MethodPost, path+"/parts/bulk", techToken, `{"parts":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPost, path+"/parts", techToken, `{"name":"Gold","quantity":1,"unit_price":"10000000000"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodGet, path, adminToken, "")
	require.Equal(t, http.StatusOK, code)
	decode(t, env, &details)
	assert.Len(t, details.Photos, 2)
	assert.Len(t, details.SpareParts, 3)
	assert.Equal(t, "37.00", details.SparePartsTotal.StringFixed(2))

	// Removing a part updates the total
	code, _ = s.do(t, http.MethodDelete, path+"/parts/"+valve.ID.String(), techToken, "")
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(t, http.MethodGet, path, techToken, "")
	require.Equal(t, http.StatusOK, code)
	details = model.ReportDetails{}
	decode(t, env, &details)
	assert.Equal(t, "12.00", details.SparePartsTotal.StringFixed(2))

	// Photos one by one, then the rest
	code, _ = s.do(t, http.MethodDelete, path+"/photos/"+photo.ID.String(), techToken, "")
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(t, http.MethodDelete, path+"/photos", techToken, "")
	require.Equal(t, http.StatusOK, code)
	var deleted model.DeletedCount
	decode(t, env, &deleted)
	assert.Equal(t, int64(1), deleted.Deleted)

	// Other technicians do not see it
	code, _ = s.do(t, http.MethodGet, path, otherToken, "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(t, http.MethodPost, path+"/photos", otherToken, `{"url":"https://cdn.example.com/c.jpg"}`)
	assert.Equal(t, http.StatusNotFound, code)

	// Only admins drop reports
	code, _ = s.do(t, http.MethodDelete, path, techToken, "")
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodDelete, path, adminToken, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, path, adminToken, "")
	assert.Equal(t, http.StatusNotFound, code)

	// Locked services keep their report
	locked := s.seedService(t, testutil.ServiceSeed{Status: "CLOSED", IsLocked: true, TechnicianID: &techID, CreatedByID: adminID})
	code, _ = s.do(t, http.MethodPut, "/api/v1/services/"+locked+"/report", adminToken, `{"final_report":"late"}`)
	assert.Equal(t, http.StatusConflict, code)
}

func TestPaymentRoutesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "admin@example.com", model.RoleAdmin)
	s.createUser(t, "tech@example.com", model.RoleTechnician)

	adminToken, adminID := s.login(t, "admin@example.com")
	techToken, techID := s.login(t, "tech@example.com")

	expensive := decimal.RequireFromString("200")
	cheap := decimal.RequireFromString("50")
	owing := s.seedService(t, testutil.ServiceSeed{Status: "COMPLETED", TechnicianID: &techID, CreatedByID: adminID, ExpectedAmount: &expensive})
	settled := s.seedService(t, testutil.ServiceSeed{Status: "COMPLETED", TechnicianID: &techID, CreatedByID: adminID, ExpectedAmount: &cheap})
	pending := s.seedService(t, testutil.ServiceSeed{TechnicianID: &techID, CreatedByID: adminID})

	// Partial payment leaves a debt
	code, env := s.do(t, http.MethodPost, "/api/v1/services/"+owing+"/payment", techToken, `{"method":"CASH","amount_paid":"120"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var partial model.Payment
	decode(t, env, &partial)
	assert.Equal(t, "80.00", partial.DebtAmount.StringFixed(2))
	assert.True(t, partial.HasDebt)
	assert.Equal(t, techID, partial.TechnicianID)

	// One payment per service
	code, _ = s.do(t, http.MethodPost, "/api/v1/services/"+owing+"/payment", techToken, `{"method":"CASH","amount_paid":"1"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(t, http.MethodPost, "/api/v1/services/"+settled+"/payment", adminToken, `{"method":"CARD","amount_paid":"50"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var full model.Payment
	decode(t, env, &full)
	assert.False(t, full.HasDebt)

	// Unfinished services and bad amounts
	code, _ = s.do(t, http.MethodPost, "/api/v1/services/"+pending+"/payment", adminToken, `{"method":"CASH","amount_paid":"10"}`)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/services/"+pending+"/payment", adminToken, `{"method":"CASH","amount_paid":"10000000000"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/services/"+pending+"/payment", adminToken, `{"method":"GOLD","amount_paid":"10"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	// Filters
	code, env = s.do(t, http.MethodGet, "/api/v1/payments?has_debt=true", adminToken, "")
	require.Equal(t, http.StatusOK, code)
	var list []model.Payment
	decode(t, env, &list)
	require.Len(t, list, 1)
	assert.Equal(t, partial.ID, list[0].ID)

	code, env = s.do(t, http.MethodGet, "/api/v1/payments?method=CARD", adminToken, "")
	require.Equal(t, http.StatusOK, code)
	list = nil
	decode(t, env, &list)
	require.Len(t, list, 1)
	assert.Equal(t, full.ID, list[0].ID)

	code, env = s.do(t, http.MethodGet, "/api/v1/payments?technician_id="+techID.String(), techToken, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, env.Meta.Total)

	code, _ = s.do(t, http.MethodGet, "/api/v1/payments?method=BARTER", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/payments?has_debt=maybe", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, code)

	// Settling the debt is an admin task
	paymentPath := "/api/v1/payments/" + partial.ID.String()
	code, _ = s.do(t, http.MethodPut, paymentPath, techToken, `{"amount_paid":"200"}`)
	assert.Equal(t, http.StatusForbidden, code)
	code, env = s.do(t, http.MethodPut, paymentPath, adminToken, `{"amount_paid":"200","method":"TRANSFER"}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	var updated model.Payment
	decode(t, env, &updated)
	assert.True(t, updated.DebtAmount.IsZero())
	assert.False(t, updated.HasDebt)
	assert.Equal(t, model.PaymentMethodTransfer, updated.Method)

	code, env = s.do(t, http.MethodGet, "/api/v1/services/"+owing+"/payment", techToken, "")
	require.Equal(t, http.StatusOK, code)
	var fetched model.Payment
	decode(t, env, &fetched)
	assert.Equal(t, "200.00", fetched.AmountPaid.StringFixed(2))

	// Delete
	fullPath := "/api/v1/payments/" + full.ID.String()
	code, _ = s.do(t, http.MethodDelete, fullPath, techToken, "")
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodDelete, fullPath, adminToken, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, fullPath, adminToken, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestClientAndCategoryRoutesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "admin@example.com", model.RoleAdmin)
	s.createUser(t, "tech@example.com", model.RoleTechnician)

	adminToken, _ := s.login(t, "admin@example.com")
	techToken, _ := s.login(t, "tech@example.com")

	// Single and bulk creation
	code, env := s.do(t, http.MethodPost, "/api/v1/clients", adminToken, `{"name":"Acme","city":"Lyon"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var acme model.Client
	decode(t, env, &acme)

	code, env = s.do(t, http.MethodPost, "/api/v1/clients/bulk", adminToken,
		`{"clients":[{"name":"Globex"},{"name":"Initech","email":"ops@initech.example"},{"name":"Umbrella"}]}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created []model.Client
	decode(t, env, &created)
	assert.Len(t, created, 3)

	// Batch limits
	entries := make([]string, 501)
	for i := range entries {
		entries[i] = fmt.Sprintf(`{"name":"Client %d"}`, i)
	}
	code, _ = s.do(t, http.MethodPost, "/api/v1/clients/bulk", adminToken, `{"clients":[`+strings.Join(entries, ",")+`]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/clients/bulk", adminToken, `{"clients":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/clients/bulk", adminToken, `{"clients":[{"name":"Ok"},{"email":"nameless@example.com"}]}`)
	assert.Equal(t, http.StatusBadRequest, code)

	// Nothing from the rejected batches was stored
	code, env = s.do(t, http.MethodGet, "/api/v1/clients", techToken, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4, env.Meta.Total)

	code, _ = s.do(t, http.MethodPost, "/api/v1/clients", techToken, `{"name":"Sneaky"}`)
	assert.Equal(t, http.StatusForbidden, code)

	// Update and delete
	clientPath := "/api/v1/clients/" + acme.ID.String()
	code, env = s.do(t, http.MethodPut, clientPath, adminToken, `{"name":"Acme Ltd"}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &acme)
	assert.Equal(t, "Acme Ltd", acme.Name)
	code, _ = s.do(t, http.MethodDelete, clientPath, adminToken, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, clientPath, adminToken, "")
	assert.Equal(t, http.StatusNotFound, code)

	// Categories
	code, env = s.do(t, http.MethodPost, "/api/v1/categories", adminToken, `{"name":"Plumbing","color":"#00ff00"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var plumbing model.ServiceCategory
	decode(t, env, &plumbing)
	assert.True(t, plumbing.IsActive)

	code, _ = s.do(t, http.MethodPost, "/api/v1/categories", adminToken, `{"name":"Plumbing"}`)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/categories", techToken, `{"name":"Electrical"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/categories?active=true", techToken, "")
	require.Equal(t, http.StatusOK, code)
	var categories []model.ServiceCategory
	decode(t, env, &categories)
	assert.Len(t, categories, 1)

	// Deactivating hides it from the active list
	categoryPath := "/api/v1/categories/" + plumbing.ID.String()
	code, _ = s.do(t, http.MethodPut, categoryPath, adminToken, `{"is_active":false}`)
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(t, http.MethodGet, "/api/v1/categories?active=true", techToken, "")
	require.Equal(t, http.StatusOK, code)
	categories = nil
	decode(t, env, &categories)
	assert.Empty(t, categories)

	code, _ = s.do(t, http.MethodDelete, categoryPath, adminToken, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, categoryPath, techToken, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLockAndReassignOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "admin@example.com", model.RoleAdmin)
	s.createUser(t, "a@example.com", model.RoleTechnician)
	s.createUser(t, "b@example.com", model.RoleTechnician)

	adminToken, adminID := s.login(t, "admin@example.com")
	techAToken, techA := s.login(t, "a@example.com")
	techBToken, techB := s.login(t, "b@example.com")

	first := s.seedService(t, testutil.ServiceSeed{TechnicianID: &techA, CreatedByID: adminID})
	s.seedService(t, testutil.ServiceSeed{Status: "IN_PROGRESS", TechnicianID: &techA, CreatedByID: adminID})
	s.seedService(t, testutil.ServiceSeed{Status: "CLOSED", IsLocked: true, TechnicianID: &techA, CreatedByID: adminID})
	lockPath := "/api/v1/services/" + first + "/lock"

	// Lock freezes edits
	code, _ := s.do(t, http.MethodPatch, lockPath, techAToken, `{"locked":true}`)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodPatch, lockPath, adminToken, `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := s.do(t, http.MethodPatch, lockPath, adminToken, `{"locked":true}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	var svc model.Service
	decode(t, env, &svc)
	assert.True(t, svc.IsLocked)

	code, _ = s.do(t, http.MethodPut, "/api/v1/services/"+first, adminToken, `{"notes":"gate code"}`)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = s.do(t, http.MethodPatch, "/api/v1/services/"+first+"/status", techAToken, `{"status":"IN_PROGRESS"}`)
	assert.Equal(t, http.StatusConflict, code)

	// Locked services stay with their technician
	code, env = s.do(t, http.MethodPost, "/api/v1/services/reassign", adminToken,
		`{"from_technician_id":"`+techA.String()+`","to_technician_id":"`+techB.String()+`"}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	var result model.ReassignResult
	decode(t, env, &result)
	assert.Equal(t, int64(1), result.Reassigned)

	// Unlock and move the rest
	code, env = s.do(t, http.MethodPatch, lockPath, adminToken, `{"locked":false}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &svc)
	assert.False(t, svc.IsLocked)

	code, env = s.do(t, http.MethodPost, "/api/v1/services/reassign", adminToken,
		`{"from_technician_id":"`+techA.String()+`","to_technician_id":"`+techB.String()+`"}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &result)
	assert.Equal(t, int64(1), result.Reassigned)

	code, env = s.do(t, http.MethodGet, "/api/v1/services", techBToken, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, env.Meta.Total)
	code, env = s.do(t, http.MethodGet, "/api/v1/services", techAToken, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Meta.Total)

	// Invalid targets
	code, _ = s.do(t, http.MethodPost, "/api/v1/services/reassign", adminToken,
		`{"from_technician_id":"`+techA.String()+`","to_technician_id":"`+techA.String()+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/services/reassign", adminToken,
		`{"from_technician_id":"`+techA.String()+`","to_technician_id":"`+adminID.String()+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/services/reassign", techAToken,
		`{"from_technician_id":"`+techA.String()+`","to_technician_id":"`+techB.String()+`"}`)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestStatsAndAuditOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "admin@example.com", model.RoleAdmin)
	s.createUser(t, "tech@example.com", model.RoleTechnician)

	adminToken, adminID := s.login(t, "admin@example.com")
	techToken, techID := s.login(t, "tech@example.com")

	// Run one service through to a paid close
	code, env := s.do(t, http.MethodPost, "/api/v1/services", adminToken,
		`{"title":"Boiler","technician_id":"`+techID.String()+`","expected_amount":"100"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created model.Service
	decode(t, env, &created)
	path := "/api/v1/services/" + created.ID.String()

	for _, status := range []string{"IN_PROGRESS", "COMPLETED"} {
		code, env = s.do(t, http.MethodPatch, path+"/status", techToken, `{"status":"`+status+`"}`)
		require.Equal(t, http.StatusOK, code, env.Message)
	}
	code, env = s.do(t, http.MethodPost, path+"/close", adminToken, `{"payment":{"method":"CASH","amount_paid":"80"}}`)
	require.Equal(t, http.StatusOK, code, env.Message)

	// Technician stats
	today := time.Now().UTC().Format("2006-01-02")
	code, env = s.do(t, http.MethodGet, "/api/v1/stats/technicians?to="+today, adminToken, "")
	require.Equal(t, http.StatusOK, code, env.Message)
	var techStats []model.TechnicianStats
	decode(t, env, &techStats)
	require.Len(t, techStats, 1)
	assert.Equal(t, techID, techStats[0].TechnicianID)
	assert.Equal(t, 1, techStats[0].Assigned)
	assert.Equal(t, 1, techStats[0].Closed)
	assert.Equal(t, "80.00", techStats[0].Collected.StringFixed(2))

	code, env = s.do(t, http.MethodGet, "/api/v1/stats/payments", adminToken, "")
	require.Equal(t, http.StatusOK, code)
	var paymentStats model.PaymentStats
	decode(t, env, &paymentStats)
	assert.Equal(t, 1, paymentStats.DebtorCount)
	assert.Equal(t, "20.00", paymentStats.DebtAmount.StringFixed(2))

	code, _ = s.do(t, http.MethodGet, "/api/v1/stats/technicians?from=2026-05-10&to=2026-05-09", adminToken, "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/stats/technicians", techToken, "")
	assert.Equal(t, http.StatusForbidden, code)

	// Audit trail of the service
	type auditRow struct {
		Action     string    `json:"action"`
		EntityType string    `json:"entity_type"`
		UserID     uuid.UUID `json:"user_id"`
	}
	code, env = s.do(t, http.MethodGet, "/api/v1/audit-logs?entity_id="+created.ID.String(), adminToken, "")
	require.Equal(t, http.StatusOK, code, env.Message)
	var rows []auditRow
	decode(t, env, &rows)
	actions := map[string]bool{}
	for _, row := range rows {
		assert.Equal(t, model.AuditEntityService, row.EntityType)
		actions[row.Action] = true
	}
	assert.True(t, actions[model.AuditActionCreate])
	assert.True(t, actions[model.AuditActionStatus])
	assert.True(t, actions[model.AuditActionClose])

	code, env = s.do(t, http.MethodGet, "/api/v1/audit-logs?entity_type=service&action=close", adminToken, "")
	require.Equal(t, http.StatusOK, code)
	rows = nil
	decode(t, env, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, adminID, rows[0].UserID)

	code, _ = s.do(t, http.MethodGet, "/api/v1/audit-logs?entity_id=nope", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/audit-logs", techToken, "")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestScheduledDateFilterOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "admin@example.com", model.RoleAdmin)
	adminToken, _ := s.login(t, "admin@example.com")

	for _, at := range []string{"2026-05-10T08:00:00Z", "2026-05-10T23:30:00Z", "2026-05-11T00:00:00Z"} {
		code, env := s.do(t, http.MethodPost, "/api/v1/services", adminToken, `{"title":"Visit","scheduled_date":"`+at+`"}`)
		require.Equal(t, http.StatusCreated, code, env.Message)
	}

	// A plain date covers the whole day
	code, env := s.do(t, http.MethodGet, "/api/v1/services?from=2026-05-10&to=2026-05-10", adminToken, "")
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, 2, env.Meta.Total)

	// Timestamps are inclusive as given
	code, env = s.do(t, http.MethodGet, "/api/v1/services?to=2026-05-10T08:00:00Z", adminToken, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Meta.Total)

	code, _ = s.do(t, http.MethodGet, "/api/v1/services?to=tomorrow", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUserRoutesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "admin@example.com", model.RoleAdmin)
	s.createUser(t, "creator@example.com", model.RoleAdmin)

	adminToken, adminID := s.login(t, "admin@example.com")
	creatorToken, creatorID := s.login(t, "creator@example.com")

	// Create, read and deactivate a technician
	code, env := s.do(t, http.MethodPost, "/api/v1/users", adminToken,
		`{"email":"new@example.com","name":"New Tech","password":"password-1","role":"TECHNICIAN"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var tech model.User
	decode(t, env, &tech)
	userPath := "/api/v1/users/" + tech.ID.String()

	code, _ = s.do(t, http.MethodPost, "/api/v1/users", adminToken,
		`{"email":"new@example.com","name":"Again","password":"password-1","role":"TECHNICIAN"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodGet, userPath, adminToken, "")
	assert.Equal(t, http.StatusOK, code)
	code, env = s.do(t, http.MethodPatch, userPath+"/active", adminToken, `{"active":false}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &tech)
	assert.False(t, tech.IsActive)

	// Users that created services cannot be deleted
	code, env = s.do(t, http.MethodPost, "/api/v1/services", creatorToken, `{"title":"Owned"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	code, env = s.do(t, http.MethodDelete, "/api/v1/users/"+creatorID.String(), adminToken, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", env.Status)

	// Self deletion is refused
	code, _ = s.do(t, http.MethodDelete, "/api/v1/users/"+adminID.String(), adminToken, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodDelete, userPath, adminToken, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, userPath, adminToken, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCloseWithChunkedBody(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "admin@example.com", model.RoleAdmin)
	adminToken, adminID := s.login(t, "admin@example.com")

	closeChunked := func(id string, body io.Reader) (int, envelope) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/services/"+id+"/close", body)
		req.TransferEncoding = []string{"chunked"}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+adminToken)
		s.engine.ServeHTTP(w, req)

		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		return w.Code, env
	}

	// Empty body of unknown length
	id := s.seedService(t, testutil.ServiceSeed{Status: "COMPLETED", CreatedByID: adminID})
	code, env := closeChunked(id, io.MultiReader())
	require.Equal(t, http.StatusOK, code, env.Message)
	var details model.ServiceDetails
	decode(t, env, &details)
	assert.Equal(t, model.ServiceStatusClosed, details.Status)
	assert.Nil(t, details.Payment)

	// A chunked payment is still read
	id = s.seedService(t, testutil.ServiceSeed{Status: "COMPLETED", CreatedByID: adminID})
	code, env = closeChunked(id, io.MultiReader(strings.NewReader(`{"payment":{"method":"CARD","amount_paid":"10"}}`)))
	require.Equal(t, http.StatusOK, code, env.Message)
	details = model.ServiceDetails{}
	decode(t, env, &details)
	require.NotNil(t, details.Payment)
	assert.Equal(t, model.PaymentMethodCard, details.Payment.Method)

	// Broken JSON is still rejected
	id = s.seedService(t, testutil.ServiceSeed{Status: "COMPLETED", CreatedByID: adminID})
	code, _ = closeChunked(id, io.MultiReader(strings.NewReader(`{"payment":`)))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLiveFeedHandshake(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "tech@example.com", model.RoleTechnician)
	s.createUser(t, "client@example.com", model.RoleClient)
	techToken, techID := s.login(t, "tech@example.com")
	clientToken, _ := s.login(t, "client@example.com")

	srv := httptest.NewServer(s.engine)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?token="

	// Rejected handshakes
	for token, want := range map[string]int{
		"":          http.StatusUnauthorized,
		"garbage":   http.StatusUnauthorized,
		clientToken: http.StatusForbidden,
	} {
		_, resp, err := websocket.DefaultDialer.Dial(url+token, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, want, resp.StatusCode)
		resp.Body.Close()
	}

	conn, _, err := websocket.DefaultDialer.Dial(url+techToken, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	read := func() *messaging.Message {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		msg, err := messaging.Decode(data)
		require.NoError(t, err)
		return msg
	}

	welcome := read()
	assert.Equal(t, livefeed.MessageTypeConnected, welcome.Type)
	assert.Contains(t, string(welcome.Payload), techID.String())

	// Events for the technician come through
	payload, err := json.Marshal(map[string]string{"technician_id": techID.String()})
	require.NoError(t, err)
	require.NoError(t, s.hub.Publish(&messaging.Message{
		ID:         uuid.New(),
		Type:       model.EventServiceAssigned,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}))
	assert.Equal(t, model.EventServiceAssigned, read().Type)
}
