package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hrchat/hrchat/internal/auth"
	"github.com/hrchat/hrchat/internal/session"
)

func TestSessionLifecycle(t *testing.T) {
	sessions := session.NewMemoryStore(session.Policy{InitialCredits: 3})
	h := NewHandler(testConfig(t, nil), Dependencies{Sessions: sessions})

	rr := postJSON(h, "/v1/sessions", `{"employeeId":4}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeBody(t, rr)
	id, _ := created["id"].(string)
	if id == "" || created["credits"] != float64(3) || created["employeeId"] != float64(4) {
		t.Fatalf("created = %v", created)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+id, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id, nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rr.Code)
	}
}

func TestCreateSessionWithoutBody(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Sessions: session.NewMemoryStore(session.Policy{InitialCredits: 1})})

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["employeeId"] != nil {
		t.Fatalf("body = %v", body)
	}
}

func TestCreateSessionAtCapacity(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Sessions: session.NewMemoryStore(session.Policy{InitialCredits: 1, MaxActive: 1})})

	if rr := postJSON(h, "/v1/sessions", `{}`, nil); rr.Code != http.StatusCreated {
		t.Fatalf("first status = %d", rr.Code)
	}
	rr := postJSON(h, "/v1/sessions", `{}`, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "TOO_MANY_SESSIONS" {
		t.Fatalf("body = %v", body)
	}
}

func TestCreateSessionForOtherEmployeeIsForbidden(t *testing.T) {
	validator, err := auth.NewStaticAPIKeyValidator("emp5:5:employee")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	h := NewHandler(testConfig(t, nil), Dependencies{
		Sessions:       session.NewMemoryStore(session.Policy{InitialCredits: 1}),
		AuthMiddleware: auth.Optional(nil, validator),
	})

	rr := postJSON(h, "/v1/sessions", `{"employeeId":9}`, map[string]string{"X-API-Key": "emp5"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
	rr = postJSON(h, "/v1/sessions", `{}`, map[string]string{"X-API-Key": "emp5"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["employeeId"] != float64(5) {
		t.Fatalf("body = %v", body)
	}
}
