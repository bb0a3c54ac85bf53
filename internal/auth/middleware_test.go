package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:5:employee, k2:*:hr_admin|employee")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}

	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected k1 to be valid")
	}
	if identity.EmployeeID == nil || *identity.EmployeeID != 5 {
		t.Fatalf("EmployeeID = %v", identity.EmployeeID)
	}
	if scope := identity.Scope(); !scope.Restricted() || *scope.EmployeeID != 5 {
		t.Fatalf("Scope() = %+v", scope)
	}

	admin, ok := validator.Validate(context.Background(), "k2")
	if !ok {
		t.Fatal("expected k2 to be valid")
	}
	if admin.EmployeeID != nil || !admin.Elevated() {
		t.Fatalf("admin identity = %+v", admin)
	}
	if admin.Scope().Restricted() {
		t.Fatal("hr_admin queries must not be scoped")
	}
}

func TestElevatedIdentityBoundToEmployeeIsNotScoped(t *testing.T) {
	id := int64(12)
	identity := Identity{EmployeeID: &id, Roles: []string{RoleHRAdmin}}
	if identity.Scope().Restricted() {
		t.Fatal("expected unrestricted scope")
	}
}

func TestStaticAPIKeyValidatorRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{"invalid", "k1:abc:employee", "k1:0:employee", "k1:5:", "k1:5:employee,k1:6:employee"} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("expected parse error for %q", spec)
		}
	}
}

func TestMiddlewareRequiresKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:5:employee")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat/db", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestMiddlewareInjectsIdentityFromBearerToken(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:5:employee")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if *identity.EmployeeID != 5 {
			t.Fatalf("EmployeeID = %d", *identity.EmployeeID)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/db", nil)
	req.Header.Set("Authorization", "Bearer k1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestOptionalAllowsAnonymousButRejectsUnknownKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:5:employee")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	handler := Optional(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); ok {
			t.Fatal("anonymous request must not carry an identity")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/employees", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("anonymous status = %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/employees", nil)
	req.Header.Set("X-API-Key", "nope")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unknown key status = %d", rr.Code)
	}
}
