package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/audit"
	"routesheet-backend/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestApp() *fiber.App {
	s := memory.New()
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler()})
	app.Post("/register", RegisterHandler(s))
	app.Post("/login", LoginHandler(s, testSecret))

	protected := app.Group("/api", JWTMiddleware(testSecret))
	protected.Get("/me", MeHandler(s))
	protected.Get("/actor", func(c *fiber.Ctx) error {
		a, ok := audit.ActorFrom(c.UserContext())
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(a.Name)
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body, token string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp()

	status, _ := do(t, app, "POST", "/register", `{"name":"Admin","email":"Admin@Shop.ua","password":"secret-pass"}`, "")
	if status != http.StatusCreated {
		t.Fatalf("Expected 201 on first register, got %d", status)
	}

	status, _ = do(t, app, "POST", "/register", `{"name":"Other","email":"other@shop.ua","password":"secret-pass"}`, "")
	if status != http.StatusForbidden {
		t.Errorf("Expected 403 on second register, got %d", status)
	}

	status, _ = do(t, app, "POST", "/login", `{"email":"admin@shop.ua","password":"wrong-pass"}`, "")
	if status != http.StatusUnauthorized {
		t.Errorf("Expected 401 on wrong password, got %d", status)
	}

	status, body := do(t, app, "POST", "/login", `{"email":"admin@shop.ua","password":"secret-pass"}`, "")
	if status != http.StatusOK {
		t.Fatalf("Expected 200 on login, got %d: %s", status, body)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &login); err != nil || login.Token == "" {
		t.Fatalf("Expected token in %s", body)
	}
	if strings.Contains(string(body), "password") {
		t.Error("Password hash leaked in login response")
	}

	status, body = do(t, app, "GET", "/api/me", "", login.Token)
	if status != http.StatusOK || !strings.Contains(string(body), "admin@shop.ua") {
		t.Errorf("Expected me to return the operator, got %d: %s", status, body)
	}

	status, body = do(t, app, "GET", "/api/actor", "", login.Token)
	if status != http.StatusOK || string(body) != "Admin" {
		t.Errorf("Expected actor Admin on context, got %d: %s", status, body)
	}
}

func TestRegisterConcurrentFirstOperator(t *testing.T) {
	app := newTestApp()

	const attempts = 5
	statuses := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"name":"Admin %d","email":"admin%d@shop.ua","password":"secret-pass"}`, i, i)
			req := httptest.NewRequest("POST", "/register", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Errorf("Request failed: %v", err)
				return
			}
			statuses <- resp.StatusCode
		}(i)
	}
	wg.Wait()
	close(statuses)

	created, forbidden := 0, 0
	for st := range statuses {
		switch st {
		case http.StatusCreated:
			created++
		case http.StatusForbidden:
			forbidden++
		default:
			t.Errorf("Unexpected status %d", st)
		}
	}
	if created != 1 || forbidden != attempts-1 {
		t.Errorf("Expected 1 created and %d forbidden, got %d and %d", attempts-1, created, forbidden)
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"a@b.ua","password":"secret-pass"}`},
		{"bad email", `{"name":"A","email":"nope","password":"secret-pass"}`},
		{"short password", `{"name":"A","email":"a@b.ua","password":"short"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := do(t, newTestApp(), "POST", "/register", tt.body, "")
			if status != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", status)
			}
		})
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	app := newTestApp()
	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", resp.StatusCode)
			}
		})
	}
}
