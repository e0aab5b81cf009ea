package inventory

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/models"
)

func newTestApp(svc *Service) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler()})
	app.Get("/api/inventory", ListItemsHandler(svc))
	app.Post("/api/inventory", CreateItemHandler(svc))
	app.Post("/api/inventory/import", ImportHandler(svc))
	app.Get("/api/inventory/:id", GetItemHandler(svc))
	app.Put("/api/inventory/:id", UpdateItemHandler(svc))
	app.Delete("/api/inventory/:id", DeleteItemHandler(svc))
	app.Post("/api/inventory/:id/adjust", AdjustHandler(svc))
	app.Get("/api/inventory/:id/logs", ItemLogsHandler(svc))
	app.Get("/api/inventory-logs", ListLogsHandler(svc))
	return app
}

func request(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func TestItemHandlers(t *testing.T) {
	svc, _ := newTestService()
	app := newTestApp(svc)

	status, body := request(t, app, "POST", "/api/inventory", `{"name":"Connector","quantity":120,"min_quantity":50}`)
	if status != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", status, body)
	}
	var created ItemResponse
	_ = json.Unmarshal(body, &created)
	if created.ID == 0 || created.Status != models.StockOK {
		t.Fatalf("Unexpected item %s", body)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"get", "GET", "/api/inventory/1", "", 200, `"status":"ok"`},
		{"get missing", "GET", "/api/inventory/99", "", 404, `"error"`},
		{"bad id", "GET", "/api/inventory/abc", "", 400, `"field":"id"`},
		{"duplicate name", "POST", "/api/inventory", `{"name":"Connector"}`, 409, `"error"`},
		{"adjust", "POST", "/api/inventory/1/adjust", `{"delta":-75,"reason":"soldering batch"}`, 200, `"status":"critical"`},
		{"adjust zero", "POST", "/api/inventory/1/adjust", `{"delta":0,"reason":"x"}`, 400, `"field":"delta"`},
		{"adjust without reason", "POST", "/api/inventory/1/adjust", `{"delta":3}`, 400, `"field":"reason"`},
		{"update", "PUT", "/api/inventory/1", `{"name":"Connector 2-pin","min_quantity":50}`, 200, `"quantity":45`},
		{"list critical", "GET", "/api/inventory?status=critical", "", 200, `"Connector 2-pin"`},
		{"list bad status", "GET", "/api/inventory?status=empty", "", 400, `"field":"status"`},
		{"item logs", "GET", "/api/inventory/1/logs", "", 200, `"reason":"soldering batch"`},
		{"all logs", "GET", "/api/inventory-logs?inventory_item_id=1", "", 200, `"reason":"initial stock"`},
		{"delete", "DELETE", "/api/inventory/1", "", 204, ""},
		{"delete again", "DELETE", "/api/inventory/1", "", 404, `"error"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := request(t, app, tt.method, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, status, body)
			}
			if tt.wantBody != "" && !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("Expected body to contain %s, got %s", tt.wantBody, body)
			}
		})
	}
}

func TestImportHandler(t *testing.T) {
	svc, _ := newTestService()
	app := newTestApp(svc)

	xlsx := workbook(t, [][]any{
		{"name", "quantity", "unit", "min_quantity"},
		{"Connector", 120, "piece", 50},
	})

	upload := func(filename string, content []byte) (int, []byte) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, _ := w.CreateFormFile("file", filename)
		_, _ = part.Write(content)
		_ = w.Close()

		req := httptest.NewRequest("POST", "/api/inventory/import", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, b
	}

	status, body := upload("stock.csv", []byte("a,b"))
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 for csv, got %d", status)
	}

	status, body = upload("stock.xlsx", xlsx.Bytes())
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", status, body)
	}
	var res ImportResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("Bad body %s", body)
	}
	if len(res.Created) != 1 || res.Created[0] != "Connector" {
		t.Errorf("Unexpected result %+v", res)
	}
}
