package http_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/cache"
	"github.com/rogerio-castellano/stock-ledger/internal/db"
	api "github.com/rogerio-castellano/stock-ledger/internal/http"
	"github.com/rogerio-castellano/stock-ledger/internal/http/handlers"
	"github.com/rogerio-castellano/stock-ledger/internal/http/rate_limiter"
	"github.com/rogerio-castellano/stock-ledger/internal/inventory"
	"github.com/rogerio-castellano/stock-ledger/internal/metrics"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
	"github.com/rogerio-castellano/stock-ledger/internal/projection"
	"github.com/rogerio-castellano/stock-ledger/internal/repo"
)

type testEnv struct {
	router     http.Handler
	adminToken string
	guestToken string
}

func newEnv(t *testing.T, limiter *rate_limiter.Limiter) testEnv {
	t.Helper()
	d := db.NewTestDB(t)
	m := metrics.New()

	authService := auth.NewService(
		repo.NewSQLUserRepository(d),
		auth.NewTokenIssuer("test-secret", time.Hour, "stockledger"),
		cache.NewMemoryRevocations(),
		m,
		zerolog.Nop(),
	)
	authService.SetHashCost(bcrypt.MinCost)

	for _, u := range []struct {
		name string
		role models.Role
	}{{"admin", models.RoleAdmin}, {"guest", models.RoleGuest}} {
		_, err := authService.Register(t.Context(), models.Registration{
			Username: u.name, Password: "secret", ConfirmPassword: "secret", Role: u.role,
		})
		if err != nil {
			t.Fatalf("error creating %s: %v", u.name, err)
		}
	}

	inv := inventory.NewService(
		repo.NewSQLProductRepository(d),
		repo.NewSQLMovementRepository(d),
		cache.NewMemoryProjectionCache(time.Minute),
		nil,
		m,
		zerolog.Nop(),
	)
	if limiter == nil {
		limiter = rate_limiter.New(1000, 1000)
	}

	env := testEnv{router: api.NewRouter(api.Deps{
		Server:  handlers.NewServer(inv, authService, zerolog.Nop()),
		Auth:    authService,
		Metrics: m,
		Limiter: limiter,
		Logger:  zerolog.Nop(),
	})}
	env.adminToken = env.login(t, "admin", "secret")
	env.guestToken = env.login(t, "guest", "secret")
	return env
}

func (e testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	w := e.do(http.MethodPost, "/login", "", handlers.CredentialsRequest{Username: username, Password: password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, w.Code, w.Body.String())
	}
	var res handlers.LoginResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("error decoding login response: %v", err)
	}
	return res.Token
}

func (e testEnv) createProduct(t *testing.T, name string, minStock int64) models.Product {
	t.Helper()
	w := e.do(http.MethodPost, "/products", e.adminToken, handlers.ProductRequest{Name: name, Unit: "pcs", MinStock: minStock})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 Created, got %d: %s", w.Code, w.Body.String())
	}
	var p models.Product
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("error decoding response: %v", err)
	}
	return p
}

func (e testEnv) move(t *testing.T, productID int64, typ string, qty int64, date string) models.Movement {
	t.Helper()
	w := e.do(http.MethodPost, "/movements", e.adminToken, handlers.MovementRequest{ProductID: productID, Type: typ, Quantity: qty, Date: date})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 Created, got %d: %s", w.Code, w.Body.String())
	}
	var m models.Movement
	if err := json.NewDecoder(w.Body).Decode(&m); err != nil {
		t.Fatalf("error decoding response: %v", err)
	}
	return m
}

func decodeErrors(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	var res handlers.ErrorsResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("error decoding errors response: %v", err)
	}
	fields := make([]string, len(res.Errors))
	for i, fe := range res.Errors {
		fields[i] = fe.Field
	}
	return fields
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newEnv(t, nil)

	for _, creds := range []handlers.CredentialsRequest{
		{Username: "admin", Password: "wrong"},
		{Username: "nobody", Password: "secret"},
		{Username: "", Password: ""},
	} {
		w := env.do(http.MethodPost, "/login", "", creds)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%q: expected 401, got %d", creds.Username, w.Code)
		}
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	env := newEnv(t, nil)

	w := env.do(http.MethodPost, "/login", "", handlers.CredentialsRequest{Username: "guest", Password: "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == handlers.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected an HttpOnly session cookie, got %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /me, got %d", rec.Code)
	}
	var session auth.Session
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("error decoding session: %v", err)
	}
	if session.Username != "guest" || session.Role != models.RoleGuest {
		t.Errorf("unexpected session %+v", session)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newEnv(t, nil)
	token := env.login(t, "guest", "secret")

	if w := env.do(http.MethodPost, "/logout", token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/me", token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/me", env.guestToken, nil); w.Code != http.StatusOK {
		t.Fatalf("other sessions must stay valid, got %d", w.Code)
	}
}

func TestRegister(t *testing.T) {
	env := newEnv(t, nil)

	w := env.do(http.MethodPost, "/register", "", handlers.RegisterRequest{Username: "carol", Password: "secret1", ConfirmPassword: "secret1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var u models.User
	if err := json.NewDecoder(w.Body).Decode(&u); err != nil {
		t.Fatalf("error decoding user: %v", err)
	}
	if u.Role != models.RoleGuest {
		t.Errorf("expected guest role, got %q", u.Role)
	}

	w = env.do(http.MethodPost, "/register", "", handlers.RegisterRequest{Username: "carol", Password: "secret1", ConfirmPassword: "secret1"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a taken username, got %d", w.Code)
	}
	if fields := decodeErrors(t, w); len(fields) != 1 || fields[0] != "username" {
		t.Errorf("expected a username error, got %v", fields)
	}
}

func TestRegister_Invalid(t *testing.T) {
	env := newEnv(t, nil)

	tests := []struct {
		name           string
		payload        handlers.RegisterRequest
		expectedErrors []string
	}{
		{"Missing username", handlers.RegisterRequest{Password: "secret", ConfirmPassword: "secret"}, []string{"username"}},
		{"Short password", handlers.RegisterRequest{Username: "dave", Password: "abc", ConfirmPassword: "abc"}, []string{"password"}},
		{"Mismatched confirmation", handlers.RegisterRequest{Username: "dave", Password: "secret", ConfirmPassword: "secreT"}, []string{"confirm_password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/register", "", tt.payload)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			fields := decodeErrors(t, w)
			if strings.Join(fields, ",") != strings.Join(tt.expectedErrors, ",") {
				t.Errorf("expected errors %v, got %v", tt.expectedErrors, fields)
			}
		})
	}
}

func TestCreateUser_AdminOnly(t *testing.T) {
	env := newEnv(t, nil)
	req := handlers.CreateUserRequest{Username: "boss", Password: "secret", ConfirmPassword: "secret", Role: "admin"}

	if w := env.do(http.MethodPost, "/users", env.guestToken, req); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for guest, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/users", env.adminToken, req); w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d: %s", w.Code, w.Body.String())
	}

	token := env.login(t, "boss", "secret")
	env.adminToken = token
	env.createProduct(t, "Created by boss", 0)
}

func TestSessionRequired(t *testing.T) {
	env := newEnv(t, nil)

	if w := env.do(http.MethodGet, "/products", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/products", "not-a-token", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with a bad token, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/products", env.guestToken, nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 for guest, got %d", w.Code)
	}
}

func TestCreateProductHandler_Invalid(t *testing.T) {
	env := newEnv(t, nil)

	tests := []struct {
		name           string
		payload        handlers.ProductRequest
		expectedErrors []string
	}{
		{"Empty name and unit", handlers.ProductRequest{}, []string{"name", "unit"}},
		{"Empty name only", handlers.ProductRequest{Unit: "pcs"}, []string{"name"}},
		{"Negative min stock", handlers.ProductRequest{Name: "Mouse", Unit: "pcs", MinStock: -1}, []string{"min_stock"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/products", env.adminToken, tt.payload)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			fields := decodeErrors(t, w)
			if strings.Join(fields, ",") != strings.Join(tt.expectedErrors, ",") {
				t.Errorf("expected errors %v, got %v", tt.expectedErrors, fields)
			}
		})
	}
}

func TestGuestCannotWrite(t *testing.T) {
	env := newEnv(t, nil)
	p := env.createProduct(t, "Pen", 1)

	checks := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/products", handlers.ProductRequest{Name: "Ink", Unit: "pcs"}},
		{http.MethodPut, "/products/1", handlers.ProductRequest{Name: "Ink", Unit: "pcs"}},
		{http.MethodDelete, "/products/1", nil},
		{http.MethodPost, "/movements", handlers.MovementRequest{ProductID: p.ID, Type: "in", Quantity: 1}},
		{http.MethodGet, "/reports/low-stock", nil},
		{http.MethodGet, "/reports/forecast", nil},
		{http.MethodGet, "/reports/usage?start=2024-01-01&end=2024-01-31", nil},
	}
	for _, c := range checks {
		if w := env.do(c.method, c.path, env.guestToken, c.body); w.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403, got %d", c.method, c.path, w.Code)
		}
	}
}

func TestProductLifecycle(t *testing.T) {
	env := newEnv(t, nil)
	p := env.createProduct(t, "Laptop", 2)

	w := env.do(http.MethodPut, "/products/"+itoa(p.ID), env.adminToken, handlers.ProductRequest{Name: "Laptop Pro", Unit: "pcs", MinStock: 3})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if w := env.do(http.MethodGet, "/products/999", env.guestToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/products/abc", env.guestToken, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	env.move(t, p.ID, "in", 1, "")
	if w := env.do(http.MethodDelete, "/products/"+itoa(p.ID), env.adminToken, nil); w.Code != http.StatusConflict {
		t.Errorf("expected 409 deleting a product with movements, got %d", w.Code)
	}

	other := env.createProduct(t, "Mouse", 0)
	if w := env.do(http.MethodDelete, "/products/"+itoa(other.ID), env.adminToken, nil); w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}

	w = env.do(http.MethodGet, "/products/"+itoa(p.ID), env.guestToken, nil)
	var detail inventory.ProductDetail
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("error decoding detail: %v", err)
	}
	if detail.Product.Name != "Laptop Pro" || detail.Quantity != 1 || detail.Status != projection.StatusLow {
		t.Errorf("unexpected detail %+v", detail)
	}
}

func TestMovements(t *testing.T) {
	env := newEnv(t, nil)
	p := env.createProduct(t, "Pen", 5)

	env.move(t, p.ID, "in", 10, "2024-03-01")
	env.move(t, p.ID, "OUT", 4, "2024-03-02")
	m := env.move(t, p.ID, "out", 9, "2024-03-03")

	w := env.do(http.MethodGet, "/products", env.guestToken, nil)
	var levels []projection.StockLevel
	if err := json.NewDecoder(w.Body).Decode(&levels); err != nil {
		t.Fatalf("error decoding products: %v", err)
	}
	if len(levels) != 1 || levels[0].Quantity != -3 || levels[0].Status != projection.StatusOutOfStock {
		t.Fatalf("unexpected levels %+v", levels)
	}

	w = env.do(http.MethodGet, "/movements?product_id="+itoa(p.ID)+"&limit=2&since=2024-03-01&until=2024-03-03", env.guestToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var page handlers.MovementsSearchResult
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("error decoding movements: %v", err)
	}
	if page.Meta.TotalCount != 3 || len(page.Data) != 2 || page.Data[0].ID != m.ID {
		t.Errorf("unexpected page %+v", page)
	}

	w = env.do(http.MethodGet, "/movements?limit=abc&type=sideways", env.guestToken, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if fields := decodeErrors(t, w); strings.Join(fields, ",") != "type,limit" {
		t.Errorf("unexpected fields %v", fields)
	}

	if w := env.do(http.MethodPost, "/movements", env.adminToken, handlers.MovementRequest{ProductID: p.ID, Type: "in", Quantity: 0}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero quantity, got %d", w.Code)
	}

	if w := env.do(http.MethodDelete, "/movements/"+itoa(m.ID), env.adminToken, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := env.do(http.MethodDelete, "/movements/"+itoa(m.ID), env.adminToken, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestExportMovements(t *testing.T) {
	env := newEnv(t, nil)
	p := env.createProduct(t, "Pen", 0)
	env.move(t, p.ID, "in", 10, "2024-03-01")
	env.move(t, p.ID, "out", 4, "2024-03-02")

	w := env.do(http.MethodGet, "/movements/export?format=csv", env.guestToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "id,product_id") {
		t.Errorf("unexpected csv %q", w.Body.String())
	}

	w = env.do(http.MethodGet, "/movements/export?format=json&type=out", env.guestToken, nil)
	var movements []models.Movement
	if err := json.NewDecoder(w.Body).Decode(&movements); err != nil {
		t.Fatalf("error decoding export: %v", err)
	}
	if len(movements) != 1 || movements[0].Quantity != 4 {
		t.Errorf("unexpected export %+v", movements)
	}

	if w := env.do(http.MethodGet, "/movements/export?format=xml", env.guestToken, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestReports(t *testing.T) {
	env := newEnv(t, nil)
	widget := env.createProduct(t, "Widget", 20)
	env.createProduct(t, "Gadget", 0)
	env.move(t, widget.ID, "in", 100, "2024-01-01")
	env.move(t, widget.ID, "out", 30, "2024-01-02")
	env.move(t, widget.ID, "out", 60, "2024-01-02")

	w := env.do(http.MethodGet, "/reports/usage?start=2024-01-02&end=2024-01-02", env.adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var usage []projection.UsageRow
	if err := json.NewDecoder(w.Body).Decode(&usage); err != nil {
		t.Fatalf("error decoding usage: %v", err)
	}
	if len(usage) != 2 || usage[0].TotalOut != 90 || usage[0].MonthlyAverage.String() != "2700" || usage[1].TotalOut != 0 {
		t.Errorf("unexpected usage %+v", usage)
	}

	if w := env.do(http.MethodGet, "/reports/usage?start=2024-01-02", env.adminToken, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without end, got %d", w.Code)
	}

	w = env.do(http.MethodGet, "/reports/low-stock", env.adminToken, nil)
	var low []projection.StockLevel
	if err := json.NewDecoder(w.Body).Decode(&low); err != nil {
		t.Fatalf("error decoding low stock: %v", err)
	}
	// Gadget sits at 0 with a minimum of 0, Widget at 10 against 20
	if len(low) != 2 || low[0].Product.Name != "Widget" {
		t.Errorf("unexpected low stock %+v", low)
	}

	w = env.do(http.MethodGet, "/reports/forecast?top=1", env.adminToken, nil)
	var forecast []projection.Forecast
	if err := json.NewDecoder(w.Body).Decode(&forecast); err != nil {
		t.Fatalf("error decoding forecast: %v", err)
	}
	if len(forecast) != 1 || forecast[0].Severity != projection.SeverityCritical {
		t.Errorf("unexpected forecast %+v", forecast)
	}

	w = env.do(http.MethodGet, "/reports/movements?start=2024-01-01&end=2024-01-31", env.adminToken, nil)
	var rows []projection.MovementReportRow
	if err := json.NewDecoder(w.Body).Decode(&rows); err != nil {
		t.Fatalf("error decoding movement report: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected in and out rows, got %+v", rows)
	}

	w = env.do(http.MethodGet, "/dashboard", env.guestToken, nil)
	var d projection.Dashboard
	if err := json.NewDecoder(w.Body).Decode(&d); err != nil {
		t.Fatalf("error decoding dashboard: %v", err)
	}
	if d.TotalProducts != 2 || d.TotalMovements != 3 || d.TotalItems != 10 || len(d.RecentMovements) != 3 {
		t.Errorf("unexpected dashboard %+v", d)
	}
}

func TestFilterProducts(t *testing.T) {
	env := newEnv(t, nil)
	bolt := env.createProduct(t, "Bolt", 10)
	env.createProduct(t, "Nut", 5)
	env.move(t, bolt.ID, "in", 4, "2024-01-01")

	w := env.do(http.MethodGet, "/products/search?status=low&limit=10", env.guestToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res handlers.ProductsSearchResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("error decoding search result: %v", err)
	}
	if res.Meta.TotalCount != 1 || len(res.Data) != 1 || res.Data[0].Product.ID != bolt.ID || res.Data[0].Quantity != 4 {
		t.Errorf("unexpected search result %+v", res)
	}

	w = env.do(http.MethodGet, "/products/search?min_qty=x&limit=0", env.guestToken, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if fields := decodeErrors(t, w); strings.Join(fields, ",") != "min_qty" {
		t.Errorf("expected min_qty error, got %v", fields)
	}
}

func TestLowStockReportDefaultsToMinimum(t *testing.T) {
	env := newEnv(t, nil)
	near := env.createProduct(t, "Near", 10)
	env.move(t, near.ID, "in", 12, "2024-01-01")

	w := env.do(http.MethodGet, "/reports/low-stock", env.adminToken, nil)
	var low []projection.StockLevel
	if err := json.NewDecoder(w.Body).Decode(&low); err != nil {
		t.Fatalf("error decoding low stock: %v", err)
	}
	if len(low) != 0 {
		t.Errorf("12 against a minimum of 10 is not low stock, got %+v", low)
	}

	w = env.do(http.MethodGet, "/reports/low-stock?factor=1.2", env.adminToken, nil)
	low = nil
	if err := json.NewDecoder(w.Body).Decode(&low); err != nil {
		t.Fatalf("error decoding low stock: %v", err)
	}
	if len(low) != 1 || low[0].Product.ID != near.ID {
		t.Errorf("expected Near on the 1.2 watch list, got %+v", low)
	}

	if w := env.do(http.MethodGet, "/reports/low-stock?factor=abc", env.adminToken, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an invalid factor, got %d", w.Code)
	}
}

func TestImportProductsHandler(t *testing.T) {
	env := newEnv(t, nil)
	env.createProduct(t, "Pen", 1)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "products.csv")
	if err != nil {
		t.Fatalf("error creating form file: %v", err)
	}
	_, _ = fw.Write([]byte("name,unit,min_stock\nPen,box,4\nInk,bottle,2\n,pcs,1\n"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/products/import?mode=update", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.adminToken)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res inventory.ImportResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("error decoding import result: %v", err)
	}
	if res.Created != 1 || res.Updated != 1 || len(res.Errors) != 1 || res.Errors[0].Field != "row 4" {
		t.Errorf("unexpected import result %+v", res)
	}

	if w := env.do(http.MethodPost, "/products/import", env.adminToken, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a file, got %d", w.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newEnv(t, rate_limiter.New(0.001, 3))

	// newEnv already spent two of the three tokens
	if w := env.do(http.MethodPost, "/login", "", handlers.CredentialsRequest{Username: "admin", Password: "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/login", "", handlers.CredentialsRequest{Username: "admin", Password: "secret"}); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/me", env.adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("only login and register are throttled, got %d", w.Code)
	}
}

func TestLoginRateLimitIgnoresForwardedFor(t *testing.T) {
	env := newEnv(t, rate_limiter.New(0.001, 3))

	// newEnv spent two of the three tokens, so only the first attempt passes
	throttled := 0
	for i := range 10 {
		b, _ := json.Marshal(handlers.CredentialsRequest{Username: "admin", Password: "wrong"})
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "203.0.113."+itoa(int64(i+1)))
		req.Header.Set("X-Real-IP", "203.0.113."+itoa(int64(i+1)))
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			throttled++
		}
	}
	if throttled != 9 {
		t.Fatalf("expected 9 of 10 attempts from the same peer to be throttled, got %d", throttled)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newEnv(t, nil)

	if w := env.do(http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", w.Code, w.Body.String())
	}

	w := env.do(http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"stockledger_http_request_duration_seconds", "stockledger_login_attempts_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
