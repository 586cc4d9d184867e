package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"lorry-backend/internal/database"
	"lorry-backend/internal/middleware"
	"lorry-backend/internal/models"
	"lorry-backend/internal/services"
)

const testSecret = "handler-test-secret"

type testServer struct {
	t       *testing.T
	db      *sqlx.DB
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Connect(":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return &testServer{
		t:  t,
		db: db,
		handler: NewRouter(RouterDeps{
			DB:        db,
			Tracker:   services.NewTripTracker(db, nil),
			Assigner:  services.NewAssigner(db, nil, nil),
			JWTSecret: testSecret,
			TokenTTL:  time.Hour,
		}),
	}
}

func (s *testServer) createUser(name, password string, role models.Role) *models.User {
	s.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		s.t.Fatalf("hash: %v", err)
	}
	u := &models.User{
		Name:      name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@fleet.test",
		Password:  string(hash),
		Role:      role,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := database.CreateUser(context.Background(), s.db, u); err != nil {
		s.t.Fatalf("create user: %v", err)
	}
	return u
}

func (s *testServer) token(u *models.User) string {
	s.t.Helper()
	tok, err := middleware.IssueToken(testSecret, u, time.Hour, time.Now())
	if err != nil {
		s.t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	decode(t, rec, &body)
	if body.Success || body.Error != body.Message {
		t.Errorf("error body = %s, want success=false and matching error/message", rec.Body.String())
	}
	return body.Message
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	admin := s.createUser("Fleet Admin", "admin123", models.RoleAdmin)

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
		wantMsg    string
	}{
		{"success", "/auth/login", LoginRequest{Email: admin.Email, Password: "admin123"}, http.StatusOK, ""},
		{"mirrored under api", "/api/auth/login", LoginRequest{Email: admin.Email, Password: "admin123"}, http.StatusOK, ""},
		{"email is case-insensitive", "/auth/login", LoginRequest{Email: strings.ToUpper(admin.Email), Password: "admin123"}, http.StatusOK, ""},
		{"missing password", "/auth/login", LoginRequest{Email: admin.Email}, http.StatusBadRequest, "Email and password are required"},
		{"wrong password", "/auth/login", LoginRequest{Email: admin.Email, Password: "nope"}, http.StatusUnauthorized, "Invalid credentials"},
		{"unknown email", "/auth/login", LoginRequest{Email: "ghost@fleet.test", Password: "admin123"}, http.StatusUnauthorized, "Invalid credentials"},
		{"malformed body", "/auth/login", "{", http.StatusBadRequest, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, tt.path, "", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantMsg != "" {
				if got := errorMessage(t, rec); got != tt.wantMsg {
					t.Errorf("message = %q, want %q", got, tt.wantMsg)
				}
				return
			}

			var resp LoginResponse
			decode(t, rec, &resp)
			if resp.User.ID != admin.ID || resp.User.Role != models.RoleAdmin {
				t.Errorf("user = %+v", resp.User)
			}
			claims, err := middleware.ParseToken(testSecret, resp.Token)
			if err != nil {
				t.Fatalf("token does not parse: %v", err)
			}
			if claims.UserID != admin.ID || claims.Name != admin.Name || claims.Email != admin.Email {
				t.Errorf("claims = %+v", claims)
			}
		})
	}
}

func TestRouteAccess(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(s.createUser("Fleet Admin", "pw", models.RoleAdmin))
	driver := s.token(s.createUser("Alex Driver", "pw", models.RoleDriver))

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"no token", http.MethodGet, "/drivers", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/drivers", "garbage", http.StatusUnauthorized},
		{"driver on admin route", http.MethodGet, "/drivers", driver, http.StatusForbidden},
		{"driver exports", http.MethodGet, "/trips/export", driver, http.StatusForbidden},
		{"admin on driver route", http.MethodPost, "/trips/start", admin, http.StatusForbidden},
		{"admin lists drivers", http.MethodGet, "/drivers", admin, http.StatusOK},
		{"admin lists drivers under api", http.MethodGet, "/api/drivers", admin, http.StatusOK},
		{"driver lists deliveries", http.MethodGet, "/deliveries", driver, http.StatusOK},
		{"admin lists trips", http.MethodGet, "/trips", admin, http.StatusOK},
		{"me", http.MethodGet, "/auth/me", driver, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.token, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestCreateDriver(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(s.createUser("Fleet Admin", "pw", models.RoleAdmin))

	rec := s.do(http.MethodPost, "/drivers", admin, CreateDriverRequest{Name: "Sam", Email: "Sam@Fleet.test", Password: "pw"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d (%s)", rec.Code, rec.Body.String())
	}
	var created models.UserResponse
	decode(t, rec, &created)
	if created.Email != "sam@fleet.test" || created.Role != models.RoleDriver {
		t.Errorf("created = %+v", created)
	}

	rec = s.do(http.MethodPost, "/drivers", admin, CreateDriverRequest{Name: "Sam 2", Email: "sam@fleet.test", Password: "pw"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate = %d, want 400", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Email already in use" {
		t.Errorf("duplicate message = %q", msg)
	}

	rec = s.do(http.MethodPost, "/drivers", admin, CreateDriverRequest{Email: "x@fleet.test", Password: "pw"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name = %d, want 400", rec.Code)
	}

	rec = s.do(http.MethodGet, "/drivers", admin, nil)
	var drivers []models.UserResponse
	decode(t, rec, &drivers)
	if len(drivers) != 1 || drivers[0].ID != created.ID {
		t.Errorf("drivers = %+v", drivers)
	}
}

func TestDeliveryAndTripFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(s.createUser("Fleet Admin", "pw", models.RoleAdmin))
	alexUser := s.createUser("Alex Driver", "pw", models.RoleDriver)
	alex := s.token(alexUser)
	other := s.token(s.createUser("Other Driver", "pw", models.RoleDriver))

	rec := s.do(http.MethodPost, "/deliveries", admin, CreateDeliveryRequest{Title: "Pallets"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("incomplete delivery = %d, want 400", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Title, origin and destination are required" {
		t.Errorf("message = %q", msg)
	}

	rec = s.do(http.MethodPost, "/deliveries", admin, CreateDeliveryRequest{
		Title: "Pallets", Origin: "Depot", Destination: "Harbour", ScheduledDate: "2026-10-20",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create delivery = %d (%s)", rec.Code, rec.Body.String())
	}
	var delivery models.Delivery
	decode(t, rec, &delivery)
	if delivery.ID == "" || delivery.ScheduledDate == nil || *delivery.ScheduledDate != "2026-10-20" || delivery.Notes != nil {
		t.Fatalf("delivery = %+v", delivery)
	}

	assignPath := "/deliveries/" + delivery.ID + "/assign"
	rec = s.do(http.MethodPost, assignPath, admin, AssignDeliveryRequest{DriverID: alexUser.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("assign = %d (%s)", rec.Code, rec.Body.String())
	}
	var assigned AssignDeliveryResponse
	decode(t, rec, &assigned)
	if assigned.Message != "Delivery assigned" || assigned.Assignment.Status != models.AssignmentPending {
		t.Errorf("assign response = %+v", assigned)
	}

	rec = s.do(http.MethodPost, assignPath, admin, AssignDeliveryRequest{DriverID: alexUser.ID})
	if rec.Code != http.StatusBadRequest || errorMessage(t, rec) != "Delivery already assigned to this driver" {
		t.Errorf("reassign = %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(http.MethodPost, "/deliveries/missing/assign", admin, AssignDeliveryRequest{DriverID: alexUser.ID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown delivery = %d, want 404", rec.Code)
	}

	rec = s.do(http.MethodGet, "/deliveries", alex, nil)
	var own []models.DriverDelivery
	decode(t, rec, &own)
	if len(own) != 1 || own[0].ID != delivery.ID || own[0].Status != models.AssignmentPending {
		t.Fatalf("driver deliveries = %+v", own)
	}
	rec = s.do(http.MethodGet, "/deliveries", other, nil)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("other driver deliveries = %s, want []", rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/trips/active", alex, nil)
	if strings.TrimSpace(rec.Body.String()) != "null" {
		t.Errorf("active trip before start = %s, want null", rec.Body.String())
	}

	rec = s.do(http.MethodPost, "/trips/start", alex, StartTripRequest{DeliveryIDs: []string{delivery.ID}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start = %d (%s)", rec.Code, rec.Body.String())
	}
	var started struct {
		ID         string                `json:"id"`
		Status     models.TripStatus     `json:"status"`
		Deliveries []models.TripDelivery `json:"deliveries"`
	}
	decode(t, rec, &started)
	if started.Status != models.TripOngoing || len(started.Deliveries) != 1 {
		t.Fatalf("started = %+v", started)
	}

	rec = s.do(http.MethodPost, "/trips/start", alex, StartTripRequest{DeliveryIDs: []string{delivery.ID}})
	if rec.Code != http.StatusBadRequest || errorMessage(t, rec) != "An active trip is already running" {
		t.Errorf("second start = %d %s", rec.Code, rec.Body.String())
	}

	locationPath := "/trips/" + started.ID + "/location"
	rec = s.do(http.MethodPost, locationPath, alex, map[string]interface{}{"latitude": 0})
	if rec.Code != http.StatusBadRequest || errorMessage(t, rec) != "Latitude and longitude are required" {
		t.Errorf("missing longitude = %d %s", rec.Code, rec.Body.String())
	}

	recordedAt := time.Now().Add(time.Minute).UTC()
	rec = s.do(http.MethodPost, locationPath, alex, map[string]interface{}{
		"latitude": 0, "longitude": 0, "recordedAt": recordedAt.Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("first point = %d (%s)", rec.Code, rec.Body.String())
	}
	rec = s.do(http.MethodPost, locationPath, alex, map[string]interface{}{
		"latitude": 1, "longitude": 0, "recordedAt": recordedAt.Add(time.Minute).UnixMilli(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("second point = %d (%s)", rec.Code, rec.Body.String())
	}
	var point models.PointResult
	decode(t, rec, &point)
	if point.DistanceFromLastKm < 111 || point.DistanceFromLastKm > 111.4 {
		t.Errorf("distance from last = %v, want ~111.19", point.DistanceFromLastKm)
	}

	rec = s.do(http.MethodPost, locationPath, other, map[string]interface{}{"latitude": 1, "longitude": 1})
	if rec.Code != http.StatusBadRequest || errorMessage(t, rec) != "Trip is not active" {
		t.Errorf("other driver point = %d %s", rec.Code, rec.Body.String())
	}

	tripPath := "/trips/" + started.ID
	if rec = s.do(http.MethodGet, tripPath, other, nil); rec.Code != http.StatusForbidden {
		t.Errorf("other driver reads trip = %d, want 403", rec.Code)
	}
	if rec = s.do(http.MethodGet, "/trips/unknown", admin, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown trip = %d, want 404", rec.Code)
	}

	rec = s.do(http.MethodPost, tripPath+"/stop", alex, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop = %d (%s)", rec.Code, rec.Body.String())
	}
	var stopped struct {
		Status      models.TripStatus `json:"status"`
		EndedAt     *string           `json:"ended_at"`
		TotalPoints int               `json:"total_points"`
	}
	decode(t, rec, &stopped)
	if stopped.Status != models.TripCompleted || stopped.EndedAt == nil || stopped.TotalPoints != 2 {
		t.Errorf("stopped = %+v", stopped)
	}
	if rec = s.do(http.MethodPost, tripPath+"/stop", alex, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("second stop = %d, want 400", rec.Code)
	}

	rec = s.do(http.MethodGet, "/deliveries", admin, nil)
	var all []models.AdminDelivery
	decode(t, rec, &all)
	if len(all) != 1 || len(all[0].Assignments) != 1 || all[0].Assignments[0].Status != models.AssignmentCompleted {
		t.Errorf("admin deliveries = %+v", all)
	}

	rec = s.do(http.MethodGet, "/trips", alex, nil)
	var driverTrips []map[string]interface{}
	decode(t, rec, &driverTrips)
	if len(driverTrips) != 1 {
		t.Fatalf("driver trips = %d, want 1", len(driverTrips))
	}
	if _, ok := driverTrips[0]["driver"]; ok {
		t.Errorf("driver trip list leaks driver identity: %v", driverTrips[0])
	}
	points, _ := driverTrips[0]["points"].([]interface{})
	if total, _ := driverTrips[0]["total_points"].(float64); len(points) == 0 || float64(len(points)) != total {
		t.Errorf("listed trip points = %v, want %v entries", driverTrips[0]["points"], driverTrips[0]["total_points"])
	}

	rec = s.do(http.MethodGet, "/trips?driverId="+alexUser.ID, admin, nil)
	var adminTrips []map[string]interface{}
	decode(t, rec, &adminTrips)
	if len(adminTrips) != 1 || adminTrips[0]["driver"] == nil {
		t.Errorf("admin trips = %v", adminTrips)
	}

	rec = s.do(http.MethodGet, "/trips/export", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d (%s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("export content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("export disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("export body is not a zip container")
	}
}

func TestRegisterFCMToken(t *testing.T) {
	s := newTestServer(t)
	driver := s.createUser("Alex Driver", "pw", models.RoleDriver)
	tok := s.token(driver)

	rec := s.do(http.MethodPost, "/devices/fcm-token", tok, RegisterFCMTokenRequest{Token: "tok-1", DeviceType: models.DeviceAndroid})
	if rec.Code != http.StatusOK {
		t.Fatalf("register = %d (%s)", rec.Code, rec.Body.String())
	}
	tokens, err := database.ListFCMTokens(context.Background(), s.db, driver.ID)
	if err != nil || len(tokens) != 1 || tokens[0] != "tok-1" {
		t.Errorf("tokens = %v, %v", tokens, err)
	}

	rec = s.do(http.MethodPost, "/devices/fcm-token", tok, RegisterFCMTokenRequest{Token: "tok-2", DeviceType: "fridge"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad device type = %d, want 400", rec.Code)
	}
}

func TestTimestampUnmarshal(t *testing.T) {
	want := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"absent", `{}`, time.Time{}, false},
		{"null", `{"recordedAt":null}`, time.Time{}, false},
		{"empty string", `{"recordedAt":""}`, time.Time{}, false},
		{"iso string", `{"recordedAt":"2026-10-15T08:30:00.000Z"}`, want, false},
		{"epoch millis", `{"recordedAt":1792053000000}`, want, false},
		{"garbage string", `{"recordedAt":"yesterday"}`, time.Time{}, true},
		{"bool", `{"recordedAt":true}`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req RecordLocationRequest
			err := json.Unmarshal([]byte(tt.input), &req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !req.RecordedAt.Equal(tt.want) {
				t.Errorf("recordedAt = %v, want %v", req.RecordedAt.Time, tt.want)
			}
		})
	}
}

func TestStartTripWithoutBody(t *testing.T) {
	s := newTestServer(t)
	alex := s.token(s.createUser("Alex Driver", "pw", models.RoleDriver))

	rec := s.do(http.MethodPost, "/trips/start", alex, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start = %d (%s)", rec.Code, rec.Body.String())
	}
	var started struct {
		Status     models.TripStatus `json:"status"`
		Deliveries json.RawMessage   `json:"deliveries"`
	}
	decode(t, rec, &started)
	if started.Status != models.TripOngoing || string(started.Deliveries) != "[]" {
		t.Errorf("started = %s", rec.Body.String())
	}

	// a truncated body is still rejected
	rec = s.do(http.MethodPost, "/trips/start", alex, "{")
	if rec.Code != http.StatusBadRequest || errorMessage(t, rec) != "Invalid request body" {
		t.Errorf("truncated body = %d %s", rec.Code, rec.Body.String())
	}
}
