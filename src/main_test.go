package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"tbs/src/middlewares"
	"tbs/src/models"
	"tbs/src/types"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
)

type TestSuite struct {
	suite.Suite
}

const (
	origin = "http://localhost:3000"
)

func (s *TestSuite) SetupSuite() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", bookableDateValidatorFunc)
		v.RegisterValidation("gtdate", gtfield)
		v.RegisterValidation("ltdate", ltfield)
	}
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)

	os.Setenv("MAINTENANCE_MODE", "false")
}

func (s *TestSuite) TestGuestAuthRequiresIdToken() {
	router := setupRouter()
	guestAuthRoutes(router)

	jbody := map[string]any{
		"email": "someone@example.com",
	}
	sbody, _ := json.Marshal(&jbody)

	w := httptest.NewRecorder()
	loginReq, _ := http.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(string(sbody)))
	loginReq.Header.Set("origin", origin)
	router.ServeHTTP(w, loginReq)

	assert.Equal(s.T(), 401, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	errMsg := gjson.Get(string(rbytes), "error").String()
	assert.NotEmpty(s.T(), errMsg)

	w = httptest.NewRecorder()
	registerReq, _ := http.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(string(sbody)))
	registerReq.Header.Set("origin", origin)
	router.ServeHTTP(w, registerReq)

	assert.Equal(s.T(), 401, w.Code)
}

func newBidTestRouter(role string, agencyId uint) *gin.Engine {
	router := setupRouter()
	authorized := router.Group(apiPrefix)
	authorized.Use(func(ctx *gin.Context) {
		ctx.Set("id", uint(1))
		ctx.Set("email", "agent@example.com")
		ctx.Set("role", role)
		ctx.Set("agency", agencyId)
	})
	bidHandlers(authorized)
	return router
}

func (s *TestSuite) TestBidRequiresAgencyRole() {
	router := newBidTestRouter(string(types.ROLE_TRAVELER), 0)

	// the role check runs before payload validation, so a traveler with
	// a bad payload still sees 403
	jbody := map[string]any{
		"itinerary": "day 1: island hopping",
		"price":     -1,
	}
	sbody, _ := json.Marshal(&jbody)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/trips/12/bids", strings.NewReader(string(sbody)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 403, w.Code)
}

func (s *TestSuite) TestBidRejectsNonPositivePriceBeforeUpload() {
	uploads := 0
	orig := bidAttachmentUploader
	bidAttachmentUploader = func(key string, body io.Reader, contentType string) (*string, error) {
		uploads++
		url := "https://cdn.example.com/" + key
		return &url, nil
	}
	defer func() { bidAttachmentUploader = orig }()

	router := newBidTestRouter(string(types.ROLE_AGENCY_AGENT), 7)
	for _, price := range []float64{-1, 0} {
		jbody := map[string]any{
			"itinerary": "day 1: island hopping",
			"price":     price,
		}
		sbody, _ := json.Marshal(&jbody)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/trips/12/bids", strings.NewReader(string(sbody)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.NotEmpty(s.T(), gjson.Get(string(rbytes), "error").String())
	}
	assert.Equal(s.T(), 0, uploads)
}

func (s *TestSuite) TestAuthRejectsBareBearerHeader() {
	router := setupRouter()
	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	authorized.GET("/whoami", func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
	})

	for _, header := range []string{"Bearer", "Bearer "} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/whoami", nil)
		req.Header.Set("Authorization", header)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 401, w.Code)
	}
}

func (s *TestSuite) TestMessageResponse() {
	sent := time.Now()
	m := models.Message{
		ID:       5,
		RoomKey:  models.ChatRoomKey(12, 7),
		SenderID: 42,
		Role:     string(types.ROLE_TRAVELER),
		Text:     "hello",
		SentAt:   sent,
	}
	resp := messageResponse(&m)
	assert.Equal(s.T(), uint(5), resp.ID)
	assert.Equal(s.T(), "trip:12:agency:7", resp.RoomKey)
	assert.Equal(s.T(), uint(42), resp.SenderID)
	assert.Equal(s.T(), "hello", resp.Text)
	assert.Equal(s.T(), sent, resp.SentAt)
}

func (s *TestSuite) TestParseRequestDate() {
	datetime, err := parseRequestDate("2026-09-01 10:30:00 +08:00")
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), 10, datetime.Hour())

	date, err := parseRequestDate("2026-09-01")
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), 2026, date.Year())

	_, err = parseRequestDate("tomorrow")
	assert.NotNil(s.T(), err)
}

func (s *TestSuite) TestBookableDateValidator() {
	v := validator.New()
	v.RegisterValidation("bookabledate", bookableDateValidatorFunc)

	assert.Nil(s.T(), v.Var("2099-12-31", "bookabledate"))
	assert.NotNil(s.T(), v.Var("2020-01-01", "bookabledate"))
	assert.NotNil(s.T(), v.Var("not a date", "bookabledate"))
}

func (s *TestSuite) TestDateRangeValidators() {
	v := validator.New()
	v.RegisterValidation("gtdate", gtfield)
	v.RegisterValidation("ltdate", ltfield)

	type dateRange struct {
		StartDate string `validate:"omitempty"`
		EndDate   string `validate:"omitempty,gtdate=StartDate"`
	}

	assert.Nil(s.T(), v.Struct(dateRange{StartDate: "2026-09-01", EndDate: "2026-09-05"}))
	assert.Nil(s.T(), v.Struct(dateRange{StartDate: "2026-09-01", EndDate: "2026-09-01"}))
	assert.NotNil(s.T(), v.Struct(dateRange{StartDate: "2026-09-05", EndDate: "2026-09-01"}))
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
