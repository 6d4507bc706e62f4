package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/festival-portal/internal/middleware"
	"github.com/mmeshcher/festival-portal/internal/model"
	"github.com/mmeshcher/festival-portal/internal/repository"
	"github.com/mmeshcher/festival-portal/internal/service"
	"github.com/mmeshcher/festival-portal/internal/thepay"
	"github.com/mmeshcher/festival-portal/internal/validation"
)

type stubService struct {
	createFilm    *model.Film
	createFilmErr error

	film    *model.Film
	filmErr error

	redirect    *service.PaymentRedirect
	redirectErr error
	gotAmount   thepay.Amount

	callback    *service.CallbackResult
	callbackErr error
	gotQuery    url.Values

	staffID  int64
	staffErr error

	films    []model.Film
	filmsErr error

	changed   *model.Film
	changeErr error

	evaluation    *model.Evaluation
	evaluationErr error
	gotStaffID    int64

	emails    []model.Email
	emailsErr error

	reminded  int
	remindErr error
}

func (s *stubService) CreateSubmission(ctx context.Context, req *validation.FilmRequest) (*model.Film, error) {
	return s.createFilm, s.createFilmErr
}

func (s *stubService) GetFilm(ctx context.Context, id int64) (*model.Film, error) {
	return s.film, s.filmErr
}

func (s *stubService) BuildPaymentRedirect(ctx context.Context, filmID int64, amount thepay.Amount, description, returnURL, cancelURL string) (*service.PaymentRedirect, error) {
	s.gotAmount = amount
	return s.redirect, s.redirectErr
}

func (s *stubService) PayRegistration(ctx context.Context, filmID int64) (*service.PaymentRedirect, error) {
	return s.redirect, s.redirectErr
}

func (s *stubService) RetryPayment(ctx context.Context, paymentID int64) (*service.PaymentRedirect, error) {
	return s.redirect, s.redirectErr
}

func (s *stubService) HandleCallback(ctx context.Context, q url.Values) (*service.CallbackResult, error) {
	s.gotQuery = q
	return s.callback, s.callbackErr
}

func (s *stubService) RegisterStaff(ctx context.Context, login, password, inviteCode string) (int64, error) {
	return s.staffID, s.staffErr
}

func (s *stubService) AuthenticateStaff(ctx context.Context, login, password string) (int64, error) {
	return s.staffID, s.staffErr
}

func (s *stubService) ListFilms(ctx context.Context, status model.FilmStatus) ([]model.Film, error) {
	return s.films, s.filmsErr
}

func (s *stubService) FilmPayments(ctx context.Context, filmID int64) ([]model.Payment, error) {
	return nil, nil
}

func (s *stubService) ChangeStatus(ctx context.Context, filmID int64, next model.FilmStatus) (*model.Film, error) {
	return s.changed, s.changeErr
}

func (s *stubService) AddEvaluation(ctx context.Context, userID, filmID int64, like int, verbal string, technical *bool) (*model.Evaluation, error) {
	s.gotStaffID = userID
	return s.evaluation, s.evaluationErr
}

func (s *stubService) GetRating(ctx context.Context, filmID int64) (*model.Rating, error) {
	return &model.Rating{FilmID: filmID}, nil
}

func (s *stubService) ListEmails(ctx context.Context, onlyFailed bool, limit int) ([]model.Email, error) {
	return s.emails, s.emailsErr
}

func (s *stubService) ResendEmail(ctx context.Context, id int64) (*model.Email, error) {
	return nil, repository.ErrEmailNotFound
}

func (s *stubService) RemindUnpaid(ctx context.Context) (int, error) {
	return s.reminded, s.remindErr
}

func newTestHandler(t *testing.T, svc Service) (*Handler, *middleware.StaffAuth) {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewStaffAuth("test-secret")
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("festival_http_requests_total 1\n"))
	})

	return NewHandler(svc, logger, auth, metrics), auth
}

func serve(h *Handler, req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec.Result()
}

func TestCreateFilm(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svc        *stubService
		wantStatus int
	}{
		{
			name:       "created",
			body:       `{"name":"Short"}`,
			svc:        &stubService{createFilm: &model.Film{ID: 7, Name: "Short", Status: model.FilmStatusUnpaid}},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "validation error",
			body:       `{"name":""}`,
			svc:        &stubService{createFilmErr: fmt.Errorf("%w: name: required", validation.ErrInvalid)},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "malformed json",
			body:       `{"name":`,
			svc:        &stubService{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "storage failure",
			body:       `{"name":"Short"}`,
			svc:        &stubService{createFilmErr: context.DeadlineExceeded},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, tt.svc)

			res := serve(h, httptest.NewRequest(http.MethodPost, "/api/films", strings.NewReader(tt.body)))
			defer res.Body.Close()

			assert.Equal(t, tt.wantStatus, res.StatusCode)
		})
	}
}

func TestGetFilm(t *testing.T) {
	svc := &stubService{film: &model.Film{
		ID:        42,
		Name:      "Short",
		Status:    model.FilmStatusRegistered,
		Time:      95 * time.Minute,
		Email:     "secret@example.com",
		CreatedAt: time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC),
	}}
	h, _ := newTestHandler(t, svc)

	res := serve(h, httptest.NewRequest(http.MethodGet, "/api/films/42", nil))
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got filmResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, "r", got.Status)
	assert.Equal(t, "95:00", got.Time)
	assert.Empty(t, got.Email)
}

func TestGetFilm_NotFound(t *testing.T) {
	h, _ := newTestHandler(t, &stubService{filmErr: repository.ErrFilmNotFound})

	res := serve(h, httptest.NewRequest(http.MethodGet, "/api/films/42", nil))
	defer res.Body.Close()

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCreatePayment(t *testing.T) {
	svc := &stubService{redirect: &service.PaymentRedirect{URL: "https://gate/?a=1", Signature: "abc"}}
	h, _ := newTestHandler(t, svc)

	body := `{"amount":"150.00","description":"fee","return_url":"https://r","cancel_url":"https://c"}`
	res := serve(h, httptest.NewRequest(http.MethodPost, "/api/films/42/payment", strings.NewReader(body)))
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, thepay.Amount(15000), svc.gotAmount)

	var got service.PaymentRedirect
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, "https://gate/?a=1", got.URL)
}

func TestCreatePayment_NumericAmount(t *testing.T) {
	svc := &stubService{redirect: &service.PaymentRedirect{URL: "https://gate/"}}
	h, _ := newTestHandler(t, svc)

	res := serve(h, httptest.NewRequest(http.MethodPost, "/api/films/42/payment", strings.NewReader(`{"amount":150.5}`)))
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, thepay.Amount(15050), svc.gotAmount)
}

func TestCreatePayment_InvalidAmount(t *testing.T) {
	h, _ := newTestHandler(t, &stubService{redirectErr: service.ErrInvalidAmount})

	res := serve(h, httptest.NewRequest(http.MethodPost, "/api/films/42/payment", strings.NewReader(`{"amount":"0.00"}`)))
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = serve(h, httptest.NewRequest(http.MethodPost, "/api/films/42/payment", strings.NewReader(`{"amount":"1.234"}`)))
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestThePayCallback(t *testing.T) {
	filmID := int64(42)

	tests := []struct {
		name       string
		svc        *stubService
		wantStatus int
	}{
		{
			name: "transitioned",
			svc: &stubService{callback: &service.CallbackResult{
				Payment:      &model.Payment{PaymentID: 1001, Status: model.PaymentStatusOk, ValidSignature: true, FilmID: &filmID},
				Transitioned: true,
			}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "duplicate",
			svc:        &stubService{callbackErr: fmt.Errorf("%w: 1001", repository.ErrDuplicatePayment)},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "invalid merchant data",
			svc:        &stubService{callbackErr: fmt.Errorf("%w: %w", service.ErrInvalidCallback, thepay.ErrInvalidMerchantData)},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, tt.svc)

			res := serve(h, httptest.NewRequest(http.MethodGet, "/thepay/callback?paymentId=1001&merchantData=%7B%22f%22%3A42%7D", nil))
			defer res.Body.Close()

			assert.Equal(t, tt.wantStatus, res.StatusCode)
			assert.Equal(t, `{"f":42}`, tt.svc.gotQuery.Get("merchantData"))
		})
	}
}

func TestPaymentLinksRedirect(t *testing.T) {
	paths := []string{
		"/zaplatit-registraci/42/kratky-film/",
		"/pay-registration/42/short-film",
		"/opakovat-platbu/1002/",
		"/repeat-payment/1002",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			h, _ := newTestHandler(t, &stubService{redirect: &service.PaymentRedirect{URL: "https://www.thepay.cz/demo-gate/?value=150.00"}})

			res := serve(h, httptest.NewRequest(http.MethodGet, path, nil))
			defer res.Body.Close()

			assert.Equal(t, http.StatusFound, res.StatusCode)
			assert.Equal(t, "https://www.thepay.cz/demo-gate/?value=150.00", res.Header.Get("Location"))
		})
	}
}

func TestPaymentLinks_AlreadyPaid(t *testing.T) {
	h, _ := newTestHandler(t, &stubService{redirectErr: service.ErrAlreadyPaid})

	res := serve(h, httptest.NewRequest(http.MethodGet, "/opakovat-platbu/1002/", nil))
	defer res.Body.Close()

	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestStaffRoutes_RequireSession(t *testing.T) {
	svc := &stubService{films: []model.Film{{ID: 1, Name: "Short", Status: model.FilmStatusUnpaid}}}
	h, auth := newTestHandler(t, svc)

	res := serve(h, httptest.NewRequest(http.MethodGet, "/api/staff/films", nil))
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	rec := httptest.NewRecorder()
	auth.SetSessionCookie(rec, 5)

	req := httptest.NewRequest(http.MethodGet, "/api/staff/films?status=u", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	res = serve(h, req)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestLoginStaff(t *testing.T) {
	body, _ := json.Marshal(credentialsRequest{Login: "eva", Password: "secret"})

	h, _ := newTestHandler(t, &stubService{staffID: 5})
	res := serve(h, httptest.NewRequest(http.MethodPost, "/api/staff/login", bytes.NewReader(body)))
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Cookies())

	h, _ = newTestHandler(t, &stubService{staffErr: service.ErrInvalidCredentials})
	res = serve(h, httptest.NewRequest(http.MethodPost, "/api/staff/login", bytes.NewReader(body)))
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRegisterStaff_WrongInvite(t *testing.T) {
	h, _ := newTestHandler(t, &stubService{staffErr: service.ErrInvalidInviteCode})

	body := `{"login":"eva","password":"secret","invite_code":"nope"}`
	res := serve(h, httptest.NewRequest(http.MethodPost, "/api/staff/register", strings.NewReader(body)))
	defer res.Body.Close()

	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestChangeStatus_Conflict(t *testing.T) {
	h, auth := newTestHandler(t, &stubService{changeErr: model.ErrTransitionNotAllowed})

	rec := httptest.NewRecorder()
	auth.SetSessionCookie(rec, 5)

	req := httptest.NewRequest(http.MethodPut, "/api/staff/films/42/status", strings.NewReader(`{"status":"r"}`))
	req.AddCookie(rec.Result().Cookies()[0])
	res := serve(h, req)
	defer res.Body.Close()

	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestAddEvaluation_UsesSessionStaff(t *testing.T) {
	svc := &stubService{evaluation: &model.Evaluation{ID: 9}}
	h, auth := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	auth.SetSessionCookie(rec, 5)

	req := httptest.NewRequest(http.MethodPost, "/api/staff/films/42/evaluations", strings.NewReader(`{"like":4,"verbal":"good"}`))
	req.AddCookie(rec.Result().Cookies()[0])
	res := serve(h, req)
	defer res.Body.Close()

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, int64(5), svc.gotStaffID)
}

func TestListEmails_NoContent(t *testing.T) {
	h, auth := newTestHandler(t, &stubService{})

	rec := httptest.NewRecorder()
	auth.SetSessionCookie(rec, 5)

	req := httptest.NewRequest(http.MethodGet, "/api/staff/emails?failed=1", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	res := serve(h, req)
	defer res.Body.Close()

	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, &stubService{})

	res := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
}
