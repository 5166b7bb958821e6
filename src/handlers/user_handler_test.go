package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/username/spendwise/backend/src/config"
	"github.com/username/spendwise/backend/src/database"
	"github.com/username/spendwise/backend/src/logger"
	"github.com/username/spendwise/backend/src/models"
	"github.com/username/spendwise/backend/src/security"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{
		JWTSecret:                "test-secret-test-secret-test-secret!",
		AccessTokenExpiry:        15 * time.Minute,
		RefreshTokenExpiry:       7 * 24 * time.Hour,
		ExpensePageSize:          10,
		VerificationEmailBaseURL: "http://localhost:3000/verify-email",
		VerificationTokenExpiry:  24 * time.Hour,
	}
	os.Exit(m.Run())
}

// stubCaptcha lets tests force each captcha outcome.
type stubCaptcha struct {
	ok  bool
	err error
}

func (s *stubCaptcha) Verify(token, remoteIP string) (bool, error) {
	return s.ok, s.err
}

// recordingEmail captures verification tokens instead of sending mail.
type recordingEmail struct {
	tokens []string
	fail   bool
}

func (r *recordingEmail) SendVerificationEmail(toEmail, name, token string) error {
	if r.fail {
		return errors.New("smtp unavailable")
	}
	r.tokens = append(r.tokens, token)
	return nil
}

// apiEnvelope mirrors the response body shape of every endpoint.
type apiEnvelope struct {
	Status  bool            `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type validationEnvelope struct {
	Errors map[string][]string `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiEnvelope {
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeValidation(t *testing.T, rec *httptest.ResponseRecorder) map[string][]string {
	var env validationEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Errors
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type UserHandlerTestSuite struct {
	suite.Suite
	handler *UserHandler
	captcha *stubCaptcha
	email   *recordingEmail
}

func (s *UserHandlerTestSuite) SetupTest() {
	db, err := database.OpenAndMigrate(":memory:")
	require.NoError(s.T(), err, "failed to open test database")
	database.DB = db

	s.captcha = &stubCaptcha{ok: true}
	s.email = &recordingEmail{}
	s.handler = NewUserHandler(security.NewAuthService(config.Cfg.JWTSecret), s.email, s.captcha)
}

func (s *UserHandlerTestSuite) TearDownTest() {
	database.DB.Close()
}

func (s *UserHandlerTestSuite) register(name, email, password string) *httptest.ResponseRecorder {
	req := jsonRequest(s.T(), http.MethodPost, "/api/v1/register", map[string]string{
		"name":                  name,
		"email":                 email,
		"password":              password,
		"password_confirmation": password,
		"hcaptcha_token":        "stub-token",
	})
	rec := httptest.NewRecorder()
	s.handler.RegisterUserHandler(rec, req)
	return rec
}

func (s *UserHandlerTestSuite) verifyLatestToken() {
	s.Require().NotEmpty(s.email.tokens, "no verification email was captured")
	token := s.email.tokens[len(s.email.tokens)-1]
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token="+token, nil)
	rec := httptest.NewRecorder()
	s.handler.VerifyEmailHandler(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)
}

func (s *UserHandlerTestSuite) login(email, password string) *httptest.ResponseRecorder {
	req := jsonRequest(s.T(), http.MethodPost, "/api/v1/login", map[string]string{
		"email":          email,
		"password":       password,
		"hcaptcha_token": "stub-token",
	})
	rec := httptest.NewRecorder()
	s.handler.LoginUserHandler(rec, req)
	return rec
}

func (s *UserHandlerTestSuite) TestRegisterCreatesUnverifiedUser() {
	rec := s.register("Alice", "alice@example.com", "secret123")
	s.Equal(http.StatusCreated, rec.Code)

	env := decodeEnvelope(s.T(), rec)
	s.True(env.Status)
	s.Contains(env.Message, "check your email")
	s.Len(s.email.tokens, 1)

	user, err := models.GetUserByEmail(database.DB, "alice@example.com")
	s.Require().NoError(err)
	s.False(user.IsEmailVerified)
	s.NotEqual("secret123", user.Password, "password must be stored hashed")
}

func (s *UserHandlerTestSuite) TestRegisterValidation() {
	req := jsonRequest(s.T(), http.MethodPost, "/api/v1/register", map[string]string{
		"name":                  "",
		"email":                 "not-an-email",
		"password":              "short",
		"password_confirmation": "different",
	})
	rec := httptest.NewRecorder()
	s.handler.RegisterUserHandler(rec, req)

	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	errs := decodeValidation(s.T(), rec)
	s.Contains(errs, "name")
	s.Contains(errs, "email")
	s.Contains(errs, "password")
	s.Contains(errs, "hcaptcha_token")
	s.Len(errs["password"], 2, "too short and mismatch reported together")
}

func (s *UserHandlerTestSuite) TestRegisterDuplicateEmail() {
	s.Require().Equal(http.StatusCreated, s.register("Alice", "alice@example.com", "secret123").Code)

	rec := s.register("Also Alice", "alice@example.com", "secret456")
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	errs := decodeValidation(s.T(), rec)
	s.Equal([]string{"The email has already been taken."}, errs["email"])
}

func (s *UserHandlerTestSuite) TestRegisterCaptchaRejectedWritesNothing() {
	s.captcha.ok = false

	rec := s.register("Alice", "alice@example.com", "secret123")
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	errs := decodeValidation(s.T(), rec)
	s.Contains(errs, "hcaptcha_token")

	_, err := models.GetUserByEmail(database.DB, "alice@example.com")
	s.ErrorIs(err, models.ErrUserNotFound, "no user row when captcha fails")
	s.Empty(s.email.tokens)
}

func (s *UserHandlerTestSuite) TestRegisterCaptchaProviderDown() {
	s.captcha.err = errors.New("provider timeout")

	rec := s.register("Alice", "alice@example.com", "secret123")
	s.Equal(http.StatusBadGateway, rec.Code)

	_, err := models.GetUserByEmail(database.DB, "alice@example.com")
	s.ErrorIs(err, models.ErrUserNotFound)
}

func (s *UserHandlerTestSuite) TestLoginAfterVerification() {
	s.Require().Equal(http.StatusCreated, s.register("Alice", "alice@example.com", "secret123").Code)
	s.verifyLatestToken()

	rec := s.login("alice@example.com", "secret123")
	s.Require().Equal(http.StatusOK, rec.Code)

	env := decodeEnvelope(s.T(), rec)
	s.True(env.Status)
	var data struct {
		Token        string      `json:"token"`
		RefreshToken string      `json:"refresh_token"`
		User         models.User `json:"user"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &data))
	s.NotEmpty(data.Token)
	s.NotEmpty(data.RefreshToken)
	s.Equal("alice@example.com", data.User.Email)
}

func (s *UserHandlerTestSuite) TestLoginWrongPassword() {
	s.Require().Equal(http.StatusCreated, s.register("Alice", "alice@example.com", "secret123").Code)
	s.verifyLatestToken()

	rec := s.login("alice@example.com", "wrong-password")
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	errs := decodeValidation(s.T(), rec)
	s.Equal([]string{"The provided credentials are incorrect."}, errs["email"])
}

func (s *UserHandlerTestSuite) TestLoginUnknownEmailLooksLikeWrongPassword() {
	rec := s.login("nobody@example.com", "whatever1")
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	errs := decodeValidation(s.T(), rec)
	s.Equal([]string{"The provided credentials are incorrect."}, errs["email"])
}

func (s *UserHandlerTestSuite) TestLoginUnverifiedResendsEmail() {
	s.Require().Equal(http.StatusCreated, s.register("Alice", "alice@example.com", "secret123").Code)
	s.Require().Len(s.email.tokens, 1)

	rec := s.login("alice@example.com", "secret123")
	s.Equal(http.StatusForbidden, rec.Code)
	s.Len(s.email.tokens, 2, "a fresh verification link is sent")

	// The resent token still works.
	s.verifyLatestToken()
	s.Equal(http.StatusOK, s.login("alice@example.com", "secret123").Code)
}

func (s *UserHandlerTestSuite) TestVerifyEmailInvalidToken() {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token=bogus", nil)
	rec := httptest.NewRecorder()
	s.handler.VerifyEmailHandler(rec, req)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *UserHandlerTestSuite) TestVerifyEmailExpiredToken() {
	s.Require().Equal(http.StatusCreated, s.register("Alice", "alice@example.com", "secret123").Code)

	user, err := models.GetUserByEmail(database.DB, "alice@example.com")
	s.Require().NoError(err)
	expired := time.Now().UTC().Add(-time.Hour)
	s.Require().NoError(models.SetVerificationToken(database.DB, user.ID, "expired-token", expired))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token=expired-token", nil)
	rec := httptest.NewRecorder()
	s.handler.VerifyEmailHandler(rec, req)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *UserHandlerTestSuite) TestRefreshRotatesSession() {
	s.Require().Equal(http.StatusCreated, s.register("Alice", "alice@example.com", "secret123").Code)
	s.verifyLatestToken()

	env := decodeEnvelope(s.T(), s.login("alice@example.com", "secret123"))
	var loginData struct {
		RefreshToken string `json:"refresh_token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &loginData))

	req := jsonRequest(s.T(), http.MethodPost, "/api/v1/refresh", map[string]string{
		"refresh_token": loginData.RefreshToken,
	})
	rec := httptest.NewRecorder()
	s.handler.RefreshTokenHandler(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	refreshEnv := decodeEnvelope(s.T(), rec)
	var refreshed map[string]string
	s.Require().NoError(json.Unmarshal(refreshEnv.Data, &refreshed))
	s.NotEmpty(refreshed["token"])
	s.NotEqual(loginData.RefreshToken, refreshed["refresh_token"])

	// The consumed refresh token no longer works.
	req = jsonRequest(s.T(), http.MethodPost, "/api/v1/refresh", map[string]string{
		"refresh_token": loginData.RefreshToken,
	})
	rec = httptest.NewRecorder()
	s.handler.RefreshTokenHandler(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *UserHandlerTestSuite) TestAuthMiddleware() {
	s.Require().Equal(http.StatusCreated, s.register("Alice", "alice@example.com", "secret123").Code)
	s.verifyLatestToken()

	env := decodeEnvelope(s.T(), s.login("alice@example.com", "secret123"))
	var loginData struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &loginData))

	protected := s.handler.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserIDFromContext(r.Context())
		s.True(ok)
		s.NotZero(userID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+loginData.Token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)

	// Missing header.
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/user", nil))
	s.Equal(http.StatusUnauthorized, rec.Code)

	// Garbage token.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)

	// Logout drops the session, so the token stops working even before expiry.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/logout", nil)
	req.Header.Set("Authorization", "Bearer "+loginData.Token)
	rec = httptest.NewRecorder()
	s.handler.LogoutUserHandler(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+loginData.Token)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *UserHandlerTestSuite) TestAuthMiddlewareRejectsUnverifiedUser() {
	s.Require().Equal(http.StatusCreated, s.register("Alice", "alice@example.com", "secret123").Code)

	// Build a session by hand since login refuses unverified users.
	user, err := models.GetUserByEmail(database.DB, "alice@example.com")
	s.Require().NoError(err)
	token, err := s.handler.authService.GenerateToken(fmt.Sprintf("%d", user.ID))
	s.Require().NoError(err)
	s.Require().NoError(models.CreateSession(database.DB, &models.Session{
		UserID:       user.ID,
		Token:        token,
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}))

	protected := s.handler.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	s.Equal(http.StatusForbidden, rec.Code)
}

func TestUserHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(UserHandlerTestSuite))
}
