package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/username/spendwise/backend/src/config"
	"github.com/username/spendwise/backend/src/database"
	"github.com/username/spendwise/backend/src/logger"
	"github.com/username/spendwise/backend/src/models"
	"github.com/username/spendwise/backend/src/security"
	"github.com/username/spendwise/backend/src/security/validation"
	"github.com/username/spendwise/backend/src/services"
	"github.com/username/spendwise/backend/src/utils"
)

// Context key for the authenticated user's id. Unexported type avoids
// collisions with other packages' context values.
type contextKey string

const userIDContextKey contextKey = "userID"

// GetUserIDFromContext retrieves the userID set by AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

type UserHandler struct {
	authService    *security.AuthService
	emailService   services.EmailService
	captchaService services.CaptchaService
}

func NewUserHandler(authService *security.AuthService, emailService services.EmailService, captchaService services.CaptchaService) *UserHandler {
	return &UserHandler{
		authService:    authService,
		emailService:   emailService,
		captchaService: captchaService,
	}
}

type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	HCaptchaToken        string `json:"hcaptcha_token"`
}

// RegisterUserHandler validates input, verifies the captcha before touching
// the store, creates the user and sends the verification email.
func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	errs := validation.Errors{}
	errs.Require("name", req.Name, "Name is required")
	if errs.Require("email", req.Email, "Email is required") && !validation.ValidEmail(req.Email) {
		errs.Add("email", "Invalid email address")
	}
	if errs.Require("password", req.Password, "Password is required") {
		if len(req.Password) < 6 {
			errs.Add("password", "Password must be at least 6 characters")
		}
		if req.Password != req.PasswordConfirmation {
			errs.Add("password", "Password confirmation does not match")
		}
	}
	errs.Require("hcaptcha_token", req.HCaptchaToken, "Captcha is required")
	if errs.Any() {
		utils.SendValidationErrors(w, errs)
		return
	}

	// External precondition first: no user row is written when the captcha
	// check fails or errors.
	ok, err := h.captchaService.Verify(req.HCaptchaToken, r.RemoteAddr)
	if err != nil {
		logger.L.Error("Captcha verification errored", "error", err)
		utils.SendJSONError(w, "Captcha verification unavailable. Please try again.", http.StatusBadGateway)
		return
	}
	if !ok {
		utils.SendValidationErrors(w, validation.Errors{
			"hcaptcha_token": {"Captcha verification failed. Please try again."},
		})
		return
	}

	hashedPassword, err := h.authService.HashPassword(req.Password)
	if err != nil {
		utils.SendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: hashedPassword,
	}
	if err := user.CreateUser(database.DB); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			utils.SendValidationErrors(w, validation.Errors{
				"email": {"The email has already been taken."},
			})
			return
		}
		logger.L.Error("Failed to create user", "error", err)
		utils.SendJSONError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	if err := h.issueVerificationEmail(user); err != nil {
		logger.L.Error("Verification email failed after registration", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Account created but the verification email could not be sent. Try logging in to resend it.", http.StatusInternalServerError)
		return
	}

	utils.SendJSONSuccess(w, "", "Registration successful, please check your email for verification", http.StatusCreated)
}

type loginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	HCaptchaToken string `json:"hcaptcha_token"`
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	errs := validation.Errors{}
	if errs.Require("email", req.Email, "Email is required") && !validation.ValidEmail(req.Email) {
		errs.Add("email", "Invalid email address")
	}
	errs.Require("password", req.Password, "Password is required")
	errs.Require("hcaptcha_token", req.HCaptchaToken, "Captcha is required")
	if errs.Any() {
		utils.SendValidationErrors(w, errs)
		return
	}

	ok, err := h.captchaService.Verify(req.HCaptchaToken, r.RemoteAddr)
	if err != nil {
		logger.L.Error("Captcha verification errored", "error", err)
		utils.SendJSONError(w, "Captcha verification unavailable. Please try again.", http.StatusBadGateway)
		return
	}
	if !ok {
		utils.SendValidationErrors(w, validation.Errors{
			"hcaptcha_token": {"Captcha verification failed. Please try again."},
		})
		return
	}

	user, err := models.GetUserByEmail(database.DB, req.Email)
	if err != nil || h.authService.CompareHashAndPassword(user.Password, req.Password) != nil {
		utils.SendValidationErrors(w, validation.Errors{
			"email": {"The provided credentials are incorrect."},
		})
		return
	}

	if !user.IsEmailVerified {
		// Re-send the verification link so the user can complete signup.
		if err := h.issueVerificationEmail(user); err != nil {
			logger.L.Error("Failed to resend verification email", "userID", user.ID, "error", err)
		}
		utils.SendJSONError(w, "Email address is not verified. A new verification link has been sent.", http.StatusForbidden)
		return
	}

	accessToken, refreshToken, err := h.openSession(user, r)
	if err != nil {
		logger.L.Error("Failed to open session", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	utils.SendJSONSuccess(w, map[string]interface{}{
		"token":         accessToken,
		"refresh_token": refreshToken,
		"user":          user,
	}, "Login successful!", http.StatusOK)
}

func (h *UserHandler) issueVerificationEmail(user *models.User) error {
	token, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return fmt.Errorf("generating verification token: %w", err)
	}
	expiresAt := time.Now().UTC().Add(config.Cfg.VerificationTokenExpiry)
	if err := models.SetVerificationToken(database.DB, user.ID, token, expiresAt); err != nil {
		return fmt.Errorf("storing verification token: %w", err)
	}
	return h.emailService.SendVerificationEmail(user.Email, user.Name, token)
}

func (h *UserHandler) openSession(user *models.User, r *http.Request) (string, string, error) {
	userIDStr := strconv.FormatInt(user.ID, 10)
	accessToken, err := h.authService.GenerateToken(userIDStr)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return "", "", err
	}

	session := &models.Session{
		UserID:       user.ID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		ExpiresAt:    time.Now().UTC().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := models.CreateSession(database.DB, session); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// VerifyEmailHandler handles the link from the verification email. The token
// arrives as a query parameter.
func (h *UserHandler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.SendValidationErrors(w, validation.Errors{"token": {"Verification token is required"}})
		return
	}

	user, err := models.VerifyEmailByToken(database.DB, token, time.Now().UTC())
	if err != nil {
		if err == models.ErrUserNotFound {
			utils.SendJSONError(w, "Verification link is invalid or has expired.", http.StatusNotFound)
			return
		}
		logger.L.Error("Email verification failed", "error", err)
		utils.SendJSONError(w, "Email verification failed", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Email verified", "userID", user.ID)
	utils.SendJSONSuccess(w, "", "Email verified successfully. You can now log in.", http.StatusOK)
}

func (h *UserHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RefreshToken == "" {
		utils.SendValidationErrors(w, validation.Errors{"refresh_token": {"Refresh token is required"}})
		return
	}

	session, err := models.GetSessionByRefreshToken(database.DB, req.RefreshToken)
	if err != nil {
		utils.SendJSONError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	user, err := models.GetUserByID(database.DB, session.UserID)
	if err != nil {
		utils.SendJSONError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	// Rotate: the old session is dropped and a fresh pair issued.
	if err := models.DeleteSessionByToken(database.DB, session.Token); err != nil {
		logger.L.Warn("Failed to drop session on refresh", "userID", user.ID, "error", err)
	}
	accessToken, refreshToken, err := h.openSession(user, r)
	if err != nil {
		logger.L.Error("Failed to open session on refresh", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Failed to refresh session", http.StatusInternalServerError)
		return
	}

	utils.SendJSONSuccess(w, map[string]string{
		"token":         accessToken,
		"refresh_token": refreshToken,
	}, "Token refreshed", http.StatusOK)
}

func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := bearerToken(r)
	if tokenString != "" {
		if err := models.DeleteSessionByToken(database.DB, tokenString); err != nil {
			logger.L.Warn("Failed to delete session on logout", "error", err)
		}
	}
	utils.SendJSONSuccess(w, "", "Logout successful.", http.StatusOK)
}

// CurrentUserHandler returns the authenticated user.
func (h *UserHandler) CurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	user, err := models.GetUserByID(database.DB, userID)
	if err != nil {
		utils.SendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	utils.SendJSONSuccess(w, user, "", http.StatusOK)
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return authHeader
}
