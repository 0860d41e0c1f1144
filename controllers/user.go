package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"flipzone/apperr"
	"flipzone/envelope"
	"flipzone/middleware"
	"flipzone/models"
	"flipzone/store"
	"flipzone/utils"
)

const mailTimeout = 10 * time.Second

// UserController handles registration, sessions and the profile
type UserController struct {
	Users         store.UserRepository
	Tokens        *utils.Tokens
	Mailer        utils.Mailer
	Timeout       time.Duration
	SecureCookies bool
	logger        *log.Entry
}

// NewUserController creates a new UserController
func NewUserController(users store.UserRepository, tokens *utils.Tokens, mailer utils.Mailer, timeout time.Duration, secureCookies bool) *UserController {
	if mailer == nil {
		mailer = utils.NopMailer{}
	}
	return &UserController{
		Users:         users,
		Tokens:        tokens,
		Mailer:        mailer,
		Timeout:       timeout,
		SecureCookies: secureCookies,
		logger:        log.WithField("component", "user-controller"),
	}
}

// AuthResponse is returned by register, login and refresh
type AuthResponse struct {
	Status       string       `json:"status"`
	Message      string       `json:"message"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *models.User `json:"user,omitempty"`
}

// Register handles user registration
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		envelope.Error(w, err)
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	body.Email = strings.TrimSpace(body.Email)
	if body.Username == "" || body.Email == "" || body.Password == "" {
		envelope.Error(w, apperr.Invalid("All fields are required"))
		return
	}
	if !strings.Contains(body.Email, "@") {
		envelope.Error(w, apperr.Invalid("Invalid email"))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		envelope.Error(w, apperr.Invalid("Password is not acceptable"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), uc.Timeout)
	defer cancel()
	user, err := uc.Users.Insert(ctx, models.User{
		Username:  body.Username,
		Email:     body.Email,
		Password:  string(hashedPassword),
		Role:      models.RoleUser,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		envelope.Error(w, apperr.New(apperr.Conflict, "User already exists"))
		return
	}
	if err != nil {
		envelope.Error(w, apperr.Unavailable(err))
		return
	}

	resp, err := uc.issue(w, user)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	go uc.sendWelcome(user)

	resp.Status, resp.Message = "success", "Registered successfully"
	resp.User = &user
	envelope.JSON(w, http.StatusCreated, resp)
}

// Login handles user authentication
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &creds); err != nil {
		envelope.Error(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), uc.Timeout)
	defer cancel()
	user, err := uc.Users.FindByEmail(ctx, creds.Email)
	if errors.Is(err, store.ErrNotFound) {
		envelope.Error(w, apperr.Unauthorized("Invalid email"))
		return
	}
	if err != nil {
		envelope.Error(w, apperr.Unavailable(err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		envelope.Error(w, apperr.Unauthorized("Invalid password"))
		return
	}

	resp, err := uc.issue(w, user)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	resp.Status, resp.Message = "success", "Logged in successfully"
	resp.User = &user
	envelope.JSON(w, http.StatusOK, resp)
}

// Refresh exchanges a refresh token for a new access token
func (uc *UserController) Refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			envelope.Error(w, err)
			return
		}
	}
	if body.RefreshToken == "" {
		if c, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
			body.RefreshToken = c.Value
		}
	}
	if body.RefreshToken == "" {
		envelope.Error(w, apperr.Unauthorized(""))
		return
	}

	claims, err := uc.Tokens.ParseRefresh(body.RefreshToken)
	if err != nil {
		envelope.Error(w, apperr.Unauthorized("Invalid refresh token"))
		return
	}
	userID, err := parseID(claims.UserID, "Invalid refresh token")
	if err != nil {
		envelope.Error(w, apperr.Unauthorized("Invalid refresh token"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), uc.Timeout)
	defer cancel()
	user, err := uc.Users.FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		envelope.Error(w, apperr.Unauthorized("Invalid refresh token"))
		return
	}
	if err != nil {
		envelope.Error(w, apperr.Unavailable(err))
		return
	}

	token, expires, err := uc.Tokens.IssueAccess(user)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	uc.setCookie(w, middleware.AccessTokenCookie, token, expires)
	envelope.JSON(w, http.StatusOK, AuthResponse{
		Status:      "success",
		Message:     "Token refreshed",
		AccessToken: token,
		ExpiresAt:   expires,
	})
}

// Logout clears the session cookies
func (uc *UserController) Logout(w http.ResponseWriter, _ *http.Request) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   uc.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
	envelope.JSON(w, http.StatusOK, envelope.Message{Status: "success", Message: "Logout successful"})
}

// GetProfile retrieves the authenticated user's profile
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), uc.Timeout)
	defer cancel()
	user, err := uc.Users.FindByID(ctx, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		envelope.Error(w, apperr.NotFoundf("User not found"))
		return
	}
	if err != nil {
		envelope.Error(w, apperr.Unavailable(err))
		return
	}
	envelope.JSON(w, http.StatusOK, user)
}

func (uc *UserController) issue(w http.ResponseWriter, user models.User) (AuthResponse, error) {
	access, accessExp, err := uc.Tokens.IssueAccess(user)
	if err != nil {
		return AuthResponse{}, err
	}
	refresh, refreshExp, err := uc.Tokens.IssueRefresh(user)
	if err != nil {
		return AuthResponse{}, err
	}
	uc.setCookie(w, middleware.AccessTokenCookie, access, accessExp)
	uc.setCookie(w, middleware.RefreshTokenCookie, refresh, refreshExp)
	return AuthResponse{AccessToken: access, RefreshToken: refresh, ExpiresAt: accessExp}, nil
}

func (uc *UserController) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   uc.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (uc *UserController) sendWelcome(user models.User) {
	ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
	defer cancel()
	if err := uc.Mailer.Send(ctx, utils.WelcomeEmail(user)); err != nil {
		uc.logger.WithError(err).WithField("user_id", user.ID.Hex()).Warn("welcome email not sent")
	}
}
