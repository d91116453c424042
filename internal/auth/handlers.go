package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/buildtrack/buildtrack-backend/internal/apperr"
	"github.com/buildtrack/buildtrack-backend/internal/httputil"
	"github.com/buildtrack/buildtrack-backend/internal/middleware"
	"github.com/buildtrack/buildtrack-backend/internal/utils"
)

type Handler struct {
	db           *gorm.DB
	sessionTTL   time.Duration
	secureCookie bool
	validate     *validator.Validate
}

func NewHandler(d *gorm.DB, sessionTTL time.Duration, secureCookie bool) *Handler {
	if sessionTTL <= 0 {
		sessionTTL = 6 * time.Hour
	}
	return &Handler{
		db:           d,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

type registerRequest struct {
	Username  string  `json:"username" validate:"required,max=64"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		httputil.WriteError(w, r, "Register", "", err, "Username and password are required")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	var existing User
	err := h.db.WithContext(r.Context()).First(&existing, "username = ?", req.Username).Error
	if err == nil {
		httputil.WriteMessage(w, http.StatusConflict, "Username already taken")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		httputil.WriteError(w, r, "Register", "", err, "Failed to register user")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteError(w, r, "Register", "", err, "Server error hashing password")
		return
	}

	user := User{
		UserID:         utils.GenerateUUID(),
		Username:       req.Username,
		HashedPassword: string(hashed),
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
	}
	if err := h.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			httputil.WriteMessage(w, http.StatusConflict, "Username already taken")
			return
		}
		httputil.WriteError(w, r, "Register", "", err, "Failed to register user")
		return
	}

	hlog.FromRequest(r).Info().Str("user_id", user.UserID).Msg("user registered")
	httputil.WriteJSON(w, http.StatusCreated, LoginResponse{UserID: user.UserID, Username: user.Username})
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		httputil.WriteError(w, r, "Login", "", err, "Invalid Data")
		return
	}

	var user User
	if err := h.db.WithContext(r.Context()).First(&user, "username = ?", req.Username).Error; err != nil {
		httputil.WriteMessage(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		httputil.WriteMessage(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}

	session := Session{
		SessionID: utils.GenerateUUID(),
		UserID:    user.UserID,
		ExpiresAt: time.Now().Add(h.sessionTTL),
	}
	// One session per user: a new login replaces the previous one.
	err := h.db.WithContext(r.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id", "expires_at"}),
	}).Create(&session).Error
	if err != nil {
		httputil.WriteError(w, r, "Login", user.UserID, err, "Failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.SessionID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
	})

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{UserID: user.UserID, Username: user.Username})
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil {
		httputil.WriteMessage(w, http.StatusUnauthorized, "Couldn't find cookie")
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(&Session{}, "session_id = ?", cookie.Value).Error; err != nil {
		httputil.WriteError(w, r, "Logout", "", err, "Failed to log out")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   middleware.SessionCookieName,
		Value:  "",
		MaxAge: -1,
		Path:   "/",
	})
	httputil.WriteMessage(w, http.StatusOK, "Logout successful")
}

// MeHandler answers GET /api/auth/user with the signed-in user.
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var user User
	err := h.db.WithContext(r.Context()).First(&user, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = apperr.NotFound("user", userID)
	}
	if err != nil {
		httputil.WriteError(w, r, "GetUser", userID, err, "Failed to fetch user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

func (h *Handler) UpdatePasswordHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req updatePasswordRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		httputil.WriteError(w, r, "UpdatePassword", userID, err, "Current and new password are required")
		return
	}

	var user User
	if err := h.db.WithContext(r.Context()).First(&user, "user_id = ?", userID).Error; err != nil {
		httputil.WriteMessage(w, http.StatusUnauthorized, "Couldn't find user")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.CurrentPassword)); err != nil {
		httputil.WriteMessage(w, http.StatusUnauthorized, "Invalid current password")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteError(w, r, "UpdatePassword", userID, err, "Server error hashing password")
		return
	}

	if err := h.db.WithContext(r.Context()).Model(&user).Update("hashed_password", string(hashed)).Error; err != nil {
		httputil.WriteError(w, r, "UpdatePassword", userID, err, "Failed to update password")
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Password updated")
}
