package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"recipebox/logging"
	"recipebox/models"
	"recipebox/utils"
)

type UserStore interface {
	Create(ctx context.Context, username, password string) (models.User, error)
	Verify(ctx context.Context, username, password string) (models.User, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID, username string) (string, time.Time, error)
}

type Handlers struct {
	users   UserStore
	tokens  TokenIssuer
	timeout time.Duration
}

func NewHandlers(users UserStore, tokens TokenIssuer, timeout time.Duration) *Handlers {
	return &Handlers{users: users, tokens: tokens, timeout: timeout}
}

type credentials struct {
	Username string `json:"username" validate:"required,min=3,max=64,alphanum"`
	// bcrypt ignores bytes past 72.
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// Register handles POST /api/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req credentials
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.users.Create(ctx, req.Username, req.Password)
	if errors.Is(err, ErrUserExists) {
		utils.RespondWithError(w, http.StatusConflict, "Username already exists")
		return
	}
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to register user")
		return
	}

	logging.Ctx(r.Context()).Info().Str("username", user.Username).Msg("user registered")
	h.respondWithToken(w, r, http.StatusCreated, user)
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req credentials
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.users.Verify(ctx, req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to log in")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

func (h *Handlers) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user models.User) {
	token, expires, err := h.tokens.Issue(user.ID.Hex(), user.Username)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("token signing failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	utils.RespondWithJSON(w, status, tokenResponse{Token: token, ExpiresAt: expires, User: user})
}
