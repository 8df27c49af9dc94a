package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	"tanisma/internal/auth"
	"tanisma/internal/core"
	"tanisma/internal/logging"
	"tanisma/internal/store"
)

// sessionCookieName is the cookie carrying the signed session token.
const sessionCookieName = "auth_token"

const msgInvalidRequest = "Geçersiz istek"

type ctxKey string

const userIDCtxKey ctxKey = "userID"

// Replier produces a chat reply for a persona and conversation history.
type Replier interface {
	Reply(ctx context.Context, personName string, history []core.Message) core.Reply
}

type Handler struct {
	repo          store.Repository
	tokens        *auth.TokenService
	replier       Replier
	logger        logging.Logger
	secureCookies bool
}

func NewHandler(repo store.Repository, tokens *auth.TokenService, replier Replier, logger logging.Logger, secureCookies bool) *Handler {
	return &Handler{
		repo:          repo,
		tokens:        tokens,
		replier:       replier,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookies,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookies,
	})
}

// sessionUserID resolves the session cookie to a user ID. Empty string
// means no valid session.
func (h *Handler) sessionUserID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	userID, err := h.tokens.Validate(cookie.Value)
	if err != nil {
		return ""
	}
	return userID
}

func (h *Handler) SessionAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := h.sessionUserID(r)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "Giriş gerekli")
			return
		}
		ctx := context.WithValue(r.Context(), userIDCtxKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type registerRequest struct {
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	PhotoDataURL string `json:"photoDataUrl"`
}

func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	phone := strings.TrimSpace(req.Phone)
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)

	if phone == "" || req.Password == "" || firstName == "" || lastName == "" || req.PhotoDataURL == "" {
		writeError(w, http.StatusBadRequest, "Telefon, şifre, ad, soyad ve fotoğraf zorunlu")
		return
	}
	if !strings.HasPrefix(req.PhotoDataURL, "data:image/") {
		writeError(w, http.StatusBadRequest, "Fotoğraf formatı geçersiz")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error(r.Context(), "failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "Kayıt sırasında hata oluştu")
		return
	}

	user, err := h.repo.CreateUser(r.Context(), &store.User{
		Phone:        phone,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		PhotoDataURL: req.PhotoDataURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPhoneExists):
			writeError(w, http.StatusConflict, "Bu telefon numarası zaten kayıtlı")
		case errors.Is(err, store.ErrUnavailable):
			h.logger.Error(r.Context(), "store unreachable during register", "error", err)
			writeError(w, http.StatusServiceUnavailable, "Veritabanına bağlanılamadı")
		default:
			h.logger.Error(r.Context(), "failed to create user", "error", err)
			writeError(w, http.StatusInternalServerError, "Kayıt sırasında hata oluştu")
		}
		return
	}

	token, err := h.tokens.Generate(user.ID)
	if err != nil {
		h.logger.Error(r.Context(), "failed to generate session token", "error", err)
		writeError(w, http.StatusInternalServerError, "Kayıt sırasında hata oluştu")
		return
	}
	h.setSessionCookie(w, token)

	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	phone := strings.TrimSpace(req.Phone)
	if phone == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Telefon ve şifre zorunlu")
		return
	}

	user, err := h.repo.GetUserByPhone(r.Context(), phone)
	if err != nil {
		h.logger.Error(r.Context(), "failed to look up user", "error", err)
		writeError(w, http.StatusInternalServerError, "Sunucu hatası")
		return
	}

	// Same message for unknown phone and wrong password: never reveal
	// which one was wrong.
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Telefon veya şifre hatalı")
		return
	}

	token, err := h.tokens.Generate(user.ID)
	if err != nil {
		h.logger.Error(r.Context(), "failed to generate session token", "error", err)
		writeError(w, http.StatusInternalServerError, "Sunucu hatası")
		return
	}
	h.setSessionCookie(w, token)

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// MeHandler resolves the current session to a user. It never errors to
// the caller: any failure degrades to {"user": null}.
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID := h.sessionUserID(r)
	if userID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}

	user, err := h.repo.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error(r.Context(), "failed to load current user", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type updateProfileRequest struct {
	FirstName    *string `json:"firstName"`
	LastName     *string `json:"lastName"`
	PhotoDataURL *string `json:"photoDataUrl"`
}

func (h *Handler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDCtxKey).(string)

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	var upd store.ProfileUpdate
	if req.FirstName != nil {
		firstName := strings.TrimSpace(*req.FirstName)
		if firstName == "" {
			writeError(w, http.StatusBadRequest, "Ad boş olamaz")
			return
		}
		upd.FirstName = &firstName
	}
	if req.LastName != nil {
		lastName := strings.TrimSpace(*req.LastName)
		if lastName == "" {
			writeError(w, http.StatusBadRequest, "Soyad boş olamaz")
			return
		}
		upd.LastName = &lastName
	}
	if req.PhotoDataURL != nil {
		if !strings.HasPrefix(*req.PhotoDataURL, "data:image/") {
			writeError(w, http.StatusBadRequest, "Fotoğraf formatı geçersiz")
			return
		}
		upd.PhotoDataURL = req.PhotoDataURL
	}
	if upd.Empty() {
		writeError(w, http.StatusBadRequest, "Güncellenecek alan yok")
		return
	}

	current, err := h.repo.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error(r.Context(), "failed to load user for profile update", "error", err)
		writeError(w, http.StatusInternalServerError, "Sunucu hatası")
		return
	}
	if current == nil {
		writeError(w, http.StatusNotFound, "Kullanıcı bulunamadı")
		return
	}

	// Archive the current values before mutating anything.
	version := &store.ProfileVersion{
		UserID:       current.ID,
		Phone:        current.Phone,
		FirstName:    current.FirstName,
		LastName:     current.LastName,
		PhotoDataURL: current.PhotoDataURL,
	}
	if err := h.repo.CreateProfileVersion(r.Context(), version); err != nil {
		h.logger.Error(r.Context(), "failed to archive profile version", "error", err)
		writeError(w, http.StatusInternalServerError, "Sunucu hatası")
		return
	}

	user, err := h.repo.UpdateProfile(r.Context(), userID, upd)
	if err != nil {
		h.logger.Error(r.Context(), "failed to update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "Sunucu hatası")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type updateLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *Handler) UpdateLocationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDCtxKey).(string)

	var req updateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	// Only finiteness is validated; out-of-range but finite coordinates
	// are stored as-is.
	if req.Latitude == nil || req.Longitude == nil ||
		math.IsNaN(*req.Latitude) || math.IsInf(*req.Latitude, 0) ||
		math.IsNaN(*req.Longitude) || math.IsInf(*req.Longitude, 0) {
		writeError(w, http.StatusBadRequest, "Konum bilgisi geçersiz")
		return
	}

	user, err := h.repo.UpdateLocation(r.Context(), userID, *req.Latitude, *req.Longitude)
	if err != nil {
		h.logger.Error(r.Context(), "failed to update location", "error", err)
		writeError(w, http.StatusInternalServerError, "Sunucu hatası")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type chatRequest struct {
	PersonName string          `json:"personName"`
	Messages   *[]core.Message `json:"messages"`
}

func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if req.PersonName == "" || req.Messages == nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	personName := strings.TrimSpace(req.PersonName)
	if personName == "" {
		personName = "Arkadaş"
	}

	history := make([]core.Message, 0, len(*req.Messages))
	for _, m := range *req.Messages {
		if m.Role != core.RoleMe && m.Role != core.RoleThem {
			continue
		}
		if text := []rune(m.Text); len(text) > core.MaxMessageLength {
			m.Text = string(text[:core.MaxMessageLength])
		}
		history = append(history, m)
	}

	reply := h.replier.Reply(r.Context(), personName, history)
	writeJSON(w, http.StatusOK, reply)
}
