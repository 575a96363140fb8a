package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"securenight/backend/snd/internal/audit"
	"securenight/backend/snd/internal/auth/hash"
	"securenight/backend/snd/internal/auth/jwt"
	"securenight/backend/snd/internal/fingerprint"
	"securenight/backend/snd/internal/users"
	"securenight/backend/snd/pkg/httpx"
	"securenight/backend/snd/pkg/validate"
)

type userDTO struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	Role             string `json:"role"`
	Active           bool   `json:"active"`
	FingerprintCount int    `json:"fingerprint_count"`
	CreatedAt        string `json:"created_at"`
	LastLogin        string `json:"last_login,omitempty"`
}

func toUserDTO(u users.User) userDTO {
	return userDTO{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		Phone:            u.Phone,
		Role:             u.Role,
		Active:           u.Active,
		FingerprintCount: len(u.FingerprintHashes),
		CreatedAt:        u.CreatedAt,
		LastLogin:        u.LastLogin,
	}
}

// handleLogin authenticates with email+password or a fingerprint artifact
// and returns an access/refresh token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	allowed, _, resetAt := s.limiter.Allow("login:"+clientIP(r), s.cfg.LoginRateLimit, s.cfg.LoginRateWindow)
	if !allowed {
		retry := int(time.Until(resetAt).Seconds()) + 1
		httpx.WriteTypedError(w, http.StatusTooManyRequests, "auth.rate_limited", "too many login attempts", retry)
		return
	}

	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		Fingerprint string `json:"fingerprint"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}

	var u users.User
	var err error
	switch {
	case body.Fingerprint != "":
		u, err = s.loginByFingerprint(body.Fingerprint)
	case body.Email != "" && body.Password != "":
		u, err = s.loginByPassword(body.Email, body.Password)
	default:
		httpx.WriteTypedError(w, http.StatusBadRequest, "auth.missing_credentials", "email/password or fingerprint required", 0)
		return
	}
	if err != nil {
		s.audit.Save(r.Context(), audit.Entry{
			Type: audit.TypeAuth, Message: "login failed", Status: audit.StatusError,
			Details: err.Error(), Source: "api", IP: clientIP(r), Username: body.Email,
		})
		httpx.WriteTypedError(w, http.StatusUnauthorized, "auth.invalid_credentials", "invalid credentials", 0)
		return
	}
	if !u.Active {
		s.audit.Save(r.Context(), audit.Entry{
			Type: audit.TypeAuth, Message: "login refused for inactive account", Status: audit.StatusWarning,
			UserID: u.ID, Username: u.Username, Source: "api", IP: clientIP(r),
		})
		httpx.WriteTypedError(w, http.StatusForbidden, "auth.inactive", "account is inactive", 0)
		return
	}

	access, err := s.tokens.Access(u.ID, u.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	refresh, err := s.tokens.Refresh(u.ID, u.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "token issue failed")
		return
	}

	u, _ = s.users.Update(r.Context(), u.ID, func(u *users.User) error {
		u.LastLogin = time.Now().UTC().Format(time.RFC3339)
		return nil
	})
	s.audit.Save(r.Context(), audit.Entry{
		Type: audit.TypeAuth, Message: "login successful", Status: audit.StatusSuccess,
		UserID: u.ID, Username: u.Username, Source: "api", IP: clientIP(r),
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"user":          toUserDTO(u),
	})
}

func (s *Server) loginByPassword(email, password string) (users.User, error) {
	u, err := s.users.FindByEmail(email)
	if err != nil {
		// burn a verify anyway so the timing does not reveal account existence
		hash.Verify("$argon2id$v=19$m=65536,t=3,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", password)
		return users.User{}, errors.New("unknown email")
	}
	if !hash.Verify(u.PasswordHash, password) {
		return users.User{}, errors.New("wrong password")
	}
	return u, nil
}

func (s *Server) loginByFingerprint(artifact string) (users.User, error) {
	h, err := fingerprint.Hash(artifact)
	if err != nil {
		return users.User{}, fmt.Errorf("bad artifact: %w", err)
	}
	u, err := s.users.FindByFingerprintHash(h)
	if err != nil {
		return users.User{}, errors.New("fingerprint not recognized")
	}
	return u, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}
	for _, check := range []error{
		validate.Username(body.Username),
		validate.Email(body.Email),
		validate.Password(body.Password),
		validate.Phone(body.Phone),
	} {
		if check != nil {
			httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", check.Error(), 0)
			return
		}
	}

	phc, err := hash.Password(body.Password)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "password hashing failed")
		return
	}
	u, err := s.users.Create(r.Context(), users.User{
		ID:           uuid.NewString(),
		Username:     body.Username,
		Email:        body.Email,
		Phone:        body.Phone,
		PasswordHash: phc,
		Role:         users.RoleClient,
		Active:       true,
	})
	switch {
	case errors.Is(err, users.ErrDuplicateEmail):
		httpx.WriteTypedError(w, http.StatusConflict, "user.duplicate_email", "email already registered", 0)
		return
	case errors.Is(err, users.ErrDuplicateName):
		httpx.WriteTypedError(w, http.StatusConflict, "user.duplicate_username", "username already taken", 0)
		return
	case err != nil:
		httpx.WriteError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	s.audit.Save(r.Context(), audit.Entry{
		Type: audit.TypeUser, Message: "user registered", Status: audit.StatusSuccess,
		UserID: u.ID, Username: u.Username, Source: "api", IP: clientIP(r),
	})
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"user": toUserDTO(u)})
}

// handleRefresh accepts a refresh token as bearer and mints a new access
// token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Verify(bearerToken(r), jwt.UseRefresh)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusUnauthorized, "auth.invalid_refresh", "invalid refresh token", 0)
		return
	}
	u, err := s.users.Get(claims.UserID)
	if err != nil || !u.Active {
		httpx.WriteTypedError(w, http.StatusUnauthorized, "auth.invalid_refresh", "invalid refresh token", 0)
		return
	}
	access, err := s.tokens.Access(u.ID, u.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"access_token": access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	_, _ = s.users.Update(r.Context(), u.ID, func(u *users.User) error {
		u.LastLogout = time.Now().UTC().Format(time.RFC3339)
		return nil
	})
	s.record(r, audit.TypeAuth, "logout", audit.StatusSuccess, "")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(u)})
}

// handleResetPasswordRequest stores an opaque reset token with a one-hour
// expiry. The response never reveals whether the email exists.
func (s *Server) handleResetPasswordRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}
	if u, err := s.users.FindByEmail(body.Email); err == nil {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err == nil {
			token := hex.EncodeToString(buf)
			expiry := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
			_, _ = s.users.Update(r.Context(), u.ID, func(u *users.User) error {
				u.ResetToken = token
				u.ResetTokenExpiry = expiry
				return nil
			})
			// Delivery (mail/SMS) is out of scope; operators read the token
			// from the log.
			s.logger.Warn().Str("user", u.Username).Str("reset_token", token).Msg("password reset requested")
			s.audit.Save(r.Context(), audit.Entry{
				Type: audit.TypeAuth, Message: "password reset requested", Status: audit.StatusWarning,
				UserID: u.ID, Username: u.Username, Source: "api", IP: clientIP(r),
			})
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}
	if err := validate.Password(body.Password); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", err.Error(), 0)
		return
	}
	var target users.User
	found := false
	for _, u := range s.users.List() {
		if body.Token != "" && u.ResetToken == body.Token {
			target = u
			found = true
			break
		}
	}
	if !found {
		httpx.WriteTypedError(w, http.StatusBadRequest, "auth.invalid_reset_token", "invalid or expired reset token", 0)
		return
	}
	if expiry, err := time.Parse(time.RFC3339, target.ResetTokenExpiry); err != nil || time.Now().UTC().After(expiry) {
		httpx.WriteTypedError(w, http.StatusBadRequest, "auth.invalid_reset_token", "invalid or expired reset token", 0)
		return
	}
	phc, err := hash.Password(body.Password)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "password hashing failed")
		return
	}
	_, err = s.users.Update(r.Context(), target.ID, func(u *users.User) error {
		u.PasswordHash = phc
		u.ResetToken = ""
		u.ResetTokenExpiry = ""
		return nil
	})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not update password")
		return
	}
	s.audit.Save(r.Context(), audit.Entry{
		Type: audit.TypeAuth, Message: "password reset completed", Status: audit.StatusSuccess,
		UserID: target.ID, Username: target.Username, Source: "api", IP: clientIP(r),
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}
