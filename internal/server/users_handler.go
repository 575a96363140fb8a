package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"securenight/backend/snd/internal/audit"
	"securenight/backend/snd/internal/auth/hash"
	"securenight/backend/snd/internal/fingerprint"
	"securenight/backend/snd/internal/users"
	"securenight/backend/snd/pkg/httpx"
	"securenight/backend/snd/pkg/validate"
)

func (s *Server) handleUsersList(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r, 10)
	list := s.users.List()
	dtos := make([]userDTO, 0, len(list))
	for _, u := range list {
		dtos = append(dtos, toUserDTO(u))
	}
	paginate(w, "users", dtos, page, perPage)
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller, _ := userFrom(r.Context())
	if !caller.IsAdmin() && caller.ID != id {
		httpx.WriteTypedError(w, http.StatusForbidden, "user.forbidden", "cannot view other accounts", 0)
		return
	}
	u, err := s.users.Get(id)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusNotFound, "user.not_found", "user not found", 0)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(u)})
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
		Role     string `json:"role"`
		Active   *bool  `json:"active"`
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
	role := body.Role
	if role == "" {
		role = users.RoleClient
	}
	if role != users.RoleAdmin && role != users.RoleClient {
		httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", "role must be admin or client", 0)
		return
	}
	active := true
	if body.Active != nil {
		active = *body.Active
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
		Role:         role,
		Active:       active,
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
	s.record(r, audit.TypeUser, fmt.Sprintf("user %s created", u.Username), audit.StatusSuccess, "")
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"user": toUserDTO(u)})
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Phone    *string `json:"phone"`
		Password *string `json:"password"`
		Role     *string `json:"role"`
		Active   *bool   `json:"active"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}

	u, err := s.users.Update(r.Context(), id, func(u *users.User) error {
		if body.Username != nil {
			if err := validate.Username(*body.Username); err != nil {
				return err
			}
			u.Username = *body.Username
		}
		if body.Email != nil {
			if err := validate.Email(*body.Email); err != nil {
				return err
			}
			u.Email = *body.Email
		}
		if body.Phone != nil {
			if err := validate.Phone(*body.Phone); err != nil {
				return err
			}
			u.Phone = *body.Phone
		}
		if body.Password != nil {
			if err := validate.Password(*body.Password); err != nil {
				return err
			}
			phc, err := hash.Password(*body.Password)
			if err != nil {
				return err
			}
			u.PasswordHash = phc
		}
		if body.Role != nil {
			if *body.Role != users.RoleAdmin && *body.Role != users.RoleClient {
				return errors.New("role must be admin or client")
			}
			u.Role = *body.Role
		}
		if body.Active != nil {
			u.Active = *body.Active
		}
		return nil
	})
	if errors.Is(err, users.ErrNotFound) {
		httpx.WriteTypedError(w, http.StatusNotFound, "user.not_found", "user not found", 0)
		return
	}
	if err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", err.Error(), 0)
		return
	}
	s.record(r, audit.TypeUser, fmt.Sprintf("user %s updated", u.Username), audit.StatusSuccess, "")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(u)})
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller, _ := userFrom(r.Context())
	if caller.ID == id {
		httpx.WriteTypedError(w, http.StatusBadRequest, "user.self_delete", "cannot delete your own account", 0)
		return
	}
	u, err := s.users.Get(id)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusNotFound, "user.not_found", "user not found", 0)
		return
	}
	if err := s.users.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not delete user")
		return
	}
	s.record(r, audit.TypeUser, fmt.Sprintf("user %s deleted", u.Username), audit.StatusWarning, "")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleFingerprintUpdate enrolls a capture artifact for the calling
// account (the dashboard's scanner dialog posts here).
func (s *Server) handleFingerprintUpdate(w http.ResponseWriter, r *http.Request) {
	caller, _ := userFrom(r.Context())
	s.enrollFingerprint(w, r, caller.ID)
}

// handleFingerprintRegister enrolls for an explicit account. Users may only
// enroll their own fingerprints; admins may enroll for anyone.
func (s *Server) handleFingerprintRegister(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller, _ := userFrom(r.Context())
	if !caller.IsAdmin() && caller.ID != id {
		httpx.WriteTypedError(w, http.StatusForbidden, "user.forbidden", "cannot enroll fingerprints for other accounts", 0)
		return
	}
	s.enrollFingerprint(w, r, id)
}

// enrollFingerprint hashes the artifact and appends it to the account's
// registered list.
func (s *Server) enrollFingerprint(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Fingerprint string `json:"fingerprint"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}
	h, err := fingerprint.Hash(body.Fingerprint)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "fingerprint.invalid", "invalid fingerprint artifact", 0)
		return
	}
	u, err := s.users.Update(r.Context(), id, func(u *users.User) error {
		for _, existing := range u.FingerprintHashes {
			if existing == h {
				return errors.New("fingerprint already registered")
			}
		}
		u.FingerprintHashes = append(u.FingerprintHashes, h)
		return nil
	})
	if errors.Is(err, users.ErrNotFound) {
		httpx.WriteTypedError(w, http.StatusNotFound, "user.not_found", "user not found", 0)
		return
	}
	if err != nil {
		httpx.WriteTypedError(w, http.StatusConflict, "fingerprint.duplicate", err.Error(), 0)
		return
	}
	s.record(r, audit.TypeUser, fmt.Sprintf("fingerprint enrolled for %s", u.Username), audit.StatusSuccess, "")
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"fingerprint_count": len(u.FingerprintHashes)})
}
