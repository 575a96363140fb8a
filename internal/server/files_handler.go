package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"securenight/backend/snd/internal/audit"
	"securenight/backend/snd/internal/filecrypt"
	"securenight/backend/snd/internal/files"
	"securenight/backend/snd/internal/fingerprint"
	"securenight/backend/snd/internal/partitions"
	"securenight/backend/snd/internal/users"
	"securenight/backend/snd/pkg/httpx"
	"securenight/backend/snd/pkg/validate"
)

const maxUploadBytes = 32 << 20

type fileDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PartitionID string `json:"partition_id"`
	OwnerID     string `json:"owner_id"`
	Size        int64  `json:"size"`
	FileType    string `json:"file_type"`
	Encrypted   bool   `json:"encrypted"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Data        string `json:"data,omitempty"`
}

func toFileDTO(f files.File) fileDTO {
	return fileDTO{
		ID:          f.ID,
		Name:        f.Name,
		PartitionID: f.PartitionID,
		OwnerID:     f.OwnerID,
		Size:        f.Size,
		FileType:    f.FileType,
		Encrypted:   f.Encrypted,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// fileForCaller loads a file and enforces ownership: clients touch only
// their own files, admins touch everything.
func (s *Server) fileForCaller(r *http.Request) (files.File, users.User, error) {
	caller, _ := userFrom(r.Context())
	f, err := s.files.Get(chi.URLParam(r, "id"))
	if err != nil {
		return files.File{}, caller, err
	}
	if !caller.IsAdmin() && f.OwnerID != caller.ID {
		return files.File{}, caller, errForbidden
	}
	return f, caller, nil
}

var errForbidden = errors.New("forbidden")

func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) {
	caller, _ := userFrom(r.Context())
	owner := caller.ID
	if caller.IsAdmin() {
		owner = "" // admins see everything
	}
	page, perPage := pageParams(r, 10)
	list := s.files.List(owner)
	q := r.URL.Query()
	if fileType, partitionID := q.Get("file_type"), q.Get("partition_id"); fileType != "" || partitionID != "" {
		filtered := make([]files.File, 0, len(list))
		for _, f := range list {
			if fileType != "" && !strings.EqualFold(f.FileType, fileType) {
				continue
			}
			if partitionID != "" && f.PartitionID != partitionID {
				continue
			}
			filtered = append(filtered, f)
		}
		list = filtered
	}
	includeData := q.Get("include_data") == "true"

	dtos := make([]fileDTO, 0, len(list))
	for _, f := range list {
		dto := toFileDTO(f)
		if includeData {
			if payload, err := s.decryptForOwner(f); err == nil {
				dto.Data = base64.StdEncoding.EncodeToString(payload)
			}
		}
		dtos = append(dtos, dto)
	}
	paginate(w, "files", dtos, page, perPage)
}

// decryptForOwner returns the plaintext payload, unlocking encrypted files
// with the owner's first registered fingerprint hash.
func (s *Server) decryptForOwner(f files.File) ([]byte, error) {
	payload, err := s.files.ReadPayload(f.ID)
	if err != nil {
		return nil, err
	}
	if !f.Encrypted {
		return payload, nil
	}
	owner, err := s.users.Get(f.OwnerID)
	if err != nil {
		return nil, err
	}
	if len(owner.FingerprintHashes) == 0 {
		return nil, errors.New("owner has no registered fingerprints")
	}
	return filecrypt.Decrypt(payload, owner.FingerprintHashes[0])
}

// handleFileUpload stores a multipart upload. Files are encrypted by
// default; that requires the owner to have at least one registered
// fingerprint hash, the first of which is the key.
func (s *Server) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	caller, _ := userFrom(r.Context())
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "file.invalid_upload", "invalid multipart body", 0)
		return
	}
	src, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "file.missing", "file field is required", 0)
		return
	}
	defer src.Close()

	partitionID := r.FormValue("partition_id")
	p, err := s.partitions.Get(partitionID)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusNotFound, "partition.not_found", "partition not found", 0)
		return
	}
	if p.Status != partitions.StatusActive {
		httpx.WriteTypedError(w, http.StatusBadRequest, "partition.inactive", "partition is not active", 0)
		return
	}

	encrypt := r.FormValue("encrypt") != "false"

	var keyHash string
	if encrypt {
		if artifact := r.FormValue("fingerprint"); artifact != "" {
			if !fingerprint.Matches(artifact, caller.FingerprintHashes) {
				s.record(r, audit.TypeFile, "upload refused: fingerprint rejected", audit.StatusError, header.Filename)
				httpx.WriteTypedError(w, http.StatusUnauthorized, "file.credential_rejected",
					"fingerprint not recognized", 0)
				return
			}
		}
		if len(caller.FingerprintHashes) == 0 {
			httpx.WriteTypedError(w, http.StatusBadRequest, "file.no_fingerprints",
				"encrypting uploads requires a registered fingerprint", 0)
			return
		}
		keyHash = caller.FingerprintHashes[0]
	}

	payload, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not read upload")
		return
	}
	if len(payload) > maxUploadBytes {
		httpx.WriteTypedError(w, http.StatusRequestEntityTooLarge, "file.too_large", "upload exceeds size limit", 0)
		return
	}

	base, ext := files.SplitName(header.Filename)
	if err := validate.Name(base); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", err.Error(), 0)
		return
	}
	plainSize := int64(len(payload))
	stored := payload
	if encrypt {
		stored, err = filecrypt.Encrypt(payload, keyHash)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "encryption failed")
			return
		}
	}

	rec, err := s.files.Create(r.Context(), files.File{
		ID:          uuid.NewString(),
		Name:        base,
		PartitionID: p.ID,
		OwnerID:     caller.ID,
		Size:        plainSize,
		FileType:    strings.ToUpper(ext),
		Ext:         ext,
		Encrypted:   encrypt,
	}, stored)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not store file")
		return
	}
	if err := s.partitions.AdjustFiles(r.Context(), p.ID, 1); err != nil {
		s.logger.Error().Err(err).Str("partition", p.ID).Msg("file counter increment failed")
	}
	s.record(r, audit.TypeFile, fmt.Sprintf("file %s uploaded to %s", rec.Name, p.Name),
		audit.StatusSuccess, fmt.Sprintf("encrypted=%t size=%d", encrypt, plainSize))
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"file": toFileDTO(rec)})
}

// handleFileGet returns metadata plus the decrypted payload. Encrypted
// files unlock with the owner's first registered hash; without one the file
// is unreadable.
func (s *Server) handleFileGet(w http.ResponseWriter, r *http.Request) {
	f, _, err := s.fileForCaller(r)
	if err != nil {
		s.writeFileAccessError(w, err)
		return
	}
	payload, err := s.decryptForOwner(f)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "file.no_fingerprints",
			"file cannot be decrypted without a registered fingerprint", 0)
		return
	}
	dto := toFileDTO(f)
	dto.Data = base64.StdEncoding.EncodeToString(payload)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"file": dto})
}

func (s *Server) handleFileRename(w http.ResponseWriter, r *http.Request) {
	f, _, err := s.fileForCaller(r)
	if err != nil {
		s.writeFileAccessError(w, err)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}
	if err := validate.Name(body.Name); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", err.Error(), 0)
		return
	}
	rec, err := s.files.Rename(r.Context(), f.ID, body.Name)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not rename file")
		return
	}
	s.record(r, audit.TypeFile, fmt.Sprintf("file %s renamed to %s", f.Name, rec.Name), audit.StatusSuccess, "")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"file": toFileDTO(rec)})
}

func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	f, _, err := s.fileForCaller(r)
	if err != nil {
		s.writeFileAccessError(w, err)
		return
	}
	if err := s.files.Delete(r.Context(), f.ID); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not delete file")
		return
	}
	if err := s.partitions.AdjustFiles(r.Context(), f.PartitionID, -1); err != nil &&
		!errors.Is(err, partitions.ErrNotFound) {
		s.logger.Error().Err(err).Str("partition", f.PartitionID).Msg("file counter decrement failed")
	}
	s.record(r, audit.TypeFile, fmt.Sprintf("file %s deleted", f.Name), audit.StatusWarning, "")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleFilePreview streams the plaintext inline for in-browser viewing.
func (s *Server) handleFilePreview(w http.ResponseWriter, r *http.Request) {
	f, payload, ok := s.unlockForServe(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", files.MimeType(f.Ext))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fullName(f)))
	_, _ = w.Write(payload)
	s.record(r, audit.TypeFile, fmt.Sprintf("file %s previewed", f.Name), audit.StatusSuccess, "")
}

// handleFileDownload returns the plaintext as a JSON envelope with base64
// file_data; the dashboard builds the client-side blob from it.
func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	f, payload, ok := s.unlockForServe(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"file_name": fullName(f),
		"file_type": f.FileType,
		"file_size": len(payload),
		"file_data": base64.StdEncoding.EncodeToString(payload),
		"mime_type": files.MimeType(f.Ext),
	})
	s.record(r, audit.TypeFile, fmt.Sprintf("file %s downloaded", f.Name), audit.StatusSuccess, "")
}

// unlockForServe loads the file and enforces ownership. Encrypted files
// demand a fingerprint artifact in the query string and verify it against
// the owner's registered hashes before decrypting.
func (s *Server) unlockForServe(w http.ResponseWriter, r *http.Request) (files.File, []byte, bool) {
	f, _, err := s.fileForCaller(r)
	if err != nil {
		s.writeFileAccessError(w, err)
		return files.File{}, nil, false
	}

	payload, err := s.files.ReadPayload(f.ID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not read file")
		return files.File{}, nil, false
	}
	if !f.Encrypted {
		return f, payload, true
	}

	owner, err := s.users.Get(f.OwnerID)
	if err != nil || len(owner.FingerprintHashes) == 0 {
		httpx.WriteTypedError(w, http.StatusBadRequest, "file.no_fingerprints",
			"file cannot be decrypted without a registered fingerprint", 0)
		return files.File{}, nil, false
	}
	artifact := r.URL.Query().Get("fingerprint")
	if !fingerprint.Matches(artifact, owner.FingerprintHashes) {
		s.record(r, audit.TypeFile, fmt.Sprintf("credential rejected for file %s", f.Name),
			audit.StatusError, "")
		httpx.WriteTypedError(w, http.StatusUnauthorized, "file.credential_rejected",
			"fingerprint not recognized", 0)
		return files.File{}, nil, false
	}
	payload, err = filecrypt.Decrypt(payload, owner.FingerprintHashes[0])
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "decryption failed")
		return files.File{}, nil, false
	}
	return f, payload, true
}

func fullName(f files.File) string {
	if f.Ext != "" {
		return f.Name + "." + f.Ext
	}
	return f.Name
}

func (s *Server) writeFileAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errForbidden):
		httpx.WriteTypedError(w, http.StatusForbidden, "file.forbidden", "not your file", 0)
	case errors.Is(err, files.ErrNotFound):
		httpx.WriteTypedError(w, http.StatusNotFound, "file.not_found", "file not found", 0)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
