package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"securenight/backend/snd/internal/audit"
	"securenight/backend/snd/internal/capacity"
	"securenight/backend/snd/internal/devices"
	"securenight/backend/snd/internal/partitions"
	"securenight/backend/snd/pkg/httpx"
)

func (s *Server) handlePartitionsList(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r, 10)
	q := r.URL.Query()
	var list []partitions.Partition
	if deviceID := q.Get("device_id"); deviceID != "" {
		list = s.partitions.ListByDevice(deviceID)
	} else {
		list = s.partitions.List()
	}
	status := q.Get("status")
	format := q.Get("format")
	if status != "" || format != "" {
		filtered := make([]partitions.Partition, 0, len(list))
		for _, p := range list {
			if status != "" && p.Status != status {
				continue
			}
			if format != "" && p.Format != format {
				continue
			}
			filtered = append(filtered, p)
		}
		list = filtered
	}
	paginate(w, "partitions", list, page, perPage)
}

func (s *Server) handlePartitionGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.partitions.Get(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteTypedError(w, http.StatusNotFound, "partition.not_found", "partition not found", 0)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"partition": p})
}

// handlePartitionCreate allocates a partition after checking the requested
// size against the device's remaining free space. The check runs here, not
// in the client, so a stale dashboard cannot over-allocate.
func (s *Server) handlePartitionCreate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}
	if msg, ok := validateBody(partitionSchemaLoader, raw); !ok {
		httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", msg, 0)
		return
	}
	var body partitionBody
	if err := json.Unmarshal(raw, &body); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}
	body.normalize()

	d, err := s.devices.Get(body.DeviceID)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusNotFound, "device.not_found", "device not found", 0)
		return
	}
	if d.Status != devices.StatusActive {
		httpx.WriteTypedError(w, http.StatusBadRequest, "device.inactive", "device is not active", 0)
		return
	}

	free, err := capacity.FreeSpace(d.Capacity, ledgerPartitions(s.partitions.ListByDevice(d.ID)), "")
	if err != nil {
		s.writeCapacityError(w, r, err)
		return
	}
	if err := capacity.ValidateNewSize(body.Size, free); err != nil {
		s.writeCapacityError(w, r, err)
		return
	}

	if body.Status == "" {
		body.Status = partitions.StatusActive
	}
	p, err := s.partitions.Create(r.Context(), partitions.Partition{
		ID:       uuid.NewString(),
		DeviceID: d.ID,
		Name:     body.Name,
		Size:     body.Size,
		Format:   body.Format,
		Status:   body.Status,
	})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not create partition")
		return
	}
	s.record(r, audit.TypePartition, fmt.Sprintf("partition %s created on %s", p.Name, d.Name),
		audit.StatusSuccess, fmt.Sprintf("%s %s", p.Size, p.Format))
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"partition": p})
}

// writeCapacityError maps ledger errors to their API envelopes.
func (s *Server) writeCapacityError(w http.ResponseWriter, r *http.Request, err error) {
	var exceeds *capacity.SizeExceedsFreeError
	var corrupt *capacity.CorruptPartitionSizeError
	var unparsable *capacity.UnparsableCapacityError
	switch {
	case errors.As(err, &exceeds):
		s.record(r, audit.TypePartition, "partition allocation refused", audit.StatusWarning, err.Error())
		httpx.WriteErrorWithDetails(w, http.StatusBadRequest, "partition.size_exceeds_free",
			err.Error(), map[string]any{"requested_gb": exceeds.RequestedGB, "free_gb": exceeds.FreeGB})
	case errors.As(err, &corrupt):
		httpx.WriteErrorWithDetails(w, http.StatusConflict, "partition.corrupt_size",
			err.Error(), map[string]any{"partition_id": corrupt.PartitionID})
	case errors.As(err, &unparsable):
		httpx.WriteTypedError(w, http.StatusConflict, "device.invalid_capacity", err.Error(), 0)
	case errors.Is(err, capacity.ErrInvalidFormat):
		httpx.WriteTypedError(w, http.StatusBadRequest, "partition.invalid_size", "invalid size format", 0)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// handlePartitionUpdate mutates name and status only; size, format and
// device are fixed at creation.
func (s *Server) handlePartitionUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body partitionUpdateBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}
	body.normalize()
	p, err := s.partitions.Update(r.Context(), id, func(p *partitions.Partition) error {
		if body.Name != nil {
			p.Name = *body.Name
		}
		if body.Status != nil {
			if *body.Status != partitions.StatusActive && *body.Status != partitions.StatusInactive {
				return errors.New("status must be active or inactive")
			}
			p.Status = *body.Status
		}
		return nil
	})
	if errors.Is(err, partitions.ErrNotFound) {
		httpx.WriteTypedError(w, http.StatusNotFound, "partition.not_found", "partition not found", 0)
		return
	}
	if err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", err.Error(), 0)
		return
	}
	s.record(r, audit.TypePartition, fmt.Sprintf("partition %s updated", p.Name), audit.StatusSuccess, "")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"partition": p})
}

func (s *Server) handlePartitionDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.partitions.Get(id)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusNotFound, "partition.not_found", "partition not found", 0)
		return
	}
	if n := s.files.CountByPartition(id); n > 0 {
		httpx.WriteErrorWithDetails(w, http.StatusBadRequest, "partition.has_files",
			"partition still contains files", map[string]any{"file_count": n})
		return
	}
	if err := s.partitions.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not delete partition")
		return
	}
	s.record(r, audit.TypePartition, fmt.Sprintf("partition %s deleted", p.Name), audit.StatusWarning, "")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}
