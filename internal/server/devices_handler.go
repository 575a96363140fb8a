package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"securenight/backend/snd/internal/audit"
	"securenight/backend/snd/internal/capacity"
	"securenight/backend/snd/internal/devices"
	"securenight/backend/snd/internal/partitions"
	"securenight/backend/snd/pkg/httpx"
)

type deviceDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Capacity    string   `json:"capacity"`
	Status      string   `json:"status"`
	Partitions  int      `json:"partitions"`
	UsedGB      *float64 `json:"used_gb,omitempty"`
	FreeGB      *float64 `json:"free_gb,omitempty"`
	FreeDisplay string   `json:"free_display,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// gbDisplay renders a GB amount as a human string ("1.5 TiB", "250 GiB").
func gbDisplay(gb float64) string {
	return humanize.IBytes(uint64(gb * 1024 * 1024 * 1024))
}

func (s *Server) toDeviceDTO(d devices.Device) deviceDTO {
	parts := s.partitions.ListByDevice(d.ID)
	dto := deviceDTO{
		ID:         d.ID,
		Name:       d.Name,
		Type:       d.Type,
		Capacity:   d.Capacity,
		Status:     d.Status,
		Partitions: len(parts),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	free, err := capacity.FreeSpace(d.Capacity, ledgerPartitions(parts), "")
	if err != nil {
		// usage stays unset for records with unparsable sizes
		return dto
	}
	capGB, _ := capacity.ParseToGB(d.Capacity)
	used := capGB - free
	dto.UsedGB = &used
	dto.FreeGB = &free
	dto.FreeDisplay = gbDisplay(free)
	return dto
}

func ledgerPartitions(parts []partitions.Partition) []capacity.Partition {
	out := make([]capacity.Partition, 0, len(parts))
	for _, p := range parts {
		out = append(out, capacity.Partition{ID: p.ID, SizeRaw: p.Size})
	}
	return out
}

func (s *Server) handleDevicesList(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r, 10)
	list := s.devices.List()
	dtos := make([]deviceDTO, 0, len(list))
	for _, d := range list {
		dtos = append(dtos, s.toDeviceDTO(d))
	}
	paginate(w, "devices", dtos, page, perPage)
}

func (s *Server) handleDeviceGet(w http.ResponseWriter, r *http.Request) {
	d, err := s.devices.Get(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteTypedError(w, http.StatusNotFound, "device.not_found", "device not found", 0)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"device":     s.toDeviceDTO(d),
		"partitions": s.partitions.ListByDevice(d.ID),
	})
}

func (s *Server) handleDeviceCreate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}
	if msg, ok := validateBody(deviceSchemaLoader, raw); !ok {
		httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", msg, 0)
		return
	}
	var body deviceBody
	if err := json.Unmarshal(raw, &body); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}
	body.normalize()
	if _, err := capacity.ParseToGB(body.Capacity); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "device.invalid_capacity",
			fmt.Sprintf("unparsable capacity %q", body.Capacity), 0)
		return
	}
	if body.Status == "" {
		body.Status = devices.StatusActive
	}
	d, err := s.devices.Create(r.Context(), devices.Device{
		ID:       uuid.NewString(),
		Name:     body.Name,
		Type:     body.Type,
		Capacity: body.Capacity,
		Status:   body.Status,
	})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not create device")
		return
	}
	s.record(r, audit.TypeDevice, fmt.Sprintf("device %s created", d.Name), audit.StatusSuccess, d.Capacity)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"device": s.toDeviceDTO(d)})
}

func (s *Server) handleDeviceUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body deviceUpdateBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "request.invalid_json", "invalid request body", 0)
		return
	}
	body.normalize()

	// shrinking below the allocated total is refused
	if body.Capacity != nil {
		newCapGB, err := capacity.ParseToGB(*body.Capacity)
		if err != nil {
			httpx.WriteTypedError(w, http.StatusBadRequest, "device.invalid_capacity",
				fmt.Sprintf("unparsable capacity %q", *body.Capacity), 0)
			return
		}
		usedGB := 0.0
		for _, p := range s.partitions.ListByDevice(id) {
			gb, err := capacity.ParseToGB(p.Size)
			if err != nil {
				httpx.WriteTypedError(w, http.StatusConflict, "partition.corrupt_size",
					fmt.Sprintf("partition %s has corrupt size %q", p.ID, p.Size), 0)
				return
			}
			usedGB += gb
		}
		if newCapGB < usedGB {
			httpx.WriteErrorWithDetails(w, http.StatusBadRequest, "device.capacity_below_used",
				"capacity is smaller than allocated partitions",
				map[string]any{"used_gb": usedGB, "requested_gb": newCapGB})
			return
		}
	}

	d, err := s.devices.Update(r.Context(), id, func(d *devices.Device) error {
		if body.Name != nil {
			d.Name = *body.Name
		}
		if body.Type != nil {
			d.Type = *body.Type
		}
		if body.Capacity != nil {
			d.Capacity = *body.Capacity
		}
		if body.Status != nil {
			if *body.Status != devices.StatusActive && *body.Status != devices.StatusInactive {
				return errors.New("status must be active or inactive")
			}
			d.Status = *body.Status
		}
		return nil
	})
	if errors.Is(err, devices.ErrNotFound) {
		httpx.WriteTypedError(w, http.StatusNotFound, "device.not_found", "device not found", 0)
		return
	}
	if err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", err.Error(), 0)
		return
	}
	s.record(r, audit.TypeDevice, fmt.Sprintf("device %s updated", d.Name), audit.StatusSuccess, "")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"device": s.toDeviceDTO(d)})
}

// handleDeviceDelete refuses when any partition on the device still holds
// files, then cascades the empty partitions away with the device.
func (s *Server) handleDeviceDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.devices.Get(id)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusNotFound, "device.not_found", "device not found", 0)
		return
	}

	fileCount := 0
	for _, p := range s.partitions.ListByDevice(id) {
		fileCount += s.files.CountByPartition(p.ID)
	}
	if fileCount > 0 {
		httpx.WriteErrorWithDetails(w, http.StatusBadRequest, "device.has_files",
			"device partitions still contain files",
			map[string]any{"file_count": fileCount})
		return
	}

	removed, err := s.partitions.DeleteByDevice(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not delete partitions")
		return
	}
	if err := s.devices.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not delete device")
		return
	}
	s.record(r, audit.TypeDevice, fmt.Sprintf("device %s deleted", d.Name), audit.StatusWarning,
		fmt.Sprintf("cascaded %d empty partitions", removed))
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "partitions_removed": removed})
}
