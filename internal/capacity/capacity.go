// Package capacity implements free-space accounting for partitions allocated
// on a device with a declared capacity. Sizes are human-entered strings like
// "500 GB" or "0.5TB"; everything is normalized to binary gigabytes before
// comparison (MB = GB/1024, TB = GB*1024).
package capacity

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Unit is a size unit accepted in capacity and partition size strings.
type Unit string

const (
	UnitB  Unit = "B"
	UnitKB Unit = "KB"
	UnitMB Unit = "MB"
	UnitGB Unit = "GB"
	UnitTB Unit = "TB"
)

// ErrInvalidFormat is returned when a size string does not match
// `<number>[ <unit>]` with unit one of B/KB/MB/GB/TB.
var ErrInvalidFormat = errors.New("invalid size format")

var sizeRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]*)$`)

// Partition carries the two fields the ledger needs from a partition record.
type Partition struct {
	ID      string
	SizeRaw string
}

// UnparsableCapacityError reports a device capacity string that failed to parse.
type UnparsableCapacityError struct {
	Raw string
}

func (e *UnparsableCapacityError) Error() string {
	return fmt.Sprintf("unparsable device capacity %q", e.Raw)
}

// CorruptPartitionSizeError reports an already-persisted partition whose size
// string failed to parse. Summing around it would under-count used space, so
// the ledger refuses instead of guessing.
type CorruptPartitionSizeError struct {
	PartitionID string
	Raw         string
}

func (e *CorruptPartitionSizeError) Error() string {
	return fmt.Sprintf("corrupt size %q on partition %s", e.Raw, e.PartitionID)
}

// SizeExceedsFreeError reports a candidate size larger than the device's free space.
type SizeExceedsFreeError struct {
	RequestedGB float64
	FreeGB      float64
}

func (e *SizeExceedsFreeError) Error() string {
	return fmt.Sprintf("requested %.2f GB exceeds %.2f GB free", e.RequestedGB, e.FreeGB)
}

// ParseSize parses a size string into magnitude and unit. The unit is
// case-insensitive and defaults to GB when omitted.
func ParseSize(raw string) (float64, Unit, error) {
	m := sizeRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, "", ErrInvalidFormat
	}
	mag, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", ErrInvalidFormat
	}
	unit := UnitGB
	if m[2] != "" {
		switch Unit(strings.ToUpper(m[2])) {
		case UnitB:
			unit = UnitB
		case UnitKB:
			unit = UnitKB
		case UnitMB:
			unit = UnitMB
		case UnitGB:
			unit = UnitGB
		case UnitTB:
			unit = UnitTB
		default:
			return 0, "", ErrInvalidFormat
		}
	}
	return mag, unit, nil
}

// ToGB converts a magnitude in the given unit to binary gigabytes.
func ToGB(magnitude float64, unit Unit) float64 {
	switch unit {
	case UnitB:
		return magnitude / (1024 * 1024 * 1024)
	case UnitKB:
		return magnitude / (1024 * 1024)
	case UnitMB:
		return magnitude / 1024
	case UnitTB:
		return magnitude * 1024
	default:
		return magnitude
	}
}

// ParseToGB is ParseSize followed by ToGB.
func ParseToGB(raw string) (float64, error) {
	mag, unit, err := ParseSize(raw)
	if err != nil {
		return 0, err
	}
	return ToGB(mag, unit), nil
}

// FreeSpace computes the unallocated capacity of a device in GB, given its
// capacity string and the partitions already allocated on it. excludeID, when
// non-empty, names a partition left out of the sum (editing a partition must
// not count it against itself). An over-allocated device yields 0, not an
// error: the over-commit already happened and is not this caller's to fix.
func FreeSpace(capacityRaw string, partitions []Partition, excludeID string) (float64, error) {
	capGB, err := ParseToGB(capacityRaw)
	if err != nil {
		return 0, &UnparsableCapacityError{Raw: capacityRaw}
	}
	var usedGB float64
	for _, p := range partitions {
		if excludeID != "" && p.ID == excludeID {
			continue
		}
		gb, err := ParseToGB(p.SizeRaw)
		if err != nil {
			return 0, &CorruptPartitionSizeError{PartitionID: p.ID, Raw: p.SizeRaw}
		}
		usedGB += gb
	}
	free := capGB - usedGB
	if free < 0 {
		free = 0
	}
	return free, nil
}

// ValidateNewSize checks a candidate partition size against the free space
// computed by FreeSpace. A candidate exactly equal to the free space is
// accepted. Pure: identical inputs always yield identical results.
func ValidateNewSize(candidateRaw string, freeGB float64) error {
	reqGB, err := ParseToGB(candidateRaw)
	if err != nil {
		return ErrInvalidFormat
	}
	if reqGB > freeGB {
		return &SizeExceedsFreeError{RequestedGB: reqGB, FreeGB: freeGB}
	}
	return nil
}
