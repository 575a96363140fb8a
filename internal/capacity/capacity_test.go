package capacity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		raw     string
		wantMag float64
		wantUnit Unit
		wantErr bool
	}{
		{"500 GB", 500, UnitGB, false},
		{"500GB", 500, UnitGB, false},
		{"500", 500, UnitGB, false},
		{"0.5 TB", 0.5, UnitTB, false},
		{"128 mb", 128, UnitMB, false},
		{"1024 kb", 1024, UnitKB, false},
		{"42 b", 42, UnitB, false},
		{"  250 GB  ", 250, UnitGB, false},
		{"", 0, "", true},
		{"GB", 0, "", true},
		{"-5 GB", 0, "", true},
		{"500 XB", 0, "", true},
		{"12.5.3 GB", 0, "", true},
		{"twelve GB", 0, "", true},
	}
	for _, tc := range cases {
		mag, unit, err := ParseSize(tc.raw)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidFormat, "raw=%q", tc.raw)
			continue
		}
		require.NoError(t, err, "raw=%q", tc.raw)
		assert.Equal(t, tc.wantMag, mag, "raw=%q", tc.raw)
		assert.Equal(t, tc.wantUnit, unit, "raw=%q", tc.raw)
	}
}

func TestParseSizeRoundTrip(t *testing.T) {
	for _, unit := range []Unit{UnitB, UnitKB, UnitMB, UnitGB, UnitTB} {
		for _, mag := range []float64{1, 2.5, 100, 1024} {
			raw := fmt.Sprintf("%g %s", mag, unit)
			gotMag, gotUnit, err := ParseSize(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, mag, gotMag, raw)
			assert.Equal(t, unit, gotUnit, raw)
		}
	}
}

func TestToGB(t *testing.T) {
	assert.Equal(t, 1.0, ToGB(1, UnitGB))
	assert.Equal(t, 1024.0, ToGB(1, UnitTB))
	assert.Equal(t, 0.5, ToGB(512, UnitMB))
	assert.Equal(t, 1.0, ToGB(1024*1024, UnitKB))
	assert.Equal(t, 1.0, ToGB(1024*1024*1024, UnitB))
}

func TestToGBMonotonic(t *testing.T) {
	for _, unit := range []Unit{UnitB, UnitKB, UnitMB, UnitGB, UnitTB} {
		prev := ToGB(1, unit)
		for _, mag := range []float64{2, 10, 500, 4096} {
			cur := ToGB(mag, unit)
			assert.Greater(t, cur, prev, "unit=%s mag=%g", unit, mag)
			prev = cur
		}
	}
}

func TestFreeSpaceEmptyDevice(t *testing.T) {
	free, err := FreeSpace("500 GB", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 500.0, free)
}

func TestFreeSpaceScenarioA(t *testing.T) {
	free, err := FreeSpace("500 GB", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 500.0, free)

	assert.NoError(t, ValidateNewSize("500 GB", free))

	err = ValidateNewSize("501 GB", free)
	var exceeds *SizeExceedsFreeError
	require.ErrorAs(t, err, &exceeds)
	assert.Equal(t, 501.0, exceeds.RequestedGB)
	assert.Equal(t, 500.0, exceeds.FreeGB)
}

func TestFreeSpaceScenarioB(t *testing.T) {
	parts := []Partition{{ID: "p1", SizeRaw: "200 GB"}}
	free, err := FreeSpace("1 TB", parts, "")
	require.NoError(t, err)
	assert.Equal(t, 824.0, free)

	assert.Error(t, ValidateNewSize("900 GB", free))
	assert.NoError(t, ValidateNewSize("800 GB", free))
}

func TestFreeSpaceScenarioC(t *testing.T) {
	// Device 400 GB; editing p (100 GB) while others consume 250 GB leaves
	// 50 GB free including p. Excluding p must add its 100 GB back.
	parts := []Partition{
		{ID: "p", SizeRaw: "100 GB"},
		{ID: "q", SizeRaw: "150 GB"},
		{ID: "r", SizeRaw: "100 GB"},
	}
	free, err := FreeSpace("400 GB", parts, "")
	require.NoError(t, err)
	assert.Equal(t, 50.0, free)

	free, err = FreeSpace("400 GB", parts, "p")
	require.NoError(t, err)
	assert.Equal(t, 150.0, free)
}

func TestFreeSpaceOrderInvariant(t *testing.T) {
	a := []Partition{{ID: "1", SizeRaw: "100 GB"}, {ID: "2", SizeRaw: "512 MB"}, {ID: "3", SizeRaw: "0.25 TB"}}
	b := []Partition{a[2], a[0], a[1]}
	fa, err := FreeSpace("2 TB", a, "")
	require.NoError(t, err)
	fb, err := FreeSpace("2 TB", b, "")
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}

func TestFreeSpaceMixedUnits(t *testing.T) {
	parts := []Partition{
		{ID: "1", SizeRaw: "512 MB"},
		{ID: "2", SizeRaw: "0.5 TB"},
	}
	free, err := FreeSpace("1 TB", parts, "")
	require.NoError(t, err)
	assert.InDelta(t, 1024-0.5-512, free, 1e-9)
}

func TestFreeSpaceUnparsableCapacity(t *testing.T) {
	_, err := FreeSpace("lots", nil, "")
	var bad *UnparsableCapacityError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "lots", bad.Raw)
}

func TestFreeSpaceCorruptPartition(t *testing.T) {
	parts := []Partition{{ID: "ok", SizeRaw: "10 GB"}, {ID: "bad", SizeRaw: "??"}}
	_, err := FreeSpace("100 GB", parts, "")
	var corrupt *CorruptPartitionSizeError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "bad", corrupt.PartitionID)

	// Excluding the corrupt partition makes the rest computable again.
	free, err := FreeSpace("100 GB", parts, "bad")
	require.NoError(t, err)
	assert.Equal(t, 90.0, free)
}

func TestFreeSpaceOverAllocatedClampsToZero(t *testing.T) {
	parts := []Partition{{ID: "1", SizeRaw: "600 GB"}}
	free, err := FreeSpace("500 GB", parts, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, free)
}

func TestValidateNewSizeInvalidFormat(t *testing.T) {
	assert.True(t, errors.Is(ValidateNewSize("huge", 100), ErrInvalidFormat))
}

func TestValidateNewSizeIdempotent(t *testing.T) {
	for i := 0; i < 3; i++ {
		err := ValidateNewSize("120 GB", 100)
		var exceeds *SizeExceedsFreeError
		require.ErrorAs(t, err, &exceeds)
		assert.Equal(t, 120.0, exceeds.RequestedGB)
	}
}
