package sow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zgr-ai/sow-cli/internal/model"
)

func TestSynthesize_EmptyBundle(t *testing.T) {
	p := Synthesize(model.NewBundle())

	assert.Equal(t, model.SchemaVersion, p.SchemaVersion)
	assert.Nil(t, p.RoomBlock)
	assert.Nil(t, p.FunctionSpace)
	assert.Nil(t, p.AV)
	assert.Nil(t, p.Refreshments)
	assert.Nil(t, p.Pricing)
	assert.Nil(t, p.TaxExemption)
	assert.Empty(t, p.Assumptions)
}

func TestSynthesize_RoomBlock(t *testing.T) {
	b := model.NewBundle()
	b.Room["total_rooms_per_night"] = float64(50)
	b.Room["nights"] = float64(4)
	b.Room["attrition_policy"] = "80% of block guaranteed"

	p := Synthesize(b)

	require.NotNil(t, p.RoomBlock)
	require.NotNil(t, p.RoomBlock.TotalRoomsPerNight)
	assert.Equal(t, 50, *p.RoomBlock.TotalRoomsPerNight)
	require.NotNil(t, p.RoomBlock.Nights)
	assert.Equal(t, 4, *p.RoomBlock.Nights)
	assert.Equal(t, "80% of block guaranteed", p.RoomBlock.AttritionPolicy)
}

func TestSynthesize_DerivedRoomNights(t *testing.T) {
	b := model.NewBundle()
	b.Room["total_rooms_per_night"] = float64(50)
	b.Room["nights"] = float64(4)

	p := Synthesize(b)

	require.NotNil(t, p.RoomBlock.TotalRoomNights)
	assert.Equal(t, 200, *p.RoomBlock.TotalRoomNights)
}

func TestSynthesize_DerivedRoomNightsOmittedWhenInputMissing(t *testing.T) {
	b := model.NewBundle()
	b.Room["total_rooms_per_night"] = float64(50)

	p := Synthesize(b)

	require.NotNil(t, p.RoomBlock)
	assert.Nil(t, p.RoomBlock.TotalRoomNights)
}

func TestSynthesize_FunctionSpace(t *testing.T) {
	b := model.NewBundle()
	b.Conference["general_session_capacity"] = float64(500)
	b.Conference["breakout_rooms"] = float64(6)
	b.Conference["breakout_capacity_each"] = "75"
	b.Conference["registration_windows"] = []any{"0700-0900", "1200-1300"}
	b.Conference["setup_deadline"] = "2026-03-14"

	p := Synthesize(b)

	fs := p.FunctionSpace
	require.NotNil(t, fs)
	assert.Equal(t, 500, *fs.GeneralSession.Capacity)
	assert.Equal(t, 6, *fs.BreakoutRooms.Count)
	assert.Equal(t, 75, *fs.BreakoutRooms.CapacityEach)
	assert.Equal(t, []string{"0700-0900", "1200-1300"}, fs.RegistrationArea.Windows)
	require.NotNil(t, p.SetupDeadline)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), *p.SetupDeadline)
}

func TestSynthesize_CoercionFailureKeptVerbatim(t *testing.T) {
	b := model.NewBundle()
	b.Conference["general_session_capacity"] = "roughly five hundred"

	p := Synthesize(b)

	require.NotNil(t, p.FunctionSpace)
	assert.Nil(t, p.FunctionSpace.GeneralSession)
	assert.Equal(t, "roughly five hundred", p.FunctionSpace.Extra["general_session_capacity"])
	require.Len(t, p.Assumptions, 1)
	assert.Contains(t, p.Assumptions[0], "general_session_capacity")
	assert.Contains(t, p.Assumptions[0], "roughly five hundred")
}

func TestSynthesize_UnmappedKeyKeepsOriginalType(t *testing.T) {
	b := model.NewBundle()
	b.AV["wireless_microphones"] = float64(4)

	p := Synthesize(b)

	require.NotNil(t, p.AV)
	assert.Equal(t, float64(4), p.AV.Extra["wireless_microphones"])
	assert.Empty(t, p.Assumptions)
}

func TestSynthesize_ComplianceAndPricing(t *testing.T) {
	b := model.NewBundle()
	b.Compliance["tax_exempt"] = true
	b.Compliance["far_52_212_4"] = "Contract Terms and Conditions apply."
	b.Pricing["method"] = "firm fixed price"
	b.Pricing["structure"] = "per-room-night unit pricing"

	p := Synthesize(b)

	require.NotNil(t, p.TaxExemption)
	assert.True(t, *p.TaxExemption)
	assert.Equal(t, "Contract Terms and Conditions apply.", p.Compliance["far_52_212_4"])
	require.NotNil(t, p.Pricing)
	assert.Equal(t, "firm fixed price", p.Pricing.Method)
	assert.Equal(t, "per-room-night unit pricing", p.Pricing.Structure)
}

func TestSynthesize_AVAndCatering(t *testing.T) {
	b := model.NewBundle()
	b.AV["projector_lumens"] = "3,000"
	b.AV["adapters"] = []any{"HDMI", "USB-C"}
	b.AV["clone_screens"] = "yes"
	b.Catering["frequency"] = "twice daily"
	b.Catering["menu"] = []any{"coffee", "pastries"}
	b.Catering["schedule_lock_days"] = float64(14)

	p := Synthesize(b)

	assert.Equal(t, 3000, *p.AV.ProjectorLumens)
	assert.Equal(t, []string{"HDMI", "USB-C"}, p.AV.Adapters)
	assert.True(t, *p.AV.CloneScreens)
	assert.Equal(t, "twice daily", p.Refreshments.Frequency)
	assert.Equal(t, []string{"coffee", "pastries"}, p.Refreshments.Menu)
	assert.Equal(t, 14, *p.Refreshments.ScheduleLockDays)
}

func TestSynthesize_NonIntegralNumberFailsCoercion(t *testing.T) {
	b := model.NewBundle()
	b.Room["nights"] = 3.5

	p := Synthesize(b)

	assert.Nil(t, p.RoomBlock.Nights)
	assert.Equal(t, "3.5", p.RoomBlock.Extra["nights"])
	require.Len(t, p.Assumptions, 1)
}

func TestSynthesize_Deterministic(t *testing.T) {
	b := model.NewBundle()
	b.Room["zebra"] = "unmapped one"
	b.Room["alpha"] = "unmapped two"
	b.Room["nights"] = "not a number"
	b.Room["total_rooms_per_night"] = "also not a number"

	first := Synthesize(b)
	second := Synthesize(b)

	assert.Equal(t, first, second)
	// sorted key order fixes the assumption order
	require.Len(t, first.Assumptions, 2)
	assert.Contains(t, first.Assumptions[0], "nights")
	assert.Contains(t, first.Assumptions[1], "total_rooms_per_night")
}

func TestCoerceInt(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  int
		isInt bool
	}{
		{"float", float64(42), 42, true},
		{"string", "42", 42, true},
		{"string with commas", "3,000", 3000, true},
		{"non-integral float", 2.5, 0, false},
		{"prose", "forty-two", 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := coerceInt(tt.in)
			assert.Equal(t, tt.isInt, ok)
			if tt.isInt {
				assert.Equal(t, tt.want, *got)
			}
		})
	}
}
