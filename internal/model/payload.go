package model

import "time"

// SchemaVersion is the current SOW payload schema version. Records written
// under older versions remain readable; parsers tolerate missing fields but
// are strict about type mismatches within present fields.
const SchemaVersion = "sow.v1.1"

// SOWPayload is the canonical structured representation of a statement of
// work. Every numeric field is a pointer: absent means absent, never a
// placeholder zero. Each section carries an Extra map for values that were
// extracted but have no typed home, so schema evolution doesn't silently
// drop data.
type SOWPayload struct {
	SchemaVersion       string         `json:"schema_version"`
	PeriodOfPerformance *DateRange     `json:"period_of_performance,omitempty"`
	SetupDeadline       *time.Time     `json:"setup_deadline,omitempty"`
	RoomBlock           *RoomBlock     `json:"room_block,omitempty"`
	FunctionSpace       *FunctionSpace `json:"function_space,omitempty"`
	AV                  *AVSetup       `json:"av,omitempty"`
	Refreshments        *Refreshments  `json:"refreshments,omitempty"`
	PreConMeeting       *PreConMeeting `json:"pre_con_meeting,omitempty"`
	Pricing             *PricingTerms  `json:"pricing,omitempty"`
	TaxExemption        *bool          `json:"tax_exemption,omitempty"`
	Compliance          map[string]any `json:"compliance,omitempty"`
	Assumptions         []string       `json:"assumptions,omitempty"`
}

// DateRange is a start/end pair in YYYY-MM-DD form.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// RoomBlock describes the lodging block.
type RoomBlock struct {
	TotalRoomsPerNight *int           `json:"total_rooms_per_night,omitempty"`
	Nights             *int           `json:"nights,omitempty"`
	TotalRoomNights    *int           `json:"total_room_nights,omitempty"` // derived, only when both inputs present
	AttritionPolicy    string         `json:"attrition_policy,omitempty"`
	Extra              map[string]any `json:"extra,omitempty"`
}

// FunctionSpace describes the meeting spaces.
type FunctionSpace struct {
	RegistrationArea *RegistrationArea `json:"registration_area,omitempty"`
	GeneralSession   *GeneralSession   `json:"general_session,omitempty"`
	BreakoutRooms    *BreakoutRooms    `json:"breakout_rooms,omitempty"`
	LogisticsRoom    *LogisticsRoom    `json:"logistics_room,omitempty"`
	Extra            map[string]any    `json:"extra,omitempty"`
}

// RegistrationArea describes the registration setup.
type RegistrationArea struct {
	Windows []string `json:"windows,omitempty"`
	Details string   `json:"details,omitempty"`
}

// GeneralSession describes the main session room.
type GeneralSession struct {
	Capacity   *int   `json:"capacity,omitempty"`
	Projectors *int   `json:"projectors,omitempty"`
	Screens    string `json:"screens,omitempty"`
	Setup      string `json:"setup,omitempty"`
}

// BreakoutRooms describes the breakout room requirement.
type BreakoutRooms struct {
	Count        *int   `json:"count,omitempty"`
	CapacityEach *int   `json:"capacity_each,omitempty"`
	Setup        string `json:"setup,omitempty"`
}

// LogisticsRoom describes the staff/logistics room.
type LogisticsRoom struct {
	Capacity *int   `json:"capacity,omitempty"`
	Setup    string `json:"setup,omitempty"`
}

// AVSetup describes audio/visual requirements.
type AVSetup struct {
	ProjectorLumens *int           `json:"projector_lumens,omitempty"`
	PowerStripsMin  *int           `json:"power_strips_min,omitempty"`
	Adapters        []string       `json:"adapters,omitempty"`
	CloneScreens    *bool          `json:"clone_screens,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// Refreshments describes catering requirements.
type Refreshments struct {
	Frequency        string         `json:"frequency,omitempty"`
	Menu             []string       `json:"menu,omitempty"`
	ScheduleLockDays *int           `json:"schedule_lock_days,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// PreConMeeting describes the pre-conference planning meeting.
type PreConMeeting struct {
	Date    string `json:"date,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

// PricingTerms describes payment and pricing structure requirements.
type PricingTerms struct {
	Method    string         `json:"method,omitempty"`
	Structure string         `json:"structure,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}
