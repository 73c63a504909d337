// Package sow maps a requirement bundle onto the canonical SOW payload
// schema. Synthesize is a pure function: no I/O, no failure modes. A
// value that cannot be coerced to its target type is kept verbatim in
// the section's Extra map and noted in Assumptions, never dropped.
package sow

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zgr-ai/sow-cli/internal/model"
)

// Synthesize builds a SOWPayload from a total bundle. Keys are processed
// in sorted order within each category so output is deterministic.
func Synthesize(bundle *model.Bundle) *model.SOWPayload {
	s := &synthesis{payload: &model.SOWPayload{SchemaVersion: model.SchemaVersion}}

	s.mapCategory(bundle.Room, s.roomField)
	s.mapCategory(bundle.Conference, s.conferenceField)
	s.mapCategory(bundle.AV, s.avField)
	s.mapCategory(bundle.Catering, s.cateringField)
	s.mapCategory(bundle.Compliance, s.complianceField)
	s.mapCategory(bundle.Pricing, s.pricingField)

	s.deriveRoomNights()
	return s.payload
}

type synthesis struct {
	payload *model.SOWPayload

	// set by note, consumed by mapCategory: a coercion failure keeps the
	// value as a string, an unmapped key keeps its original type
	coerceFailed bool
}

// fieldMapper applies one category key. It returns the Extra map for the
// key's section (for the fallthrough of unmapped or uncoercible values)
// and whether the key had a typed home.
type fieldMapper func(key string, value any) (extra func() map[string]any, mapped bool)

func (s *synthesis) mapCategory(m map[string]any, mapField fieldMapper) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s.coerceFailed = false
		extra, mapped := mapField(k, m[k])
		if mapped {
			continue
		}
		if s.coerceFailed {
			extra()[k] = fmt.Sprint(m[k])
		} else {
			extra()[k] = m[k]
		}
	}
}

// note records a coercion failure: the verbatim value lands in the
// section Extra and the failure itself in Assumptions.
func (s *synthesis) note(category, key string, value any, want string) {
	s.coerceFailed = true
	s.payload.Assumptions = append(s.payload.Assumptions,
		fmt.Sprintf("%s.%s: could not interpret %q as %s; kept verbatim", category, key, fmt.Sprint(value), want))
}

func (s *synthesis) roomField(key string, value any) (func() map[string]any, bool) {
	extra := func() map[string]any { return s.roomExtra() }
	switch key {
	case "total_rooms_per_night", "rooms_per_night", "room_count":
		if n, ok := coerceInt(value); ok {
			s.room().TotalRoomsPerNight = n
			return nil, true
		}
		s.note("room_requirements", key, value, "integer")
	case "nights", "number_of_nights":
		if n, ok := coerceInt(value); ok {
			s.room().Nights = n
			return nil, true
		}
		s.note("room_requirements", key, value, "integer")
	case "attrition_policy", "attrition":
		if v, ok := coerceString(value); ok {
			s.room().AttritionPolicy = v
			return nil, true
		}
		s.note("room_requirements", key, value, "string")
	}
	return extra, false
}

func (s *synthesis) conferenceField(key string, value any) (func() map[string]any, bool) {
	extra := func() map[string]any { return s.functionSpaceExtra() }
	switch key {
	case "general_session_capacity", "capacity":
		if n, ok := coerceInt(value); ok {
			s.generalSession().Capacity = n
			return nil, true
		}
		s.note("conference_requirements", key, value, "integer")
	case "projectors":
		if n, ok := coerceInt(value); ok {
			s.generalSession().Projectors = n
			return nil, true
		}
		s.note("conference_requirements", key, value, "integer")
	case "screens":
		if v, ok := coerceString(value); ok {
			s.generalSession().Screens = v
			return nil, true
		}
		s.note("conference_requirements", key, value, "string")
	case "general_session_setup", "setup":
		if v, ok := coerceString(value); ok {
			s.generalSession().Setup = v
			return nil, true
		}
		s.note("conference_requirements", key, value, "string")
	case "breakout_rooms", "breakout_room_count":
		if n, ok := coerceInt(value); ok {
			s.breakoutRooms().Count = n
			return nil, true
		}
		s.note("conference_requirements", key, value, "integer")
	case "breakout_capacity_each", "breakout_capacity":
		if n, ok := coerceInt(value); ok {
			s.breakoutRooms().CapacityEach = n
			return nil, true
		}
		s.note("conference_requirements", key, value, "integer")
	case "breakout_setup":
		if v, ok := coerceString(value); ok {
			s.breakoutRooms().Setup = v
			return nil, true
		}
		s.note("conference_requirements", key, value, "string")
	case "registration_windows":
		if v, ok := coerceStringList(value); ok {
			s.registrationArea().Windows = v
			return nil, true
		}
		s.note("conference_requirements", key, value, "string list")
	case "registration", "registration_details":
		if v, ok := coerceString(value); ok {
			s.registrationArea().Details = v
			return nil, true
		}
		s.note("conference_requirements", key, value, "string")
	case "logistics_room_capacity":
		if n, ok := coerceInt(value); ok {
			s.logisticsRoom().Capacity = n
			return nil, true
		}
		s.note("conference_requirements", key, value, "integer")
	case "logistics_room_setup":
		if v, ok := coerceString(value); ok {
			s.logisticsRoom().Setup = v
			return nil, true
		}
		s.note("conference_requirements", key, value, "string")
	case "period_of_performance_start", "start_date":
		if v, ok := coerceString(value); ok {
			s.period().Start = v
			return nil, true
		}
		s.note("conference_requirements", key, value, "date")
	case "period_of_performance_end", "end_date":
		if v, ok := coerceString(value); ok {
			s.period().End = v
			return nil, true
		}
		s.note("conference_requirements", key, value, "date")
	case "setup_deadline":
		if t, ok := coerceTime(value); ok {
			s.payload.SetupDeadline = t
			return nil, true
		}
		s.note("conference_requirements", key, value, "timestamp")
	}
	return extra, false
}

func (s *synthesis) avField(key string, value any) (func() map[string]any, bool) {
	extra := func() map[string]any { return s.avExtra() }
	switch key {
	case "projector_lumens", "lumens":
		if n, ok := coerceInt(value); ok {
			s.av().ProjectorLumens = n
			return nil, true
		}
		s.note("av_requirements", key, value, "integer")
	case "power_strips_min", "power_strips":
		if n, ok := coerceInt(value); ok {
			s.av().PowerStripsMin = n
			return nil, true
		}
		s.note("av_requirements", key, value, "integer")
	case "adapters":
		if v, ok := coerceStringList(value); ok {
			s.av().Adapters = v
			return nil, true
		}
		s.note("av_requirements", key, value, "string list")
	case "clone_screens":
		if b, ok := coerceBool(value); ok {
			s.av().CloneScreens = b
			return nil, true
		}
		s.note("av_requirements", key, value, "boolean")
	}
	return extra, false
}

func (s *synthesis) cateringField(key string, value any) (func() map[string]any, bool) {
	extra := func() map[string]any { return s.refreshmentsExtra() }
	switch key {
	case "frequency":
		if v, ok := coerceString(value); ok {
			s.refreshments().Frequency = v
			return nil, true
		}
		s.note("catering_requirements", key, value, "string")
	case "menu":
		if v, ok := coerceStringList(value); ok {
			s.refreshments().Menu = v
			return nil, true
		}
		s.note("catering_requirements", key, value, "string list")
	case "schedule_lock_days":
		if n, ok := coerceInt(value); ok {
			s.refreshments().ScheduleLockDays = n
			return nil, true
		}
		s.note("catering_requirements", key, value, "integer")
	}
	return extra, false
}

func (s *synthesis) complianceField(key string, value any) (func() map[string]any, bool) {
	extra := func() map[string]any { return s.complianceExtra() }
	switch key {
	case "tax_exemption", "tax_exempt":
		if b, ok := coerceBool(value); ok {
			s.payload.TaxExemption = b
			return nil, true
		}
		s.note("compliance_requirements", key, value, "boolean")
	case "setup_deadline":
		if t, ok := coerceTime(value); ok {
			s.payload.SetupDeadline = t
			return nil, true
		}
		s.note("compliance_requirements", key, value, "timestamp")
	case "pre_con_meeting_date":
		if v, ok := coerceString(value); ok {
			s.preCon().Date = v
			return nil, true
		}
		s.note("compliance_requirements", key, value, "date")
	case "pre_con_meeting_purpose":
		if v, ok := coerceString(value); ok {
			s.preCon().Purpose = v
			return nil, true
		}
		s.note("compliance_requirements", key, value, "string")
	}
	return extra, false
}

func (s *synthesis) pricingField(key string, value any) (func() map[string]any, bool) {
	extra := func() map[string]any { return s.pricingExtra() }
	switch key {
	case "method", "payment_method":
		if v, ok := coerceString(value); ok {
			s.pricing().Method = v
			return nil, true
		}
		s.note("pricing_requirements", key, value, "string")
	case "structure", "pricing_structure":
		if v, ok := coerceString(value); ok {
			s.pricing().Structure = v
			return nil, true
		}
		s.note("pricing_requirements", key, value, "string")
	}
	return extra, false
}

// deriveRoomNights computes total_room_nights only when both inputs are
// present. Absence of either means absence of the derived field, never a
// computed zero.
func (s *synthesis) deriveRoomNights() {
	rb := s.payload.RoomBlock
	if rb == nil || rb.TotalRoomsPerNight == nil || rb.Nights == nil {
		return
	}
	total := *rb.TotalRoomsPerNight * *rb.Nights
	rb.TotalRoomNights = &total
}

// Lazy section constructors. Sections appear in the payload only when a
// requirement actually maps into them.

func (s *synthesis) room() *model.RoomBlock {
	if s.payload.RoomBlock == nil {
		s.payload.RoomBlock = &model.RoomBlock{}
	}
	return s.payload.RoomBlock
}

func (s *synthesis) roomExtra() map[string]any {
	r := s.room()
	if r.Extra == nil {
		r.Extra = map[string]any{}
	}
	return r.Extra
}

func (s *synthesis) functionSpace() *model.FunctionSpace {
	if s.payload.FunctionSpace == nil {
		s.payload.FunctionSpace = &model.FunctionSpace{}
	}
	return s.payload.FunctionSpace
}

func (s *synthesis) functionSpaceExtra() map[string]any {
	fs := s.functionSpace()
	if fs.Extra == nil {
		fs.Extra = map[string]any{}
	}
	return fs.Extra
}

func (s *synthesis) generalSession() *model.GeneralSession {
	fs := s.functionSpace()
	if fs.GeneralSession == nil {
		fs.GeneralSession = &model.GeneralSession{}
	}
	return fs.GeneralSession
}

func (s *synthesis) breakoutRooms() *model.BreakoutRooms {
	fs := s.functionSpace()
	if fs.BreakoutRooms == nil {
		fs.BreakoutRooms = &model.BreakoutRooms{}
	}
	return fs.BreakoutRooms
}

func (s *synthesis) registrationArea() *model.RegistrationArea {
	fs := s.functionSpace()
	if fs.RegistrationArea == nil {
		fs.RegistrationArea = &model.RegistrationArea{}
	}
	return fs.RegistrationArea
}

func (s *synthesis) logisticsRoom() *model.LogisticsRoom {
	fs := s.functionSpace()
	if fs.LogisticsRoom == nil {
		fs.LogisticsRoom = &model.LogisticsRoom{}
	}
	return fs.LogisticsRoom
}

func (s *synthesis) period() *model.DateRange {
	if s.payload.PeriodOfPerformance == nil {
		s.payload.PeriodOfPerformance = &model.DateRange{}
	}
	return s.payload.PeriodOfPerformance
}

func (s *synthesis) av() *model.AVSetup {
	if s.payload.AV == nil {
		s.payload.AV = &model.AVSetup{}
	}
	return s.payload.AV
}

func (s *synthesis) avExtra() map[string]any {
	a := s.av()
	if a.Extra == nil {
		a.Extra = map[string]any{}
	}
	return a.Extra
}

func (s *synthesis) refreshments() *model.Refreshments {
	if s.payload.Refreshments == nil {
		s.payload.Refreshments = &model.Refreshments{}
	}
	return s.payload.Refreshments
}

func (s *synthesis) refreshmentsExtra() map[string]any {
	r := s.refreshments()
	if r.Extra == nil {
		r.Extra = map[string]any{}
	}
	return r.Extra
}

func (s *synthesis) preCon() *model.PreConMeeting {
	if s.payload.PreConMeeting == nil {
		s.payload.PreConMeeting = &model.PreConMeeting{}
	}
	return s.payload.PreConMeeting
}

func (s *synthesis) complianceExtra() map[string]any {
	if s.payload.Compliance == nil {
		s.payload.Compliance = map[string]any{}
	}
	return s.payload.Compliance
}

func (s *synthesis) pricing() *model.PricingTerms {
	if s.payload.Pricing == nil {
		s.payload.Pricing = &model.PricingTerms{}
	}
	return s.payload.Pricing
}

func (s *synthesis) pricingExtra() map[string]any {
	p := s.pricing()
	if p.Extra == nil {
		p.Extra = map[string]any{}
	}
	return p.Extra
}

// Coercions. JSON decoding yields float64 for all numbers; keyword-tier
// values are sentences and usually won't coerce, which is fine: they fall
// through verbatim to Extra.

func coerceInt(v any) (*int, bool) {
	switch n := v.(type) {
	case int:
		return &n, true
	case int64:
		i := int(n)
		return &i, true
	case float64:
		if n != math.Trunc(n) {
			return nil, false
		}
		i := int(n)
		return &i, true
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		i, err := strconv.Atoi(cleaned)
		if err != nil {
			return nil, false
		}
		return &i, true
	}
	return nil, false
}

func coerceBool(v any) (*bool, bool) {
	switch b := v.(type) {
	case bool:
		return &b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "required":
			t := true
			return &t, true
		case "false", "no":
			f := false
			return &f, true
		}
	}
	return nil, false
}

func coerceString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

func coerceStringList(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return l, true
	case string:
		return []string{l}, true
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := coerceString(item)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04",
	"01/02/2006",
	"January 2, 2006",
}

func coerceTime(v any) (*time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}
