package geo

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// GlobalRoom is the broadcast channel every authenticated contractor joins.
const GlobalRoom = "global"

// DefaultGridPrecision rounds coordinates to 2 decimal places (~1.1 km grid).
// Nearby contractors intentionally collapse into the same location room so the
// room count stays bounded.
const DefaultGridPrecision = 2

// DistanceKm computes the great-circle distance between two points in km.
// Coordinate range validation is the caller's responsibility.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

type RoomType string

const (
	RoomContractor RoomType = "contractor"
	RoomLocation   RoomType = "location"
	RoomSkill      RoomType = "skill"
	RoomGlobal     RoomType = "global"
)

// RoomDescriptor is the parsed form of a room name.
type RoomDescriptor struct {
	Type         RoomType
	ContractorID string
	Lat          float64
	Lng          float64
	RadiusKm     float64
	Skill        string
}

// Keyer derives deterministic room names from coordinates at a fixed grid
// precision. The zero precision falls back to DefaultGridPrecision.
type Keyer struct {
	precision int
}

func NewKeyer(precision int) Keyer {
	if precision <= 0 {
		precision = DefaultGridPrecision
	}
	return Keyer{precision: precision}
}

func (k Keyer) Precision() int { return k.precision }

// LocationRoomKey rounds lat/lng to the grid precision and formats the triple
// as location:{lat}-{lng}-{radius}. Two calls with coordinates inside the same
// grid cell collide into the same room.
func (k Keyer) LocationRoomKey(lat, lng, radiusKm float64) string {
	return "location:" +
		strconv.FormatFloat(lat, 'f', k.precision, 64) + "-" +
		strconv.FormatFloat(lng, 'f', k.precision, 64) + "-" +
		strconv.FormatFloat(radiusKm, 'f', -1, 64)
}

// ContractorRoomKey names the per-identity room.
func ContractorRoomKey(contractorID string) string {
	return "contractor:" + contractorID
}

// SkillRoomKey normalizes a skill by lowercasing and collapsing whitespace
// runs into single dashes.
func SkillRoomKey(skill string) string {
	return "skill:" + strings.Join(strings.Fields(strings.ToLower(skill)), "-")
}

var locationRe = regexp.MustCompile(`^location:(-?\d+(?:\.\d+)?)-(-?\d+(?:\.\d+)?)-(\d+(?:\.\d+)?)$`)

// ParseRoomKey is the inverse of the key constructors. It returns nil for
// names outside the four recognized prefixes, which lets the statistics view
// skip transport-internal rooms.
func ParseRoomKey(name string) *RoomDescriptor {
	switch {
	case name == GlobalRoom:
		return &RoomDescriptor{Type: RoomGlobal}
	case strings.HasPrefix(name, "contractor:"):
		id := strings.TrimPrefix(name, "contractor:")
		if id == "" {
			return nil
		}
		return &RoomDescriptor{Type: RoomContractor, ContractorID: id}
	case strings.HasPrefix(name, "skill:"):
		skill := strings.TrimPrefix(name, "skill:")
		if skill == "" {
			return nil
		}
		return &RoomDescriptor{Type: RoomSkill, Skill: skill}
	case strings.HasPrefix(name, "location:"):
		m := locationRe.FindStringSubmatch(name)
		if m == nil {
			return nil
		}
		lat, err1 := strconv.ParseFloat(m[1], 64)
		lng, err2 := strconv.ParseFloat(m[2], 64)
		radius, err3 := strconv.ParseFloat(m[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil
		}
		return &RoomDescriptor{Type: RoomLocation, Lat: lat, Lng: lng, RadiusKm: radius}
	default:
		return nil
	}
}
