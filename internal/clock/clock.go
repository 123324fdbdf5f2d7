package clock

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const clockLayout = "15:04"

// Region is a supported country and the IANA zone its campaigns run in.
type Region struct {
	ID   int
	Name string
	Zone string
}

// DefaultRegions is the region list used when none is configured.
func DefaultRegions() []Region {
	return []Region{
		{ID: 1, Name: "Guatemala", Zone: "America/Guatemala"},
		{ID: 2, Name: "Honduras", Zone: "America/Tegucigalpa"},
		{ID: 3, Name: "Panamá", Zone: "America/Panama"},
		{ID: 4, Name: "Nicaragua", Zone: "America/Managua"},
		{ID: 5, Name: "Costa Rica", Zone: "America/Costa_Rica"},
		{ID: 6, Name: "Colombia", Zone: "America/Bogota"},
	}
}

// ParseRegions reads a comma separated "id:name:Zone" list. An empty string
// yields DefaultRegions.
func ParseRegions(s string) ([]Region, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultRegions(), nil
	}

	var regions []Region
	for _, item := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(item), ":")
		if len(parts) != 3 {
			return nil, errors.Errorf("region %q: expected id:name:zone", item)
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, errors.Wrapf(err, "region %q: bad id", item)
		}
		regions = append(regions, Region{ID: id, Name: parts[1], Zone: parts[2]})
	}
	return regions, nil
}

// LocalTime is the wall clock of one region at minute resolution.
type LocalTime struct {
	Region Region
	Date   string    // YYYY-MM-DD
	Clock  string    // HH:mm
	Day    time.Time // the local date at UTC midnight
}

type zoned struct {
	region Region
	loc    *time.Location
}

// Resolver turns an instant into the local date and time of every region.
// It is immutable after construction.
type Resolver struct {
	zones []zoned
	now   func() time.Time
}

func NewResolver(regions []Region) (*Resolver, error) {
	if len(regions) == 0 {
		return nil, errors.New("no regions configured")
	}

	seen := make(map[string]struct{}, len(regions))
	zones := make([]zoned, 0, len(regions))
	for _, r := range regions {
		if _, dup := seen[r.Zone]; dup {
			return nil, errors.Errorf("zone %s configured twice", r.Zone)
		}
		seen[r.Zone] = struct{}{}

		loc, err := time.LoadLocation(r.Zone)
		if err != nil {
			return nil, errors.Wrapf(err, "region %s", r.Name)
		}
		zones = append(zones, zoned{region: r, loc: loc})
	}

	return &Resolver{zones: zones, now: time.Now}, nil
}

func (r *Resolver) Regions() []Region {
	out := make([]Region, len(r.zones))
	for i, z := range r.zones {
		out[i] = z.region
	}
	return out
}

// Location returns the loaded location of a configured zone.
func (r *Resolver) Location(zone string) (*time.Location, bool) {
	for _, z := range r.zones {
		if z.region.Zone == zone {
			return z.loc, true
		}
	}
	return nil, false
}

func (r *Resolver) Now() []LocalTime {
	return r.At(r.now())
}

func (r *Resolver) At(t time.Time) []LocalTime {
	out := make([]LocalTime, len(r.zones))
	for i, z := range r.zones {
		local := t.In(z.loc)
		y, m, d := local.Date()
		out[i] = LocalTime{
			Region: z.region,
			Date:   local.Format(time.DateOnly),
			Clock:  local.Format(clockLayout),
			Day:    time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

// Day converts a YYYY-MM-DD string into the stored date form.
func Day(date string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, date, time.UTC)
}
