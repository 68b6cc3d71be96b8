package aggregate

import (
	"fmt"
	"strings"

	errs "github.com/mkd-neo4j/neo4j-query-compiler/internal/errors"
)

// Seconds between the Unix epoch and Monday 1970-01-05, the anchor of
// multi-week buckets.
const weekAnchorOffset = 345600

var unitSeconds = map[string]int64{
	"second": 1,
	"minute": 60,
	"hour":   3600,
	"day":    86400,
	"week":   604800,
}

var singularUnits = map[string]bool{
	"second":  true,
	"minute":  true,
	"hour":    true,
	"day":     true,
	"week":    true,
	"month":   true,
	"quarter": true,
	"year":    true,
}

// Granularity is a validated bucket unit and size.
type Granularity struct {
	Unit string
	Size int
}

// ParseGranularity validates a granularity name and size. Singular names
// ("month") take no size or size 1; plural names ("months") take any
// positive size, 0 meaning 1.
func ParseGranularity(name string, size int) (Granularity, error) {
	if size < 0 {
		return Granularity{}, errs.Compilef("aggregate", name, errs.ErrInvalidGranularity, "size must be positive")
	}
	if size == 0 {
		size = 1
	}
	if singularUnits[name] {
		if size != 1 {
			return Granularity{}, errs.Compilef("aggregate", name, errs.ErrInvalidGranularity,
				"%s does not take a size; use %ss", name, name)
		}
		return Granularity{Unit: name, Size: 1}, nil
	}
	if unit := strings.TrimSuffix(name, "s"); unit != name && singularUnits[unit] {
		return Granularity{Unit: unit, Size: size}, nil
	}
	return Granularity{}, errs.Compilef("aggregate", name, errs.ErrInvalidGranularity, "%q", name)
}

// Expression returns the Cypher expression yielding the bucket start of the
// datetime property at target.
//
// Size 1 truncates to the unit. Larger sizes are anchored so that buckets
// never depend on the data: second to day buckets on the Unix epoch, weeks on
// Monday 1970-01-05, months and quarters on a continuous month index (three
// month buckets start in January, April, July and October), years on year 0.
func (g Granularity) Expression(target string) string {
	dt := fmt.Sprintf("datetime(%s)", target)
	if g.Size == 1 {
		return fmt.Sprintf("datetime.truncate('%s', %s)", g.Unit, dt)
	}

	switch g.Unit {
	case "second", "minute", "hour", "day":
		span := unitSeconds[g.Unit] * int64(g.Size)
		epoch := dt + ".epochSeconds"
		return fmt.Sprintf("datetime({epochSeconds: %s - ((%s %% %d) + %d) %% %d})", epoch, epoch, span, span, span)
	case "week":
		span := unitSeconds[g.Unit] * int64(g.Size)
		epoch := dt + ".epochSeconds"
		return fmt.Sprintf("datetime({epochSeconds: %s - (((%s - %d) %% %d) + %d) %% %d})",
			epoch, epoch, weekAnchorOffset, span, span, span)
	case "month", "quarter":
		months := g.Size
		if g.Unit == "quarter" {
			months *= 3
		}
		index := fmt.Sprintf("(%s.year * 12 + %s.month - 1)", dt, dt)
		start := fmt.Sprintf("(%s - ((%s %% %d) + %d) %% %d)", index, index, months, months, months)
		return fmt.Sprintf("datetime({year: %s / 12, month: %s %% 12 + 1, day: 1})", start, start)
	default:
		year := dt + ".year"
		return fmt.Sprintf("datetime({year: %s - ((%s %% %d) + %d) %% %d, month: 1, day: 1})",
			year, year, g.Size, g.Size, g.Size)
	}
}
