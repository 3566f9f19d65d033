package segment

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/everystreet/conceptual"
)

// FallbackIDProperties are consulted in order when a feature
// carries no IDProperty.
var FallbackIDProperties = []string{"id", "ID", "segment_id", "OBJECTID", "objectid", "osm_id"}

const (
	generatedIDPrefix = "generated_segment_"
	generatedIDChars  = "0123456789abcdefghijklmnopqrstuvwxyz"
	generatedIDLen    = 5
)

// DeriveID finds a feature's identifier from its own data.
// It returns false when the feature has nothing usable and
// an identifier must be generated.
func DeriveID(f *geojson.Feature) (conceptual.SegmentID, bool) {
	if f == nil {
		return "", false
	}
	if f.Properties != nil {
		if v, ok := f.Properties[IDProperty]; ok {
			if s := stringifyID(v); s != "" {
				return conceptual.SegmentID(s), true
			}
		}
		for _, key := range FallbackIDProperties {
			v, ok := f.Properties[key]
			if !ok || v == nil {
				continue
			}
			return conceptual.SegmentID(stringifyID(v)), true
		}
	}
	if f.ID != nil {
		return conceptual.SegmentID(stringifyID(f.ID)), true
	}
	return "", false
}

// stringifyID renders JSON scalars the way they were written:
// integral numbers without exponent or trailing zeros.
func stringifyID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// IDGenerator assigns segment identifiers for a session.
// Generated identifiers never collide with any identifier
// it has assigned before, derived or generated.
type IDGenerator struct {
	mu     sync.Mutex
	intN   func(n int) int
	issued map[conceptual.SegmentID]struct{}
}

func NewIDGenerator() *IDGenerator {
	return NewIDGeneratorFunc(rand.IntN)
}

// NewIDGeneratorFunc draws suffix characters with intN,
// which must return a value in [0, n).
func NewIDGeneratorFunc(intN func(n int) int) *IDGenerator {
	return &IDGenerator{
		intN:   intN,
		issued: make(map[conceptual.SegmentID]struct{}),
	}
}

// Issued reports whether id was assigned earlier in this session.
func (g *IDGenerator) Issued(id conceptual.SegmentID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.issued[id]
	return ok
}

// Assign turns features into segments with unique identifiers.
// Features are not modified; each segment gets cloned properties.
// A feature whose derived identifier repeats an earlier one in the
// same batch is given a generated identifier instead.
func (g *IDGenerator) Assign(features []*geojson.Feature) Segments {
	g.mu.Lock()
	defer g.mu.Unlock()

	derived := make([]conceptual.SegmentID, len(features))
	ok := make([]bool, len(features))
	fileIDs := make(map[conceptual.SegmentID]struct{}, len(features))
	for i, f := range features {
		derived[i], ok[i] = DeriveID(f)
		if ok[i] {
			fileIDs[derived[i]] = struct{}{}
		}
	}

	used := make(map[conceptual.SegmentID]struct{}, len(features))
	out := make(Segments, 0, len(features))
	for i, f := range features {
		if f == nil {
			continue
		}
		id := derived[i]
		if ok[i] {
			if _, dup := used[id]; dup {
				newID := g.generate(i, fileIDs)
				slog.Warn("Duplicate segment id in file, generated replacement",
					"index", i, "id", id, "replacement", newID)
				id = newID
			}
		} else {
			id = g.generate(i, fileIDs)
		}
		used[id] = struct{}{}
		g.issued[id] = struct{}{}

		sf := geojson.Feature(*f)
		sf.Properties = f.Properties.Clone()
		if sf.Properties == nil {
			sf.Properties = geojson.Properties{}
		}
		sf.Properties[IDProperty] = id.String()
		seg := Segment(sf)
		out = append(out, &seg)
	}
	return out
}

// generate must be called with g.mu held.
func (g *IDGenerator) generate(index int, fileIDs map[conceptual.SegmentID]struct{}) conceptual.SegmentID {
	for {
		id := conceptual.SegmentID(generatedIDPrefix + strconv.Itoa(index) + "_" + g.suffix())
		if _, taken := fileIDs[id]; taken {
			continue
		}
		if _, taken := g.issued[id]; taken {
			continue
		}
		return id
	}
}

func (g *IDGenerator) suffix() string {
	b := make([]byte, generatedIDLen)
	for i := range b {
		b[i] = generatedIDChars[g.intN(len(generatedIDChars))]
	}
	return string(b)
}

// IsGeneratedID reports whether id was made up at load time
// rather than read from the file.
func IsGeneratedID(id conceptual.SegmentID) bool {
	return strings.HasPrefix(string(id), generatedIDPrefix)
}
