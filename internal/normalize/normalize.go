// ABOUTME: Classifies raw export elements and normalizes them into table rows.
// ABOUTME: Applies the defaulting and coercion policy for every record shape.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/healthx/internal/models"
	"github.com/harperreed/healthx/internal/xmlstream"
)

// Kind is the shape an element was classified as.
type Kind int

const (
	KindIgnored Kind = iota
	KindRecord
	KindWorkout
	KindWorkoutStat
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindWorkout:
		return "workout"
	case KindWorkoutStat:
		return "workout_stat"
	default:
		return "ignored"
	}
}

// Classify decides the shape of an element from its tag and position.
// WorkoutStatistics only counts when nested directly under a Workout.
func Classify(el xmlstream.Element) Kind {
	switch el.Tag {
	case "Record":
		return KindRecord
	case "Workout":
		return KindWorkout
	case "WorkoutStatistics":
		if el.Parent == "Workout" {
			return KindWorkoutStat
		}
	}
	return KindIgnored
}

// recordDefaults fills optional Record attributes that may be absent.
var recordDefaults = map[string]string{
	"unit":          models.Unknown,
	"sourceVersion": models.Unknown,
	"device":        models.Unknown,
	"value":         models.Unknown,
}

// Normalizer turns elements into rows. It remembers the most recent workout
// so nested statistics can reference it; use one Normalizer per document.
type Normalizer struct {
	newID   func() string
	workout *models.Workout
}

// New returns a Normalizer that assigns random UUIDs to workouts.
func New() *Normalizer {
	return &Normalizer{newID: uuid.NewString}
}

// WithIDFunc overrides workout ID generation.
func (n *Normalizer) WithIDFunc(fn func() string) *Normalizer {
	n.newID = fn
	return n
}

// Normalize classifies el and returns its row, or nil for ignored elements.
// Only malformed dates on point records are errors.
func (n *Normalizer) Normalize(el xmlstream.Element) (models.Row, error) {
	switch Classify(el) {
	case KindRecord:
		return NormalizeRecord(el.Attrs)
	case KindWorkout:
		w := NormalizeWorkout(el.Attrs)
		w.ID = n.newID()
		n.workout = w
		return w, nil
	case KindWorkoutStat:
		if n.workout == nil {
			return nil, nil
		}
		s := NormalizeWorkoutStat(el.Attrs)
		s.WorkoutID = n.workout.ID
		// Missing or unparsable dates fall back to the parent workout's.
		if s.StartDate.IsZero() {
			s.StartDate = n.workout.StartDate
		}
		if s.EndDate.IsZero() {
			s.EndDate = n.workout.EndDate
		}
		return s, nil
	}
	return nil, nil
}

// NormalizeRecord builds a point-record row from Record attributes.
// attrs is not modified.
func NormalizeRecord(attrs map[string]string) (*models.Record, error) {
	get := func(name string) string {
		if v, ok := attrs[name]; ok {
			return v
		}
		if v, ok := recordDefaults[name]; ok {
			return v
		}
		return models.Unknown
	}

	r := &models.Record{
		Type:          get("type"),
		SourceVersion: get("sourceVersion"),
		SourceName:    get("sourceName"),
		Device:        get("device"),
		Unit:          get("unit"),
		TextValue:     get("value"),
	}
	r.Value = parseFloat(r.TextValue)

	var err error
	if r.StartDate, err = models.ParseExportDate("startDate", attrs["startDate"]); err != nil {
		return nil, err
	}
	if r.EndDate, err = models.ParseExportDate("endDate", attrs["endDate"]); err != nil {
		return nil, err
	}
	if r.CreationDate, err = models.ParseExportDate("creationDate", attrs["creationDate"]); err != nil {
		return nil, err
	}
	return r, nil
}

// NormalizeWorkout builds a workout row. workoutActivityType becomes Type.
// Dates that fail to parse are left as the zero time.
func NormalizeWorkout(attrs map[string]string) *models.Workout {
	return &models.Workout{
		Type:         stringOr(attrs, "workoutActivityType"),
		Duration:     parseFloat(attrs["duration"]),
		DurationUnit: stringOr(attrs, "durationUnit"),
		SourceName:   stringOr(attrs, "sourceName"),
		StartDate:    parseLenient(attrs["startDate"]),
		EndDate:      parseLenient(attrs["endDate"]),
		CreationDate: parseLenient(attrs["creationDate"]),
	}
}

// NormalizeWorkoutStat builds a workout statistic row without its WorkoutID.
func NormalizeWorkoutStat(attrs map[string]string) *models.WorkoutStat {
	return &models.WorkoutStat{
		Type:      stringOr(attrs, "type"),
		StartDate: parseLenient(attrs["startDate"]),
		EndDate:   parseLenient(attrs["endDate"]),
		Sum:       parseFloat(attrs["sum"]),
		Average:   parseFloat(attrs["average"]),
		Minimum:   parseFloat(attrs["minimum"]),
		Maximum:   parseFloat(attrs["maximum"]),
		Unit:      stringOr(attrs, "unit"),
	}
}

// parseFloat coerces s to a finite float64, or 0.0.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}

func parseLenient(s string) time.Time {
	t, err := time.Parse(models.ExportDateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func stringOr(attrs map[string]string, name string) string {
	if v, ok := attrs[name]; ok {
		return v
	}
	return models.Unknown
}
