// ABOUTME: Normalized Workout and WorkoutStat rows.
// ABOUTME: Statistics reference their parent workout by a synthetic WorkoutID.
package models

import "time"

// Workout is one activity session (a Workout element).
type Workout struct {
	ID           string
	Type         string
	Duration     float64
	DurationUnit string
	SourceName   string
	StartDate    time.Time
	EndDate      time.Time
	CreationDate time.Time
}

func (w *Workout) Table() Table { return TableWorkouts }

func (w *Workout) Values() []any {
	return []any{
		w.ID, w.Type, w.Duration, w.DurationUnit, w.SourceName,
		w.StartDate, w.EndDate, w.CreationDate,
	}
}

// WorkoutStat is one WorkoutStatistics child of a workout.
type WorkoutStat struct {
	WorkoutID string
	Type      string
	StartDate time.Time
	EndDate   time.Time
	Sum       float64
	Average   float64
	Minimum   float64
	Maximum   float64
	Unit      string
}

func (s *WorkoutStat) Table() Table { return TableWorkoutStats }

func (s *WorkoutStat) Values() []any {
	return []any{
		s.WorkoutID, s.Type, s.StartDate, s.EndDate,
		s.Sum, s.Average, s.Minimum, s.Maximum, s.Unit,
	}
}
