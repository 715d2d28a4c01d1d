// ABOUTME: Shared fixtures for backend tests.
// ABOUTME: A small dataset covering all three tables and boundary values.
package storage

import (
	"testing"
	"time"

	"github.com/harperreed/healthx/internal/models"
)

func at(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.FixedZone("PST", -8*3600))
}

func record(typ, raw string, value float64, start time.Time) *models.Record {
	return &models.Record{
		Type:          typ,
		SourceVersion: "17.2",
		SourceName:    "Rob's iPhone",
		Device:        models.Unknown,
		StartDate:     start,
		EndDate:       start.Add(5 * time.Minute),
		CreationDate:  start.Add(6 * time.Minute),
		Unit:          "count",
		Value:         value,
		TextValue:     raw,
	}
}

// fixtureBatches returns one batch per table.
func fixtureBatches(t *testing.T) []models.Batch {
	t.Helper()
	steps := "HKQuantityTypeIdentifierStepCount"
	records := []models.Row{
		record(steps, "10", 10, at(1, 8)),
		record(steps, "20", 20, at(2, 8)),
		record(steps, "abc", 0, at(3, 8)),
		record(steps, "64.999", 64.999, at(20, 8)),
		record(steps, "90", 90, at(21, 8)),
		record("HKQuantityTypeIdentifierHeartRate", "62", 62, at(5, 9)),
	}

	run := &models.Workout{
		ID: "w-run", Type: "HKWorkoutActivityTypeRunning", Duration: 45.5, DurationUnit: "min",
		SourceName: "Watch", StartDate: at(4, 7), EndDate: at(4, 8), CreationDate: at(4, 8),
	}
	yoga := &models.Workout{
		ID: "w-yoga", Type: "HKWorkoutActivityTypeYoga", Duration: 30, DurationUnit: "min",
		SourceName: "Watch", StartDate: at(4, 7), EndDate: at(4, 8), CreationDate: at(4, 8),
	}
	stats := []models.Row{
		&models.WorkoutStat{WorkoutID: "w-run", Type: "HKQuantityTypeIdentifierActiveEnergyBurned",
			StartDate: run.StartDate, EndDate: run.EndDate, Sum: 410, Unit: "kcal"},
		&models.WorkoutStat{WorkoutID: "w-yoga", Type: "HKQuantityTypeIdentifierActiveEnergyBurned",
			StartDate: yoga.StartDate, EndDate: yoga.EndDate, Sum: 120, Unit: "kcal"},
	}

	return []models.Batch{
		models.NewBatch(models.TableRecords, records),
		models.NewBatch(models.TableWorkouts, []models.Row{run, yoga}),
		models.NewBatch(models.TableWorkoutStats, stats),
	}
}
