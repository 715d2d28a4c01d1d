// ABOUTME: Direct exploration of an export without ingesting it.
// ABOUTME: Structure analysis, case-insensitive attribute search, and lookup by type.
package xmlstream

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/harperreed/healthx/internal/models"
)

// Structure summarizes the distinct shapes found in a document.
type Structure struct {
	FileSizeMB   float64  `json:"file_size_mb" yaml:"file_size_mb"`
	Elements     int      `json:"elements" yaml:"elements"`
	Tags         []string `json:"tags" yaml:"tags"`
	RecordTypes  []string `json:"record_types" yaml:"record_types"`
	WorkoutTypes []string `json:"workout_types" yaml:"workout_types"`
	Sources      []string `json:"sources" yaml:"sources"`
}

// Analyze streams the document once and collects its distinct tags, types, and sources.
func Analyze(path string) (*Structure, error) {
	info, err := os.Stat(path)
	if err != nil {
		// Let Open produce the SourceNotFound error.
		if _, oerr := Open(path); oerr != nil {
			return nil, oerr
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}

	tags := map[string]struct{}{}
	recordTypes := map[string]struct{}{}
	workoutTypes := map[string]struct{}{}
	sources := map[string]struct{}{}

	s := &Structure{FileSizeMB: float64(info.Size()*100/(1024*1024)) / 100}
	for el, err := range Elements(path) {
		if err != nil {
			return nil, err
		}
		s.Elements++
		tags[el.Tag] = struct{}{}
		switch el.Tag {
		case "Record":
			if v, ok := el.Attr("type"); ok {
				recordTypes[v] = struct{}{}
			}
			if v, ok := el.Attr("sourceName"); ok {
				sources[v] = struct{}{}
			}
		case "Workout":
			if v, ok := el.Attr("workoutActivityType"); ok {
				workoutTypes[v] = struct{}{}
			}
		}
	}

	s.Tags = sortedKeys(tags)
	s.RecordTypes = sortedKeys(recordTypes)
	s.WorkoutTypes = sortedKeys(workoutTypes)
	s.Sources = sortedKeys(sources)
	return s, nil
}

// Grep returns Record and Workout elements with any attribute value containing
// text, ignoring case. At most max elements are returned; max <= 0 means 50.
func Grep(path, text string, max int) ([]Element, error) {
	if max <= 0 {
		max = 50
	}
	needle := strings.ToLower(text)

	var matches []Element
	for el, err := range Elements(path) {
		if err != nil {
			return nil, err
		}
		if el.Tag != "Record" && el.Tag != "Workout" {
			continue
		}
		for _, v := range el.Attrs {
			if v != "" && strings.Contains(strings.ToLower(v), needle) {
				matches = append(matches, el)
				break
			}
		}
		if len(matches) >= max {
			break
		}
	}
	return matches, nil
}

// ByType returns Record elements of the given type, or Workout elements when
// recordType names a workout activity. limit <= 0 means 20.
func ByType(path, recordType string, limit int) ([]Element, error) {
	if limit <= 0 {
		limit = 20
	}
	tag, attr := "Record", "type"
	if strings.HasPrefix(recordType, models.WorkoutTypePrefix) {
		tag, attr = "Workout", "workoutActivityType"
	}

	var matches []Element
	for el, err := range Elements(path) {
		if err != nil {
			return nil, err
		}
		if el.Tag != tag {
			continue
		}
		if v, ok := el.Attr(attr); ok && v == recordType {
			matches = append(matches, el)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches, nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
