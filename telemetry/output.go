package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/gridsoup/config"
)

// CSVFile appends records to one CSV file, writing the header once.
type CSVFile struct {
	file          *os.File
	headerWritten bool
}

// CreateCSV creates or truncates the CSV file at path.
func CreateCSV(path string) (*CSVFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &CSVFile{file: f}, nil
}

// Append writes records, a slice of csv-tagged structs.
func (s *CSVFile) Append(records any) error {
	if !s.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, s.file); err != nil {
			return err
		}
		s.headerWritten = true
		return nil
	}
	// Subsequent writes skip headers
	return gocsv.MarshalWithoutHeaders(records, s.file)
}

// Close closes the underlying file.
func (s *CSVFile) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// OutputManager handles structured experiment output with CSV logging.
// Each channel of a run gets its own subdirectory.
type OutputManager struct {
	dir       string
	telemetry *CSVFile
	perf      *CSVFile
	lifetimes *CSVFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	for _, target := range []struct {
		name string
		sink **CSVFile
	}{
		{"telemetry.csv", &om.telemetry},
		{"perf.csv", &om.perf},
		{"lifetimes.csv", &om.lifetimes},
	} {
		f, err := CreateCSV(filepath.Join(dir, target.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", target.name, err)
		}
		*target.sink = f
	}

	return om, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := om.telemetry.Append([]WindowStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd uint64) error {
	if om == nil {
		return nil
	}
	if err := om.perf.Append([]PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteLifetimes appends finished lifetimes to lifetimes.csv.
func (om *OutputManager) WriteLifetimes(lifetimes []Lifetime) error {
	if om == nil || len(lifetimes) == 0 {
		return nil
	}
	if err := om.lifetimes.Append(lifetimes); err != nil {
		return fmt.Errorf("writing lifetimes: %w", err)
	}
	return nil
}

// WriteHallOfFame saves the hall of fame as JSON.
func (om *OutputManager) WriteHallOfFame(hof *HallOfFame) error {
	if om == nil || hof == nil {
		return nil
	}

	data, err := hof.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling hall of fame: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "hall_of_fame.json"), data, 0644); err != nil {
		return fmt.Errorf("writing hall_of_fame.json: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, s := range []*CSVFile{om.telemetry, om.perf, om.lifetimes} {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
