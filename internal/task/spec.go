package task

import (
	"fmt"
	"time"

	"github.com/rkm/granulesync/internal/match"
	"github.com/rkm/granulesync/pkg/daterange"
)

// Datetime is a timestamp written as an integer list in task documents:
// [year, month, day] optionally extended with hour, minute and second,
// e.g. [2015, 6, 1] or [2015, 6, 1, 12, 30]. All datetimes are UTC.
type Datetime []int

// Time converts the list into a time.Time.
func (d Datetime) Time() (time.Time, error) {
	if len(d) < 3 || len(d) > 6 {
		return time.Time{}, fmt.Errorf("%w: datetime %v must have 3 to 6 components", ErrInvalidSpec, []int(d))
	}

	var parts [6]int
	copy(parts[:], d)

	t := time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, time.UTC)
	// time.Date normalizes out-of-range components; reject anything that did
	// not round-trip.
	if t.Year() != parts[0] || int(t.Month()) != parts[1] || t.Day() != parts[2] ||
		t.Hour() != parts[3] || t.Minute() != parts[4] || t.Second() != parts[5] {
		return time.Time{}, fmt.Errorf("%w: datetime %v has out-of-range components", ErrInvalidSpec, []int(d))
	}
	return t, nil
}

func timeRange(start, end Datetime) (daterange.Range, error) {
	s, err := start.Time()
	if err != nil {
		return daterange.Range{}, fmt.Errorf("start_datetime: %w", err)
	}
	e, err := end.Time()
	if err != nil {
		return daterange.Range{}, fmt.Errorf("end_datetime: %w", err)
	}
	r, err := daterange.New(s, e)
	if err != nil {
		return daterange.Range{}, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	return r, nil
}

// IDsFetchSpec configures an ids.fetch task: query the catalog over the
// datetime range in batches and persist the identifiers to a file.
type IDsFetchSpec struct {
	StartDatetime  Datetime           `yaml:"start_datetime"`
	EndDatetime    Datetime           `yaml:"end_datetime"`
	BatchInterval  daterange.Interval `yaml:"batch_interval"`
	OutputFilename string             `yaml:"output_filename"`
	Overwrite      bool               `yaml:"overwrite"`
}

// Range returns the validated datetime range.
func (s *IDsFetchSpec) Range() (daterange.Range, error) {
	return timeRange(s.StartDatetime, s.EndDatetime)
}

// Validate checks the spec before any catalog request is made.
func (s *IDsFetchSpec) Validate() error {
	if _, err := s.Range(); err != nil {
		return err
	}
	if s.BatchInterval.IsZero() {
		return fmt.Errorf("%w: batch_interval must be a positive duration", ErrInvalidSpec)
	}
	if s.OutputFilename == "" {
		return fmt.Errorf("%w: output_filename is required", ErrInvalidSpec)
	}
	return nil
}

// FilesFetchSpec configures a files.fetch task: download and transform the
// products listed in an identifier file, restricted to the datetime range.
type FilesFetchSpec struct {
	StartDatetime      Datetime `yaml:"start_datetime"`
	EndDatetime        Datetime `yaml:"end_datetime"`
	InputFilename      string   `yaml:"input_filename"`
	OutputDirectory    string   `yaml:"output_directory"`
	TempDirectory      string   `yaml:"temp_directory"`
	NumberOfProcesses  int      `yaml:"number_of_processes"`
	RemoveFileIfExists bool     `yaml:"remove_file_if_exists"`
}

// Range returns the validated datetime range.
func (s *FilesFetchSpec) Range() (daterange.Range, error) {
	return timeRange(s.StartDatetime, s.EndDatetime)
}

// Validate checks the spec before any download starts.
func (s *FilesFetchSpec) Validate() error {
	if _, err := s.Range(); err != nil {
		return err
	}
	if s.InputFilename == "" {
		return fmt.Errorf("%w: input_filename is required", ErrInvalidSpec)
	}
	if s.OutputDirectory == "" {
		return fmt.Errorf("%w: output_directory is required", ErrInvalidSpec)
	}
	if s.NumberOfProcesses < 0 {
		return fmt.Errorf("%w: number_of_processes must be non-negative", ErrInvalidSpec)
	}
	return nil
}

// PatternSpec is the filename filter of a files.verify task. Both match_all
// and case_sensitive default to true when omitted.
type PatternSpec struct {
	SubStrings    []string `yaml:"sub_strings"`
	MatchAll      *bool    `yaml:"match_all"`
	CaseSensitive *bool    `yaml:"case_sensitive"`
}

// Pattern converts the spec into a match.Pattern with defaults applied.
func (p PatternSpec) Pattern() match.Pattern {
	boolOr := func(v *bool, def bool) bool {
		if v == nil {
			return def
		}
		return *v
	}
	return match.Pattern{
		Substrings:    p.SubStrings,
		MatchAll:      boolOr(p.MatchAll, true),
		CaseSensitive: boolOr(p.CaseSensitive, true),
	}
}

// FilesVerifySpec configures a files.verify task: reconcile a directory tree
// against an identifier file over the datetime range.
type FilesVerifySpec struct {
	StartDatetime     Datetime    `yaml:"start_datetime"`
	EndDatetime       Datetime    `yaml:"end_datetime"`
	InputFilename     string      `yaml:"input_filename"`
	FilesDirectory    string      `yaml:"files_directory"`
	Pattern           PatternSpec `yaml:"pattern"`
	NominalSize       int64       `yaml:"nominal_size"`
	Tolerance         float64     `yaml:"tolerance"`
	NumberOfProcesses int         `yaml:"number_of_processes"`
}

// Range returns the validated datetime range.
func (s *FilesVerifySpec) Range() (daterange.Range, error) {
	return timeRange(s.StartDatetime, s.EndDatetime)
}

// Validate checks the spec before the scan starts.
func (s *FilesVerifySpec) Validate() error {
	if _, err := s.Range(); err != nil {
		return err
	}
	if s.InputFilename == "" {
		return fmt.Errorf("%w: input_filename is required", ErrInvalidSpec)
	}
	if s.FilesDirectory == "" {
		return fmt.Errorf("%w: files_directory is required", ErrInvalidSpec)
	}
	if s.NominalSize < 0 {
		return fmt.Errorf("%w: nominal_size must be non-negative", ErrInvalidSpec)
	}
	if s.Tolerance < 0 || s.Tolerance >= 1 {
		return fmt.Errorf("%w: tolerance must be in [0, 1)", ErrInvalidSpec)
	}
	return nil
}

// ChimpRetrieveSpec configures a chimp.retrieve task: slide a window of the
// given size over the in-range input files, invoking the retrieval once per
// window.
type ChimpRetrieveSpec struct {
	StartDatetime   Datetime `yaml:"start_datetime"`
	EndDatetime     Datetime `yaml:"end_datetime"`
	InputDirectory  string   `yaml:"input_directory"`
	OutputDirectory string   `yaml:"output_directory"`
	WindowSize      int      `yaml:"window_size"`
}

// Range returns the validated datetime range.
func (s *ChimpRetrieveSpec) Range() (daterange.Range, error) {
	return timeRange(s.StartDatetime, s.EndDatetime)
}

// Validate checks the spec before any window is formed.
func (s *ChimpRetrieveSpec) Validate() error {
	if _, err := s.Range(); err != nil {
		return err
	}
	if s.InputDirectory == "" {
		return fmt.Errorf("%w: input_directory is required", ErrInvalidSpec)
	}
	if s.OutputDirectory == "" {
		return fmt.Errorf("%w: output_directory is required", ErrInvalidSpec)
	}
	if s.WindowSize < 1 {
		return fmt.Errorf("%w: window_size must be at least 1", ErrInvalidSpec)
	}
	return nil
}
