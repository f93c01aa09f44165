// Package product is the single source of truth for product-identifier
// parsing and the identifier-to-filename naming convention. The fetch stage
// names output files through this package and the verify stage parses them
// back through it, so the two cannot drift apart.
package product

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Prefix selects the filename family for a product file.
type Prefix string

const (
	// PrefixInput is the prefix of resampled input files.
	PrefixInput Prefix = "seviri"
	// PrefixOutput is the prefix of retrieval output files.
	PrefixOutput Prefix = "chimp"
)

// Extension is the file extension of product files on disk.
const Extension = ".nc"

// A SEVIRI product identifier embeds its sensing timestamp, e.g.
// "MSG3-SEVI-MSG15-0100-NA-20150731221240.036000000Z-NA" -> 2015-07-31 22:12 UTC.
// Seconds and sub-second digits are not part of the file naming convention and
// are dropped.
var idPattern = regexp.MustCompile(
	`^[0-9A-Za-z]+-SEVI-[0-9A-Za-z]+-[0-9]+-NA` +
		`-([0-9]{4})([0-9]{2})([0-9]{2})([0-9]{2})([0-9]{2})[0-9]{2}\.[0-9]+Z-NA$`)

// Filenames look like "seviri_20150731_22_12.nc"; the prefix is arbitrary but
// must be non-empty.
var filenamePattern = regexp.MustCompile(
	`^[0-9A-Za-z]+_([0-9]{4})([0-9]{2})([0-9]{2})_([0-9]{2})_([0-9]{2})`)

// ParseError is returned when an identifier or filename does not carry a
// recognizable timestamp.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot derive a timestamp from %q", e.Input)
}

// TimeFromID extracts the minute-resolution sensing timestamp from a product
// identifier.
func TimeFromID(id string) (time.Time, error) {
	return timeFromGroups(idPattern.FindStringSubmatch(id), id)
}

// Filename generates the on-disk filename for a product timestamp.
func Filename(prefix Prefix, t time.Time) string {
	return fmt.Sprintf("%s_%s%s", prefix, t.UTC().Format("20060102_15_04"), Extension)
}

// FilenameFromID generates the on-disk filename for a product identifier.
func FilenameFromID(prefix Prefix, id string) (string, error) {
	t, err := TimeFromID(id)
	if err != nil {
		return "", err
	}
	return Filename(prefix, t), nil
}

// TimeFromFilename is the inverse of Filename: it recovers the
// minute-resolution timestamp from a product filename or path, regardless of
// prefix and extension.
func TimeFromFilename(path string) (time.Time, error) {
	name := filepath.Base(path)
	return timeFromGroups(filenamePattern.FindStringSubmatch(name), name)
}

func timeFromGroups(groups []string, input string) (time.Time, error) {
	if groups == nil {
		return time.Time{}, &ParseError{Input: input}
	}

	fields := make([]int, len(groups)-1)
	for i, g := range groups[1:] {
		n, err := strconv.Atoi(g)
		if err != nil {
			return time.Time{}, &ParseError{Input: input}
		}
		fields[i] = n
	}

	t := time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], fields[4], 0, 0, time.UTC)
	// time.Date normalizes out-of-range components (month 13 becomes January);
	// reject anything that did not round-trip.
	if t.Year() != fields[0] || int(t.Month()) != fields[1] || t.Day() != fields[2] {
		return time.Time{}, &ParseError{Input: input}
	}
	return t, nil
}
