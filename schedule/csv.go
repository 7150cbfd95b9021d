package schedule

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/absenlab/absen/errors"
)

// CSV column layout: CourseName,Day,Time — where Time is a range written
// "08:00 - 09:40". This is the format the schedule ingestion bots emit.

// LoadFile reads a schedule CSV from disk.
func LoadFile(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open schedule %s", path)
	}
	defer f.Close()
	set, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "schedule %s", path)
	}
	return set, nil
}

// Parse reads schedule rows from r. The header row is required and
// malformed rows are rejected outright — a schedule that silently lost a
// class would skip attendance without anyone noticing.
func Parse(r io.Reader) (Set, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return Set{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if len(header) < 3 ||
		!strings.EqualFold(strings.TrimSpace(header[0]), "CourseName") ||
		!strings.EqualFold(strings.TrimSpace(header[1]), "Day") ||
		!strings.EqualFold(strings.TrimSpace(header[2]), "Time") {
		return nil, errors.NewConfigurationError("header must be CourseName,Day,Time")
	}

	var set Set
	row := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", row)
		}
		if len(record) < 3 {
			return nil, errors.NewConfigurationError("row %d: want 3 columns, got %d", row, len(record))
		}

		entry, err := parseRow(record[0], record[1], record[2])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", row)
		}
		set = append(set, entry)
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func parseRow(course, day, timeRange string) (Entry, error) {
	d, err := ParseDay(day)
	if err != nil {
		return Entry{}, err
	}

	parts := strings.SplitN(timeRange, "-", 2)
	if len(parts) != 2 {
		return Entry{}, errors.NewConfigurationError("invalid time range %q: want \"HH:MM - HH:MM\"", timeRange)
	}
	start, err := ParseMinute(parts[0])
	if err != nil {
		return Entry{}, err
	}
	end, err := ParseMinute(parts[1])
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		Course: strings.TrimSpace(course),
		Day:    d,
		Start:  start,
		End:    end,
	}, nil
}
