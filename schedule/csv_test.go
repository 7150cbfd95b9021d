package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absenlab/absen/errors"
)

func TestParseCSV(t *testing.T) {
	csv := "CourseName,Day,Time\n" +
		"Data Science Basics,Senin,08:15 - 10:00\n" +
		"Fisika Dasar,Rabu,10:00 - 12:00\n"

	set, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, set, 2)

	assert.Equal(t, "Data Science Basics", set[0].Course)
	assert.Equal(t, time.Monday, set[0].Day)
	assert.Equal(t, "08:15", set[0].Start.String())
	assert.Equal(t, "10:00", set[0].End.String())

	assert.Equal(t, time.Wednesday, set[1].Day)
}

func TestParseCSVEnglishDays(t *testing.T) {
	set, err := Parse(strings.NewReader("CourseName,Day,Time\nAlgorithms,Friday,13:00 - 15:00\n"))
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, time.Friday, set[0].Day)
}

func TestParseCSVRejectsMissingHeader(t *testing.T) {
	_, err := Parse(strings.NewReader("Matematika,Senin,07:00 - 09:00\n"))
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
}

func TestParseCSVRejectsStartAfterEnd(t *testing.T) {
	_, err := Parse(strings.NewReader("CourseName,Day,Time\nMatematika,Senin,09:00 - 07:00\n"))
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
}

func TestParseCSVRejectsUnknownDay(t *testing.T) {
	_, err := Parse(strings.NewReader("CourseName,Day,Time\nMatematika,Someday,07:00 - 09:00\n"))
	require.Error(t, err)
	assert.True(t, errors.IsConfigurationError(err))
}

func TestParseCSVEmptyBody(t *testing.T) {
	set, err := Parse(strings.NewReader("CourseName,Day,Time\n"))
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestParseMinute(t *testing.T) {
	m, err := ParseMinute(" 08:15 ")
	require.NoError(t, err)
	assert.Equal(t, 8, m.Hour())
	assert.Equal(t, 15, m.Minute())

	_, err = ParseMinute("25:00")
	assert.Error(t, err)
	_, err = ParseMinute("0800")
	assert.Error(t, err)
}

func TestParseDayCaseInsensitive(t *testing.T) {
	d, err := ParseDay("SENIN")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d)

	d, err = ParseDay("jumat")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, d)
}
