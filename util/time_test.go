package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeParsing(t *testing.T) {
	assert := assert.New(t)

	good := []string{
		"2023-07-19T21:54:14.165300Z",
		"2023-07-19T21:54:14.163Z",
		"2023-07-19T21:52:02.000+00:00",
		"2023-07-19T21:52:02.123456+00:00",
		"2023-09-13T11:23:33+09:00",
		"2023-09-13",
		"1694571813",
	}
	for _, g := range good {
		_, err := ParseTimestamp(g)
		assert.NoError(err, g)
	}

	bad := []string{"", "yesterday", "2023-13-45", "13/09/2023"}
	for _, b := range bad {
		_, err := ParseTimestamp(b)
		assert.Error(err, b)
	}
}

func TestTimeParsingNormalizes(t *testing.T) {
	assert := assert.New(t)

	ts, err := ParseTimestamp("2023-09-13T11:23:33+09:00")
	assert.NoError(err)
	assert.Equal(time.UTC, ts.Location())
	assert.Equal(2, ts.Hour())

	ts, err = ParseTimestamp("0")
	assert.NoError(err)
	assert.True(ts.Equal(time.Unix(0, 0)))
}
