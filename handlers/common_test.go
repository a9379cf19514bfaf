package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := parseDate("2021-06-30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDate("2021-06-30T12:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 6, 30, 10, 0, 0, 0, time.UTC), d)

	_, err = parseDate("30/06/2021")
	assert.Error(t, err)
}

func TestParseOptionalDate(t *testing.T) {
	d, err := parseOptionalDate("  ")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseOptionalDate("2020-01-01")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 2020, d.Year())
}

func TestCleanText(t *testing.T) {
	h := New(Deps{})
	cases := map[string]string{
		"plain":                            "plain",
		"<b>bold</b> move":                 "bold move",
		`<img src=x onerror="alert(1)">hi`: "hi",
		"  a & b  ":                        "a & b",
		"<script>alert('x')</script>":      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, h.cleanText(in), in)
	}
}
