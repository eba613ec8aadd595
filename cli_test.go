package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArguments(t *testing.T) {
	args, err := parseArguments([]string{
		"--nip", "1234563218",
		"--server", "imap.example.pl",
		"--port", "993",
		"--protocol", "imap",
		"--from", "2025-03-01",
		"--to", "31.03.2025",
		"--exclude", "Spam",
		"--exclude", "Kosz",
		"--out", "/tmp/faktury",
		"--months",
		"--plain",
	})
	require.NoError(t, err)

	assert.Equal(t, "1234563218", args.Identifier)
	assert.Equal(t, "imap.example.pl", args.Server)
	assert.Equal(t, 993, args.Port)
	assert.Equal(t, "IMAP", args.Protocol)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), args.DateFrom)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), args.DateTo)
	assert.Equal(t, []string{"Spam", "Kosz"}, args.ExcludedFolders)
	assert.True(t, args.MonthFolders)
	assert.True(t, args.Plain)
}

func TestParseArgumentsErrors(t *testing.T) {
	_, err := parseArguments([]string{"--port", "notaport"})
	assert.Error(t, err)

	_, err = parseArguments([]string{"--from", "March 1st"})
	assert.Error(t, err)

	_, err = parseArguments([]string{"--nip"})
	assert.Error(t, err, "dangling flag needs a value")

	_, err = parseArguments([]string{"--bogus"})
	assert.Error(t, err)
}
