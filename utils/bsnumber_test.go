package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBsNumber(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"ms01-ms002", "MS1-MS2"},
		{"ms01", "MS1"},
		{"MS1", "MS1"},
		{"ms 01 - ms 02", "MS1-MS2"},
		{"ms.01", "MS1"},
		{"ab1234", "AB1234"},
		// A part shorter than two characters has no station number to strip.
		{"a", "A"},
		{"", ""},
		// An all-zero station number collapses to the bare region code.
		{"ms000", "MS"},
		{"ms0010", "MS10"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, NormalizeBsNumber(tc.input), "input %q", tc.input)
	}
}

func TestNormalizeBsNumberIdempotent(t *testing.T) {
	inputs := []string{"ms01-ms002", "ab0001", "MS1-MS2", "x", "ms000"}
	for _, input := range inputs {
		once := NormalizeBsNumber(input)
		assert.Equal(t, once, NormalizeBsNumber(once), "input %q", input)
	}
}

func TestSplitSiteNames(t *testing.T) {
	assert.Equal(t, []string{"MS1", "MS2"}, SplitSiteNames("MS1-MS2"))
	assert.Equal(t, []string{"MS1"}, SplitSiteNames("MS1"))
}

func TestTaskFolderName(t *testing.T) {
	assert.Equal(t, "antenna_repair_ms1-ms2", TaskFolderName("Antenna  Repair!", "MS1-MS2"))
	assert.Equal(t, "feeder_swap_ms7", TaskFolderName("__Feeder swap__", "MS7"))
	// Cyrillic task names survive the sanitizer.
	assert.Equal(t, "ремонт_антенны_ms1", TaskFolderName("Ремонт антенны", "MS1"))
}
