// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"simple", "kitchen", nil},
		{"with space", "Living Room", nil},
		{"with punctuation", "attic_left-2.1", nil},
		{"empty", "", ErrEmptyName},
		{"too long", strings.Repeat("a", MaxNameLength+1), ErrNameTooLong},
		{"slash", "kitchen/2", ErrInvalidName},
		{"leading space", " kitchen", ErrInvalidName},
		{"shell metachars", "room;rm -rf", ErrInvalidName},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateName(tc.input)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestValidateVolume(t *testing.T) {
	assert.NoError(t, ValidateVolume(0))
	assert.NoError(t, ValidateVolume(100))
	assert.ErrorIs(t, ValidateVolume(-1), ErrVolumeRange)
	assert.ErrorIs(t, ValidateVolume(101), ErrVolumeRange)
}

func TestValidateDelay(t *testing.T) {
	assert.NoError(t, ValidateDelay(-1000))
	assert.NoError(t, ValidateDelay(1000))
	assert.ErrorIs(t, ValidateDelay(-1001), ErrDelayRange)
	assert.ErrorIs(t, ValidateDelay(1001), ErrDelayRange)
}

func TestConfigCloneDoesNotAlias(t *testing.T) {
	orig := Config{
		Name:   "kitchen",
		Device: "hw:0,0",
		Extra:  map[string]any{"codec": "flac"},
	}

	clone := orig.Clone()
	clone.Extra["codec"] = "pcm"
	clone.Device = "hw:1,0"

	require.Equal(t, "flac", orig.Extra["codec"])
	require.Equal(t, "hw:0,0", orig.Device)
}
