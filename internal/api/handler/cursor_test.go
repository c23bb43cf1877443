package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writgo/content-engine/internal/api/storage"
)

func TestJobCursorRoundTrip(t *testing.T) {
	original := &storage.JobCursor{
		CreatedAt: time.Unix(0, 1724918400123456789),
		JobID:     "1d8f3b1e-9f0a-4f6f-8a9e-2f4b6c8d0e1a",
	}

	encoded, err := EncodeJobCursor(original)
	require.NoError(t, err)

	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.True(t, decoded.CreatedAt.Equal(original.CreatedAt))
	assert.Equal(t, original.JobID, decoded.JobID)
}

func TestDecodeJobCursor_Empty(t *testing.T) {
	cursor, err := DecodeJobCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeJobCursor_InvalidBase64(t *testing.T) {
	_, err := DecodeJobCursor("not-base64!!!")
	assert.Error(t, err)
}

func TestDecodeJobCursor_BadFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "no separator", raw: "12345"},
		{name: "too many parts", raw: "1|2|3"},
		{name: "non numeric timestamp", raw: "abc|job-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := base64.StdEncoding.EncodeToString([]byte(tt.raw))
			_, err := DecodeJobCursor(encoded)
			assert.Error(t, err)
		})
	}
}
