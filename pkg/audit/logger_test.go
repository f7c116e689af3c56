package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventStampsIDAndTime(t *testing.T) {
	e := NewEvent(EventTypeRoleGrant, EventStatusSuccess)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())

	other := NewEvent(EventTypeRoleGrant, EventStatusSuccess)
	assert.NotEqual(t, e.ID, other.ID)
}

func TestMemoryLoggerRetainsEvents(t *testing.T) {
	logger := NewMemoryLogger()
	ctx := context.Background()

	require.NoError(t, logger.Log(ctx, NewEvent(EventTypePermissionCheck, EventStatusSuccess)))
	require.NoError(t, logger.Log(ctx, NewEvent(EventTypeAccessDenied, EventStatusDenied)))

	events := logger.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeAccessDenied, events[1].Type)

	// The returned slice is a copy.
	events[0] = nil
	assert.NotNil(t, logger.Events()[0])
}

func TestFileLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	ctx := context.Background()
	userID := int64(10)
	e := NewEvent(EventTypeRoleGrant, EventStatusSuccess)
	e.SubjectID = &userID
	e.ResourceType = "role"
	require.NoError(t, logger.Log(ctx, e))
	require.NoError(t, logger.Log(ctx, NewEvent(EventTypeCacheClear, EventStatusSuccess)))
	require.NoError(t, logger.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
		lines = append(lines, decoded)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, EventTypeRoleGrant, lines[0].Type)
	require.NotNil(t, lines[0].SubjectID)
	assert.Equal(t, int64(10), *lines[0].SubjectID)
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger{}
	assert.NoError(t, logger.Log(context.Background(), NewEvent(EventTypeCacheRebuild, EventStatusSuccess)))
	assert.NoError(t, logger.Close())
}
