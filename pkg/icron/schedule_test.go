package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfoDaily(t *testing.T) {
	ref := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	info, err := GetTriggerInfo("0 1 * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 9*time.Hour+30*time.Minute, info.TimeUntilNext)
	assert.Equal(t, 14*time.Hour+30*time.Minute, info.TimeSinceLast)
}

func TestGetTriggerInfoWithSeconds(t *testing.T) {
	ref := time.Date(2026, 3, 10, 15, 30, 10, 0, time.UTC)

	info, err := GetTriggerInfo("30 */5 * * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 10, 15, 30, 30, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 10, 15, 25, 30, 0, time.UTC), info.Last)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("@daily"))
	assert.NoError(t, Validate("0 1 * * *"))
	assert.Error(t, Validate("not a cron"))
	assert.Error(t, Validate("61 * * * *"))
}
