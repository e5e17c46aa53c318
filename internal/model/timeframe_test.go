package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in      string
		want    Timeframe
		wantErr bool
	}{
		{in: "", want: TimeframeAll},
		{in: "all_time", want: TimeframeAll},
		{in: "today", want: TimeframeToday},
		{in: "This Week", want: TimeframeThisWeek},
		{in: " last_month ", want: TimeframeLastMonth},
		{in: "fortnight", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeframe(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeframe_Window(t *testing.T) {
	// Wednesday.
	now := time.Date(2025, 3, 5, 15, 30, 0, 0, time.UTC)
	day := func(m time.Month, d int) time.Time { return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		tf       Timeframe
		wantFrom time.Time
		wantTo   time.Time
	}{
		{tf: TimeframeAll},
		{tf: TimeframeToday, wantFrom: day(3, 5)},
		{tf: TimeframeYesterday, wantFrom: day(3, 4), wantTo: day(3, 5)},
		{tf: TimeframeThisWeek, wantFrom: day(3, 3)},
		{tf: TimeframeLastWeek, wantFrom: day(2, 24), wantTo: day(3, 3)},
		{tf: TimeframeThisMonth, wantFrom: day(3, 1)},
		{tf: TimeframeLastMonth, wantFrom: day(2, 1), wantTo: day(3, 1)},
	}
	for _, tt := range tests {
		t.Run(string(tt.tf), func(t *testing.T) {
			from, to := tt.tf.Window(now)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}

	// A Sunday still belongs to the week that began on Monday.
	from, _ := TimeframeThisWeek.Window(time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, day(3, 3), from)
}
