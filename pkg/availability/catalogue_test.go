package availability

import (
	"testing"
	"time"

	"laundry/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "06:00", want: TimeOfDay{Hour: 6}},
		{in: "9:30", want: TimeOfDay{Hour: 9, Minute: 30}},
		{in: "23:59", want: TimeOfDay{Hour: 23, Minute: 59}},
		{in: "24:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "09-00", wantErr: true},
		{in: "9:5", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRangeCatalogue_HourlySixToTwentyTwo(t *testing.T) {
	c, err := RangeCatalogue(TimeOfDay{Hour: 6}, TimeOfDay{Hour: 22}, time.Hour)
	require.NoError(t, err)

	starts := c.Starts()
	require.Len(t, starts, 17)
	assert.Equal(t, "06:00", starts[0].String())
	assert.Equal(t, "22:00", starts[16].String())
}

func TestRangeCatalogue_Invalid(t *testing.T) {
	_, err := RangeCatalogue(TimeOfDay{Hour: 22}, TimeOfDay{Hour: 6}, time.Hour)
	assert.Error(t, err)

	_, err = RangeCatalogue(TimeOfDay{Hour: 6}, TimeOfDay{Hour: 22}, 0)
	assert.Error(t, err)

	_, err = RangeCatalogue(TimeOfDay{Hour: 6}, TimeOfDay{Hour: 22}, 90*time.Second)
	assert.Error(t, err)
}

func TestParseCatalogue_SortsAndDeduplicates(t *testing.T) {
	c, err := ParseCatalogue("19:30, 07:00,09:00,07:00,")
	require.NoError(t, err)

	assert.Equal(t, "07:00,09:00,19:30", c.String())

	_, err = ParseCatalogue("")
	assert.Error(t, err)
	_, err = ParseCatalogue("07:00,late")
	assert.Error(t, err)
}

func TestCatalogue_Offers(t *testing.T) {
	c, err := ParseCatalogue("07:00,09:30")
	require.NoError(t, err)

	assert.True(t, c.Offers(at(7, 0)))
	assert.True(t, c.Offers(at(9, 30)))
	assert.False(t, c.Offers(at(8, 0)))
	assert.False(t, c.Offers(at(7, 0).Add(time.Second)))
}

func TestDayOccupancy(t *testing.T) {
	c, err := ParseCatalogue("08:00,09:00,10:00,11:00")
	require.NoError(t, err)
	existing := []*model.Reservation{reservation("a", at(9, 0), at(11, 0))}

	slots := DayOccupancy(day, c, existing)

	require.Len(t, slots, 4)
	want := []SlotStatus{SlotAvailable, SlotOccupied, SlotOccupied, SlotAvailable}
	for i, slot := range slots {
		assert.Equal(t, want[i], slot.Status, slot.Label)
	}
	assert.Equal(t, at(8, 0), slots[0].Start)
}
