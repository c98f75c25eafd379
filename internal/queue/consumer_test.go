package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
    at := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
    from := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC).Unix()
    line := FormatLine(BookingEvent{
        Type: BookingCreated, BookingID: 7, Login: "alice", Actor: "admin",
        ZoneID: 1, ZoneName: "Floor 1", SeatID: 3, SeatName: "A3",
        FromTS: from, ToTS: from + 3600, At: at,
    })

    assert.Equal(t,
        `[2024-03-04T08:00:00Z] Booking created | booking_id=7 | login=alice | actor=admin | zone=1 "Floor 1" | seat=3 "A3" | from=2024-03-04T09:00:00Z | to=2024-03-04T10:00:00Z`+"\n",
        line)
}

func TestHandleMessageAppends(t *testing.T) {
    dir := filepath.Join(t.TempDir(), "logs")
    c := &Consumer{Dir: dir}

    for _, typ := range []string{BookingCreated, BookingDeleted} {
        body, err := json.Marshal(BookingEvent{Type: typ, BookingID: 1, Login: "bob", At: time.Now()})
        require.NoError(t, err)
        require.NoError(t, c.HandleMessage(body))
    }

    data, err := os.ReadFile(filepath.Join(dir, "booking.log"))
    require.NoError(t, err)
    lines := strings.Split(strings.TrimSpace(string(data)), "\n")
    require.Len(t, lines, 2)
    assert.Contains(t, lines[0], "Booking created")
    assert.Contains(t, lines[1], "Booking deleted")
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
    c := &Consumer{Dir: t.TempDir()}
    assert.Error(t, c.HandleMessage([]byte("{not json")))
    assert.Error(t, c.HandleMessage([]byte(`{"booking_id":1}`)))
}
