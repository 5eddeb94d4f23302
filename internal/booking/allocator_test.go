package booking

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func day(s string) time.Time {
    t, err := time.Parse("2006-01-02", s)
    if err != nil {
        panic(err)
    }
    return t
}

func TestValidateStay(t *testing.T) {
    now := day("2026-08-10")

    t.Run("valid stay passes", func(t *testing.T) {
        assert.NoError(t, validateStay(now, day("2026-08-12"), day("2026-08-14")))
    })
    t.Run("same-day check-in is allowed", func(t *testing.T) {
        assert.NoError(t, validateStay(now, day("2026-08-10"), day("2026-08-11")))
    })
    t.Run("check-in equal to check-out is rejected", func(t *testing.T) {
        err := validateStay(now, day("2026-08-12"), day("2026-08-12"))
        var ve *ValidationError
        require.ErrorAs(t, err, &ve)
    })
    t.Run("check-in after check-out is rejected", func(t *testing.T) {
        err := validateStay(now, day("2026-08-14"), day("2026-08-12"))
        var ve *ValidationError
        require.ErrorAs(t, err, &ve)
    })
    t.Run("check-in in the past is rejected", func(t *testing.T) {
        err := validateStay(now, day("2026-08-09"), day("2026-08-12"))
        var ve *ValidationError
        require.ErrorAs(t, err, &ve)
    })
}

func TestGuestCancelAllowed(t *testing.T) {
    checkIn := day("2026-08-20")

    t.Run("well before the window", func(t *testing.T) {
        now := day("2026-08-18")
        assert.NoError(t, guestCancelAllowed(now, checkIn))
    })
    t.Run("exactly 24h before check-in", func(t *testing.T) {
        now := checkIn.Add(-24 * time.Hour)
        assert.NoError(t, guestCancelAllowed(now, checkIn))
    })
    t.Run("inside the 24h window", func(t *testing.T) {
        now := checkIn.Add(-23 * time.Hour)
        err := guestCancelAllowed(now, checkIn)
        var pe *PolicyError
        require.ErrorAs(t, err, &pe)
        assert.Equal(t, "cancellations must be made 24h in advance", pe.Msg)
    })
    t.Run("after check-in", func(t *testing.T) {
        now := checkIn.Add(48 * time.Hour)
        var pe *PolicyError
        require.ErrorAs(t, guestCancelAllowed(now, checkIn), &pe)
    })
}

func TestDateOnly(t *testing.T) {
    ts := time.Date(2026, 8, 10, 17, 45, 12, 999, time.UTC)
    assert.Equal(t, day("2026-08-10"), dateOnly(ts))

    // Timestamps are normalized to UTC before truncation.
    loc := time.FixedZone("UTC+5", 5*3600)
    early := time.Date(2026, 8, 11, 2, 0, 0, 0, loc) // 2026-08-10 21:00 UTC
    assert.Equal(t, day("2026-08-10"), dateOnly(early))
}
