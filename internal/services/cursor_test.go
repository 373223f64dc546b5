package services

import (
	"bidding-engine/internal/domain"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestCursorEncoding(t *testing.T) {
	ts := time.Date(2026, 5, 1, 12, 0, 0, 987654321, time.UTC)

	t.Run("full cursor", func(t *testing.T) {
		encoded := EncodeCursor(domain.BidCursor{Timestamp: ts, Sequence: 42})
		check.Equal(t, "1777636800987654321-42", encoded)

		decoded, err := DecodeCursor(encoded)
		assert.NoError(t, err)
		check.True(t, decoded.Timestamp.Equal(ts))
		check.Equal(t, int64(42), decoded.Sequence)
	})

	t.Run("timestamp only", func(t *testing.T) {
		decoded, err := DecodeCursor("1777636800987654321")
		assert.NoError(t, err)
		check.True(t, decoded.Timestamp.Equal(ts))
		check.Equal(t, int64(0), decoded.Sequence)
	})

	t.Run("empty", func(t *testing.T) {
		check.Equal(t, "", EncodeCursor(domain.BidCursor{}))
		decoded, err := DecodeCursor("")
		assert.NoError(t, err)
		check.True(t, decoded.IsZero())
	})

	for _, bad := range []string{"abc", "-5", "12-x", "12-", "12--3"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := DecodeCursor(bad)
			check.True(t, errors.Is(err, domain.ErrInvalidCursor))
		})
	}
}
