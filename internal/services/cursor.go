package services

import (
	"bidding-engine/internal/domain"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EncodeCursor renders a cursor as "<unix-nanos>-<sequence>".
func EncodeCursor(c domain.BidCursor) string {
	if c.IsZero() {
		return ""
	}
	var nanos int64
	if !c.Timestamp.IsZero() {
		nanos = c.Timestamp.UnixNano()
	}
	return fmt.Sprintf("%d-%d", nanos, c.Sequence)
}

// DecodeCursor parses an EncodeCursor string. An empty string is the start of
// history; a bare "<unix-nanos>" is a timestamp-only cursor.
func DecodeCursor(s string) (domain.BidCursor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.BidCursor{}, nil
	}

	nanosPart, seqPart, hasSeq := strings.Cut(s, "-")
	nanos, err := strconv.ParseInt(nanosPart, 10, 64)
	if err != nil || nanos < 0 {
		return domain.BidCursor{}, fmt.Errorf("%w: %q", domain.ErrInvalidCursor, s)
	}

	var cursor domain.BidCursor
	if nanos > 0 {
		cursor.Timestamp = time.Unix(0, nanos).UTC()
	}
	if hasSeq {
		seq, err := strconv.ParseInt(seqPart, 10, 64)
		if err != nil || seq < 0 {
			return domain.BidCursor{}, fmt.Errorf("%w: %q", domain.ErrInvalidCursor, s)
		}
		cursor.Sequence = seq
	}
	return cursor, nil
}
