package pos

import (
	"context"
	"fmt"
	"time"

	"github.com/copyskillman/shopledger/ledger"
)

// =============================================================================
// SALE SEQUENCER - Date-scoped human-readable sale numbers
// =============================================================================

const (
	SaleNoPrefix  = "RC"
	maxDailySales = 9999
	dayLayout     = "20060102"
)

// Sequencer formats sale numbers as RC + YYYYMMDD + 4-digit sequence.
//
// The sequence comes from SaleStore.NextSaleSeq, which must run inside the
// same transaction as the sale insert. The store serializes concurrent
// callers and rolls the counter back with a failed sale, so numbers are
// unique, strictly increasing per day and gap-free over committed sales.
type Sequencer struct {
	Location *time.Location
}

func NewSequencer(loc *time.Location) *Sequencer {
	if loc == nil {
		loc = time.Local
	}
	return &Sequencer{Location: loc}
}

// Day returns the YYYYMMDD business day of t in the sequencer's location.
func (s *Sequencer) Day(t time.Time) string {
	return t.In(s.location()).Format(dayLayout)
}

// Next allocates the next sale number for the day containing now.
func (s *Sequencer) Next(ctx context.Context, store ledger.SaleStore, now time.Time) (string, error) {
	day := s.Day(now)
	seq, err := store.NextSaleSeq(ctx, day)
	if err != nil {
		return "", ledger.Persist("next sale sequence", err)
	}
	if seq > maxDailySales {
		return "", fmt.Errorf("%w: %s", ledger.ErrSequenceExhausted, day)
	}
	return FormatSaleNo(day, seq), nil
}

// FormatSaleNo renders a day and sequence as a sale number.
func FormatSaleNo(day string, seq int) string {
	return fmt.Sprintf("%s%s%04d", SaleNoPrefix, day, seq)
}

func (s *Sequencer) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}
