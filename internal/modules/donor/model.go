// README: Donor aggregate and the insert-only donation history.
package donor

import (
	"errors"
	"time"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/types"
)

var (
	ErrNotFound   = errors.New("donor not found")
	ErrBadRequest = errors.New("bad request")
)

type Donor struct {
	ID          types.ID
	FullName    string
	Phone       string
	DeviceToken string
	BloodType   bloodtype.Type
	Location    *types.Point
	Available   bool
	// LastDonationDate is a calendar date and never in the future.
	LastDonationDate *time.Time
	DonationCount    int
	Points           int
	CreatedAt        time.Time
}

// DaysSinceLastDonation counts whole calendar days between the last donation
// and now. ok is false for a donor with no recorded donation.
func (d Donor) DaysSinceLastDonation(now time.Time) (days int, ok bool) {
	if d.LastDonationDate == nil {
		return 0, false
	}
	return int(DateOf(now).Sub(DateOf(*d.LastDonationDate)).Hours() / 24), true
}

// DonationRecord is written once per accepted candidate and never updated.
type DonationRecord struct {
	ID         types.ID
	DonorID    types.ID
	RequestID  types.ID
	FacilityID types.ID
	DonatedOn  time.Time
	Units      int
	CreatedAt  time.Time
}

type LeaderboardEntry struct {
	Rank          int
	DonorID       types.ID
	FullName      string
	BloodType     bloodtype.Type
	DonationCount int
	Points        int
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
