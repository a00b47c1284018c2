package visit

import (
	"sort"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
)

// Instant pairs a parsed point in time with whether parsing succeeded. An
// unparsable source keeps Valid false and the zero time, which sorts last.
type Instant struct {
	At    time.Time
	Valid bool
}

// Before orders instants for descending-recency sorts: a valid instant beats
// an invalid one, two valid ones compare by time.
func (i Instant) Before(other Instant) bool {
	if i.Valid != other.Valid {
		return !i.Valid
	}
	return i.At.Before(other.At)
}

// VisitInstant parses one visit's date and time fields.
func VisitInstant(v backend.Visit, loc *time.Location) Instant {
	at, ok := ParseInstant(v.Date, v.Time, loc)
	return Instant{At: at, Valid: ok}
}

// LatestVisit returns the patient's most recent visit by parsed instant,
// or nil when the patient has none.
func LatestVisit(p *backend.Patient, loc *time.Location) *backend.Visit {
	if len(p.Visits) == 0 {
		return nil
	}
	best := 0
	bestAt := VisitInstant(p.Visits[0], loc)
	for i := 1; i < len(p.Visits); i++ {
		at := VisitInstant(p.Visits[i], loc)
		if bestAt.Before(at) {
			best = i
			bestAt = at
		}
	}
	return &p.Visits[best]
}

// ActivityInstant is the patient's recency key: the latest visit's instant
// when the patient has visits, otherwise the registration date.
func ActivityInstant(p *backend.Patient, loc *time.Location) Instant {
	if last := LatestVisit(p, loc); last != nil {
		return VisitInstant(*last, loc)
	}
	at, ok := ParseInstant(p.RegisteredDate, "", loc)
	return Instant{At: at, Valid: ok}
}

// SortPatients orders patients in place: patients with visits before those
// without, then by activity instant descending, patient id descending as the
// tiebreak so new registrations surface first among equals.
func SortPatients(patients []backend.Patient, loc *time.Location) {
	type decorated struct {
		hasVisits bool
		at        Instant
		patient   backend.Patient
	}
	rows := make([]decorated, len(patients))
	for i := range patients {
		rows[i] = decorated{
			hasVisits: len(patients[i].Visits) > 0,
			at:        ActivityInstant(&patients[i], loc),
			patient:   patients[i],
		}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].hasVisits != rows[b].hasVisits {
			return rows[a].hasVisits
		}
		if rows[a].at.Before(rows[b].at) || rows[b].at.Before(rows[a].at) {
			return rows[b].at.Before(rows[a].at)
		}
		return rows[a].patient.ID > rows[b].patient.ID
	})
	for i := range rows {
		patients[i] = rows[i].patient
	}
}

// SortReceipts orders receipts most recent first by creation timestamp,
// receipt id descending as the tiebreak.
func SortReceipts(receipts []backend.Receipt, loc *time.Location) {
	sort.SliceStable(receipts, func(a, b int) bool {
		ia, okA := ParseInstant(receipts[a].CreatedAt, "", loc)
		ib, okB := ParseInstant(receipts[b].CreatedAt, "", loc)
		ka := Instant{At: ia, Valid: okA}
		kb := Instant{At: ib, Valid: okB}
		if ka.Before(kb) || kb.Before(ka) {
			return kb.Before(ka)
		}
		return receipts[a].ID > receipts[b].ID
	})
}
