// Package waitinglist maintains the live per-clinic, per-day queue of waiting
// patients: it watches the document store, reduces snapshots to a sorted
// roster, and republishes every change.
package waitinglist

import (
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/visit"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

// StatusWaiting is the only status shown on the active roster. Entries
// transition out of it externally.
const StatusWaiting = "WAITING"

// Entry is one queued patient, reduced from a raw waiting-list document.
type Entry struct {
	PatientID string     `json:"patient_id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Position  *int       `json:"position,omitempty"`
	Arrival   time.Time  `json:"arrival,omitempty"`
	VisitType string     `json:"visit_type,omitempty"`
	Date      string     `json:"date,omitempty"`
	Time      string     `json:"time,omitempty"`
}

// entryFromDoc reduces a raw document to an Entry. The patient id is the
// document id unless an explicit field overrides it; arrival accepts either a
// stored timestamp or a loose date/time string pair.
func entryFromDoc(doc docstore.Document, loc *time.Location) Entry {
	e := Entry{
		PatientID: doc.ID,
		Name:      doc.GetString("name"),
		Status:    doc.GetString("status"),
		VisitType: doc.GetString("visit_type"),
		Date:      doc.GetString("date"),
		Time:      doc.GetString("time"),
	}
	if id := doc.GetString("patient_id"); id != "" {
		e.PatientID = id
	}
	if pos, ok := doc.GetInt("position"); ok {
		e.Position = &pos
	}
	switch v := doc.Data["arrival_time"].(type) {
	case time.Time:
		e.Arrival = v
	case string:
		if at, ok := visit.ParseInstant(e.Date, v, loc); ok {
			e.Arrival = at
		}
	default:
		if at, ok := visit.ParseInstant(e.Date, e.Time, loc); ok {
			e.Arrival = at
		}
	}
	return e
}

// less is the pairwise roster comparator: positions compare when both sides
// define one, otherwise arrival times decide that specific comparison. This
// is deliberately not a two-phase "positioned first" sort; the pairwise
// semantics are the contract the intake flow was built against.
func less(a, b Entry) bool {
	if a.Position != nil && b.Position != nil {
		return *a.Position < *b.Position
	}
	return a.Arrival.Before(b.Arrival)
}

// sortEntries orders the roster with a stable insertion sort. The pairwise
// comparator is not transitive when positions are sparse, so a general sort
// would produce an order that depends on the algorithm's comparison sequence;
// insertion sort pins the result deterministically.
func sortEntries(entries []Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && less(entries[j], entries[j-1]); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
