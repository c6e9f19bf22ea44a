package comms

import "github.com/voxline/workday/internal/model"

// historyCap bounds each person's recent-email ring. Replies can only
// target one of the last historyCap emails a person sent or received;
// anything older is treated as unknown and the reply is dropped.
const historyCap = 10

// historyRing is a bounded FIFO of a person's recently seen emails,
// both sent and received. Oldest entries are evicted on overflow.
type historyRing struct {
	records []model.EmailRecord
}

// add appends a record, evicting the oldest when the ring is full.
func (r *historyRing) add(rec model.EmailRecord) {
	r.records = append(r.records, rec)
	if len(r.records) > historyCap {
		r.records = r.records[len(r.records)-historyCap:]
	}
}

// find returns the record with the given email id, newest match first.
func (r *historyRing) find(emailID string) (model.EmailRecord, bool) {
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].EmailID == emailID {
			return r.records[i], true
		}
	}
	return model.EmailRecord{}, false
}

// all returns a copy of the records, oldest first.
func (r *historyRing) all() []model.EmailRecord {
	out := make([]model.EmailRecord, len(r.records))
	copy(out, r.records)
	return out
}
