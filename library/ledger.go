package library

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Borrow record resources. The timestamped form adds a fourth field.
var (
	BorrowResource            = Resource{Name: "borrow_records", Arity: 3, Validate: checkBorrowRecord}
	TimestampedBorrowResource = Resource{Name: "borrow_records", Arity: 4, Validate: checkBorrowRecord}
)

func checkBorrowRecord(rec Record) error {
	if !Action(rec[2]).valid() {
		return fmt.Errorf("unknown action %q", rec[2])
	}
	if len(rec) > 3 {
		if _, err := time.ParseInLocation(TimestampLayout, rec[3], time.Local); err != nil {
			return fmt.Errorf("bad timestamp %q", rec[3])
		}
	}
	return nil
}

// BorrowLedger is the append-only log of borrow and return events.
type BorrowLedger struct {
	store       RecordStore
	timestamped bool
	now         func() time.Time
}

// NewBorrowLedger returns a ledger. When timestamped is set every event is
// written with the time it was recorded.
func NewBorrowLedger(store RecordStore, timestamped bool) *BorrowLedger {
	return &BorrowLedger{store: store, timestamped: timestamped, now: time.Now}
}

// Resource returns the resource layout this ledger reads and writes.
func (l *BorrowLedger) Resource() Resource {
	if l.timestamped {
		return TimestampedBorrowResource
	}
	return BorrowResource
}

// RecordEvent appends one event. A zero at is replaced by the current time on
// timestamped ledgers and ignored otherwise.
func (l *BorrowLedger) RecordEvent(username, title string, action Action, at time.Time) error {
	if !action.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	fields := Record{username, title, string(action)}
	if l.timestamped {
		if at.IsZero() {
			at = l.now()
		}
		fields = append(fields, at.Format(TimestampLayout))
	}
	return l.store.AppendLine(l.Resource(), fields)
}

// AllEvents returns every event in append order.
func (l *BorrowLedger) AllEvents() ([]BorrowEvent, error) {
	res := l.Resource()
	rows, err := l.store.ReadAll(res)
	if err != nil {
		return nil, err
	}
	// Rows were checked by checkBorrowRecord while the store parsed them.
	events := make([]BorrowEvent, 0, len(rows))
	for _, row := range rows {
		ev := BorrowEvent{Username: row[0], Title: row[1], Action: Action(row[2])}
		if l.timestamped {
			ts, err := time.ParseInLocation(TimestampLayout, row[3], time.Local)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: bad timestamp %q", ErrFormat, res.Name, row[3])
			}
			ev.Timestamp = ts
		}
		events = append(events, ev)
	}
	return events, nil
}

// CurrentlyBorrowed folds the log by title: a borrow sets the title's entry, a
// return clears it no matter who borrowed or returned. Titles match ignoring
// case; each entry is keyed by the title as its borrow recorded it.
func (l *BorrowLedger) CurrentlyBorrowed() (map[string]BorrowEvent, error) {
	events, err := l.AllEvents()
	if err != nil {
		return nil, err
	}
	return projectBorrowed(events), nil
}

// BorrowedBy returns the outstanding borrows last taken by username, sorted
// by title.
func (l *BorrowLedger) BorrowedBy(username string) ([]BorrowEvent, error) {
	current, err := l.CurrentlyBorrowed()
	if err != nil {
		return nil, err
	}
	var mine []BorrowEvent
	for _, title := range slices.Sorted(maps.Keys(current)) {
		if ev := current[title]; ev.Username == username {
			mine = append(mine, ev)
		}
	}
	return mine, nil
}

func projectBorrowed(events []BorrowEvent) map[string]BorrowEvent {
	out := make(map[string]BorrowEvent)
	keys := make(map[string]string) // folded title -> key in out
	for _, ev := range events {
		folded := strings.ToLower(ev.Title)
		if key, ok := keys[folded]; ok {
			delete(out, key)
			delete(keys, folded)
		}
		if ev.Action == ActionBorrowed {
			out[ev.Title] = ev
			keys[folded] = ev.Title
		}
	}
	return out
}

// Describe renders an event as a single human-readable line.
func (ev BorrowEvent) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s '%s'", ev.Username, ev.Action, ev.Title)
	if !ev.Timestamp.IsZero() {
		fmt.Fprintf(&sb, " at %s", ev.Timestamp.Format(TimestampLayout))
	}
	return sb.String()
}
