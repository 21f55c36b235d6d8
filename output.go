package main

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"elibrary/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// eventView is how a ledger event is printed; untimestamped events omit the time.
type eventView struct {
	Username  string `json:"username"`
	Title     string `json:"title"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp,omitempty"`
}

func newEventView(ev library.BorrowEvent) eventView {
	v := eventView{Username: ev.Username, Title: ev.Title, Action: string(ev.Action)}
	if !ev.Timestamp.IsZero() {
		v.Timestamp = ev.Timestamp.Format(library.TimestampLayout)
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeBooks(w io.Writer, books []library.BookEntry, asJSON bool) error {
	if asJSON {
		if books == nil {
			books = []library.BookEntry{}
		}
		return writeJSON(w, books)
	}
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return nil
	}
	fmt.Fprintf(w, "%-40s %-30s\n", "Title", "Author")
	fmt.Fprintln(w, strings.Repeat("-", 71))
	for _, b := range books {
		fmt.Fprintf(w, "%-40s %-30s\n", truncateString(b.Title, 40), truncateString(b.Author, 30))
	}
	return nil
}

func writeEvents(w io.Writer, events []library.BorrowEvent, asJSON bool) error {
	views := make([]eventView, 0, len(events))
	for _, ev := range events {
		views = append(views, newEventView(ev))
	}
	if asJSON {
		return writeJSON(w, views)
	}
	if len(views) == 0 {
		fmt.Fprintln(w, "No records.")
		return nil
	}
	fmt.Fprintf(w, "%-20s %-40s %-10s %s\n", "User", "Title", "Action", "Time")
	fmt.Fprintln(w, strings.Repeat("-", 92))
	for _, v := range views {
		fmt.Fprintf(w, "%-20s %-40s %-10s %s\n",
			truncateString(v.Username, 20),
			truncateString(v.Title, 40),
			v.Action,
			v.Timestamp)
	}
	return nil
}

// truncateString shortens s to maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
