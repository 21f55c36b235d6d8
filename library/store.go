package library

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Delimiter separates fields within a record line. It is never escaped.
const Delimiter = ","

// Resource names a persistent collection and the number of fields each of its
// lines must carry. Validate, when set, checks field contents after the arity
// check; its error becomes the FormatError reason.
type Resource struct {
	Name     string
	Arity    int
	Validate func(Record) error
}

// Record is the raw field tuple of one line.
type Record []string

// RecordStore reads and writes delimited line records.
type RecordStore interface {
	// ReadAll returns every non-empty line of res split into fields.
	ReadAll(res Resource) ([]Record, error)
	// AppendLine adds one line to the end of res, creating it if needed.
	AppendLine(res Resource, fields Record) error
	// OverwriteAll replaces the whole content of res with rows.
	OverwriteAll(res Resource, rows []Record) error
	// Ensure creates res with seed if it does not exist yet.
	Ensure(res Resource, seed []Record) error
	Close() error
}

// ---------------------------------------------------------------------------
// Line codec shared by every store
// ---------------------------------------------------------------------------

func formatLine(fields Record) string {
	return strings.Join(fields, Delimiter) + "\n"
}

func parseLine(res Resource, lineNo int, line string) (Record, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false, nil
	}
	fields := strings.Split(line, Delimiter)
	if len(fields) != res.Arity {
		return nil, false, &FormatError{
			Resource: res.Name,
			Line:     lineNo,
			Reason:   fmt.Sprintf("want %d fields, got %d", res.Arity, len(fields)),
		}
	}
	if res.Validate != nil {
		if err := res.Validate(Record(fields)); err != nil {
			return nil, false, &FormatError{Resource: res.Name, Line: lineNo, Reason: err.Error()}
		}
	}
	return Record(fields), true, nil
}

// parseRecords consumes r line by line. Any malformed line aborts the read.
func parseRecords(res Resource, r io.Reader) ([]Record, error) {
	var rows []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		rec, ok, err := parseLine(res, lineNo, sc.Text())
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, rec)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, res.Name, err)
	}
	return rows, nil
}
