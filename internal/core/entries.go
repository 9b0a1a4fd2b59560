package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// entryColumns is the minimum width of the vendor entries export.
const entryColumns = 16

// Positional layout of the vendor entries export.
const (
	colEntryID        = 0
	colEntryFullName  = 4
	colEntryGender    = 5
	colEntryBirthDate = 7
	colEntryEvent     = 9
	colEntryShortTime = 12
	colEntryShortDate = 13
	colEntryLongTime  = 14
	colEntryLongDate  = 15
)

// entryRow is one entries record mapped to named fields.
type entryRow struct {
	Line      int
	Raw       []string
	ID        string
	FullName  string
	Gender    string
	BirthDate string
	Event     string
	ShortTime string
	ShortDate string
	LongTime  string
	LongDate  string
}

func mapEntryRow(line int, record []string) (entryRow, error) {
	if len(record) < entryColumns {
		return entryRow{}, &RecordParseError{
			Line:  line,
			Field: "row",
			Value: fmt.Sprintf("%d columns", len(record)),
			Err:   fmt.Errorf("expected at least %d columns", entryColumns),
		}
	}
	cell := func(i int) string { return strings.TrimSpace(record[i]) }
	return entryRow{
		Line:      line,
		Raw:       record,
		ID:        cell(colEntryID),
		FullName:  cell(colEntryFullName),
		Gender:    strings.ToUpper(cell(colEntryGender)),
		BirthDate: cell(colEntryBirthDate),
		Event:     cell(colEntryEvent),
		ShortTime: cell(colEntryShortTime),
		ShortDate: cell(colEntryShortDate),
		LongTime:  cell(colEntryLongTime),
		LongDate:  cell(colEntryLongDate),
	}, nil
}

// csvRecord is a raw record with the line it started on.
type csvRecord struct {
	line   int
	fields []string
}

// readEntryRecords parses the whole file before any write so that a syntax
// error cannot leave a partially imported file behind.
func readEntryRecords(name string, data []byte) ([]csvRecord, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records []csvRecord
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DocumentError{File: name, Err: fmt.Errorf("parse CSV: %w", err)}
		}
		line, _ := r.FieldPos(0)
		records = append(records, csvRecord{line: line, fields: fields})
	}

	if len(records) == 0 {
		return nil, &DocumentError{File: name, Err: errEmptyFile}
	}
	if width := len(records[0].fields); width < entryColumns {
		return nil, &DocumentError{
			File: name,
			Err:  fmt.Errorf("header has %d columns, expected at least %d", width, entryColumns),
		}
	}
	return records, nil
}

// EntriesImporter loads vendor CSV entry exports.
type EntriesImporter struct {
	store       Store
	resolver    *Resolver
	maxFileSize int64
}

// NewEntriesImporter creates an importer writing through store.
func NewEntriesImporter(store Store, resolver *Resolver, maxFileSize int64) *EntriesImporter {
	return &EntriesImporter{store: store, resolver: resolver, maxFileSize: maxFileSize}
}

// entriesFile is the state of one file being imported.
type entriesFile struct {
	imp     *EntriesImporter
	log     *slog.Logger
	name    string
	meet    Meet
	touched *SwimmerSet
	result  *ImportResult
}

// ImportFile reads one document and writes its swimmers and seed times.
//
// A returned *DocumentError means the file was rejected before any write.
// A returned *StoreError is fatal to the whole import call.
func (imp *EntriesImporter) ImportFile(ctx context.Context, log *slog.Logger, meet Meet, doc Document, touched *SwimmerSet, result *ImportResult) error {
	data, err := readDocument(doc, imp.maxFileSize)
	if err != nil {
		return err
	}
	records, err := readEntryRecords(doc.Name, data)
	if err != nil {
		return err
	}

	f := &entriesFile{
		imp:     imp,
		log:     log.With("file", doc.Name),
		name:    doc.Name,
		meet:    meet,
		touched: touched,
		result:  result,
	}

	// records[0] is the header
	for _, rec := range records[1:] {
		if isBlankRecord(rec.fields) {
			continue
		}
		if err := f.importRow(ctx, rec); err != nil {
			return err
		}
		result.Rows++
	}
	return nil
}

// importRow writes one record. Only store failures are returned; every other
// problem is recorded as a FailedRow and the row is counted.
func (f *entriesFile) importRow(ctx context.Context, rec csvRecord) error {
	row, err := mapEntryRow(rec.line, rec.fields)
	if err != nil {
		f.skip(rec.line, "", rec.fields, err)
		return nil
	}

	swimmer, err := f.swimmer(row)
	if err != nil {
		f.skip(row.Line, row.ID, row.Raw, err)
		return nil
	}

	inserted, err := f.imp.store.UpsertSwimmer(ctx, swimmer)
	if err != nil {
		return storeErr("upsert swimmer", err)
	}
	if inserted {
		f.result.SwimmersInserted++
	}
	f.touched.Add(swimmer.ID)

	distance, style, err := ParseEvent(row.Event)
	if err != nil {
		var rpe *RecordParseError
		if errors.As(err, &rpe) {
			err = rpe.atLine(row.Line)
		}
		f.skip(row.Line, swimmer.ID, row.Raw, err)
		return nil
	}

	branches := []struct {
		course Course
		time   string
		date   string
		field  string
	}{
		{CourseShort, row.ShortTime, row.ShortDate, "short_date"},
		{CourseLong, row.LongTime, row.LongDate, "long_date"},
	}
	for _, b := range branches {
		if b.time == "" {
			continue
		}
		date, err := ParseDate(b.field, b.date, EntryDateLayout)
		if err != nil {
			var rpe *RecordParseError
			if errors.As(err, &rpe) {
				err = rpe.atLine(row.Line)
			}
			f.skip(row.Line, swimmer.ID, row.Raw, err)
			continue
		}

		st := SwimmerTime{
			SwimmerID: swimmer.ID,
			MeetID:    f.meet.ID,
			Style:     style,
			Distance:  distance,
			Course:    b.course,
			TimeMs:    ParseTime(firstN(b.time, timeTokenLen)),
			TimeDate:  date,
			Dataset:   DatasetEntries,
		}
		inserted, err := f.imp.store.UpsertSwimmerTime(ctx, st)
		if err != nil {
			return storeErr("upsert swimmer time", err)
		}
		f.result.countTime(inserted)
	}
	return nil
}

func (f *entriesFile) swimmer(row entryRow) (Swimmer, error) {
	id := f.imp.resolver.ByID(row.ID)
	if id == "" {
		return Swimmer{}, &RecordParseError{Line: row.Line, Field: "id", Value: row.ID, Err: errEmptyValue}
	}

	birth, err := ParseDate("birth_date", row.BirthDate, EntryDateLayout)
	if err != nil {
		var rpe *RecordParseError
		if errors.As(err, &rpe) {
			return Swimmer{}, rpe.atLine(row.Line)
		}
		return Swimmer{}, err
	}

	first, last := SplitEntryName(row.FullName)
	return Swimmer{
		ID:        id,
		FirstName: first,
		LastName:  last,
		Gender:    row.Gender,
		BirthDate: birth,
	}, nil
}

func (f *entriesFile) skip(line int, swimmerID string, data []string, err error) {
	f.log.Warn("skipping entry record",
		"line", line,
		"swimmer", swimmerID,
		"error", err,
	)
	f.result.addFailure(FailedRow{
		FileName:   f.name,
		LineNumber: line,
		Swimmer:    swimmerID,
		Reason:     err.Error(),
		Data:       data,
	})
}

func isBlankRecord(fields []string) bool {
	for _, v := range fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
