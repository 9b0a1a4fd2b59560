package core

// results.go scrapes the post-meet HTML results report.
//
// The report is a single table. A row whose cells carry bold text names a
// swimmer ("Doe, Jane"); the rows that follow, up to the next header, are that
// swimmer's swims. The loop is a small state machine over row kinds so that a
// swimmer who cannot be resolved only invalidates their own block.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// resultTimePattern matches "MM:SS.CC" with an optional course suffix.
var resultTimePattern = regexp.MustCompile(`^[0-5][0-9]:[0-5][0-9]\.[0-9]{2}[LS]?$`)

type blockState int

const (
	stateAwaitingHeader blockState = iota
	stateBlockValid
	stateBlockInvalid
)

func (s blockState) String() string {
	switch s {
	case stateAwaitingHeader:
		return "awaiting_header"
	case stateBlockValid:
		return "block_valid"
	case stateBlockInvalid:
		return "block_invalid"
	default:
		return "unknown"
	}
}

type rowKind int

const (
	rowData rowKind = iota
	rowHeader
)

// classifyRow reports whether tr opens a swimmer block and returns its label.
func classifyRow(tr *goquery.Selection) (rowKind, string) {
	bold := tr.Find("td b, td strong").First()
	if bold.Length() == 0 {
		return rowData, ""
	}
	label := strings.TrimSpace(bold.Text())
	if label == "" {
		return rowData, ""
	}
	return rowHeader, label
}

// ResultsImporter loads the HTML results report.
type ResultsImporter struct {
	store       Store
	nameTTL     time.Duration
	maxFileSize int64
}

// NewResultsImporter creates an importer writing through store. Name lookups
// are cached for at most nameTTL within one report.
func NewResultsImporter(store Store, nameTTL time.Duration, maxFileSize int64) *ResultsImporter {
	return &ResultsImporter{store: store, nameTTL: nameTTL, maxFileSize: maxFileSize}
}

// resultsScan is the state of one report being imported.
type resultsScan struct {
	imp      *ResultsImporter
	resolver *Resolver
	log      *slog.Logger
	name     string
	meet     Meet
	touched  *SwimmerSet
	result   *ImportResult

	state    blockState
	label    string
	swimmer  Swimmer
	timeDate time.Time
}

// ImportFile scrapes one report and writes its swims.
//
// A returned *DocumentError aborts the file. A returned *StoreError is fatal.
func (imp *ResultsImporter) ImportFile(ctx context.Context, log *slog.Logger, meet Meet, doc Document, touched *SwimmerSet, result *ImportResult) error {
	data, err := readDocument(doc, imp.maxFileSize)
	if err != nil {
		return err
	}
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return &DocumentError{File: doc.Name, Err: fmt.Errorf("parse HTML: %w", err)}
	}

	scan := &resultsScan{
		imp:      imp,
		resolver: NewResolver(imp.store, imp.nameTTL),
		log:      log.With("file", doc.Name),
		name:     doc.Name,
		meet:     meet,
		touched:  touched,
		result:   result,
		state:    stateAwaitingHeader,
	}

	var scanErr error
	page.Find("table > tbody > tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		scanErr = scan.row(ctx, i+1, tr)
		return scanErr == nil
	})
	return scanErr
}

func (s *resultsScan) row(ctx context.Context, line int, tr *goquery.Selection) error {
	kind, label := classifyRow(tr)
	if kind == rowHeader {
		return s.enterBlock(ctx, line, label)
	}

	switch s.state {
	case stateBlockValid:
		return s.swim(ctx, line, tr)
	default:
		s.log.Debug("ignoring row outside valid block", "line", line, "state", s.state)
		return nil
	}
}

// enterBlock resolves a header label and resets the draft.
func (s *resultsScan) enterBlock(ctx context.Context, line int, label string) error {
	s.label = label
	s.swimmer = Swimmer{}
	s.timeDate = s.meet.EndDate

	swimmer, err := s.resolver.ByName(ctx, label)
	if err != nil {
		var ire *IdentityResolutionError
		if !errors.As(err, &ire) {
			return err
		}
		s.state = stateBlockInvalid
		s.log.Warn("skipping swimmer block", "line", line, "swimmer", label, "error", err)
		s.result.addFailure(FailedRow{
			FileName:   s.name,
			LineNumber: line,
			Swimmer:    label,
			Reason:     err.Error(),
		})
		return nil
	}

	s.swimmer = swimmer
	s.state = stateBlockValid
	return nil
}

// swim parses one data row of a valid block and writes it.
func (s *resultsScan) swim(ctx context.Context, line int, tr *goquery.Selection) error {
	cells := tr.Find("td")
	raw := cells.Map(func(_ int, td *goquery.Selection) string {
		return strings.TrimSpace(td.Text())
	})

	timeCell := ""
	if len(raw) > 0 {
		timeCell = raw[0]
	}
	if timeCell == "" {
		s.log.Debug("ignoring row without time", "line", line, "swimmer", s.label)
		return nil
	}
	if !resultTimePattern.MatchString(timeCell) {
		s.skip(line, raw, &RecordParseError{Line: line, Field: "time", Value: timeCell, Err: errors.New("not a MM:SS.CC time")})
		return nil
	}

	course, ok := ParseCourseSuffix(timeCell)
	if !ok {
		course = s.meet.Course
	}

	if len(raw) < 3 {
		s.skip(line, raw, &RecordParseError{Line: line, Field: "event", Value: "", Err: errors.New("missing event cell")})
		return nil
	}
	tokens := strings.Fields(raw[2])
	if len(tokens) < 3 {
		s.skip(line, raw, &RecordParseError{Line: line, Field: "event", Value: raw[2], Err: errors.New("expected \"<gender> <distance> <style>\"")})
		return nil
	}
	gender := strings.ToUpper(tokens[0])
	distance, err := ParseDistance(tokens[1])
	if err != nil {
		s.skip(line, raw, &RecordParseError{Line: line, Field: "distance", Value: tokens[1], Err: err})
		return nil
	}
	if s.swimmer.Gender != "" && gender != s.swimmer.Gender {
		s.log.Debug("event gender differs from swimmer", "line", line, "swimmer", s.swimmer.ID, "event_gender", gender)
	}

	st := SwimmerTime{
		SwimmerID: s.swimmer.ID,
		MeetID:    s.meet.ID,
		Style:     ClassifyStyle(tokens[2]),
		Distance:  distance,
		Course:    course,
		TimeMs:    ParseTime(firstN(timeCell, timeTokenLen)),
		TimeDate:  s.timeDate,
		Dataset:   DatasetResults,
	}
	inserted, err := s.imp.store.UpsertSwimmerTime(ctx, st)
	if err != nil {
		return storeErr("upsert swimmer time", err)
	}
	s.result.countTime(inserted)
	s.touched.Add(st.SwimmerID)
	s.result.Rows++
	return nil
}

func (s *resultsScan) skip(line int, data []string, err error) {
	s.log.Warn("skipping result row", "line", line, "swimmer", s.label, "error", err)
	s.result.addFailure(FailedRow{
		FileName:   s.name,
		LineNumber: line,
		Swimmer:    s.label,
		Reason:     err.Error(),
		Data:       data,
	})
}
