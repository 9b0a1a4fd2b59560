package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Style is the canonical stroke of a swim event.
type Style string

const (
	StyleFreestyle    Style = "FREESTYLE"
	StyleBackstroke   Style = "BACKSTROKE"
	StyleBreaststroke Style = "BREASTSTROKE"
	StyleButterfly    Style = "BUTTERFLY"
	StyleMedley       Style = "MEDLEY"
	StyleUnknown      Style = "UNKNOWN"
)

// Course is the pool-length category. Times from different courses are not comparable.
type Course string

const (
	CourseShort Course = "SHORT"
	CourseLong  Course = "LONG"
)

// Valid reports whether c is one of the known courses.
func (c Course) Valid() bool {
	return c == CourseShort || c == CourseLong
}

// Dataset identifies which feed produced a SwimmerTime or ImportHistory row.
type Dataset string

const (
	DatasetEntries Dataset = "MEET_ENTRIES" // pre-meet roster with seed times (CSV)
	DatasetResults Dataset = "MEET_RESULTS" // post-meet achieved times (HTML)
)

// ParseDataset accepts "entries", "results" or a stored dataset name, in any case.
func ParseDataset(s string) (Dataset, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ENTRIES", string(DatasetEntries):
		return DatasetEntries, nil
	case "RESULTS", string(DatasetResults):
		return DatasetResults, nil
	}
	return "", fmt.Errorf("%w %q (must be entries or results)", ErrUnknownDataset, s)
}

// Swimmer is a canonical athlete. ID is the vendor's external id.
type Swimmer struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Gender    string    `json:"gender"`
	BirthDate time.Time `json:"birthDate"`
}

// Meet is created outside the import pipeline; the core only reads it.
type Meet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Course    Course    `json:"course"`
}

// SwimmerTime is one timed performance.
// Natural key: (SwimmerID, MeetID, Style, Distance, Course, Dataset).
type SwimmerTime struct {
	SwimmerID string    `json:"swimmerId"`
	MeetID    string    `json:"meetId"`
	Style     Style     `json:"style"`
	Distance  int       `json:"distance"`
	Course    Course    `json:"course"`
	TimeMs    int       `json:"timeMs"` // 0 means no time recorded
	TimeDate  time.Time `json:"timeDate"`
	Dataset   Dataset   `json:"dataset"`
}

// ImportHistory is one ledger row. Rows are append-only.
type ImportHistory struct {
	ID          int64     `json:"id"`
	LoadTime    time.Time `json:"loadTime"`
	MeetID      string    `json:"meetId"`
	Dataset     Dataset   `json:"dataset"`
	NumSwimmers int       `json:"numSwimmers"`
	NumEntries  int       `json:"numEntries"`
	DurationMs  int64     `json:"durationMs"`
	Swimmers    string    `json:"swimmers"`
}

// MeetTime is a SwimmerTime listed with its swimmer's name.
type MeetTime struct {
	SwimmerTime
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// SwimmerIDs splits the serialized swimmer list.
func (h ImportHistory) SwimmerIDs() []string {
	if h.Swimmers == "" {
		return nil
	}
	parts := strings.Split(h.Swimmers, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// Store is the narrow persistence interface the import pipeline writes through.
// Upserts never overwrite: they report inserted=false when the row already exists.
type Store interface {
	UpsertSwimmer(ctx context.Context, s Swimmer) (inserted bool, err error)
	UpsertSwimmerTime(ctx context.Context, t SwimmerTime) (inserted bool, err error)
	FindSwimmersByName(ctx context.Context, firstName, lastName string) ([]Swimmer, error)
	FindMeet(ctx context.Context, id string) (Meet, error)
	AppendImportHistory(ctx context.Context, h ImportHistory) (ImportHistory, error)
}

// HistoryReader answers provenance questions about past imports.
type HistoryReader interface {
	// ImportHistory returns every ledger row for a meet, newest first.
	ImportHistory(ctx context.Context, meetID string) ([]ImportHistory, error)
	// LatestImports returns the most recent ledger row per dataset for a meet.
	LatestImports(ctx context.Context, meetID string) ([]ImportHistory, error)
	// MeetTimes returns the dataset's times at a meet in the meet's course,
	// limited to the swimmers of the latest ledger row for that dataset.
	// Ordered by first name, last name, style, distance and time.
	MeetTimes(ctx context.Context, meetID string, dataset Dataset) ([]MeetTime, error)
	// MeetsWithResults returns every meet except the given id that has at
	// least one results import, by start date.
	MeetsWithResults(ctx context.Context, except string) ([]Meet, error)
}

// Document is one uploaded or fetched source file.
type Document struct {
	Name   string
	Reader io.Reader
}

// FailedRow describes a record that was skipped during an import.
type FailedRow struct {
	FileName   string   `json:"fileName"`
	LineNumber int      `json:"lineNumber"`
	Swimmer    string   `json:"swimmer,omitempty"`
	Reason     string   `json:"reason"`
	Data       []string `json:"data,omitempty"`
}

// ImportResult is the structured outcome of one import call.
type ImportResult struct {
	ImportID         string         `json:"importId"`
	MeetID           string         `json:"meetId"`
	Dataset          Dataset        `json:"dataset"`
	Files            []string       `json:"files"`
	Rows             int            `json:"rows"`
	Swimmers         int            `json:"swimmers"`
	SwimmersInserted int            `json:"swimmersInserted"`
	TimesInserted    int            `json:"timesInserted"`
	TimesExisting    int            `json:"timesExisting"`
	FailedRows       []FailedRow    `json:"failedRows,omitempty"`
	History          *ImportHistory `json:"history,omitempty"`
	Duration         time.Duration  `json:"duration"`
}

// Skipped returns the number of records that were not written.
func (r *ImportResult) Skipped() int {
	return len(r.FailedRows)
}

func (r *ImportResult) addFailure(f FailedRow) {
	r.FailedRows = append(r.FailedRows, f)
}

func (r *ImportResult) countTime(inserted bool) {
	if inserted {
		r.TimesInserted++
	} else {
		r.TimesExisting++
	}
}
