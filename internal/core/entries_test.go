package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestImportEntries_ScenarioA(t *testing.T) {
	store := newMemStore(testMeet)
	svc := newTestService(store)

	csv := entriesCSV(entryLine("123", "Doe Jane", "F", "Jan-01-05", "200 Fr", "02:15.30", "Jan-05-24", "", ""))
	res, err := svc.ImportEntries(context.Background(), "M1", []Document{doc("entries.csv", csv)})
	if err != nil {
		t.Fatalf("ImportEntries error = %v", err)
	}

	sw, ok := store.swimmers["123"]
	if !ok {
		t.Fatal("swimmer 123 not written")
	}
	wantSwimmer := Swimmer{
		ID:        "123",
		FirstName: "Jane",
		LastName:  "Doe",
		Gender:    "F",
		BirthDate: time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if sw != wantSwimmer {
		t.Errorf("swimmer = %+v, want %+v", sw, wantSwimmer)
	}

	times := store.swimmerTimes()
	if len(times) != 1 {
		t.Fatalf("swimmer times = %d, want 1", len(times))
	}
	want := SwimmerTime{
		SwimmerID: "123",
		MeetID:    "M1",
		Style:     StyleFreestyle,
		Distance:  200,
		Course:    CourseShort,
		TimeMs:    135300,
		TimeDate:  time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Dataset:   DatasetEntries,
	}
	if times[0] != want {
		t.Errorf("swimmer time = %+v, want %+v", times[0], want)
	}

	if res.Rows != 1 || res.Swimmers != 1 || res.SwimmersInserted != 1 || res.TimesInserted != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.History == nil {
		t.Fatal("result has no ledger row")
	}
	if res.History.Dataset != DatasetEntries || res.History.NumEntries != 1 || res.History.Swimmers != "123" {
		t.Errorf("ledger row = %+v", res.History)
	}
	if res.ImportID == "" {
		t.Error("ImportID is empty")
	}
}

func TestImportEntries_BothCourses(t *testing.T) {
	store := newMemStore(testMeet)
	svc := newTestService(store)

	csv := entriesCSV(entryLine("7", "Lee Sam", "m", "Mar-10-08", "100 Fly", "01:01.10", "Jan-05-24", "01:04.55L", "Feb-02-23"))
	res, err := svc.ImportEntries(context.Background(), "M1", []Document{doc("e.csv", csv)})
	if err != nil {
		t.Fatalf("ImportEntries error = %v", err)
	}
	if store.swimmers["7"].Gender != "M" {
		t.Errorf("gender = %q, want M", store.swimmers["7"].Gender)
	}

	times := store.swimmerTimes()
	if len(times) != 2 {
		t.Fatalf("swimmer times = %d, want 2", len(times))
	}
	long, short := times[0], times[1]
	if long.Course != CourseLong || long.TimeMs != 64550 || long.Style != StyleButterfly || long.Distance != 100 {
		t.Errorf("long course time = %+v", long)
	}
	if !long.TimeDate.Equal(time.Date(2023, 2, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("long course date = %v", long.TimeDate)
	}
	if short.Course != CourseShort || short.TimeMs != 61100 {
		t.Errorf("short course time = %+v", short)
	}
	if res.TimesInserted != 2 {
		t.Errorf("TimesInserted = %d, want 2", res.TimesInserted)
	}
}

func TestImportEntries_RowIsolation(t *testing.T) {
	store := newMemStore(testMeet)
	svc := newTestService(store)

	csv := entriesCSV(
		entryLine("1", "Doe Jane", "F", "Jan-01-05", "200 Fr", "02:15.30", "Jan-05-24", "", ""),
		entryLine("2", "Roe Rick", "M", "not-a-date", "100 Bk", "01:05.00", "Jan-05-24", "", ""),
		entryLine("3", "Poe Anna", "F", "Feb-02-06", "50 Br", "00:35.12", "Jan-05-24", "", ""),
	)
	res, err := svc.ImportEntries(context.Background(), "M1", []Document{doc("e.csv", csv)})
	if err != nil {
		t.Fatalf("ImportEntries error = %v", err)
	}

	if _, ok := store.swimmers["2"]; ok {
		t.Error("swimmer with bad birth date was written")
	}
	for _, tm := range store.swimmerTimes() {
		if tm.SwimmerID == "2" {
			t.Errorf("time written for skipped row: %+v", tm)
		}
	}
	if _, ok := store.swimmers["3"]; !ok {
		t.Error("row after the bad row was not written")
	}

	if res.Rows != 3 {
		t.Errorf("Rows = %d, want 3 (counter increments for the skipped row)", res.Rows)
	}
	if res.Swimmers != 2 {
		t.Errorf("Swimmers = %d, want 2", res.Swimmers)
	}
	if len(res.FailedRows) != 1 {
		t.Fatalf("FailedRows = %+v, want 1", res.FailedRows)
	}
	f := res.FailedRows[0]
	if f.LineNumber != 3 || f.Swimmer != "2" || f.FileName != "e.csv" {
		t.Errorf("failed row = %+v, want line 3 swimmer 2", f)
	}
	if !strings.Contains(f.Reason, "birth_date") {
		t.Errorf("reason = %q, want it to name birth_date", f.Reason)
	}
	if res.History.NumEntries != 3 || res.History.Swimmers != "1,3" {
		t.Errorf("ledger row = %+v", res.History)
	}
}

func TestImportEntries_BranchIsolation(t *testing.T) {
	store := newMemStore(testMeet)
	svc := newTestService(store)

	csv := entriesCSV(
		entryLine("1", "Doe Jane", "F", "Jan-01-05", "200 Fr", "02:15.30", "bad", "02:20.00", "Jan-05-24"),
		entryLine("2", "Roe Rick", "M", "Jan-01-05", "Relay", "01:00.00", "Jan-05-24", "", ""),
	)
	res, err := svc.ImportEntries(context.Background(), "M1", []Document{doc("e.csv", csv)})
	if err != nil {
		t.Fatalf("ImportEntries error = %v", err)
	}

	times := store.swimmerTimes()
	if len(times) != 1 || times[0].Course != CourseLong || times[0].SwimmerID != "1" {
		t.Errorf("times = %+v, want only the long course time of swimmer 1", times)
	}
	if _, ok := store.swimmers["2"]; !ok {
		t.Error("swimmer with a bad event should still be written")
	}
	if len(res.FailedRows) != 2 {
		t.Errorf("FailedRows = %+v, want 2", res.FailedRows)
	}
	if res.Swimmers != 2 || res.Rows != 2 {
		t.Errorf("Swimmers = %d, Rows = %d, want 2, 2", res.Swimmers, res.Rows)
	}
}

func TestImportEntries_Idempotent(t *testing.T) {
	store := newMemStore(testMeet)
	svc := newTestService(store)
	csv := entriesCSV(
		entryLine("1", "Doe Jane", "F", "Jan-01-05", "200 Fr", "02:15.30", "Jan-05-24", "", ""),
		entryLine("1", "Doe Jane", "F", "Jan-01-05", "100 Bk", "01:10.00", "Jan-05-24", "01:12.00", "Jan-05-24"),
	)

	first, err := svc.ImportEntries(context.Background(), "M1", []Document{doc("e.csv", csv)})
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	sw1, tm1, h1 := store.counts()

	second, err := svc.ImportEntries(context.Background(), "M1", []Document{doc("e.csv", csv)})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	sw2, tm2, h2 := store.counts()

	if sw1 != sw2 || tm1 != tm2 {
		t.Errorf("canonical rows changed: swimmers %d -> %d, times %d -> %d", sw1, sw2, tm1, tm2)
	}
	if h2 != h1+1 {
		t.Errorf("ledger rows = %d, want %d", h2, h1+1)
	}
	if first.TimesInserted != 3 || second.TimesInserted != 0 || second.TimesExisting != 3 {
		t.Errorf("inserted/existing: first %d, second %d/%d", first.TimesInserted, second.TimesInserted, second.TimesExisting)
	}
	if second.SwimmersInserted != 0 || second.Swimmers != 1 {
		t.Errorf("second import swimmers = %d inserted, %d touched", second.SwimmersInserted, second.Swimmers)
	}
}

func TestImportEntries_FileErrors(t *testing.T) {
	store := newMemStore(testMeet)
	svc := newTestService(store)

	good := entriesCSV(entryLine("1", "Doe Jane", "F", "Jan-01-05", "200 Fr", "02:15.30", "Jan-05-24", "", ""))
	narrow := "id,name\n1,Doe Jane\n"
	binary := "\xff\xfe\x00garbage"

	res, err := svc.ImportEntries(context.Background(), "M1", []Document{
		doc("narrow.csv", narrow),
		doc("good.csv", good),
		doc("binary.csv", binary),
	})
	if err != nil {
		t.Fatalf("ImportEntries error = %v", err)
	}
	if len(res.Files) != 1 || res.Files[0] != "good.csv" {
		t.Errorf("Files = %v, want [good.csv]", res.Files)
	}
	if len(res.FailedRows) != 2 {
		t.Fatalf("FailedRows = %+v, want 2", res.FailedRows)
	}
	if !strings.Contains(res.FailedRows[0].Reason, "header has 2 columns") {
		t.Errorf("narrow file reason = %q", res.FailedRows[0].Reason)
	}
	if !strings.Contains(res.FailedRows[1].Reason, "invalid UTF-8") {
		t.Errorf("binary file reason = %q", res.FailedRows[1].Reason)
	}
	if _, _, h := store.counts(); h != 1 {
		t.Errorf("ledger rows = %d, want 1 for the whole call", h)
	}
}

func TestImportEntries_AllFilesRejected(t *testing.T) {
	store := newMemStore(testMeet)
	svc := newTestService(store)

	res, err := svc.ImportEntries(context.Background(), "M1", []Document{doc("empty.csv", "")})
	var de *DocumentError
	if !errors.As(err, &de) {
		t.Fatalf("ImportEntries error = %v, want *DocumentError", err)
	}
	if res == nil || res.History != nil {
		t.Errorf("result = %+v, want no ledger row", res)
	}
	if _, _, h := store.counts(); h != 0 {
		t.Errorf("ledger rows = %d, want 0", h)
	}
}

func TestImportEntries_ShortRow(t *testing.T) {
	store := newMemStore(testMeet)
	svc := newTestService(store)

	csv := entriesCSV("1,2,3", entryLine("5", "Doe Jane", "F", "Jan-01-05", "200 Fr", "", "", "", ""))
	res, err := svc.ImportEntries(context.Background(), "M1", []Document{doc("e.csv", csv)})
	if err != nil {
		t.Fatalf("ImportEntries error = %v", err)
	}
	if res.Rows != 2 || len(res.FailedRows) != 1 || res.FailedRows[0].LineNumber != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(store.swimmerTimes()) != 0 {
		t.Error("row without times should not write a swimmer time")
	}
}

func TestImportEntries_QuotedMultilineKeepsLineNumbers(t *testing.T) {
	store := newMemStore(testMeet)
	svc := newTestService(store)

	row := entryLine("1", "\"Doe\nJane\"", "F", "Jan-01-05", "200 Fr", "", "", "", "")
	bad := entryLine("2", "Roe Rick", "M", "nope", "200 Fr", "", "", "", "")
	res, err := svc.ImportEntries(context.Background(), "M1", []Document{doc("e.csv", entriesCSV(row, bad))})
	if err != nil {
		t.Fatalf("ImportEntries error = %v", err)
	}
	if len(res.FailedRows) != 1 || res.FailedRows[0].LineNumber != 4 {
		t.Errorf("FailedRows = %+v, want one at line 4", res.FailedRows)
	}
}

func TestImportEntries_StoreErrorIsFatal(t *testing.T) {
	store := newMemStore(testMeet)
	store.fail = "time"
	svc := newTestService(store)

	csv := entriesCSV(entryLine("1", "Doe Jane", "F", "Jan-01-05", "200 Fr", "02:15.30", "Jan-05-24", "", ""))
	_, err := svc.ImportEntries(context.Background(), "M1", []Document{doc("e.csv", csv)})
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("ImportEntries error = %v, want *StoreError", err)
	}
	if _, _, h := store.counts(); h != 0 {
		t.Errorf("ledger rows = %d, want 0 after a store failure", h)
	}
}
