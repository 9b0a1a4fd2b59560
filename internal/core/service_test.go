package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordedImport struct {
	dataset, status string
}

type fakeRecorder struct {
	mu       sync.Mutex
	started  int
	finished []recordedImport
	rejected []string
	rows     map[string][2]int
}

func (r *fakeRecorder) ImportStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *fakeRecorder) ImportFinished(dataset, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, recordedImport{dataset, status})
}

func (r *fakeRecorder) ImportRejected(dataset string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, dataset)
}

func (r *fakeRecorder) Rows(dataset string, processed, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		r.rows = make(map[string][2]int)
	}
	cur := r.rows[dataset]
	r.rows[dataset] = [2]int{cur[0] + processed, cur[1] + skipped}
}

func (r *fakeRecorder) TimesWritten(string, int, int) {}

func TestService_MeetNotFound(t *testing.T) {
	svc := newTestService(newMemStore())
	csv := entriesCSV(entryLine("1", "Doe Jane", "F", "Jan-01-05", "200 Fr", "", "", "", ""))

	_, err := svc.ImportEntries(context.Background(), "nope", []Document{doc("e.csv", csv)})
	if !errors.Is(err, ErrMeetNotFound) {
		t.Fatalf("ImportEntries error = %v, want ErrMeetNotFound", err)
	}
}

func TestService_MeetLookupStoreFailure(t *testing.T) {
	store := newMemStore(testMeet)
	store.fail = "meet"
	svc := newTestService(store)

	_, err := svc.ImportResults(context.Background(), "M1", doc("r.html", "<table></table>"))
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("ImportResults error = %v, want *StoreError", err)
	}
}

func TestService_NoDocuments(t *testing.T) {
	svc := newTestService(newMemStore(testMeet))
	if _, err := svc.ImportEntries(context.Background(), "M1", nil); !errors.Is(err, ErrNoDocuments) {
		t.Errorf("ImportEntries(nil) = %v, want ErrNoDocuments", err)
	}
	if _, err := svc.ImportResults(context.Background(), "M1", Document{Name: "x"}); !errors.Is(err, ErrNoDocuments) {
		t.Errorf("ImportResults(no reader) = %v, want ErrNoDocuments", err)
	}
}

func TestService_CancelledBeforeStart(t *testing.T) {
	store := newMemStore(testMeet)
	svc := newTestService(store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	csv := entriesCSV(entryLine("1", "Doe Jane", "F", "Jan-01-05", "200 Fr", "", "", "", ""))
	if _, err := svc.ImportEntries(ctx, "M1", []Document{doc("e.csv", csv)}); !errors.Is(err, context.Canceled) {
		t.Fatalf("ImportEntries error = %v, want context.Canceled", err)
	}
	if sw, _, h := store.counts(); sw != 0 || h != 0 {
		t.Errorf("writes after cancellation: swimmers %d, history %d", sw, h)
	}
}

// cancellingReader cancels the import context once its file has been read.
type cancellingReader struct {
	r      *strings.Reader
	cancel context.CancelFunc
}

func (c *cancellingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err != nil {
		c.cancel()
	}
	return n, err
}

func TestService_CancelledBetweenFiles(t *testing.T) {
	store := newMemStore(testMeet)
	svc := newTestService(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := entriesCSV(entryLine("1", "Doe Jane", "F", "Jan-01-05", "200 Fr", "02:15.30", "Jan-05-24", "", ""))
	second := entriesCSV(entryLine("2", "Roe Rick", "M", "Jan-01-05", "200 Fr", "02:15.30", "Jan-05-24", "", ""))
	docs := []Document{
		{Name: "a.csv", Reader: &cancellingReader{r: strings.NewReader(first), cancel: cancel}},
		doc("b.csv", second),
	}

	res, err := svc.ImportEntries(ctx, "M1", docs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ImportEntries error = %v, want context.Canceled", err)
	}
	if _, ok := store.swimmers["1"]; !ok {
		t.Error("file read before cancellation should be fully imported")
	}
	if _, ok := store.swimmers["2"]; ok {
		t.Error("file after cancellation should not be imported")
	}
	if res == nil || res.History != nil {
		t.Errorf("result = %+v, want a result without a ledger row", res)
	}
	if len(store.history) != 0 {
		t.Errorf("history rows = %d, want 0 after cancellation", len(store.history))
	}
}

func TestService_ResultsSeeSwimmersFromLaterEntries(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(testMeet)
	svc := newTestService(store)
	page := resultsPage(headerRow("Doe, Jane"), swimRow("02:15.30L", "F 200 Free"))

	first := entriesCSV(entryLine("1", "Doe Jane", "F", "Jan-01-05", "200 Fr", "", "", "", ""))
	if _, err := svc.ImportEntries(ctx, "M1", []Document{doc("a.csv", first)}); err != nil {
		t.Fatalf("ImportEntries error = %v", err)
	}
	res, err := svc.ImportResults(ctx, "M1", doc("r1.html", page))
	if err != nil {
		t.Fatalf("ImportResults error = %v", err)
	}
	if res.TimesInserted != 1 {
		t.Fatalf("TimesInserted = %d, want 1", res.TimesInserted)
	}

	second := entriesCSV(entryLine("2", "Doe Jane", "F", "Feb-02-06", "200 Fr", "", "", "", ""))
	if _, err := svc.ImportEntries(ctx, "M1", []Document{doc("b.csv", second)}); err != nil {
		t.Fatalf("ImportEntries error = %v", err)
	}
	res, err = svc.ImportResults(ctx, "M1", doc("r2.html", page))
	if err != nil {
		t.Fatalf("ImportResults error = %v", err)
	}

	if res.TimesInserted != 0 || res.TimesExisting != 0 {
		t.Errorf("times written = (%d, %d), want none for an ambiguous name", res.TimesInserted, res.TimesExisting)
	}
	if len(res.FailedRows) != 1 {
		t.Fatalf("FailedRows = %d, want 1", len(res.FailedRows))
	}
	if got := res.FailedRows[0].Swimmer; got != "Doe, Jane" {
		t.Errorf("FailedRows[0].Swimmer = %q, want %q", got, "Doe, Jane")
	}
	if !strings.Contains(res.FailedRows[0].Reason, ErrAmbiguousSwimmer.Error()) {
		t.Errorf("FailedRows[0].Reason = %q, want it to mention %q", res.FailedRows[0].Reason, ErrAmbiguousSwimmer)
	}
}

func TestService_LimiterRejects(t *testing.T) {
	store := newMemStore(testMeet)
	rec := &fakeRecorder{}
	svc := NewService(store, Options{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond, Recorder: rec})

	if err := svc.limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire error = %v", err)
	}
	defer svc.limiter.Release()

	_, err := svc.ImportResults(context.Background(), "M1", doc("r.html", "<table></table>"))
	if !errors.Is(err, ErrTooManyImports) {
		t.Fatalf("ImportResults error = %v, want ErrTooManyImports", err)
	}
	if len(rec.rejected) != 1 || rec.rejected[0] != string(DatasetResults) {
		t.Errorf("rejected = %v", rec.rejected)
	}
	if got := svc.LimiterStatus(); got.Active != 1 || got.Available != 0 {
		t.Errorf("LimiterStatus = %+v", got)
	}
}

func TestService_RecordsMetrics(t *testing.T) {
	store := storeWithSwimmers()
	rec := &fakeRecorder{}
	svc := NewService(store, Options{Recorder: rec})

	page := resultsPage(headerRow("Doe, Jane"), swimRow("02:15.30L", "F 200 Free"), swimRow("bad", "F 100 Free"))
	if _, err := svc.ImportResults(context.Background(), "M1", doc("r.html", page)); err != nil {
		t.Fatalf("ImportResults error = %v", err)
	}
	if _, err := svc.ImportResults(context.Background(), "missing", doc("r.html", page)); err == nil {
		t.Fatal("expected error for missing meet")
	}

	if rec.started != 2 {
		t.Errorf("started = %d, want 2", rec.started)
	}
	want := []recordedImport{
		{string(DatasetResults), statusSuccess},
		{string(DatasetResults), statusFailed},
	}
	if len(rec.finished) != 2 || rec.finished[0] != want[0] || rec.finished[1] != want[1] {
		t.Errorf("finished = %+v, want %+v", rec.finished, want)
	}
	if got := rec.rows[string(DatasetResults)]; got != [2]int{1, 1} {
		t.Errorf("rows = %v, want [1 1]", got)
	}
}

func TestService_HistoryAndIsLoaded(t *testing.T) {
	ctx := context.Background()
	store := storeWithSwimmers()
	svc := newTestService(store)

	loaded, err := svc.IsLoaded(ctx, "M1", DatasetEntries)
	if err != nil || loaded {
		t.Fatalf("IsLoaded before import = (%v, %v), want (false, nil)", loaded, err)
	}

	csv := entriesCSV(entryLine("1", "Doe Jane", "F", "Jan-01-05", "200 Fr", "", "", "", ""))
	for i := 0; i < 2; i++ {
		if _, err := svc.ImportEntries(ctx, "M1", []Document{doc("e.csv", csv)}); err != nil {
			t.Fatalf("ImportEntries: %v", err)
		}
	}
	page := resultsPage(headerRow("Doe, Jane"), swimRow("02:15.30L", "F 200 Free"))
	if _, err := svc.ImportResults(ctx, "M1", doc("r.html", page)); err != nil {
		t.Fatalf("ImportResults: %v", err)
	}

	history, err := svc.History(ctx, "M1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 || history[0].Dataset != DatasetResults {
		t.Errorf("History = %+v, want 3 rows newest first", history)
	}

	latest, err := svc.LatestImports(ctx, "M1")
	if err != nil {
		t.Fatalf("LatestImports: %v", err)
	}
	if len(latest) != 2 {
		t.Errorf("LatestImports = %+v, want one per dataset", latest)
	}

	for _, ds := range []Dataset{DatasetEntries, DatasetResults} {
		if loaded, err := svc.IsLoaded(ctx, "M1", ds); err != nil || !loaded {
			t.Errorf("IsLoaded(%s) = (%v, %v), want (true, nil)", ds, loaded, err)
		}
	}
}

func TestService_MeetTimes(t *testing.T) {
	ctx := context.Background()
	other := Meet{ID: "M2", Name: "Spring Cup", StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Course: CourseShort}
	store := newMemStore(testMeet, other)
	svc := newTestService(store)

	both := entriesCSV(
		entryLine("1", "Doe Jane", "F", "Jan-01-05", "200 Fr", "02:15.30", "Jan-05-24", "02:20.00", "Jan-05-24"),
		entryLine("2", "Lee Sam", "M", "Jan-01-05", "200 Fr", "02:05.00", "Jan-05-24", "", ""),
	)
	onlyJane := entriesCSV(entryLine("1", "Doe Jane", "F", "Jan-01-05", "100 Fr", "01:05.00", "Jan-05-24", "", ""))
	for _, csv := range []string{both, onlyJane} {
		if _, err := svc.ImportEntries(ctx, "M1", []Document{doc("e.csv", csv)}); err != nil {
			t.Fatalf("ImportEntries error = %v", err)
		}
	}
	page := resultsPage(headerRow("Doe, Jane"), swimRow("01:04.10", "F 100 Free"), swimRow("02:19.00L", "F 200 Free"))
	for _, meetID := range []string{"M1", "M2"} {
		if _, err := svc.ImportResults(ctx, meetID, doc("r.html", page)); err != nil {
			t.Fatalf("ImportResults(%s) error = %v", meetID, err)
		}
	}

	tests := []struct {
		name    string
		dataset Dataset
		want    []int
	}{
		{"entries of latest import in meet course", DatasetEntries, []int{65000, 135300}},
		{"results in meet course", DatasetResults, []int{64100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := svc.MeetTimes(ctx, "M1", tt.dataset)
			if err != nil {
				t.Fatalf("MeetTimes error = %v", err)
			}
			var got []int
			for _, r := range rows {
				if r.SwimmerID != "1" || r.FirstName != "Jane" || r.LastName != "Doe" {
					t.Errorf("row swimmer = (%s, %s %s), want (1, Jane Doe)", r.SwimmerID, r.FirstName, r.LastName)
				}
				if r.Course != CourseShort {
					t.Errorf("row course = %s, want %s", r.Course, CourseShort)
				}
				got = append(got, r.TimeMs)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MeetTimes times = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := svc.MeetTimes(ctx, "nope", DatasetEntries); !errors.Is(err, ErrMeetNotFound) {
		t.Errorf("MeetTimes(unknown meet) error = %v, want ErrMeetNotFound", err)
	}

	meets, err := svc.MeetsWithResults(ctx, "M1")
	if err != nil {
		t.Fatalf("MeetsWithResults error = %v", err)
	}
	if len(meets) != 1 || meets[0].ID != "M2" {
		t.Errorf("MeetsWithResults = %+v, want only M2", meets)
	}
}

func TestService_MeetTimesStoreFailure(t *testing.T) {
	store := newMemStore(testMeet)
	store.fail = "times"
	svc := newTestService(store)

	_, err := svc.MeetTimes(context.Background(), "M1", DatasetResults)
	var se *StoreError
	if !errors.As(err, &se) {
		t.Errorf("MeetTimes error = %v, want *StoreError", err)
	}
}

func TestService_FetchResults(t *testing.T) {
	page := resultsPage(headerRow("Doe, Jane"), swimRow("02:15.30L", "F 200 Free"))
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	store := storeWithSwimmers()
	fetcher := NewResultsFetcher(srv.URL+"/meets/{meet_id}/results.html", "coach-test/1.0", time.Second)
	svc := NewService(store, Options{Fetcher: fetcher})

	res, err := svc.FetchResults(context.Background(), "M1")
	if err != nil {
		t.Fatalf("FetchResults error = %v", err)
	}
	if gotPath != "/meets/M1/results.html" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUA != "coach-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if res.TimesInserted != 1 || len(res.Files) != 1 || !strings.HasSuffix(res.Files[0], "/meets/M1/results.html") {
		t.Errorf("result = %+v", res)
	}
}

func TestService_FetchResultsNotConfigured(t *testing.T) {
	svc := newTestService(newMemStore(testMeet))
	if _, err := svc.FetchResults(context.Background(), "M1"); !errors.Is(err, ErrResultsURLNotConfigured) {
		t.Errorf("FetchResults error = %v, want ErrResultsURLNotConfigured", err)
	}
}

func TestService_WaitForImports(t *testing.T) {
	svc := newTestService(newMemStore(testMeet))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.WaitForImports(ctx); err != nil {
		t.Errorf("WaitForImports with no imports = %v", err)
	}
}
