package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

type timeKey struct {
	swimmer, meet string
	style         Style
	distance      int
	course        Course
	dataset       Dataset
}

// memStore is an in-memory Store and HistoryReader.
type memStore struct {
	mu          sync.Mutex
	swimmers    map[string]Swimmer
	times       map[timeKey]SwimmerTime
	meets       map[string]Meet
	history     []ImportHistory
	nameLookups int

	// fail makes the named operation return errStoreDown.
	fail string
}

var errStoreDown = errors.New("connection refused")

func newMemStore(meets ...Meet) *memStore {
	m := &memStore{
		swimmers: make(map[string]Swimmer),
		times:    make(map[timeKey]SwimmerTime),
		meets:    make(map[string]Meet),
	}
	for _, meet := range meets {
		m.meets[meet.ID] = meet
	}
	return m
}

func (m *memStore) UpsertSwimmer(_ context.Context, s Swimmer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail == "swimmer" {
		return false, errStoreDown
	}
	if _, ok := m.swimmers[s.ID]; ok {
		return false, nil
	}
	m.swimmers[s.ID] = s
	return true, nil
}

func (m *memStore) UpsertSwimmerTime(_ context.Context, t SwimmerTime) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail == "time" {
		return false, errStoreDown
	}
	k := timeKey{t.SwimmerID, t.MeetID, t.Style, t.Distance, t.Course, t.Dataset}
	if _, ok := m.times[k]; ok {
		return false, nil
	}
	m.times[k] = t
	return true, nil
}

func (m *memStore) FindSwimmersByName(_ context.Context, first, last string) ([]Swimmer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nameLookups++
	if m.fail == "name" {
		return nil, errStoreDown
	}
	var out []Swimmer
	for _, s := range m.swimmers {
		if s.FirstName == first && s.LastName == last {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) FindMeet(_ context.Context, id string) (Meet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail == "meet" {
		return Meet{}, errStoreDown
	}
	meet, ok := m.meets[id]
	if !ok {
		return Meet{}, ErrMeetNotFound
	}
	return meet, nil
}

func (m *memStore) AppendImportHistory(_ context.Context, h ImportHistory) (ImportHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail == "history" {
		return ImportHistory{}, errStoreDown
	}
	h.ID = int64(len(m.history) + 1)
	m.history = append(m.history, h)
	return h, nil
}

func (m *memStore) ImportHistory(_ context.Context, meetID string) ([]ImportHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ImportHistory
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].MeetID == meetID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *memStore) LatestImports(ctx context.Context, meetID string) ([]ImportHistory, error) {
	all, _ := m.ImportHistory(ctx, meetID)
	seen := make(map[Dataset]bool)
	var out []ImportHistory
	for _, h := range all {
		if !seen[h.Dataset] {
			seen[h.Dataset] = true
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) MeetTimes(ctx context.Context, meetID string, dataset Dataset) ([]MeetTime, error) {
	latest, _ := m.LatestImports(ctx, meetID)
	var ids []string
	for _, h := range latest {
		if h.Dataset == dataset {
			ids = h.SwimmerIDs()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail == "times" {
		return nil, errStoreDown
	}
	listed := make(map[string]bool, len(ids))
	for _, id := range ids {
		listed[id] = true
	}
	course := m.meets[meetID].Course
	var out []MeetTime
	for _, t := range m.times {
		if t.MeetID != meetID || t.Dataset != dataset || t.Course != course || !listed[t.SwimmerID] {
			continue
		}
		sw := m.swimmers[t.SwimmerID]
		out = append(out, MeetTime{SwimmerTime: t, FirstName: sw.FirstName, LastName: sw.LastName})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.Style != b.Style {
			return a.Style < b.Style
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.TimeMs < b.TimeMs
	})
	return out, nil
}

func (m *memStore) MeetsWithResults(_ context.Context, except string) ([]Meet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []Meet
	for _, h := range m.history {
		if h.Dataset != DatasetResults || h.MeetID == except || seen[h.MeetID] {
			continue
		}
		seen[h.MeetID] = true
		out = append(out, m.meets[h.MeetID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *memStore) swimmerTimes() []SwimmerTime {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SwimmerTime, 0, len(m.times))
	for _, t := range m.times {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SwimmerID != b.SwimmerID {
			return a.SwimmerID < b.SwimmerID
		}
		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.Course < b.Course
	})
	return out
}

func (m *memStore) counts() (swimmers, times, history int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.swimmers), len(m.times), len(m.history)
}

var testMeet = Meet{
	ID:        "M1",
	Name:      "Winter Open",
	StartDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	EndDate:   time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
	Course:    CourseShort,
}

func newTestService(store *memStore) *Service {
	return NewService(store, Options{MaxWait: time.Second})
}

// entryLine builds one 16-column entries record.
func entryLine(id, name, gender, birth, event, shortTime, shortDate, longTime, longDate string) string {
	cols := make([]string, entryColumns)
	cols[colEntryID] = id
	cols[colEntryFullName] = name
	cols[colEntryGender] = gender
	cols[colEntryBirthDate] = birth
	cols[colEntryEvent] = event
	cols[colEntryShortTime] = shortTime
	cols[colEntryShortDate] = shortDate
	cols[colEntryLongTime] = longTime
	cols[colEntryLongDate] = longDate
	return strings.Join(cols, ",")
}

func entriesHeader() string {
	cols := make([]string, entryColumns)
	for i := range cols {
		cols[i] = "col"
	}
	return strings.Join(cols, ",")
}

func entriesCSV(lines ...string) string {
	return entriesHeader() + "\n" + strings.Join(lines, "\n") + "\n"
}

func doc(name, content string) Document {
	return Document{Name: name, Reader: strings.NewReader(content)}
}
