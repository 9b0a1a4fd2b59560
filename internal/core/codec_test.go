package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		token string
		want  int
	}{
		{"01:23.45", 83450},
		{"02:15.30", 135300},
		{"02:15.30L", 135300},
		{"02:15.30S", 135300},
		{" 00:59.99 ", 59990},
		{"10:00.00", 600000},
		{"28.41", 28410},
		{"", 0},
		{"   ", 0},
		{"ab:cd.ef", 0},
		{"01:xx.45", 60450},
		{"01:23", 83000},
		{"01:23.4", 83400},
		{"01:23.456", 83450},
		{"59.5", 59500},
	}
	for _, tt := range tests {
		if got := ParseTime(tt.token); got != tt.want {
			t.Errorf("ParseTime(%q) = %d, want %d", tt.token, got, tt.want)
		}
	}
}

func TestClassifyStyle(t *testing.T) {
	tests := []struct {
		token string
		want  Style
	}{
		{"Fr", StyleFreestyle},
		{"Free", StyleFreestyle},
		{"FREESTYLE", StyleFreestyle},
		{"Bk", StyleBackstroke},
		{"Back", StyleBackstroke},
		{"Br", StyleBreaststroke},
		{"Breast", StyleBreaststroke},
		{"FL", StyleButterfly},
		{"Fly", StyleButterfly},
		{"IM", StyleMedley},
		{"I.M", StyleMedley},
		{"I.M.", StyleMedley},
		{" im ", StyleMedley},
		{"Medley", StyleMedley},
		{"", StyleUnknown},
		{"Relay", StyleUnknown},
		{"Frog", StyleUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyStyle(tt.token); got != tt.want {
			t.Errorf("ClassifyStyle(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		token   string
		want    time.Time
		wantErr bool
	}{
		{"Jan-05-24", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), false},
		{"Jan-01-05", time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"Dec-31-99", time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"Mar-7-10", time.Date(2010, 3, 7, 0, 0, 0, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"2024-01-05", time.Time{}, true},
		{"Foo-01-05", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseDate("birth_date", tt.token, EntryDateLayout)
		if tt.wantErr {
			var rpe *RecordParseError
			if !errors.As(err, &rpe) {
				t.Errorf("ParseDate(%q) error = %v, want *RecordParseError", tt.token, err)
				continue
			}
			if rpe.Field != "birth_date" {
				t.Errorf("ParseDate(%q) field = %q, want birth_date", tt.token, rpe.Field)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDate(%q) error = %v", tt.token, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		label        string
		wantDistance int
		wantStyle    Style
		wantErr      bool
	}{
		{"200 Fr", 200, StyleFreestyle, false},
		{"50 Fly", 50, StyleButterfly, false},
		{" 400  IM ", 400, StyleMedley, false},
		{"100 Relay", 100, StyleUnknown, false},
		{"Fr", 0, StyleUnknown, true},
		{"abc Fr", 0, StyleUnknown, true},
		{"0 Fr", 0, StyleUnknown, true},
		{"", 0, StyleUnknown, true},
	}
	for _, tt := range tests {
		d, s, err := ParseEvent(tt.label)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEvent(%q) error = %v, wantErr %v", tt.label, err, tt.wantErr)
			continue
		}
		if d != tt.wantDistance || s != tt.wantStyle {
			t.Errorf("ParseEvent(%q) = (%d, %q), want (%d, %q)", tt.label, d, s, tt.wantDistance, tt.wantStyle)
		}
	}
}

func TestParseCourseSuffix(t *testing.T) {
	tests := []struct {
		token  string
		want   Course
		wantOK bool
	}{
		{"02:15.30L", CourseLong, true},
		{"02:15.30S", CourseShort, true},
		{"02:15.30s", CourseShort, true},
		{"02:15.30", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCourseSuffix(tt.token)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseCourseSuffix(%q) = (%q, %v), want (%q, %v)", tt.token, got, ok, tt.want, tt.wantOK)
		}
	}
}
