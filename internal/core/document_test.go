package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReadDocument(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		maxSize int64
		want    string
		wantErr string
	}{
		{"plain", []byte("a,b\n"), 0, "a,b\n", ""},
		{"strips BOM", append([]byte{0xEF, 0xBB, 0xBF}, "a,b\n"...), 0, "a,b\n", ""},
		{"keeps multibyte text", []byte("Müller Zoë\n"), 0, "Müller Zoë\n", ""},
		{"empty", nil, 0, "", "empty file"},
		{"whitespace only", []byte(" \n\t\n"), 0, "", "empty file"},
		{"BOM only", []byte{0xEF, 0xBB, 0xBF}, 0, "", "empty file"},
		{"invalid utf8", []byte("ab\xffcd"), 0, "", "invalid UTF-8 at byte 2"},
		{"too large", bytes.Repeat([]byte("x"), 11), 10, "", "file too large"},
		{"exactly max", bytes.Repeat([]byte("x"), 10), 10, "xxxxxxxxxx", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readDocument(Document{Name: "f.csv", Reader: bytes.NewReader(tt.input)}, tt.maxSize)
			if tt.wantErr != "" {
				var de *DocumentError
				if !errors.As(err, &de) {
					t.Fatalf("readDocument error = %v, want *DocumentError", err)
				}
				if de.File != "f.csv" {
					t.Errorf("File = %q, want f.csv", de.File)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("readDocument error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("readDocument = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadDocument_NilReader(t *testing.T) {
	_, err := readDocument(Document{Name: "x"}, 0)
	if !errors.Is(err, ErrNoDocuments) {
		t.Errorf("readDocument(nil reader) = %v, want ErrNoDocuments", err)
	}
}
