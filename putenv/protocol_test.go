package putenv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, input string) ([]Record, error) {
	t.Helper()
	rr := NewRecordReader(strings.NewReader(input))
	var records []Record
	for {
		rec, ok, err := rr.Next()
		if err != nil || !ok {
			return records, err
		}
		records = append(records, rec)
	}
}

func TestRecordReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Record
	}{
		{"lf", "A\n=1\nB\n=2\n", []Record{{"A", "1"}, {"B", "2"}}},
		{"crlf", "A\r\n=1\r\n", []Record{{"A", "1"}}},
		{"any marker", "A\nx1\n", []Record{{"A", "1"}}},
		{"marker only deletes", "A\n=\n", []Record{{"A", ""}}},
		{"no trailing newline", "A\n=1", []Record{{"A", "1"}}},
		{"quit", "A\n=1\n::QUIT\nB\n=2\n", []Record{{"A", "1"}}},
		{"blank lines between records", "A\n=1\n\n\r\nB\n=2\n", []Record{{"A", "1"}, {"B", "2"}}},
		{"blank line before value", "A\n\n=1\n", []Record{{"A", "1"}}},
		{"blank first line", "\nA\n=1\n", nil},
		{"blank lines before quit", "A\n=1\n\n::QUIT\nB\n=2\n", []Record{{"A", "1"}}},
		{"name without value", "A\n=1\nB\n", []Record{{"A", "1"}}},
		{"empty input", "", nil},
		{"value keeps spaces", "PATH\n= C:\\bin;D:\\tools \n", []Record{{"PATH", " C:\\bin;D:\\tools "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readAll(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordReaderLineTooLong(t *testing.T) {
	input := "A\n=" + strings.Repeat("v", LineBufferSize) + "\n"

	_, err := readAll(t, input)
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestRecordReaderLongestLine(t *testing.T) {
	value := strings.Repeat("v", LineBufferSize-2)
	got, err := readAll(t, "A\n="+value+"\n")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, value, got[0].Value)
}
