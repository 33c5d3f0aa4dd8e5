package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatter_Println(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(WithWriter(&buf), WithColor(false))

	if err := f.Println("hello %s", "world"); err != nil {
		t.Fatalf("Println() error = %v", err)
	}
	if got := buf.String(); got != "hello world\n" {
		t.Errorf("Println() output = %q", got)
	}
}

func TestFormatter_Colorize(t *testing.T) {
	t.Run("enabled wraps with codes", func(t *testing.T) {
		f := NewFormatter(WithColor(true))
		got := f.Colorize("text", ColorGreen)
		if !strings.HasPrefix(got, string(ColorGreen)) || !strings.HasSuffix(got, string(ColorReset)) {
			t.Errorf("Colorize() = %q, want color codes", got)
		}
	})

	t.Run("disabled passes through", func(t *testing.T) {
		f := NewFormatter(WithColor(false))
		if got := f.Colorize("text", ColorGreen); got != "text" {
			t.Errorf("Colorize() = %q, want plain text", got)
		}
	})
}

func TestFormatter_Messages(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(WithWriter(&buf), WithColor(false))

	if err := f.Success("done"); err != nil {
		t.Fatalf("Success() error = %v", err)
	}
	if err := f.Error("broke"); err != nil {
		t.Fatalf("Error() error = %v", err)
	}
	if err := f.Warning("careful"); err != nil {
		t.Fatalf("Warning() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"✓ done", "✗ broke", "⚠ careful"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatter_Item(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(WithWriter(&buf), WithColor(false))

	if err := f.Item("Status", "connected"); err != nil {
		t.Fatalf("Item() error = %v", err)
	}
	if got := buf.String(); got != "  Status: connected\n" {
		t.Errorf("Item() output = %q", got)
	}
}

func TestFormatter_Table(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(WithWriter(&buf), WithColor(false))

	err := f.Table(TableData{
		Columns: []TableColumn{
			{Header: "ID", Align: AlignRight},
			{Header: "TITLE"},
			{Header: "STATUS"},
		},
		Rows: [][]string{
			{"1", "write report", "OPEN"},
			{"12", "review", "DONE"},
		},
	})
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("Table() produced %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "TITLE") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[3], "12") {
		t.Errorf("right-aligned id cell not at line start: %q", lines[3])
	}
}

func TestFormatter_TableEmpty(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(WithWriter(&buf))

	if err := f.Table(TableData{}); err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty table produced output: %q", buf.String())
	}
}

func TestFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(WithWriter(&buf))

	if err := f.JSON(map[string]int{"total": 3}); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	var decoded map[string]int
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["total"] != 3 {
		t.Errorf("decoded total = %d, want 3", decoded["total"])
	}
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status string
		want   Color
	}{
		{"OPEN", ColorCyan},
		{"IN_PROGRESS", ColorYellow},
		{"DONE", ColorGreen},
		{"UNKNOWN", ColorWhite},
	}

	for _, tt := range tests {
		if got := StatusColor(tt.status); got != tt.want {
			t.Errorf("StatusColor(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"text", FormatText, false},
		{"", FormatText, false},
		{" Table ", FormatTable, false},
		{"xml", FormatText, true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSpinner_StartStop(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("working", WithSpinnerWriter(&buf), WithSpinnerColor(false))

	s.Start()
	s.Stop()

	// Stop again is a no-op
	s.Stop()
}
