package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "dot separator", input: "12.34", want: 1234},
		{name: "comma separator", input: "12,34", want: 1234},
		{name: "integer only", input: "7", want: 700},
		{name: "zero allowed", input: "0", want: 0},
		{name: "third decimal rounds down", input: "12.344", want: 1234},
		{name: "third decimal rounds up", input: "12.346", want: 1235},
		{name: "leading dot", input: ".50", want: 50},
		{name: "negative rejected", input: "-1.00", wantErr: true},
		{name: "plus sign rejected", input: "+1.00", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "garbage rejected", input: "12a.3", wantErr: true},
		{name: "two dots rejected", input: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDecimalToCents(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestPerPeriodCents(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		count int
		want  int64
	}{
		{name: "exact division", total: 90000, count: 90, want: 1000},
		{name: "rounds half up", total: 1000, count: 3, want: 333},
		{name: "rounds up past half", total: 2000, count: 3, want: 667},
		{name: "single period", total: 1234, count: 1, want: 1234},
		{name: "zero total", total: 0, count: 10, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PerPeriodCents(tt.total, tt.count)
			if got != tt.want {
				t.Errorf("PerPeriodCents(%d, %d) = %d, want %d", tt.total, tt.count, got, tt.want)
			}
			// The reconstructed schedule must stay within one cent per period
			// of the original total.
			diff := got*int64(tt.count) - tt.total
			if diff < 0 {
				diff = -diff
			}
			if diff > int64(tt.count) {
				t.Errorf("schedule drift %d cents exceeds tolerance", diff)
			}
		})
	}
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 1234, want: "€12,34"},
		{cents: 5, want: "€0,05"},
		{cents: -250, want: "-€2,50"},
		{cents: 0, want: "€0,00"},
	}

	for _, tt := range tests {
		if got := FormatCents(tt.cents); got != tt.want {
			t.Errorf("FormatCents(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
