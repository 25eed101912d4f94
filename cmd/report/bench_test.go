package report

import (
	"testing"

	"github.com/ValentinKolb/dcov/lib/coverage"
	"github.com/ValentinKolb/dcov/lib/covstore"
	"github.com/ValentinKolb/dcov/lib/db"
	"github.com/ValentinKolb/dcov/lib/db/engines/maple"
	"github.com/ValentinKolb/dcov/lib/store/lstore"
	"github.com/hashicorp/go-multierror"
)

func TestVerifyBench(t *testing.T) {
	kv := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
	s, err := covstore.New(kv, covstore.WithNamespace("bench"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	coverageStore = s

	report := benchReport(3, 11)
	if len(report) != 3 {
		t.Fatalf("expected 3 files, got %d", len(report))
	}
	for i := 0; i < 4; i++ {
		if err := s.SaveReportFor(coverage.TypeRuntime, report); err != nil {
			t.Fatalf("SaveReportFor failed: %v", err)
		}
	}

	if mismatches, err := verifyBench(coverage.TypeRuntime, report, 4); err != nil || mismatches != 0 {
		t.Errorf("verifyBench(4) = %d, %v, want no mismatches", mismatches, err)
	}
	if mismatches, _ := verifyBench(coverage.TypeRuntime, report, 5); mismatches != 3 {
		t.Errorf("verifyBench(5) = %d mismatches, want 3", mismatches)
	}
}

func TestSplitList(t *testing.T) {
	testCases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"/app/", 1},
		{" /app/ , ,/srv/", 2},
	}
	for _, tc := range testCases {
		if got := splitList(tc.in); len(got) != tc.want {
			t.Errorf("splitList(%q) = %v, want %d items", tc.in, got, tc.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := percent(1, 3); got != "33.3%" {
		t.Errorf("percent(1, 3) = %q", got)
	}
	if got := percent(0, 0); got != "-" {
		t.Errorf("percent(0, 0) = %q", got)
	}
}

func TestSaveSummary(t *testing.T) {
	kv := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
	s, err := covstore.New(kv, covstore.WithNamespace("summary"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	files := map[string][]coverage.Line{"./a.rb": coverage.Lines(1), "./b.rb": coverage.Lines(2)}

	tests := []struct {
		name string
		t    coverage.Type
		want string
	}{
		{"all saved", coverage.TypeRuntime, "saved=2, failed=0"},
		{"read-only type", coverage.TypeMerged, "saved=0, failed=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := saveSummary(len(files), s.SaveReportFor(tt.t, files)); got != tt.want {
				t.Errorf("saveSummary = %q, want %q", got, tt.want)
			}
		})
	}

	perFile := &covstore.FileError{File: "./a.rb", Err: coverage.ErrMalformedInput}
	if got := saveSummary(2, multierror.Append(nil, perFile)); got != "saved=1, failed=1" {
		t.Errorf("saveSummary with one failed file = %q", got)
	}
}
