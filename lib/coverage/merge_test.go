package coverage

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"
)

func TestMergeLines(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []Line
		expected []Line
	}{
		{"sum counts", Lines(0, 1, 2), Lines(1, 1, 0), Lines(1, 2, 2)},
		{"marker absorption", Lines(-1, 3), Lines(5, -1), Lines(5, 3)},
		{"both markers", Lines(-1, -1), Lines(-1, -1), Lines(-1, -1)},
		{"growing file", Lines(0, 1, 2), Lines(0, 1, 2, 3), Lines(0, 2, 4, 3)},
		{"shrinking file", Lines(0, 1, 2, 3), Lines(1), Lines(1, 1, 2, 3)},
		{"padding keeps markers", Lines(1), Lines(1, -1, 2), Lines(2, -1, 2)},
		{"empty", nil, Lines(-1, 0), Lines(-1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeLines(tt.a, tt.b); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("MergeLines(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
			if got := MergeLines(tt.b, tt.a); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("MergeLines(%v, %v) = %v, want %v", tt.b, tt.a, got, tt.expected)
			}
		})
	}
}

func TestMergeLinesSaturates(t *testing.T) {
	got := MergeLines([]Line{math.MaxInt64 - 1, 3, NoData}, []Line{5, math.MaxInt64, math.MaxInt64})
	want := []Line{math.MaxInt64, math.MaxInt64, math.MaxInt64}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MergeLines = %v, want %v", got, want)
	}
	if err := Validate(got); err != nil {
		t.Errorf("saturated lines must stay valid: %v", err)
	}
}

func TestMergeLinesDoesNotModifyInputs(t *testing.T) {
	a, b := Lines(1, -1), Lines(2, 3, 4)
	MergeLines(a, b)
	if !reflect.DeepEqual(a, Lines(1, -1)) || !reflect.DeepEqual(b, Lines(2, 3, 4)) {
		t.Errorf("inputs were modified: %v %v", a, b)
	}
}

func TestMergeTimestamps(t *testing.T) {
	yesterday := time.Unix(1_700_000_000, 0)
	today := yesterday.Add(24 * time.Hour)

	first, err := Merge(nil, Lines(0, 1, 2), yesterday)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	expected := Record{FirstUpdatedAt: yesterday.Unix(), LastUpdatedAt: yesterday.Unix(), Data: Lines(0, 1, 2)}
	if !reflect.DeepEqual(first, expected) {
		t.Errorf("first save = %+v, want %+v", first, expected)
	}

	second, err := Merge(&first, Lines(1, 1, 0), today)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	expected = Record{FirstUpdatedAt: yesterday.Unix(), LastUpdatedAt: today.Unix(), Data: Lines(1, 2, 2)}
	if !reflect.DeepEqual(second, expected) {
		t.Errorf("second save = %+v, want %+v", second, expected)
	}
}

func TestMergeKeepsMarkersOfNewRecords(t *testing.T) {
	record, _ := Merge(nil, Lines(0, -1, 1, 2), time.Unix(1, 0))
	if !reflect.DeepEqual(record.Data, Lines(0, -1, 1, 2)) {
		t.Errorf("markers must pass through unchanged, got %v", record.Data)
	}
}

func TestMergeRejectsMalformedInput(t *testing.T) {
	existing := Record{Data: Lines(1, 2)}
	_, err := Merge(&existing, []Line{1, -5}, time.Now())
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}

	corrupt := Record{Data: []Line{-3}}
	if _, err := Merge(&corrupt, Lines(1), time.Now()); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput for a corrupt stored record, got %v", err)
	}
}

func randomLines(r *rand.Rand) []Line {
	lines := make([]Line, r.Intn(8))
	for i := range lines {
		if r.Intn(4) == 0 {
			lines[i] = NoData
		} else {
			lines[i] = Line(r.Intn(10))
		}
	}
	return lines
}

// TestMergeOrderIndependence checks that any order of saves converges to the same data
func TestMergeOrderIndependence(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 500; i++ {
		a, b, c := randomLines(r), randomLines(r), randomLines(r)

		ab, _ := Merge(nil, a, now)
		ab, _ = Merge(&ab, b, now)
		ba, _ := Merge(nil, b, now)
		ba, _ = Merge(&ba, a, now)
		if !reflect.DeepEqual(ab.Data, ba.Data) {
			t.Fatalf("commutativity: %v+%v = %v, %v+%v = %v", a, b, ab.Data, b, a, ba.Data)
		}

		left := MergeLines(MergeLines(a, b), c)
		right := MergeLines(a, MergeLines(b, c))
		if !reflect.DeepEqual(left, right) {
			t.Fatalf("associativity: (%v+%v)+%v = %v, %v+(%v+%v) = %v", a, b, c, left, a, b, c, right)
		}
	}
}

func TestMergeRecords(t *testing.T) {
	eager := Record{FirstUpdatedAt: 100, LastUpdatedAt: 100, Data: Lines(0, 1, 1)}
	runtime := Record{FirstUpdatedAt: 50, LastUpdatedAt: 200, Data: Lines(1, 0, 1)}

	merged := MergeRecords(eager, runtime)
	expected := Record{FirstUpdatedAt: 50, LastUpdatedAt: 200, Data: Lines(1, 1, 2)}
	if !reflect.DeepEqual(merged, expected) {
		t.Errorf("MergeRecords = %+v, want %+v", merged, expected)
	}
}

func TestMergeReports(t *testing.T) {
	eager := map[string]Record{
		"./dog.rb": {FirstUpdatedAt: 1, LastUpdatedAt: 1, Data: Lines(0, 1, 1)},
	}
	runtime := map[string]Record{
		"./dog.rb": {FirstUpdatedAt: 2, LastUpdatedAt: 2, Data: Lines(1, 0, 1)},
		"./cat.rb": {FirstUpdatedAt: 2, LastUpdatedAt: 2, Data: Lines(-1, 4)},
	}

	merged := MergeReports(eager, runtime)
	if len(merged) != 2 {
		t.Fatalf("expected 2 files, got %d", len(merged))
	}
	if got := merged["./dog.rb"].Data; !reflect.DeepEqual(got, Lines(1, 1, 2)) {
		t.Errorf("dog.rb = %v, want [1 1 2]", got)
	}
	if got := merged["./cat.rb"].Data; !reflect.DeepEqual(got, Lines(-1, 4)) {
		t.Errorf("cat.rb = %v, want [nil 4]", got)
	}

	// the merged view must not alias stored data
	merged["./cat.rb"].Data[1] = 99
	if runtime["./cat.rb"].Data[1] != 4 {
		t.Errorf("MergeReports aliased the input record")
	}
}
