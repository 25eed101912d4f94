package coverage

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecodeReport(t *testing.T) {
	data := []byte(`{
		"app_path/dog.rb": [0, null, 1, 2],
		"app_path/cat.rb": [1, -2, 0],
		"app_path/ferrit.rb": "not an array",
		"app_path/cow.rb": [1.5]
	}`)

	files, rejected, err := DecodeReport(data)
	if err != nil {
		t.Fatalf("DecodeReport failed: %v", err)
	}

	if len(files) != 1 || !reflect.DeepEqual(files["app_path/dog.rb"], Lines(0, -1, 1, 2)) {
		t.Errorf("expected only dog.rb to be accepted, got %v", files)
	}
	for _, path := range []string{"app_path/cat.rb", "app_path/ferrit.rb", "app_path/cow.rb"} {
		if !errors.Is(rejected[path], ErrMalformedInput) {
			t.Errorf("expected %s to be rejected as malformed, got %v", path, rejected[path])
		}
	}
}

func TestDecodeReportRequiresObject(t *testing.T) {
	if _, _, err := DecodeReport([]byte(`[1, 2]`)); err == nil {
		t.Errorf("expected an error for a non-object report")
	}
}

func TestPathResolver(t *testing.T) {
	resolver := PathResolver{RootPaths: []string{"/srv/app", "app_path/"}}

	tests := []struct {
		input, want string
	}{
		{"app_path/dog.rb", "./dog.rb"},
		{"/srv/app/lib/cat.rb", "./lib/cat.rb"},
		{"./already.rb", "./already.rb"},
		{"/elsewhere/x.rb", "/elsewhere/x.rb"},
		{"/srv/application.rb", "/srv/application.rb"},
	}
	for _, tt := range tests {
		if got := resolver.Relative(tt.input); got != tt.want {
			t.Errorf("Relative(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	resolved, rejected := resolver.RelativeAll(map[string][]Line{
		"app_path/dog.rb": Lines(1, -1),
		"./dog.rb":        Lines(1, 2),
	})
	if !reflect.DeepEqual(resolved, map[string][]Line{"./dog.rb": Lines(2, 2)}) || len(rejected) != 0 {
		t.Errorf("RelativeAll = %v, %v", resolved, rejected)
	}
}

func TestRelativeAllRejectsInvalidAliases(t *testing.T) {
	resolver := PathResolver{RootPaths: []string{"app_path/"}}

	resolved, rejected := resolver.RelativeAll(map[string][]Line{
		"app_path/dog.rb": Lines(1, 5),
		"./dog.rb":        {-2, 1},
	})
	if !reflect.DeepEqual(resolved, map[string][]Line{"./dog.rb": Lines(1, 5)}) {
		t.Errorf("resolved = %v, want only the valid alias", resolved)
	}
	if len(rejected) != 1 || !errors.Is(rejected["./dog.rb"], ErrMalformedInput) {
		t.Errorf("rejected = %v, want ./dog.rb with ErrMalformedInput", rejected)
	}
}
