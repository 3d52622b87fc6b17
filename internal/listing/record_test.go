package listing

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestRecordDecodeLooseShapes(t *testing.T) {
	doc := `{
		"id": 12345,
		"company_name": "Acme",
		"title": "SWE Intern",
		"url": "https://example.com/1",
		"locations": ["NYC", "Remote"],
		"season": "Summer 2026",
		"active": "TRUE",
		"is_visible": true
	}`

	var r Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.ID != "12345" {
		t.Fatalf("numeric id should decode to %q, got %q", "12345", r.ID)
	}
	wantSeason := StringList{"Summer 2026"}
	if !reflect.DeepEqual(r.Season, wantSeason) {
		t.Fatalf("season = %v, want %v", r.Season, wantSeason)
	}
	if !r.IsActive() || !r.IsVisible() {
		t.Fatalf("record should be active and visible")
	}
}

func TestRecordDecodeNullAndList(t *testing.T) {
	doc := `{"id": null, "terms": ["Fall", "Winter"], "season": null}`

	var r Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.HasID() {
		t.Fatalf("null id must not count as an id")
	}
	wantTerms := StringList{"Fall", "Winter"}
	if !reflect.DeepEqual(r.Terms, wantTerms) {
		t.Fatalf("terms = %v, want %v", r.Terms, wantTerms)
	}
	if r.Season != nil {
		t.Fatalf("null season should decode to nil, got %v", r.Season)
	}
}

func TestStringListEmptyString(t *testing.T) {
	var l StringList
	if err := json.Unmarshal([]byte(`""`), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if l != nil {
		t.Fatalf("empty string should decode to nil, got %v", l)
	}
}

func TestLooseTruthiness(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want bool
	}{
		{"bool true", true, true},
		{"bool false", false, false},
		{"string true", "true", true},
		{"string TRUE", "TRUE", true},
		{"string false", "false", false},
		{"string yes is not true", "yes", false},
		{"string 1 is not true", "1", false},
		{"number nonzero", float64(1), true},
		{"number zero", float64(0), false},
		{"nil value", nil, false},
		{"nonempty list", []any{"x"}, true},
		{"empty list", []any{}, false},
	}
	for _, tc := range cases {
		if got := LooseOf(tc.v).Truthy(); got != tc.want {
			t.Errorf("%s: Truthy = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLooseAbsentDefaults(t *testing.T) {
	var r Record
	if !r.IsActive() || !r.IsVisible() {
		t.Fatalf("absent flags must default to active and visible")
	}

	var absent Loose
	if absent.TruthyOr(true) != true || absent.TruthyOr(false) != false {
		t.Fatalf("TruthyOr must return the default for absent values")
	}
	if absent.Truthy() {
		t.Fatalf("absent value is falsy at the Truthy layer")
	}
}

func TestLooseNullIsFalsyNotAbsent(t *testing.T) {
	doc := `{"id": "1", "active": null, "is_visible": true}`

	var r Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Active.IsZero() {
		t.Fatalf("an explicit null must count as present")
	}
	if r.IsActive() {
		t.Fatalf("a null active flag is falsy, not defaulted to true")
	}
	if !r.IsVisible() {
		t.Fatalf("visibility flag lost in decode")
	}
}

func TestLooseRoundTripKeepsAbsentAbsent(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"id": "1", "active": null}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"active":null`) {
		t.Fatalf("present null must survive a round trip, got %s", out)
	}
	if strings.Contains(string(out), "is_visible") {
		t.Fatalf("absent flag must stay absent after re-encoding, got %s", out)
	}
}
