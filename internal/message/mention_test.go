package message

import (
	"testing"

	"rolewatch/internal/listing"
)

func company(name string) listing.Record {
	return listing.Record{ID: "1", CompanyName: name}
}

func TestShouldMentionNewListing(t *testing.T) {
	pol := DefaultPolicy()

	cases := []struct {
		name string
		want bool
	}{
		{"Google", true},
		{"Google DeepMind", true}, // substring containment
		{"NVIDIA", true},          // case-insensitive
		{"Some Startup", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := pol.ShouldMention(company(tc.name), EventNew); got != tc.want {
			t.Errorf("ShouldMention(%q, new) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestShouldMentionPrefixOnly(t *testing.T) {
	pol := DefaultPolicy()

	// "x" is prefix-only: it must match X itself, not every company with an
	// x anywhere in the name.
	if !pol.ShouldMention(company("X"), EventNew) {
		t.Fatalf("X should prefix-match the x entry")
	}
	if !pol.ShouldMention(company("xAI"), EventNew) {
		t.Fatalf("xAI should prefix-match the x entry")
	}
	if pol.ShouldMention(company("Databox"), EventNew) {
		t.Fatalf("Databox must not substring-match the x entry")
	}
}

func TestShouldMentionForceTermsReactivationOnly(t *testing.T) {
	pol := MentionPolicy{ForceTerms: []string{"winter 2026"}}
	r := company("Some Startup")
	r.Season = listing.StringList{"Winter 2026"}

	if !pol.ShouldMention(r, EventReactivated) {
		t.Fatalf("forced term must mention on reactivation")
	}
	if pol.ShouldMention(r, EventNew) {
		t.Fatalf("forced term applies to reactivations only")
	}
}

func TestShouldMentionReactivationWatchlist(t *testing.T) {
	pol := MentionPolicy{Watchlist: []string{"acme"}}
	r := company("Acme")
	r.Season = listing.StringList{"Summer 2026"}

	if !pol.ShouldMention(r, EventReactivated) {
		t.Fatalf("watch-list companies mention on reactivation too")
	}
}

func TestShouldMentionDeactivatedNever(t *testing.T) {
	pol := DefaultPolicy()
	r := company("Google")
	r.Season = listing.StringList{"Winter 2026"}

	if pol.ShouldMention(r, EventDeactivated) {
		t.Fatalf("deactivations never mention")
	}
}

func TestShouldMentionEmptyPolicy(t *testing.T) {
	pol := MentionPolicy{}
	if pol.ShouldMention(company("Google"), EventNew) {
		t.Fatalf("empty watch-list matches nothing")
	}
}
