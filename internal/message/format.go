package message

import (
	"fmt"
	"strings"
	"time"

	"rolewatch/internal/listing"
)

// Event is the transition class a notification announces.
type Event int

const (
	EventNew Event = iota
	EventDeactivated
	EventReactivated
)

func (e Event) String() string {
	switch e {
	case EventNew:
		return "new"
	case EventDeactivated:
		return "deactivated"
	case EventReactivated:
		return "reactivated"
	default:
		return "unknown"
	}
}

// Markers prepended to notification text per event / resolved term.
const (
	EmojiNew         = "\u2728"       // sparkles
	EmojiDeactivated = "\U0001F4C9"   // chart decreasing
	EmojiReactivated = "\U0001F4C8"   // chart increasing
	EmojiSummer      = "\u2600\uFE0F" // sun
	EmojiWinter      = "\u2744\uFE0F" // snowflake
	EmojiFall        = "\U0001F342"   // fallen leaf
	EmojiUnknownTerm = "\u2753"       // question mark
)

// TermUnknown is the literal label used when a record resolves to no term.
const TermUnknown = "Unknown"

// Placeholders for malformed records. A record missing its company name must
// still render rather than abort a cycle.
const (
	noCompany    = "N/A Company"
	noTitle      = "N/A Title"
	noURL        = "#"
	notSpecified = "Not specified"
)

const shortDateLayout = "Jan 02"

// ResolveTerm derives the display term for a record.
//
// The season field wins over terms; whichever is picked may be absent, a bare
// string, or a list (joined with ", "). A blank result resolves to the
// literal "Unknown" — note that a present-but-blank season does NOT fall
// through to terms, matching upstream behavior.
func ResolveTerm(r listing.Record) string {
	pick := r.Season
	if len(pick) == 0 {
		pick = r.Terms
	}
	s := strings.TrimSpace(strings.Join(pick, ", "))
	if s == "" {
		return TermUnknown
	}
	return s
}

// TermEmoji maps a resolved term string to its seasonal markers.
//
// Keyword checks run in a fixed order (summer/spring, winter, fall/autumn)
// and their markers concatenate, so "Fall, Winter" yields winter then fall.
// A term with no keyword match, including "Unknown", gets the single
// unknown-term marker.
func TermEmoji(term string) string {
	lower := strings.ToLower(term)

	var b strings.Builder
	if strings.Contains(lower, "summer") || strings.Contains(lower, "spring") {
		b.WriteString(EmojiSummer)
	}
	if strings.Contains(lower, "winter") {
		b.WriteString(EmojiWinter)
	}
	if strings.Contains(lower, "fall") || strings.Contains(lower, "autumn") {
		b.WriteString(EmojiFall)
	}
	if b.Len() == 0 {
		return EmojiUnknownTerm
	}
	return b.String()
}

// Format renders the notification text for one record and event.
//
// mentionTarget is the raw mention token of the destination's configured
// target ("" when none). Whether it is actually included is decided by the
// mention policy; deactivation messages never mention.
//
// It never fails: missing fields degrade to placeholder text.
func Format(r listing.Record, ev Event, mentionTarget string, pol MentionPolicy, now time.Time) string {
	company := strings.TrimSpace(r.CompanyName)
	if company == "" {
		company = noCompany
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = noTitle
	}
	url := strings.TrimSpace(r.URL)
	if url == "" {
		url = noURL
	}
	term := ResolveTerm(r)
	emoji := TermEmoji(term)
	date := now.Format(shortDateLayout)

	switch ev {
	case EventDeactivated:
		return fmt.Sprintf("%s *%s* internship is no longer active.\n[%s](%s) - Term: %s %s\nDeactivated: %s",
			EmojiDeactivated, company, title, url, emoji, term, date)

	case EventReactivated:
		mention := ""
		if mentionTarget != "" && pol.ShouldMention(r, ev) {
			mention = mentionTarget + " "
		}
		return fmt.Sprintf("%s %s*%s* internship is active again!\n[%s](%s) - Term: %s %s\nReactivated: %s",
			EmojiReactivated, mention, company, title, url, emoji, term, date)
	}

	// New listing. Unresolved terms get a reduced two-line template pointing
	// at the URL (when there is one) instead of the full card.
	if term == TermUnknown {
		if url != noURL {
			return fmt.Sprintf("%s *%s* - %s\nTerm: %s %s. Review details: %s",
				EmojiNew, company, title, emoji, term, url)
		}
		return fmt.Sprintf("%s *%s* - %s\nTerm: %s %s. More details unavailable.",
			EmojiNew, company, title, emoji, term)
	}

	locations := notSpecified
	if len(r.Locations) > 0 {
		locations = strings.Join(r.Locations, ", ")
	}
	sponsorship := strings.TrimSpace(r.Sponsorship)
	if sponsorship == "" {
		sponsorship = notSpecified
	}

	mention := ""
	if mentionTarget != "" && pol.ShouldMention(r, ev) {
		mention = mentionTarget + " "
	}

	return fmt.Sprintf("%s *%s* just posted a new internship! %s\n[%s](%s)\n*Location(s):* %s\n*Term:* %s %s\n*Sponsorship:* `%s`\n*Posted:* %s",
		EmojiNew, company, mention, title, url, locations, emoji, term, sponsorship, date)
}
