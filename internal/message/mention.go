package message

import (
	"strings"

	"rolewatch/internal/listing"
)

// MentionPolicy decides whether a notification should carry the destination's
// mention token. It is configuration, not code: the watch-list, the
// prefix-only entries, and the forced-mention terms all arrive from the
// config file (falling back to the defaults below).
type MentionPolicy struct {
	// Watchlist entries match the company name by case-insensitive
	// substring containment. The first match wins.
	Watchlist []string

	// PrefixOnly lists watch-list entries that instead match only as a
	// case-insensitive prefix. Needed for very short names ("x") that would
	// otherwise substring-match almost every company.
	PrefixOnly []string

	// ForceTerms force a mention on reactivation whenever the resolved term
	// contains one of these (case-insensitive), independent of the
	// watch-list. Promotion rule for terms currently being pushed.
	ForceTerms []string
}

// ShouldMention reports whether the event warrants a mention for this record.
// Deactivations never mention.
func (p MentionPolicy) ShouldMention(r listing.Record, ev Event) bool {
	switch ev {
	case EventNew:
		return p.matchCompany(r.CompanyName)
	case EventReactivated:
		if p.matchTerm(ResolveTerm(r)) {
			return true
		}
		return p.matchCompany(r.CompanyName)
	default:
		return false
	}
}

func (p MentionPolicy) matchCompany(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	for _, entry := range p.Watchlist {
		e := strings.ToLower(strings.TrimSpace(entry))
		if e == "" {
			continue
		}
		if p.isPrefixOnly(e) {
			if strings.HasPrefix(name, e) {
				return true
			}
			continue
		}
		if strings.Contains(name, e) {
			return true
		}
	}
	return false
}

func (p MentionPolicy) isPrefixOnly(entry string) bool {
	for _, e := range p.PrefixOnly {
		if strings.EqualFold(strings.TrimSpace(e), entry) {
			return true
		}
	}
	return false
}

func (p MentionPolicy) matchTerm(term string) bool {
	t := strings.ToLower(term)
	for _, f := range p.ForceTerms {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && strings.Contains(t, f) {
			return true
		}
	}
	return false
}

// DefaultWatchlist is the shipped organization watch-list. Overridable via
// mentions.watchlist in the config file.
var DefaultWatchlist = []string{
	"openai", "anthropic", "google", "nvidia", "bloomberg", "snap",
	"meta", "apple", "amazon", "microsoft", "netflix", "tesla", "databricks", "figma", "roblox",
	"square", "block", "stripe", "airbnb", "uber", "lyft", "doordash", "instacart", "palantir",
	"snowflake", "salesforce", "oracle", "sap", "adobe", "vmware", "ibm", "intel", "amd",
	"qualcomm", "broadcom", "texas instruments", "cisco", "dell", "hp", "atlassian", "zoom",
	"workday", "servicenow", "twilio", "shopify", "spotify", "pinterest", "twitter", "x",
	"linkedin", "github", "robinhood", "coinbase", "jane street", "hudson river trading",
	"citadel", "two sigma", "jump trading", "drw", "akamai", "cloudflare", "mongodb",
	"splunk", "reddit", "discord", "tiktok", "bytedance", "cruise", "waymo", "rivian", "lucid",
}

// DefaultPrefixOnly marks "x" as prefix-matched by default.
var DefaultPrefixOnly = []string{"x"}

// DefaultForceTerms is the shipped forced-mention term set.
var DefaultForceTerms = []string{"winter 2026"}

// DefaultPolicy returns the policy used when the config omits the mentions
// block.
func DefaultPolicy() MentionPolicy {
	return MentionPolicy{
		Watchlist:  DefaultWatchlist,
		PrefixOnly: DefaultPrefixOnly,
		ForceTerms: DefaultForceTerms,
	}
}
