package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const searchBaseURL = "https://x.com/search?q="

// langCodes maps human-readable language names to the short codes understood
// by the platform's lang: search operator.
var langCodes = map[string]string{
	"Arabic":              "ar",
	"Arabic (Feminine)":   "ar-x-fm",
	"Bangla":              "bn",
	"Basque":              "eu",
	"Bulgarian":           "bg",
	"Catalan":             "ca",
	"Croatian":            "hr",
	"Czech":               "cs",
	"Danish":              "da",
	"Dutch":               "nl",
	"English":             "en",
	"Finnish":             "fi",
	"French":              "fr",
	"German":              "de",
	"Greek":               "el",
	"Gujarati":            "gu",
	"Hebrew":              "he",
	"Hindi":               "hi",
	"Hungarian":           "hu",
	"Indonesian":          "id",
	"Italian":             "it",
	"Japanese":            "ja",
	"Kannada":             "kn",
	"Korean":              "ko",
	"Marathi":             "mr",
	"Norwegian":           "no",
	"Persian":             "fa",
	"Polish":              "pl",
	"Portuguese":          "pt",
	"Romanian":            "ro",
	"Russian":             "ru",
	"Serbian":             "sr",
	"Simplified Chinese":  "zh-cn",
	"Slovak":              "sk",
	"Spanish":             "es",
	"Swedish":             "sv",
	"Tamil":               "ta",
	"Thai":                "th",
	"Traditional Chinese": "zh-tw",
	"Turkish":             "tr",
	"Ukrainian":           "uk",
	"Urdu":                "ur",
	"Vietnamese":          "vi",
}

// anyTermPattern splits an any-of-these-words value into terms, keeping
// single- or double-quoted phrases together.
var anyTermPattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'|(\S+)`)

// Filters describes the named search filters compiled into a single platform
// query string. Zero values mean "no filter"; Links and Replies default to
// included.
type Filters struct {
	AllWords        string
	ExactPhrase     string
	AnyWords        string
	NoneWords       string
	Hashtags        string
	FromAccounts    string
	ToAccounts      string
	MentionAccounts string
	Language        string
	MinReplies      string
	MinLikes        string
	MinReposts      string
	Links           bool
	Replies         bool
}

// Query holds a compiled filter combination and builds per-boundary search
// URLs. Filters are validated and compiled once at construction.
type Query struct {
	combined string
}

// NewQuery compiles the filters into the platform's query grammar. An unknown
// language name is a configuration error.
func NewQuery(f Filters) (*Query, error) {
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}

	add(strings.TrimSpace(f.AllWords))

	if f.ExactPhrase != "" {
		add(`"` + f.ExactPhrase + `"`)
	}

	if terms := splitAnyTerms(f.AnyWords); len(terms) > 0 {
		add("(" + strings.Join(terms, " OR ") + ")")
	}

	if f.NoneWords != "" {
		var negated []string
		for _, w := range strings.Fields(f.NoneWords) {
			negated = append(negated, "-"+w)
		}
		add(strings.Join(negated, " "))
	}

	if f.Hashtags != "" {
		add("(" + strings.Join(strings.Fields(f.Hashtags), " OR ") + ")")
	}

	add(accountGroup("from:", f.FromAccounts))
	add(accountGroup("to:", f.ToAccounts))
	add(accountGroup("@", f.MentionAccounts))

	if f.Language != "" {
		code, ok := langCodes[f.Language]
		if !ok {
			return nil, &ConfigError{Field: "language", Reason: fmt.Sprintf("unknown language name %q", f.Language)}
		}
		add("lang:" + code)
	}

	if !f.Replies {
		add("-filter:replies")
	}
	if !f.Links {
		add("-filter:links")
	}

	if f.MinReplies != "" {
		add("min_replies:" + f.MinReplies)
	}
	if f.MinLikes != "" {
		add("min_faves:" + f.MinLikes)
	}
	if f.MinReposts != "" {
		add("min_retweets:" + f.MinReposts)
	}

	return &Query{combined: strings.Join(parts, " ")}, nil
}

// SearchURL builds the live search URL scoped to posts strictly before the
// boundary (unix seconds).
func (q *Query) SearchURL(boundary int64) string {
	query := fmt.Sprintf("%s until_time:%d", q.combined, boundary)
	return searchBaseURL + url.QueryEscape(strings.TrimSpace(query)) + "&f=live&src=typed_query"
}

func splitAnyTerms(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var terms []string
	for _, m := range anyTermPattern.FindAllStringSubmatch(raw, -1) {
		for _, group := range m[1:] {
			if group != "" {
				terms = append(terms, group)
				break
			}
		}
	}
	return terms
}

func accountGroup(prefix, accounts string) string {
	if accounts == "" {
		return ""
	}
	var prefixed []string
	for _, a := range strings.Fields(accounts) {
		prefixed = append(prefixed, prefix+a)
	}
	return "(" + strings.Join(prefixed, " OR ") + ")"
}
