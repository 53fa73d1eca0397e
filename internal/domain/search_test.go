package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, f Filters) string {
	t.Helper()
	q, err := NewQuery(f)
	require.NoError(t, err)
	return q.combined
}

func TestQueryCompilation(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    string
	}{
		{
			name:    "exact phrase is quoted",
			filters: Filters{ExactPhrase: "hello world", Links: true, Replies: true},
			want:    `"hello world"`,
		},
		{
			name:    "any words keeps quoted phrases together",
			filters: Filters{AnyWords: `foo "bar baz" qux`, Links: true, Replies: true},
			want:    "(foo OR bar baz OR qux)",
		},
		{
			name:    "none words are negated",
			filters: Filters{NoneWords: "spam eggs", Links: true, Replies: true},
			want:    "-spam -eggs",
		},
		{
			name:    "hashtags are ORed",
			filters: Filters{Hashtags: "#go #golang", Links: true, Replies: true},
			want:    "(#go OR #golang)",
		},
		{
			name:    "accounts get operators",
			filters: Filters{FromAccounts: "alice bob", ToAccounts: "carol", MentionAccounts: "dave", Links: true, Replies: true},
			want:    "(from:alice OR from:bob) (to:carol) (@dave)",
		},
		{
			name:    "language name maps to code",
			filters: Filters{Language: "English", Links: true, Replies: true},
			want:    "lang:en",
		},
		{
			name:    "excluded links and replies",
			filters: Filters{AllWords: "golang", Links: false, Replies: false},
			want:    "golang -filter:replies -filter:links",
		},
		{
			name:    "minimum engagement",
			filters: Filters{MinReplies: "5", MinLikes: "100", MinReposts: "10", Links: true, Replies: true},
			want:    "min_replies:5 min_faves:100 min_retweets:10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, compile(t, tt.filters))
		})
	}
}

func TestQueryUnknownLanguage(t *testing.T) {
	_, err := NewQuery(Filters{Language: "Klingon", Links: true, Replies: true})
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "language", cerr.Field)
}
