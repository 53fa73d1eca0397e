// Package extract turns the rendered HTML of one post container into a
// structured record.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"postharvest/internal/domain"
)

// Selectors mirror the platform's rendered post markup.
const (
	postTextSelector = `div[data-testid="tweetText"]`
	quotedSelector   = `div[role="link"]`
	authorSelector   = `a div span`
	timeSelector     = "time"
	countersSelector = `div[role="group"]`
)

var digitsPattern = regexp.MustCompile(`\d+`)

// Extractor parses post containers. Stateless and safe to share.
type Extractor struct{}

// New returns a container extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses one container snapshot into a Record. It fails with
// *domain.ExtractionError when a required sub-element is missing and passes
// through domain.ErrStaleContainer for invalidated containers.
func (e *Extractor) Extract(c domain.Container) (domain.Record, error) {
	if c.Err != nil {
		return domain.Record{}, c.Err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(c.HTML))
	if err != nil {
		return domain.Record{}, &domain.ExtractionError{Missing: "parseable markup"}
	}

	textRegion := postTextRegion(doc)
	if textRegion == nil {
		return domain.Record{}, &domain.ExtractionError{Missing: "post text region"}
	}

	author := strings.TrimSpace(doc.Find(authorSelector).First().Text())
	if author == "" {
		return domain.Record{}, &domain.ExtractionError{Missing: "author label"}
	}

	datetime, ok := doc.Find(timeSelector).First().Attr("datetime")
	if !ok {
		return domain.Record{}, &domain.ExtractionError{Missing: "time attribute"}
	}
	posted, err := domain.Normalize(datetime)
	if err != nil {
		return domain.Record{}, err
	}

	rec := domain.Record{
		User:       author,
		Date:       domain.FormatDisplay(posted),
		PostText:   reconstructText(textRegion),
		QuotedText: quotedText(doc),
	}
	rec.ReplyCount, rec.RepostCount, rec.LikeCount, rec.ViewCount = counters(doc)
	return rec, nil
}

// postTextRegion finds the post's own text region, i.e. the first one that is
// not nested inside the quoted-post block.
func postTextRegion(doc *goquery.Document) *goquery.Selection {
	var region *goquery.Selection
	doc.Find(postTextSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Closest(quotedSelector).Length() == 0 {
			region = s
			return false
		}
		return true
	})
	return region
}

// reconstructText walks the text region's nodes in document order. Emoji
// images contribute their alt text, inline links their visible text plus a
// single separating space, everything else its text nodes verbatim. Posts
// interleave plain text, mentions, hashtags and emoji, so ordering must
// follow the document exactly.
func reconstructText(region *goquery.Selection) string {
	var b strings.Builder
	for _, n := range region.Nodes {
		walkText(&b, n)
	}
	return b.String()
}

func walkText(b *strings.Builder, n *html.Node) {
	switch {
	case n.Type == html.TextNode:
		b.WriteString(n.Data)
		return
	case n.Type == html.ElementNode && n.Data == "img":
		b.WriteString(nodeAttr(n, "alt"))
		return
	case n.Type == html.ElementNode && n.Data == "a" && nodeAttr(n, "dir") == "ltr":
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkText(b, c)
		}
		// Trailing space keeps link text from gluing onto the next word.
		b.WriteString(" ")
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(b, c)
	}
}

// quotedText concatenates the text spans of a nested quoted post. An absent
// quoted region is normal, not an error.
func quotedText(doc *goquery.Document) string {
	quoted := doc.Find(quotedSelector).First()
	if quoted.Length() == 0 {
		return ""
	}
	var b strings.Builder
	quoted.Find(postTextSelector + " span").Each(func(_ int, s *goquery.Selection) {
		b.WriteString(ownText(s))
	})
	return b.String()
}

// counters extracts the four engagement counts from the action group's
// accessible labels, in reply/repost/like/view order. Counters are
// best-effort: a missing or digitless label yields 0.
func counters(doc *goquery.Document) (reply, repost, like, view int) {
	var labels []string
	doc.Find(countersSelector).First().
		Find("button[aria-label], a[aria-label]").
		Each(func(_ int, s *goquery.Selection) {
			labels = append(labels, s.AttrOr("aria-label", ""))
		})

	at := func(i int) int {
		if i < len(labels) {
			return countFromLabel(labels[i])
		}
		return 0
	}
	return at(0), at(1), at(2), at(3)
}

// countFromLabel returns the first integer substring of an accessible label,
// 0 when no digits are present.
func countFromLabel(label string) int {
	m := digitsPattern.FindString(label)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// ownText returns the selection's direct text nodes, excluding descendants,
// so nested spans are not counted twice.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Nodes {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return b.String()
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
