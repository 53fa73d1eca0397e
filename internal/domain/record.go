package domain

// Record is one harvested post.
type Record struct {
	// User is the author's display handle as rendered in the feed.
	User string

	// Date is the post timestamp in the fixed YYYY-MM-DD-HH:MM:SS display
	// format, shifted to the host's UTC offset.
	Date string

	// PostText is the full reconstructed body: text, inline link text and
	// emoji alt text concatenated in document order.
	PostText string

	// QuotedText is the text of an embedded quoted post, empty if none.
	QuotedText string

	// Engagement counters, best-effort; 0 when the label had no digits.
	ReplyCount  int
	RepostCount int
	LikeCount   int
	ViewCount   int
}

// Key is the identity tuple of a Record. Engagement counters are deliberately
// excluded: a re-scraped post with updated counters is still the same post.
type Key struct {
	Text string
	Date string
	User string
}

// Key returns the identity tuple used for deduplication.
func (r Record) Key() Key {
	return Key{Text: r.PostText, Date: r.Date, User: r.User}
}

// Collection is the ordered, append-only sequence of harvested records. It is
// mutated only by the crawl driver appending one record at a time and is never
// reordered, so insertion order stays newest-first as the crawl walks backward
// in time (restored checkpoint history stitches in first).
type Collection struct {
	records []Record
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Append adds one record to the end of the collection.
func (c *Collection) Append(r Record) {
	c.records = append(c.records, r)
}

// Len returns the number of records collected so far.
func (c *Collection) Len() int {
	return len(c.records)
}

// Records returns the records in insertion order. The returned slice is the
// collection's backing storage and must not be mutated.
func (c *Collection) Records() []Record {
	return c.records
}

// Last returns the most recently appended record, false when empty.
func (c *Collection) Last() (Record, bool) {
	if len(c.records) == 0 {
		return Record{}, false
	}
	return c.records[len(c.records)-1], true
}
