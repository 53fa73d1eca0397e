package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"postharvest/internal/domain"
)

const sampleContainer = `
<div data-testid="cellInnerDiv">
  <a href="/alice"><div><span>Alice</span></div></a>
  <time datetime="2024-03-01T10:00:00.000Z"></time>
  <div><div data-testid="tweetText"><span>Check this </span><img alt="😀"/><a dir="ltr" href="https://example.com"><span>example.com</span></a><span>now</span></div></div>
  <div role="link"><div data-testid="tweetText"><span>quoted text</span></div></div>
  <div role="group">
    <button aria-label="5 replies"></button>
    <button aria-label="2 reposts"></button>
    <button aria-label="10 likes"></button>
    <a aria-label="1200 views"></a>
  </div>
</div>`

func TestExtractFullContainer(t *testing.T) {
	rec, err := New().Extract(domain.Container{HTML: sampleContainer})
	require.NoError(t, err)

	require.Equal(t, "Alice", rec.User)
	require.Equal(t, "Check this 😀example.com now", rec.PostText)
	require.Equal(t, "quoted text", rec.QuotedText)

	posted, nerr := domain.Normalize("2024-03-01T10:00:00.000Z")
	require.NoError(t, nerr)
	require.Equal(t, domain.FormatDisplay(posted), rec.Date)

	require.Equal(t, 5, rec.ReplyCount)
	require.Equal(t, 2, rec.RepostCount)
	require.Equal(t, 10, rec.LikeCount)
	require.Equal(t, 1200, rec.ViewCount)
}

func TestTextReconstructionOrder(t *testing.T) {
	// Document order must be preserved; only the link segment gets a
	// trailing space.
	container := `
<div data-testid="cellInnerDiv">
  <a href="/bob"><div><span>Bob</span></div></a>
  <time datetime="2024-03-01T10:00:00.000Z"></time>
  <div data-testid="tweetText">leading <img alt="😀"/><a dir="ltr" href="#">example.com</a>trailing</div>
</div>`

	rec, err := New().Extract(domain.Container{HTML: container})
	require.NoError(t, err)
	require.Equal(t, "leading 😀example.com trailing", rec.PostText)
}

func TestQuotedTextAbsentIsEmpty(t *testing.T) {
	container := `
<div data-testid="cellInnerDiv">
  <a href="/bob"><div><span>Bob</span></div></a>
  <time datetime="2024-03-01T10:00:00.000Z"></time>
  <div data-testid="tweetText"><span>no quote here</span></div>
</div>`

	rec, err := New().Extract(domain.Container{HTML: container})
	require.NoError(t, err)
	require.Equal(t, "", rec.QuotedText)
}

func TestCountersAreBestEffort(t *testing.T) {
	container := `
<div data-testid="cellInnerDiv">
  <a href="/bob"><div><span>Bob</span></div></a>
  <time datetime="2024-03-01T10:00:00.000Z"></time>
  <div data-testid="tweetText"><span>counters</span></div>
  <div role="group">
    <button aria-label="no replies yet"></button>
    <button aria-label="7 reposts"></button>
  </div>
</div>`

	rec, err := New().Extract(domain.Container{HTML: container})
	require.NoError(t, err)
	require.Equal(t, 0, rec.ReplyCount)
	require.Equal(t, 7, rec.RepostCount)
	require.Equal(t, 0, rec.LikeCount)
	require.Equal(t, 0, rec.ViewCount)
}

func TestCountFromLabel(t *testing.T) {
	require.Equal(t, 5, countFromLabel("5 replies"))
	require.Equal(t, 0, countFromLabel("no digits here"))
	require.Equal(t, 0, countFromLabel(""))
	require.Equal(t, 1200, countFromLabel("1200 views. View post analytics"))
}

func TestMissingRequiredElements(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{
			name: "no text region",
			html: `<div><a href="/x"><div><span>X</span></div></a><time datetime="2024-03-01T10:00:00.000Z"></time></div>`,
		},
		{
			name: "no author",
			html: `<div><time datetime="2024-03-01T10:00:00.000Z"></time><div data-testid="tweetText"><span>hi</span></div></div>`,
		},
		{
			name: "no timestamp",
			html: `<div><a href="/x"><div><span>X</span></div></a><div data-testid="tweetText"><span>hi</span></div></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Extract(domain.Container{HTML: tt.html})
			var xerr *domain.ExtractionError
			require.ErrorAs(t, err, &xerr)
		})
	}
}

func TestQuotedOnlyTextRegionIsNotThePost(t *testing.T) {
	// A container whose only text region sits inside the quoted block has no
	// post text of its own.
	container := `
<div data-testid="cellInnerDiv">
  <a href="/bob"><div><span>Bob</span></div></a>
  <time datetime="2024-03-01T10:00:00.000Z"></time>
  <div role="link"><div data-testid="tweetText"><span>only quoted</span></div></div>
</div>`

	_, err := New().Extract(domain.Container{HTML: container})
	var xerr *domain.ExtractionError
	require.ErrorAs(t, err, &xerr)
}

func TestStaleContainerPassesThrough(t *testing.T) {
	_, err := New().Extract(domain.Container{Err: domain.ErrStaleContainer})
	require.ErrorIs(t, err, domain.ErrStaleContainer)
}

func TestMalformedTimestampPropagates(t *testing.T) {
	container := `
<div data-testid="cellInnerDiv">
  <a href="/bob"><div><span>Bob</span></div></a>
  <time datetime="yesterday"></time>
  <div data-testid="tweetText"><span>hi</span></div>
</div>`

	_, err := New().Extract(domain.Container{HTML: container})
	var perr *domain.ParseError
	require.ErrorAs(t, err, &perr)
}
