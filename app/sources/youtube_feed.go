package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

const DefaultYouTubeFeedURL = "https://www.youtube.com/feeds/videos.xml"

// YouTubeFeedSearcher finds the newest upload through the public channel
// feed, which costs no API quota.
type YouTubeFeedSearcher struct {
	fetcher
	baseURL string
	parser  *gofeed.Parser
}

func NewYouTubeFeedSearcher(httpClient *http.Client, baseURL, userAgent string) *YouTubeFeedSearcher {
	if baseURL == "" {
		baseURL = DefaultYouTubeFeedURL
	}
	return &YouTubeFeedSearcher{
		fetcher: newFetcher(httpClient, userAgent, nil),
		baseURL: baseURL,
		parser:  gofeed.NewParser(),
	}
}

func (s *YouTubeFeedSearcher) SearchLatestVideo(ctx context.Context, channelID string) (string, error) {
	data, err := s.do(ctx, http.MethodGet, s.baseURL+"?channel_id="+url.QueryEscape(channelID), nil, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch channel feed %s: %w", channelID, err)
	}

	parsed, err := s.parser.ParseString(string(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse channel feed %s: %w", channelID, err)
	}

	var latest *gofeed.Item
	for _, item := range parsed.Items {
		if latest == nil || publishedAfter(item, latest) {
			latest = item
		}
	}
	if latest == nil {
		return "", nil
	}
	return videoIDOf(latest), nil
}

func publishedAfter(a, b *gofeed.Item) bool {
	if a.PublishedParsed == nil || b.PublishedParsed == nil {
		return false
	}
	return a.PublishedParsed.After(*b.PublishedParsed)
}

func videoIDOf(item *gofeed.Item) string {
	if yt, ok := item.Extensions["yt"]; ok {
		if ids := yt["videoId"]; len(ids) > 0 && ids[0].Value != "" {
			return ids[0].Value
		}
	}

	if u, err := url.Parse(item.Link); err == nil {
		if v := u.Query().Get("v"); v != "" {
			return v
		}
	}

	return strings.TrimPrefix(item.GUID, "yt:video:")
}
