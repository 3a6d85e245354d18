package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultYouTubeAPIURL = "https://www.googleapis.com/youtube/v3"

// YouTubeClient uses the Data API for search and video metadata.
type YouTubeClient struct {
	fetcher
	baseURL string
	apiKey  string
}

func NewYouTubeClient(httpClient *http.Client, baseURL, apiKey, userAgent string) *YouTubeClient {
	if baseURL == "" {
		baseURL = DefaultYouTubeAPIURL
	}
	return &YouTubeClient{
		fetcher: newFetcher(httpClient, userAgent, nil),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			Description string    `json:"description"`
			Tags        []string  `json:"tags"`
			CategoryID  string    `json:"categoryId"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

// SearchLatestVideo returns the id of the channel's newest video, or "" if
// it has none.
func (c *YouTubeClient) SearchLatestVideo(ctx context.Context, channelID string) (string, error) {
	query := url.Values{
		"key":        {c.apiKey},
		"channelId":  {channelID},
		"part":       {"snippet"},
		"order":      {"date"},
		"maxResults": {"1"},
		"type":       {"video"},
	}

	var resp searchResponse
	if err := c.getJSON(ctx, c.baseURL+"/search?"+query.Encode(), nil, &resp); err != nil {
		return "", fmt.Errorf("failed to search videos of channel %s: %w", channelID, err)
	}

	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].ID.VideoID, nil
}

// GetVideoMetadata returns the snippet of a video, or nil when the video is
// missing, private or restricted.
func (c *YouTubeClient) GetVideoMetadata(ctx context.Context, videoID string) (*Video, error) {
	query := url.Values{
		"key":  {c.apiKey},
		"id":   {videoID},
		"part": {"snippet"},
	}

	var resp videosResponse
	if err := c.getJSON(ctx, c.baseURL+"/videos?"+query.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get metadata of video %s: %w", videoID, err)
	}

	if len(resp.Items) == 0 {
		return nil, nil
	}

	item := resp.Items[0]
	return &Video{
		ID:          videoID,
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		Tags:        item.Snippet.Tags,
		CategoryID:  item.Snippet.CategoryID,
		PublishedAt: item.Snippet.PublishedAt,
	}, nil
}
