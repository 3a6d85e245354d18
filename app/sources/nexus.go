package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultNexusBaseURL = "https://api.nexusmods.com/"

// Keeps a catalog pass under the hourly quota of a personal API key.
var nexusRateLimit = rate.Every(2 * time.Second)

type NexusClient struct {
	fetcher
	baseURL string
	apiKey  string
}

func NewNexusClient(httpClient *http.Client, baseURL, apiKey, userAgent string) *NexusClient {
	if baseURL == "" {
		baseURL = DefaultNexusBaseURL
	}
	return &NexusClient{
		fetcher: newFetcher(httpClient, userAgent, rate.NewLimiter(nexusRateLimit, 5)),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (c *NexusClient) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("apikey", c.apiKey)
	return h
}

// GetModFiles returns the raw files.json payload of a mod. The payload is
// not validated here.
func (c *NexusClient) GetModFiles(ctx context.Context, game string, modID int) (*ModFiles, error) {
	url := fmt.Sprintf("%s/v1/games/%s/mods/%d/files.json", c.baseURL, game, modID)

	var payload ModFiles
	if err := c.getJSON(ctx, url, c.header(), &payload); err != nil {
		return nil, fmt.Errorf("failed to get files of mod %d: %w", modID, err)
	}
	return &payload, nil
}

// ListTrackedMods returns the ids of mods tracked by the key's account that
// belong to game.
func (c *NexusClient) ListTrackedMods(ctx context.Context, game string) ([]int, error) {
	url := c.baseURL + "/v1/user/tracked_mods.json"

	var tracked []TrackedMod
	if err := c.getJSON(ctx, url, c.header(), &tracked); err != nil {
		return nil, fmt.Errorf("failed to get tracked mods: %w", err)
	}

	ids := make([]int, 0, len(tracked))
	for _, m := range tracked {
		if m.DomainName != game {
			continue
		}
		ids = append(ids, m.ModID)
	}
	return ids, nil
}
