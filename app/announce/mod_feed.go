package announce

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/iccc-team/hawker-notifier/app/sources"
)

const DefaultModGame = "stardewvalley"

type ModFilesGetter interface {
	GetModFiles(ctx context.Context, game string, modID int) (*sources.ModFiles, error)
}

type TrackedModsLister interface {
	ListTrackedMods(ctx context.Context, game string) ([]int, error)
}

type ModFeedConfig struct {
	Name   string
	Game   string
	ModID  int
	RoleID string
}

// ModFeed announces new MAIN file versions of one mod.
type ModFeed struct {
	cfg    ModFeedConfig
	client ModFilesGetter
}

var _ SingleFeed = (*ModFeed)(nil)

func NewModFeed(cfg ModFeedConfig, client ModFilesGetter) *ModFeed {
	if cfg.Game == "" {
		cfg.Game = DefaultModGame
	}
	return &ModFeed{cfg: cfg, client: client}
}

func (f *ModFeed) Name() string {
	return f.cfg.Name
}

func (f *ModFeed) Candidate(ctx context.Context) (Candidate, error) {
	item, err := latestModFile(ctx, f.client, f.cfg.Game, f.cfg.ModID)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Item: item, RoleID: f.cfg.RoleID}, nil
}

func (f *ModFeed) Compose(c Candidate, channel Channel) Announcement {
	text := fmt.Sprintf("%s\nA version build of **%s (v%s)** has been released at %s!\n%s",
		RoleMention(c.RoleID),
		c.Item.Name,
		c.Item.Version,
		DiscordTimestamp(c.Item.PublishedAt, ""),
		c.Item.URL)
	return Announcement{Channel: channel, Text: text}
}

type ModCatalogFeedConfig struct {
	Name    string
	Game    string
	Creator string
	Exclude []int // mods announced by a dedicated feed
}

// ModCatalogFeed announces mods newly added to the tracked list of the
// creator's account.
type ModCatalogFeed struct {
	cfg     ModCatalogFeedConfig
	tracked TrackedModsLister
	files   ModFilesGetter
}

var _ CatalogFeed = (*ModCatalogFeed)(nil)

func NewModCatalogFeed(cfg ModCatalogFeedConfig, tracked TrackedModsLister, files ModFilesGetter) *ModCatalogFeed {
	if cfg.Game == "" {
		cfg.Game = DefaultModGame
	}
	return &ModCatalogFeed{cfg: cfg, tracked: tracked, files: files}
}

func (f *ModCatalogFeed) Name() string {
	return f.cfg.Name
}

func (f *ModCatalogFeed) Entities(ctx context.Context) ([]string, error) {
	ids, err := f.tracked.ListTrackedMods(ctx, f.cfg.Game)
	if err != nil {
		return nil, Abort(StageFetching, ErrTransientFetch, err, "failed to list tracked mods")
	}
	if len(ids) == 0 {
		return nil, Abort(StageFetching, ErrEmptyResult, nil, "no tracked %s mods", f.cfg.Game)
	}

	entities := make([]string, 0, len(ids))
	for _, id := range ids {
		if slices.Contains(f.cfg.Exclude, id) {
			continue
		}
		entities = append(entities, strconv.Itoa(id))
	}

	if len(entities) == 0 {
		return nil, Abort(StageFetching, ErrEmptyResult, nil, "all tracked mods are excluded")
	}
	return entities, nil
}

func (f *ModCatalogFeed) Candidate(ctx context.Context, entity string) (Candidate, error) {
	modID, err := strconv.Atoi(entity)
	if err != nil {
		return Candidate{}, Abort(StageValidating, ErrValidation, err, "invalid mod id %q", entity)
	}

	item, err := latestModFile(ctx, f.files, f.cfg.Game, modID)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Item: item, Sub: entity}, nil
}

func (f *ModCatalogFeed) Compose(c Candidate, channel Channel) Announcement {
	text := fmt.Sprintf("@here\nA Stardew mod has released on %s's page!\n Title: **%s**\nRelease Date: %s!\n%s",
		creatorOr(f.cfg.Creator),
		c.Item.Name,
		DiscordTimestamp(c.Item.PublishedAt, ""),
		c.Item.URL)
	return Announcement{Channel: channel, Text: text}
}

func latestModFile(ctx context.Context, client ModFilesGetter, game string, modID int) (RemoteItem, error) {
	payload, err := client.GetModFiles(ctx, game, modID)
	if err != nil {
		return RemoteItem{}, Abort(StageFetching, ErrTransientFetch, err, "failed to get files of mod %d", modID)
	}

	main, err := ValidateModFiles(modID, payload)
	if err != nil {
		return RemoteItem{}, Abort(StageValidating, ErrValidation, nil, "%s", err.Error())
	}

	return RemoteItem{
		ID:          Identity(strconv.FormatInt(main.UID, 10)),
		Title:       main.Name,
		Name:        main.Name,
		Version:     main.Version,
		PublishedAt: main.UploadedAt(),
		URL:         fmt.Sprintf("https://www.nexusmods.com/%s/mods/%d", game, modID),
		Category:    main.CategoryName,
	}, nil
}
