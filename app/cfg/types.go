package cfg

type Cfg struct {
	// Discord configuration
	DiscordToken    string
	DiscordClientID string

	// Platform credentials
	GitHubToken        string
	NexusAPIKey        string
	TwitchClientID     string
	TwitchClientSecret string
	YouTubeAPIKey      string

	// Application configuration
	FeedsDir          string
	DBPath            string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) HasTwitch() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}
