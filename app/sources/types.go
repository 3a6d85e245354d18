package sources

import (
	"time"
)

// Release is a GitHub release reduced to the fields the release feed reads.
type Release struct {
	ID          int64
	TagName     string
	Name        string
	HTMLURL     string
	Prerelease  bool
	PublishedAt time.Time
}

// ModFiles is the raw Nexus Mods files.json payload. Files is nil when the
// property is missing from the response.
type ModFiles struct {
	Files *[]ModFile `json:"files"`
}

type ModFile struct {
	FileID            int64  `json:"file_id"`
	UID               int64  `json:"uid"`
	Name              string `json:"name"`
	Version           string `json:"version"`
	CategoryName      string `json:"category_name"`
	UploadedTime      string `json:"uploaded_time"`
	UploadedTimestamp int64  `json:"uploaded_timestamp"`
}

// UploadedAt parses the file's upload time, falling back to the unix timestamp.
func (f ModFile) UploadedAt() time.Time {
	if f.UploadedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.UploadedTime); err == nil {
			return t
		}
	}
	if f.UploadedTimestamp > 0 {
		return time.Unix(f.UploadedTimestamp, 0).UTC()
	}
	return time.Time{}
}

type TrackedMod struct {
	ModID      int    `json:"mod_id"`
	DomainName string `json:"domain_name"`
}

type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Stream is a live Twitch stream from the helix streams endpoint.
type Stream struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserLogin string    `json:"user_login"`
	UserName  string    `json:"user_name"`
	GameName  string    `json:"game_name"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	StartedAt time.Time `json:"started_at"`
}

func (s Stream) URL() string {
	return "https://www.twitch.tv/" + s.UserLogin
}

type Video struct {
	ID          string
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	PublishedAt time.Time
}

func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}
