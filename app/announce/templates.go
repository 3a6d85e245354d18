package announce

import (
	"fmt"
	"time"
)

const DefaultCreator = "Hawker"

// DiscordTimestamp renders t as a Discord timestamp tag. An empty style uses
// the client's default format; "R" renders relative time.
func DiscordTimestamp(t time.Time, style string) string {
	if style == "" {
		return fmt.Sprintf("<t:%d>", t.Unix())
	}
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

func RoleMention(roleID string) string {
	return "<@&" + roleID + ">"
}

func ChannelMention(channelID string) string {
	return "<#" + channelID + ">"
}

func creatorOr(name string) string {
	if name == "" {
		return DefaultCreator
	}
	return name
}
