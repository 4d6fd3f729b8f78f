package transform

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/providers/slack"
)

const (
	messageBase = 0.2
	threadBase  = 0.3

	// perReplyWeight accrues per thread reply, capped at maxReplyBonus.
	perReplyWeight = 0.03
	maxReplyBonus  = 0.3

	// titleMaxLen bounds the generated title taken from the first line.
	titleMaxLen = 80
)

// MessageToDraft maps a standalone chat message. The external id is the
// channel plus the message's immutable ts.
func MessageToDraft(channelID, channelName string, msg slack.Message) domain.ItemDraft {
	score := messageBase + lengthBonus(msg.Text)

	return domain.ItemDraft{
		SourceType: domain.SourceSlackMessage,
		ExternalID: fmt.Sprintf("slack:%s:%s", channelID, msg.TS),
		Title:      messageTitle(channelName, msg.Text),
		Content:    msg.Text,
		Metadata: map[string]any{
			"channel_id":   channelID,
			"channel_name": channelName,
			"user":         msg.User,
			"ts":           msg.TS,
		},
		Importance: domain.ClampScore(score),
	}
}

// ThreadToDraft maps a whole thread into one aggregated item: the
// parent text followed by every reply, each marked by its role. The
// external id reuses the parent's ts, so a thread that gains replies
// updates in place instead of duplicating.
func ThreadToDraft(channelID, channelName string, parent slack.Message, replies []slack.Message) domain.ItemDraft {
	var sb strings.Builder
	sb.WriteString("[thread start] ")
	sb.WriteString(parent.Text)
	for _, reply := range replies {
		if reply.TS == parent.TS {
			continue
		}
		sb.WriteString("\n[reply] ")
		sb.WriteString(reply.Text)
	}

	replyCount := parent.ReplyCount
	if n := len(replies); n > replyCount {
		replyCount = n
	}
	score := threadBase + replyBonus(replyCount) + lengthBonus(sb.String())

	return domain.ItemDraft{
		SourceType: domain.SourceSlackThread,
		ExternalID: fmt.Sprintf("slack:%s:%s", channelID, parent.TS),
		Title:      messageTitle(channelName, parent.Text),
		Content:    sb.String(),
		Metadata: map[string]any{
			"channel_id":   channelID,
			"channel_name": channelName,
			"user":         parent.User,
			"ts":           parent.TS,
			"reply_count":  replyCount,
		},
		Importance: domain.ClampScore(score),
	}
}

func replyBonus(replies int) float64 {
	bonus := float64(replies) * perReplyWeight
	if bonus > maxReplyBonus {
		return maxReplyBonus
	}
	return bonus
}

// messageTitle builds "#channel: first line…" with a bounded length.
func messageTitle(channelName, text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	if runes := []rune(line); len(runes) > titleMaxLen {
		line = string(runes[:titleMaxLen]) + "…"
	}
	if line == "" {
		line = "(no text)"
	}
	return fmt.Sprintf("#%s: %s", channelName, line)
}
