package models

import (
	"strings"
	"time"
)

// CanonicalContestID builds a stable identifier for a contest.
// Format: home|away|time, with unknown-time when the start is not known.
func CanonicalContestID(home, away string, startTime time.Time) string {
	ts := "unknown-time"
	if !startTime.IsZero() {
		ts = startTime.UTC().Format(time.RFC3339)
	}
	return normalizeKeyPart(home) + "|" + normalizeKeyPart(away) + "|" + ts
}

// ID returns CanonicalContestID for the contest.
func (c Contest) ID() string {
	return CanonicalContestID(c.Home, c.Away, c.StartTime)
}

func normalizeKeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "/", " ")
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "|", " ")
	return strings.Join(strings.Fields(s), " ")
}
