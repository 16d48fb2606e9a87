package feed

import (
	"fmt"
	"math"
	"sort"
	"time"

	"kbhub/internal/client/api"
)

const dateKeyFormat = "2006-01-02"

// Item is one display-ready feed entry. HasBox marks whether the entry
// carries a content box; unknown actions fall back to the raw
// action_label with no box.
type Item struct {
	Activity     api.Activity
	RelativeTime string
	ActionText   string
	BoxPrimary   string
	BoxSecondary string
	HasBox       bool
}

// Group holds the entries of one calendar date in the viewer's local
// time zone.
type Group struct {
	Date  string
	Items []Item
}

// Aggregate partitions activities into date groups ordered most recent
// first. Within a group the input order is preserved; callers supply
// events pre-sorted descending by created_at and the aggregator does
// not re-sort them.
func Aggregate(activities []api.Activity, now time.Time) []Group {
	byDate := make(map[string][]Item)
	keys := make([]string, 0)

	for _, activity := range activities {
		key := activity.CreatedAt.Local().Format(dateKeyFormat)
		if _, seen := byDate[key]; !seen {
			keys = append(keys, key)
		}
		byDate[key] = append(byDate[key], buildItem(activity, now))
	}

	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	groups := make([]Group, 0, len(keys))
	for _, key := range keys {
		groups = append(groups, Group{Date: key, Items: byDate[key]})
	}
	return groups
}

func buildItem(activity api.Activity, now time.Time) Item {
	item := Item{
		Activity:     activity,
		RelativeTime: relativeLabel(activity.CreatedAt, now),
	}

	switch activity.Action {
	case "create_kb":
		item.ActionText = "created knowledge base"
		item.BoxPrimary = createKBLabel(activity)
		item.HasBox = true
	case "upload_doc":
		item.ActionText = "uploaded a document"
		item.BoxPrimary = kbLabel(activity)
		item.BoxSecondary = extraString(activity.Extra, "filename")
		item.HasBox = true
	case "add_member":
		item.ActionText = "added a member"
		item.BoxPrimary = kbLabel(activity)
		item.BoxSecondary = memberDetail(activity.Extra)
		item.HasBox = true
	case "create_note":
		item.ActionText = "created a note"
		item.BoxPrimary = kbLabel(activity)
		item.BoxSecondary = extraString(activity.Extra, "filename")
		item.HasBox = true
	default:
		item.ActionText = activity.ActionLabel
	}
	return item
}

// relativeLabel buckets by calendar-day distance with floor division.
// Near month and year boundaries the label is approximate on purpose.
func relativeLabel(t, now time.Time) string {
	days := calendarDaysBetween(t, now)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "1 day ago"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return plural(days/7, "week")
	case days < 365:
		return plural(days/30, "month")
	default:
		return plural(days/365, "year")
	}
}

// calendarDaysBetween rounds the midnight-to-midnight distance so DST
// transitions do not shift the bucket by one.
func calendarDaysBetween(t, now time.Time) int {
	t = t.Local()
	now = now.Local()
	tDay := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int(math.Round(nowDay.Sub(tDay).Hours() / 24))
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// createKBLabel keeps the box meaningful after the knowledge base is
// deleted: the name falls back to the recorded extra and the owner to
// the acting user.
func createKBLabel(activity api.Activity) string {
	name := extraString(activity.Extra, "name")
	if name == "" {
		name = activity.KnowledgeBaseName
	}
	owner := activity.KnowledgeBaseOwner
	if owner == "" {
		owner = activity.Username
	}
	if owner != "" && name != "" {
		return owner + "/" + name
	}
	return name
}

func kbLabel(activity api.Activity) string {
	if activity.KnowledgeBaseName == "" {
		return ""
	}
	if activity.KnowledgeBaseOwner != "" {
		return activity.KnowledgeBaseOwner + "/" + activity.KnowledgeBaseName
	}
	return activity.KnowledgeBaseName
}

func memberDetail(extra map[string]interface{}) string {
	member := extraString(extra, "member_username")
	role := extraString(extra, "role")
	switch {
	case member != "" && role != "":
		return member + " as " + role
	case member != "":
		return member
	default:
		return ""
	}
}

// extraString tolerates missing keys and non-string values: malformed
// extra degrades to empty detail text, never to an error.
func extraString(extra map[string]interface{}, key string) string {
	if extra == nil {
		return ""
	}
	value, ok := extra[key]
	if !ok {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
