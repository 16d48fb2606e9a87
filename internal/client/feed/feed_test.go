package feed

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbhub/internal/client/api"
)

func activityAt(id uint, action string, createdAt time.Time) api.Activity {
	return api.Activity{
		ID:          id,
		Username:    "alice",
		Action:      action,
		ActionLabel: "did something",
		CreatedAt:   createdAt,
	}
}

func TestAggregateGroupsByLocalDateDescending(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	activities := []api.Activity{
		activityAt(4, "create_kb", time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)),
		activityAt(3, "create_kb", time.Date(2024, 3, 10, 8, 0, 0, 0, time.Local)),
		activityAt(2, "create_kb", time.Date(2024, 3, 9, 23, 0, 0, 0, time.Local)),
		activityAt(1, "create_kb", time.Date(2024, 3, 7, 1, 0, 0, 0, time.Local)),
	}

	groups := Aggregate(activities, now)
	require.Len(t, groups, 3)
	assert.Equal(t, "2024-03-10", groups[0].Date)
	assert.Equal(t, "2024-03-09", groups[1].Date)
	assert.Equal(t, "2024-03-07", groups[2].Date)

	// Input order inside a group is preserved, not re-sorted.
	require.Len(t, groups[0].Items, 2)
	assert.Equal(t, uint(4), groups[0].Items[0].Activity.ID)
	assert.Equal(t, uint(3), groups[0].Items[1].Activity.ID)
}

func TestAggregatePartitionsWithoutReordering(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)
	activities := make([]api.Activity, 0, 12)
	ts := now
	for i := 12; i > 0; i-- {
		activities = append(activities, activityAt(uint(i), "create_kb", ts))
		ts = ts.Add(-7 * time.Hour)
	}

	groups := Aggregate(activities, now)

	keys := make([]string, 0, len(groups))
	flattened := make([]uint, 0, len(activities))
	for _, g := range groups {
		keys = append(keys, g.Date)
		for _, item := range g.Items {
			flattened = append(flattened, item.Activity.ID)
		}
	}

	assert.True(t, sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i] > keys[j] }))

	expected := make([]uint, 0, len(activities))
	for _, a := range activities {
		expected = append(expected, a.ID)
	}
	assert.Equal(t, expected, flattened, "concatenated groups must reproduce the input order")
}

func TestRelativeLabels(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)

	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"same day", time.Date(2024, 3, 10, 1, 0, 0, 0, time.Local), "today"},
		{"one day", time.Date(2024, 3, 9, 8, 0, 0, 0, time.Local), "1 day ago"},
		{"few days", time.Date(2024, 3, 5, 8, 0, 0, 0, time.Local), "5 days ago"},
		{"weeks", time.Date(2024, 2, 24, 8, 0, 0, 0, time.Local), "2 weeks ago"},
		{"one week", time.Date(2024, 3, 2, 8, 0, 0, 0, time.Local), "1 week ago"},
		{"months", time.Date(2024, 1, 5, 8, 0, 0, 0, time.Local), "2 months ago"},
		{"one year", time.Date(2023, 1, 1, 0, 0, 0, 0, time.Local), "1 year ago"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, relativeLabel(tc.at, now))
		})
	}
}

func TestKnownActionsProduceContentBox(t *testing.T) {
	now := time.Now()
	upload := api.Activity{
		Action:             "upload_doc",
		KnowledgeBaseName:  "research",
		KnowledgeBaseOwner: "alice",
		Extra:              map[string]interface{}{"filename": "paper.pdf"},
		CreatedAt:          now,
	}

	item := buildItem(upload, now)
	assert.Equal(t, "uploaded a document", item.ActionText)
	assert.True(t, item.HasBox)
	assert.Equal(t, "alice/research", item.BoxPrimary)
	assert.Equal(t, "paper.pdf", item.BoxSecondary)
}

func TestAddMemberDetailCombinesNameAndRole(t *testing.T) {
	now := time.Now()
	added := api.Activity{
		Action:            "add_member",
		KnowledgeBaseName: "research",
		Extra:             map[string]interface{}{"member_username": "bob", "role": "write"},
		CreatedAt:         now,
	}

	item := buildItem(added, now)
	assert.Equal(t, "added a member", item.ActionText)
	assert.Equal(t, "bob as write", item.BoxSecondary)
}

func TestCreateNoteDetailUsesFilename(t *testing.T) {
	now := time.Now()
	note := api.Activity{
		Action:            "create_note",
		KnowledgeBaseName: "research",
		Extra:             map[string]interface{}{"filename": "ideas.md", "title": "Ideas"},
		CreatedAt:         now,
	}

	item := buildItem(note, now)
	assert.Equal(t, "created a note", item.ActionText)
	assert.Equal(t, "ideas.md", item.BoxSecondary)
}

func TestCreateKBLabelFallsBackAfterDeletion(t *testing.T) {
	now := time.Now()
	created := api.Activity{
		Action:    "create_kb",
		Username:  "alice",
		Extra:     map[string]interface{}{"name": "research"},
		CreatedAt: now,
	}

	item := buildItem(created, now)
	require.True(t, item.HasBox)
	assert.Equal(t, "alice/research", item.BoxPrimary)
}

func TestCreateKBLabelPrefersRecordedName(t *testing.T) {
	now := time.Now()
	created := api.Activity{
		Action:             "create_kb",
		Username:           "alice",
		KnowledgeBaseName:  "renamed",
		KnowledgeBaseOwner: "alice",
		Extra:              map[string]interface{}{"name": "research"},
		CreatedAt:          now,
	}

	item := buildItem(created, now)
	assert.Equal(t, "alice/research", item.BoxPrimary)
}

func TestUnknownActionFallsBackToActionLabel(t *testing.T) {
	now := time.Now()
	renamed := api.Activity{
		Action:      "rename_kb",
		ActionLabel: "renamed knowledge base",
		CreatedAt:   now,
	}

	item := buildItem(renamed, now)
	assert.Equal(t, "renamed knowledge base", item.ActionText)
	assert.False(t, item.HasBox)
	assert.Empty(t, item.BoxPrimary)
	assert.Empty(t, item.BoxSecondary)
}

func TestMalformedExtraDegradesToEmptyDetail(t *testing.T) {
	now := time.Now()
	cases := []map[string]interface{}{
		nil,
		{},
		{"filename": 42.0},
		{"filename": []interface{}{"a", "b"}},
	}
	for _, extra := range cases {
		item := buildItem(api.Activity{Action: "upload_doc", Extra: extra, CreatedAt: now}, now)
		assert.True(t, item.HasBox)
		assert.NotPanics(t, func() { _ = item.BoxSecondary })
	}

	numeric := buildItem(api.Activity{
		Action:    "upload_doc",
		Extra:     map[string]interface{}{"filename": 42.0},
		CreatedAt: now,
	}, now)
	assert.Equal(t, "42", numeric.BoxSecondary)

	malformed := buildItem(api.Activity{
		Action:    "upload_doc",
		Extra:     map[string]interface{}{"filename": []interface{}{"a"}},
		CreatedAt: now,
	}, now)
	assert.Empty(t, malformed.BoxSecondary)
}
