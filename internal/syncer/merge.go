package syncer

import (
	"encoding/json"
	"sort"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

// MergePosts unions local and remote posts by id. When both sides carry an
// id, fields present on the local post overlay the remote one. The result is
// sorted newest first, ties broken by Order then id. unsynced holds the
// local posts the remote store has never seen.
func MergePosts(local, remote []model.CommunityPost) (merged, unsynced []model.CommunityPost) {
	byID := make(map[string]model.CommunityPost, len(local)+len(remote))
	var ids []string
	for _, p := range remote {
		if _, ok := byID[p.ID]; !ok {
			ids = append(ids, p.ID)
		}
		byID[p.ID] = p
	}

	seenRemote := make(map[string]bool, len(remote))
	for _, p := range remote {
		seenRemote[p.ID] = true
	}

	for _, p := range local {
		if r, ok := byID[p.ID]; ok {
			byID[p.ID] = overlay(r, p)
		} else {
			ids = append(ids, p.ID)
			byID[p.ID] = p
		}
		if !seenRemote[p.ID] && !containsPost(unsynced, p.ID) {
			unsynced = append(unsynced, p)
		}
	}

	merged = make([]model.CommunityPost, 0, len(ids))
	for _, id := range ids {
		merged = append(merged, byID[id])
	}
	SortPosts(merged)
	return merged, unsynced
}

// SortPosts orders posts newest first.
func SortPosts(posts []model.CommunityPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
}

// overlay copies every non-zero field of top onto base.
func overlay(base, top model.CommunityPost) model.CommunityPost {
	b, err := json.Marshal(base)
	if err != nil {
		return top
	}
	t, err := json.Marshal(top)
	if err != nil {
		return top
	}
	doc := map[string]any{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return top
	}
	over := map[string]any{}
	if err := json.Unmarshal(t, &over); err != nil {
		return top
	}
	for k, v := range over {
		doc[k] = v
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return top
	}
	var out model.CommunityPost
	if err := json.Unmarshal(raw, &out); err != nil {
		return top
	}
	return out
}

func containsPost(posts []model.CommunityPost, id string) bool {
	for _, p := range posts {
		if p.ID == id {
			return true
		}
	}
	return false
}
