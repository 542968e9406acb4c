// Package ordering holds the two-level ordering rules for book projects:
// chapter order within a project and post order within a bucket (a chapter
// or the unassigned bucket). It performs no I/O.
package ordering

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/coreybb/quire/models"
)

var (
	ErrInvalidReorder = errors.New("invalid reorder batch")
	ErrMixedBuckets   = errors.New("reorder batch spans more than one bucket")
)

// UnassignedBucket is the bucket key for posts without a chapter.
const UnassignedBucket = ""

// NextOrder returns the order value for an item appended to a bucket:
// max(existing)+1, or 1 for an empty bucket. Gaps and duplicates are left as-is.
func NextOrder(existing []int) int {
	if len(existing) == 0 {
		return 1
	}
	highest := existing[0]
	for _, o := range existing[1:] {
		if o > highest {
			highest = o
		}
	}
	return highest + 1
}

// ValidateReorder checks that a reorder batch is non-empty, names every item
// once, and carries no blank ids.
func ValidateReorder(moves []models.OrderMove) error {
	if len(moves) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidReorder)
	}
	seen := make(map[string]struct{}, len(moves))
	for _, m := range moves {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return fmt.Errorf("%w: item id is required", ErrInvalidReorder)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: item %s listed more than once", ErrInvalidReorder, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// BucketKey maps a chapter reference to its bucket key.
func BucketKey(chapterID *string) string {
	if chapterID == nil {
		return UnassignedBucket
	}
	return *chapterID
}

// CheckSingleBucket verifies that all items of a post reorder batch currently
// live in the same bucket.
func CheckSingleBucket(chapterIDs []*string) error {
	if len(chapterIDs) == 0 {
		return nil
	}
	first := BucketKey(chapterIDs[0])
	for _, c := range chapterIDs[1:] {
		if BucketKey(c) != first {
			return ErrMixedBuckets
		}
	}
	return nil
}

// SortPosts sorts posts ascending by order. Ties keep their incoming
// (insertion) order.
func SortPosts(posts []models.ProjectPostContent) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Order < posts[j].Order
	})
}

// SortChapters sorts chapters ascending by order, stable on ties.
func SortChapters(chapters []models.Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Order < chapters[j].Order
	})
}

// PartitionByBucket groups posts by bucket key, preserving the relative order
// of the input within each bucket.
func PartitionByBucket(posts []models.ProjectPostContent) map[string][]models.ProjectPostContent {
	buckets := make(map[string][]models.ProjectPostContent)
	for _, p := range posts {
		key := BucketKey(p.ChapterID)
		buckets[key] = append(buckets[key], p)
	}
	return buckets
}
