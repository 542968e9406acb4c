package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreybb/quire/models"
)

func strPtr(s string) *string { return &s }

func TestNextOrder(t *testing.T) {
	tests := []struct {
		name     string
		existing []int
		want     int
	}{
		{name: "empty bucket starts at one", existing: nil, want: 1},
		{name: "single item", existing: []int{1}, want: 2},
		{name: "gaps are not compacted", existing: []int{1, 7, 3}, want: 8},
		{name: "duplicates tolerated", existing: []int{4, 4}, want: 5},
		{name: "zero orders", existing: []int{0}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextOrder(tt.existing))
		})
	}
}

func TestValidateReorder(t *testing.T) {
	tests := []struct {
		name    string
		moves   []models.OrderMove
		wantErr bool
	}{
		{name: "valid batch", moves: []models.OrderMove{{ID: "p1", Order: 5}, {ID: "p2", Order: 1}}},
		{name: "duplicate orders allowed", moves: []models.OrderMove{{ID: "p1", Order: 1}, {ID: "p2", Order: 1}}},
		{name: "empty batch", moves: nil, wantErr: true},
		{name: "blank id", moves: []models.OrderMove{{ID: " ", Order: 1}}, wantErr: true},
		{name: "repeated id", moves: []models.OrderMove{{ID: "p1", Order: 1}, {ID: "p1", Order: 2}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReorder(tt.moves)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidReorder)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckSingleBucket(t *testing.T) {
	assert.NoError(t, CheckSingleBucket(nil))
	assert.NoError(t, CheckSingleBucket([]*string{nil, nil}))
	assert.NoError(t, CheckSingleBucket([]*string{strPtr("c1"), strPtr("c1")}))
	assert.ErrorIs(t, CheckSingleBucket([]*string{strPtr("c1"), nil}), ErrMixedBuckets)
	assert.ErrorIs(t, CheckSingleBucket([]*string{strPtr("c1"), strPtr("c2")}), ErrMixedBuckets)
}

func TestSortPostsIsStableOnTies(t *testing.T) {
	posts := []models.ProjectPostContent{
		{ProjectPost: models.ProjectPost{ID: "a", Order: 2}},
		{ProjectPost: models.ProjectPost{ID: "b", Order: 1}},
		{ProjectPost: models.ProjectPost{ID: "c", Order: 2}},
		{ProjectPost: models.ProjectPost{ID: "d", Order: 1}},
	}
	SortPosts(posts)

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

func TestSortChapters(t *testing.T) {
	chapters := []models.Chapter{{ID: "x", Order: 3}, {ID: "y", Order: 1}, {ID: "z", Order: 2}}
	SortChapters(chapters)
	assert.Equal(t, "y", chapters[0].ID)
	assert.Equal(t, "z", chapters[1].ID)
	assert.Equal(t, "x", chapters[2].ID)
}

func TestPartitionByBucket(t *testing.T) {
	posts := []models.ProjectPostContent{
		{ProjectPost: models.ProjectPost{ID: "a", ChapterID: strPtr("c1")}},
		{ProjectPost: models.ProjectPost{ID: "b"}},
		{ProjectPost: models.ProjectPost{ID: "c", ChapterID: strPtr("c1")}},
	}
	buckets := PartitionByBucket(posts)

	require.Len(t, buckets, 2)
	require.Len(t, buckets["c1"], 2)
	assert.Equal(t, "a", buckets["c1"][0].ID)
	assert.Equal(t, "c", buckets["c1"][1].ID)
	require.Len(t, buckets[UnassignedBucket], 1)
	assert.Equal(t, "b", buckets[UnassignedBucket][0].ID)
}
