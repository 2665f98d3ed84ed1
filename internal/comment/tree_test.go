package comment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hitoshi/comment-sidecar/internal/model"
)

func ptr(id int64) *int64 { return &id }

func flatComment(id int64, replyTo *int64) model.Comment {
	return model.Comment{
		ID:        id,
		Author:    "author",
		Content:   "content",
		ReplyTo:   replyTo,
		CreatedAt: time.Unix(1700000000+id, 0),
	}
}

func countNodes(nodes []model.CommentNode) int {
	n := 0
	for _, node := range nodes {
		n += 1 + countNodes(node.Replies)
	}
	return n
}

func TestBuildForest_Empty(t *testing.T) {
	forest := BuildForest(nil)
	if forest == nil {
		t.Fatal("forest should be an empty slice, not nil")
	}
	if len(forest) != 0 {
		t.Errorf("len = %d, want 0", len(forest))
	}

	b, err := json.Marshal(forest)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "[]" {
		t.Errorf("json = %s, want []", b)
	}
}

func TestBuildForest_NestsRepliesAndKeepsOrder(t *testing.T) {
	// 新しい順に並んだ入力
	flat := []model.Comment{
		flatComment(5, ptr(2)),
		flatComment(4, ptr(1)),
		flatComment(3, ptr(1)),
		flatComment(2, nil),
		flatComment(1, nil),
	}

	forest := BuildForest(flat)

	if len(forest) != 2 {
		t.Fatalf("roots = %d, want 2", len(forest))
	}
	if forest[0].ID != 2 || forest[1].ID != 1 {
		t.Errorf("root order = [%d %d], want [2 1]", forest[0].ID, forest[1].ID)
	}
	if len(forest[0].Replies) != 1 || forest[0].Replies[0].ID != 5 {
		t.Errorf("replies of 2 = %+v", forest[0].Replies)
	}
	replies := forest[1].Replies
	if len(replies) != 2 || replies[0].ID != 4 || replies[1].ID != 3 {
		t.Errorf("replies of 1 = %+v, want [4 3]", replies)
	}
	if countNodes(forest) != len(flat) {
		t.Errorf("node count = %d, want %d", countNodes(forest), len(flat))
	}
}

func TestBuildForest_LeafHasEmptyRepliesArray(t *testing.T) {
	forest := BuildForest([]model.Comment{flatComment(1, nil)})

	b, err := json.Marshal(forest)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"id":1,"author":"author","content":"content","creationTimestamp":1700000001,"replies":[]}]`
	if string(b) != want {
		t.Errorf("json = %s\nwant %s", b, want)
	}
}

func TestBuildForest_DeepChain(t *testing.T) {
	flat := []model.Comment{
		flatComment(3, ptr(2)),
		flatComment(2, ptr(1)),
		flatComment(1, nil),
	}

	forest := BuildForest(flat)

	if len(forest) != 1 {
		t.Fatalf("roots = %d, want 1", len(forest))
	}
	node := forest[0]
	for _, wantID := range []int64{2, 3} {
		if len(node.Replies) != 1 {
			t.Fatalf("node %d replies = %d, want 1", node.ID, len(node.Replies))
		}
		node = node.Replies[0]
		if node.ID != wantID {
			t.Errorf("id = %d, want %d", node.ID, wantID)
		}
	}
	if len(node.Replies) != 0 {
		t.Errorf("leaf replies = %d, want 0", len(node.Replies))
	}
}

func TestBuildForest_OmitsOrphans(t *testing.T) {
	flat := []model.Comment{
		flatComment(7, ptr(6)), // 親6の子だが6自体も孤児
		flatComment(6, ptr(99)),
		flatComment(1, nil),
	}

	forest := BuildForest(flat)

	if len(forest) != 1 || forest[0].ID != 1 {
		t.Fatalf("forest = %+v, want only root 1", forest)
	}
	if countNodes(forest) != 1 {
		t.Errorf("node count = %d, want 1", countNodes(forest))
	}
}

func TestBuildForest_DuplicateIDsDoNotLoop(t *testing.T) {
	flat := []model.Comment{
		flatComment(1, ptr(2)),
		flatComment(2, ptr(1)),
		flatComment(1, nil),
	}

	forest := BuildForest(flat)

	if len(forest) != 1 {
		t.Fatalf("roots = %d, want 1", len(forest))
	}
	if got := countNodes(forest); got != 2 {
		t.Errorf("node count = %d, want 2", got)
	}
}

func TestBuildForest_UsesEpochSeconds(t *testing.T) {
	c := flatComment(1, nil)
	c.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 999, time.UTC)

	forest := BuildForest([]model.Comment{c})

	if got, want := forest[0].CreationTimestamp, c.CreatedAt.Unix(); got != want {
		t.Errorf("CreationTimestamp = %d, want %d", got, want)
	}
}
