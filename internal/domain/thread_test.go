package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatten_FiltersOtherAuthorsInPreOrder(t *testing.T) {
	root := &ThreadNode{
		Post: alicePost("r", "root"),
		Replies: []*ThreadNode{
			{
				Post: alicePost("p1", "one"),
				Replies: []*ThreadNode{
					{Post: bobPost("p2", "two")},
					{Post: alicePost("p3", "three")},
				},
			},
		},
	}

	posts := Flatten(root)

	rkeys := make([]string, len(posts))
	for i, p := range posts {
		rkeys[i] = p.RKey()
	}
	assert.Equal(t, []string{"r", "p1", "p3"}, rkeys)
}

func TestFlatten_DescendsThroughOtherAuthors(t *testing.T) {
	root := &ThreadNode{
		Post: alicePost("r", "root"),
		Replies: []*ThreadNode{
			{Post: bobPost("b1", "question"), Replies: []*ThreadNode{{Post: alicePost("a1", "answer")}}},
			{Post: alicePost("a2", "more")},
		},
	}

	posts := Flatten(root)
	assert.Len(t, posts, 3)
	assert.Equal(t, "r", posts[0].RKey())
	assert.Equal(t, "a1", posts[1].RKey())
	assert.Equal(t, "a2", posts[2].RKey())
	for _, p := range posts {
		assert.Equal(t, root.Post.Author.DID, p.Author.DID)
	}
}

func TestFlatten_RootOnly(t *testing.T) {
	root := &ThreadNode{Post: alicePost("r", "root")}
	assert.Equal(t, []*PostRecord{root.Post}, Flatten(root))
}

func TestFlatten_Nil(t *testing.T) {
	assert.Nil(t, Flatten(nil))
	assert.Nil(t, Flatten(&ThreadNode{}))
}

func TestFlatten_DeepTreeTerminates(t *testing.T) {
	root := &ThreadNode{Post: alicePost("0", "")}
	node := root
	for i := 1; i <= 1000; i++ {
		child := &ThreadNode{Post: alicePost("n", "")}
		node.Replies = []*ThreadNode{child}
		node = child
	}
	assert.Len(t, Flatten(root), 1001)
}

func TestFlatten_SkipsNodesWithoutPost(t *testing.T) {
	root := &ThreadNode{
		Post: alicePost("r", "root"),
		Replies: []*ThreadNode{
			{Replies: []*ThreadNode{{Post: alicePost("p1", "one")}}},
		},
	}
	posts := Flatten(root)
	assert.Len(t, posts, 2)
	assert.Equal(t, "one", posts[1].Text)
}
