package domain

// Flatten walks the reply tree depth-first, parents before children, and
// returns the posts written by the root's author. The root is always first.
func Flatten(root *ThreadNode) []*PostRecord {
	if root == nil || root.Post == nil {
		return nil
	}

	author := root.Post.Author.DID
	var posts []*PostRecord

	var walk func(n *ThreadNode)
	walk = func(n *ThreadNode) {
		if n.Post != nil && n.Post.Author.DID == author {
			posts = append(posts, n.Post)
		}
		for _, reply := range n.Replies {
			if reply != nil {
				walk(reply)
			}
		}
	}
	walk(root)

	return posts
}
