package likes

import "sort"

// Toggle flips postID's membership in the liked set. Liking increments the
// count; unliking decrements it, never below zero. The count is tracked apart
// from the liked set and can exceed one.
func Toggle(state State, postID int) State {
	next := state.normalize()
	i := sort.SearchInts(next.LikedPosts, postID)

	if i < len(next.LikedPosts) && next.LikedPosts[i] == postID {
		next.LikedPosts = append(next.LikedPosts[:i], next.LikedPosts[i+1:]...)
		if n := next.LikeCounts[postID] - 1; n > 0 {
			next.LikeCounts[postID] = n
		} else {
			delete(next.LikeCounts, postID)
		}
		return next
	}

	next.LikedPosts = append(next.LikedPosts, 0)
	copy(next.LikedPosts[i+1:], next.LikedPosts[i:])
	next.LikedPosts[i] = postID
	next.LikeCounts[postID]++
	return next
}

// Forget removes every trace of postID.
func Forget(state State, postID int) State {
	next := state.normalize()
	if i := sort.SearchInts(next.LikedPosts, postID); i < len(next.LikedPosts) && next.LikedPosts[i] == postID {
		next.LikedPosts = append(next.LikedPosts[:i], next.LikedPosts[i+1:]...)
	}
	delete(next.LikeCounts, postID)
	return next
}
