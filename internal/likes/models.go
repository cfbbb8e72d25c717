package likes

import "sort"

// State is the whole @likes blob. LikedPosts is kept sorted and LikeCounts
// never holds a zero entry.
type State struct {
	LikedPosts []int       `json:"likedPosts"`
	LikeCounts map[int]int `json:"likeCounts"`
}

func NewState() State {
	return State{LikedPosts: []int{}, LikeCounts: map[int]int{}}
}

func (s State) Liked(postID int) bool {
	i := sort.SearchInts(s.LikedPosts, postID)
	return i < len(s.LikedPosts) && s.LikedPosts[i] == postID
}

func (s State) Count(postID int) int {
	return s.LikeCounts[postID]
}

// normalize repairs blobs written by older clients: unsorted or duplicated
// ids, nil parts, zero or negative counts.
func (s State) normalize() State {
	out := NewState()
	seen := map[int]bool{}
	for _, id := range s.LikedPosts {
		if !seen[id] {
			seen[id] = true
			out.LikedPosts = append(out.LikedPosts, id)
		}
	}
	sort.Ints(out.LikedPosts)
	for id, n := range s.LikeCounts {
		if n > 0 {
			out.LikeCounts[id] = n
		}
	}
	return out
}
