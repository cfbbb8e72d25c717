package comments

// Comment belongs to the post whose id is part of its storage key.
type Comment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
