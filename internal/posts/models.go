package posts

// Post is one entry of the @posts snapshot. UserID is only set on posts that
// came from the remote list.
type Post struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId,omitempty"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

type postInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
