package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// User mirrors the backend's user document.
type User struct {
	ID             string    `json:"_id"`
	Email          string    `json:"email,omitempty"`
	FullName       string    `json:"full_name"`
	Username       string    `json:"username"`
	Bio            string    `json:"bio"`
	ProfilePicture string    `json:"profile_picture"`
	CoverPhoto     string    `json:"cover_photo"`
	Location       string    `json:"location"`
	Followers      []string  `json:"followers"`
	Following      []string  `json:"following"`
	Connections    []string  `json:"connections"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Post is a feed entry. User is populated by the backend.
type Post struct {
	ID        string    `json:"_id"`
	User      User      `json:"user"`
	Content   string    `json:"content"`
	ImageURLs []string  `json:"image_urls"`
	PostType  string    `json:"post_type"`
	Likes     Likes     `json:"likes_count"`
	CreatedAt time.Time `json:"createdAt"`
}

// Connections groups the four relationship lists of the current user.
type Connections struct {
	Connections        []User `json:"connections"`
	Followers          []User `json:"followers"`
	Following          []User `json:"following"`
	PendingConnections []User `json:"pendingConnections"`
}

// ProfileUpdate is a partial profile edit. Image fields, when set, switch the
// request to multipart form data.
type ProfileUpdate struct {
	Username     string
	FullName     string
	Bio          string
	Location     string
	ProfileImage *Image
	CoverImage   *Image
}

// Image is an uploaded file.
type Image struct {
	FileName string
	Data     []byte
}

// Relation reports whether the current user follows and is followed by a user.
type Relation struct {
	TheyFollowMe bool
	IFollowThem  bool
}

// Likes is a post's like list. The backend sends the liking user IDs; a bare
// count is accepted too, in which case UserIDs stays nil.
type Likes struct {
	UserIDs []string
	Count   int
}

func (l *Likes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = Likes{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("decode likes: %w", err)
		}
		*l = Likes{UserIDs: ids, Count: len(ids)}
		return nil
	default:
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode likes: %w", err)
		}
		*l = Likes{Count: n}
		return nil
	}
}

func (l Likes) MarshalJSON() ([]byte, error) {
	if l.UserIDs != nil {
		return json.Marshal(l.UserIDs)
	}
	return json.Marshal(l.Count)
}

// LikedBy reports whether userID is among the known likers.
func (l Likes) LikedBy(userID string) bool {
	for _, id := range l.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
