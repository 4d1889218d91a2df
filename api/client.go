// Package api exposes the social backend's REST endpoints on top of an
// AuthBridge. Every call goes through the shared authenticated pipeline, so
// token attachment and renewal are transparent here.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	authbridge "github.com/opengovern/authbridge"
)

// Requester is the subset of *authbridge.AuthBridge the API needs.
type Requester interface {
	DoJSON(ctx context.Context, method, path string, opts *authbridge.RequestOptions, dest any) error
}

var _ Requester = (*authbridge.AuthBridge)(nil)

type Client struct {
	bridge Requester
}

func NewClient(bridge Requester) *Client {
	return &Client{bridge: bridge}
}

type userEnvelope struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// FetchUser returns the signed-in user's profile.
func (c *Client) FetchUser(ctx context.Context) (*User, error) {
	var payload userEnvelope
	if err := c.bridge.DoJSON(ctx, http.MethodGet, "/api/user/data", nil, &payload); err != nil {
		return nil, err
	}
	if payload.User == nil {
		return nil, errors.New("user data missing from response")
	}
	return payload.User, nil
}

// UpdateUser edits the profile and returns the updated user and the backend's
// confirmation message.
func (c *Client) UpdateUser(ctx context.Context, update ProfileUpdate) (*User, string, error) {
	fields := map[string]string{}
	setIf := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			fields[key] = v
		}
	}
	setIf("username", update.Username)
	setIf("full_name", update.FullName)
	setIf("bio", update.Bio)
	setIf("location", update.Location)

	opts := &authbridge.RequestOptions{}
	if update.ProfileImage != nil || update.CoverImage != nil {
		form := &authbridge.FormData{Fields: fields}
		if img := update.ProfileImage; img != nil {
			form.Files = append(form.Files, authbridge.FormFile{Field: "profile", FileName: img.FileName, Data: img.Data})
		}
		if img := update.CoverImage; img != nil {
			form.Files = append(form.Files, authbridge.FormFile{Field: "cover", FileName: img.FileName, Data: img.Data})
		}
		opts.Form = form
	} else {
		opts.Body = fields
	}

	var payload userEnvelope
	if err := c.bridge.DoJSON(ctx, http.MethodPut, "/api/user/update", opts, &payload); err != nil {
		return nil, "", err
	}
	return payload.User, payload.Message, nil
}

// Discover searches users by name, username, email or location.
func (c *Client) Discover(ctx context.Context, input string) ([]User, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("search input is required")
	}
	var payload struct {
		Users []User `json:"users"`
	}
	opts := &authbridge.RequestOptions{Body: map[string]string{"input": input}}
	if err := c.bridge.DoJSON(ctx, http.MethodPost, "/api/user/discover", opts, &payload); err != nil {
		return nil, err
	}
	return payload.Users, nil
}

// Follow, Unfollow, Connect and Accept act on another user and return the
// backend's confirmation message.
func (c *Client) Follow(ctx context.Context, userID string) (string, error) {
	return c.userAction(ctx, "follow", userID)
}

func (c *Client) Unfollow(ctx context.Context, userID string) (string, error) {
	return c.userAction(ctx, "unfollow", userID)
}

func (c *Client) Connect(ctx context.Context, userID string) (string, error) {
	return c.userAction(ctx, "connect", userID)
}

func (c *Client) Accept(ctx context.Context, userID string) (string, error) {
	return c.userAction(ctx, "accept", userID)
}

func (c *Client) userAction(ctx context.Context, action, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%s: user id is required", action)
	}
	var payload authbridge.Envelope
	opts := &authbridge.RequestOptions{Body: map[string]string{"id": userID}}
	if err := c.bridge.DoJSON(ctx, http.MethodPost, "/api/user/"+action, opts, &payload); err != nil {
		return "", err
	}
	return payload.Message, nil
}

// FetchConnections returns the four relationship lists.
func (c *Client) FetchConnections(ctx context.Context) (*Connections, error) {
	var payload Connections
	if err := c.bridge.DoJSON(ctx, http.MethodGet, "/api/user/connections", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchFeed returns the posts of the user and the people they follow.
func (c *Client) FetchFeed(ctx context.Context) ([]Post, error) {
	var payload struct {
		Posts []Post `json:"posts"`
	}
	if err := c.bridge.DoJSON(ctx, http.MethodGet, "/api/post/feed", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Posts, nil
}

// RelationTo classifies user against the current user's follower lists.
func (conn *Connections) RelationTo(userID string) Relation {
	var rel Relation
	for _, f := range conn.Followers {
		if f.ID == userID {
			rel.TheyFollowMe = true
			break
		}
	}
	for _, f := range conn.Following {
		if f.ID == userID {
			rel.IFollowThem = true
			break
		}
	}
	return rel
}
