package model

import (
	"context"
	"time"
)

// PostStore defines owner-scoped persistence operations for posts.
// Every lookup takes the owner id; a post owned by someone else is reported
// as ErrNotFound.
type PostStore interface {
	ListPosts(ctx context.Context, userID int64) ([]Post, error)
	GetPost(ctx context.Context, userID, id int64) (Post, error)
	CreatePost(ctx context.Context, post Post) (Post, error)
	UpdatePost(ctx context.Context, post Post) (Post, error)
	DeletePost(ctx context.Context, userID, id int64) error
}

// CategoryStore defines read operations for categories.
type CategoryStore interface {
	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Post is a blog post owned by a single user.
type Post struct {
	ID         int64            `json:"id"`
	UserID     int64            `json:"user_id"`
	Title      string           `json:"title"`
	Content    string           `json:"content"`
	Image      string           `json:"image"`
	CategoryID *int64           `json:"category_id"`
	Published  bool             `json:"published"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	User       *UserSummary     `json:"user,omitempty"`
	Category   *CategorySummary `json:"category,omitempty"`
}

// UserSummary is the author block nested into listed posts.
type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Category groups posts. Categories are read-only through the API.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CategorySummary is the category block nested into listed posts.
type CategorySummary = Category

// PostInput carries the fields for creating a post.
type PostInput struct {
	Title      string
	Content    string
	Image      *Upload
	CategoryID *int64
	Published  *bool
}

// PostPatch carries a partial update. Nil fields are left unchanged.
type PostPatch struct {
	Title      *string
	Content    *string
	Image      *Upload
	CategoryID *int64
	Published  *bool
}
