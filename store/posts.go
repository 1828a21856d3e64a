package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eringen/inkpost/model"
)

const postColumns = `p.id, p.user_id, p.title, p.content, p.image, p.category_id, p.published, p.created_at, p.updated_at`

func scanPost(row interface{ Scan(...any) error }, extra ...any) (model.Post, error) {
	var p model.Post
	var categoryID sql.NullInt64
	var published int
	var createdAt, updatedAt string
	dest := append([]any{&p.ID, &p.UserID, &p.Title, &p.Content, &p.Image, &categoryID, &published, &createdAt, &updatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Post{}, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		p.CategoryID = &id
	}
	p.Published = published == 1
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Post{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Post{}, err
	}
	return p, nil
}

// ListPosts returns every post owned by userID, newest id first, with the
// author and category summaries attached.
func (s *Store) ListPosts(ctx context.Context, userID int64) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+postColumns+`, u.name, u.email, c.name
FROM posts p
JOIN users u ON u.id = p.user_id
LEFT JOIN categories c ON c.id = p.category_id
WHERE p.user_id = ?
ORDER BY p.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var userName, userEmail string
		var categoryName sql.NullString
		p, err := scanPost(rows, &userName, &userEmail, &categoryName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.User = &model.UserSummary{ID: p.UserID, Name: userName, Email: userEmail}
		if p.CategoryID != nil && categoryName.Valid {
			p.Category = &model.CategorySummary{ID: *p.CategoryID, Name: categoryName.String}
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// GetPost returns the post with id owned by userID, or model.ErrNotFound.
func (s *Store) GetPost(ctx context.Context, userID, id int64) (model.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.id = ? AND p.user_id = ?`, id, userID)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, model.ErrNotFound
		}
		return model.Post{}, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

// CreatePost inserts a post and returns it with its generated id and timestamps.
func (s *Store) CreatePost(ctx context.Context, p model.Post) (model.Post, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO posts (user_id, title, content, image, category_id, published, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Title, p.Content, p.Image, nullableID(p.CategoryID), boolToInt(p.Published),
		formatTime(now), formatTime(now))
	if err != nil {
		return model.Post{}, fmt.Errorf("failed to create post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Post{}, fmt.Errorf("failed to read post id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

// UpdatePost overwrites the mutable columns of an existing post owned by
// p.UserID and bumps updated_at. Returns model.ErrNotFound if no row matched.
func (s *Store) UpdatePost(ctx context.Context, p model.Post) (model.Post, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
UPDATE posts SET title = ?, content = ?, image = ?, category_id = ?, published = ?, updated_at = ?
WHERE id = ? AND user_id = ?`,
		p.Title, p.Content, p.Image, nullableID(p.CategoryID), boolToInt(p.Published), formatTime(now),
		p.ID, p.UserID)
	if err != nil {
		return model.Post{}, fmt.Errorf("failed to update post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Post{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return model.Post{}, model.ErrNotFound
	}
	p.UpdatedAt = now
	return p, nil
}

// DeletePost removes the post with id owned by userID.
func (s *Store) DeletePost(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
