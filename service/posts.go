package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/eringen/inkpost/logger"
	"github.com/eringen/inkpost/model"
)

const (
	msgPostNotFound     = "Data not found!"
	msgCategoryNotFound = "Category not found"
)

// ImageAcceptor stores an uploaded image and returns its public path.
// Discard removes an accepted image that ended up unreferenced.
type ImageAcceptor interface {
	Accept(ctx context.Context, up model.Upload) (string, error)
	Discard(ctx context.Context, path string)
}

// Posts implements owner-scoped CRUD on posts.
type Posts struct {
	posts      model.PostStore
	categories model.CategoryStore
	images     ImageAcceptor
	logger     *logger.Logger
}

func NewPosts(posts model.PostStore, categories model.CategoryStore, images ImageAcceptor, logger *logger.Logger) *Posts {
	return &Posts{
		posts:      posts,
		categories: categories,
		images:     images,
		logger:     logger,
	}
}

// List returns the caller's posts, newest first.
func (p *Posts) List(ctx context.Context, userID int64) ([]model.Post, error) {
	posts, err := p.posts.ListPosts(ctx, userID)
	if err != nil {
		p.logger.Error("Post service: failed to list posts", "user_id", userID, "error", err.Error())
		return nil, model.NewInternalError(err)
	}
	return posts, nil
}

// Get returns the caller's post with the given id.
func (p *Posts) Get(ctx context.Context, userID int64, rawID string) (model.Post, error) {
	id, err := parsePostID(rawID)
	if err != nil {
		return model.Post{}, err
	}
	return p.get(ctx, userID, id)
}

// Create stores a new post owned by userID. The category is checked before
// the image is written so a bad category never leaves an orphan upload.
func (p *Posts) Create(ctx context.Context, userID int64, in model.PostInput) (model.Post, error) {
	if in.CategoryID != nil {
		if err := p.checkCategory(ctx, *in.CategoryID); err != nil {
			return model.Post{}, err
		}
	}

	post := model.Post{
		UserID:     userID,
		Title:      in.Title,
		Content:    in.Content,
		CategoryID: in.CategoryID,
	}
	if in.Published != nil {
		post.Published = *in.Published
	}
	if in.Image != nil {
		path, err := p.images.Accept(ctx, *in.Image)
		if err != nil {
			return model.Post{}, err
		}
		post.Image = path
	}

	created, err := p.posts.CreatePost(ctx, post)
	if err != nil {
		if post.Image != "" {
			p.images.Discard(ctx, post.Image)
		}
		p.logger.Error("Post service: failed to create post", "user_id", userID, "error", err.Error())
		return model.Post{}, model.NewInternalError(err)
	}

	p.logger.Info("Post service: post created", "user_id", userID, "post_id", created.ID)
	return created, nil
}

// Update applies the non-nil fields of patch to the caller's post.
// A replaced image is not removed from storage.
func (p *Posts) Update(ctx context.Context, userID int64, rawID string, patch model.PostPatch) (model.Post, error) {
	id, err := parsePostID(rawID)
	if err != nil {
		return model.Post{}, err
	}
	post, err := p.get(ctx, userID, id)
	if err != nil {
		return model.Post{}, err
	}

	if patch.CategoryID != nil {
		if err := p.checkCategory(ctx, *patch.CategoryID); err != nil {
			return model.Post{}, err
		}
		post.CategoryID = patch.CategoryID
	}
	if patch.Title != nil {
		post.Title = *patch.Title
	}
	if patch.Content != nil {
		post.Content = *patch.Content
	}
	if patch.Published != nil {
		post.Published = *patch.Published
	}
	var accepted string
	if patch.Image != nil {
		path, err := p.images.Accept(ctx, *patch.Image)
		if err != nil {
			return model.Post{}, err
		}
		post.Image = path
		accepted = path
	}

	updated, err := p.posts.UpdatePost(ctx, post)
	if err != nil {
		if accepted != "" {
			p.images.Discard(ctx, accepted)
		}
		if errors.Is(err, model.ErrNotFound) {
			return model.Post{}, model.NewNotFoundError(msgPostNotFound)
		}
		p.logger.Error("Post service: failed to update post", "user_id", userID, "post_id", id, "error", err.Error())
		return model.Post{}, model.NewInternalError(err)
	}
	return updated, nil
}

// Delete removes the caller's post and returns it as it was before deletion.
func (p *Posts) Delete(ctx context.Context, userID int64, rawID string) (model.Post, error) {
	id, err := parsePostID(rawID)
	if err != nil {
		return model.Post{}, err
	}
	post, err := p.get(ctx, userID, id)
	if err != nil {
		return model.Post{}, err
	}

	if err := p.posts.DeletePost(ctx, userID, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Post{}, model.NewNotFoundError(msgPostNotFound)
		}
		p.logger.Error("Post service: failed to delete post", "user_id", userID, "post_id", id, "error", err.Error())
		return model.Post{}, model.NewInternalError(err)
	}

	p.logger.Info("Post service: post deleted", "user_id", userID, "post_id", id)
	return post, nil
}

// Categories lists every category.
func (p *Posts) Categories(ctx context.Context) ([]model.Category, error) {
	categories, err := p.categories.ListCategories(ctx)
	if err != nil {
		p.logger.Error("Post service: failed to list categories", "error", err.Error())
		return nil, model.NewInternalError(err)
	}
	return categories, nil
}

func (p *Posts) get(ctx context.Context, userID, id int64) (model.Post, error) {
	post, err := p.posts.GetPost(ctx, userID, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Post{}, model.NewNotFoundError(msgPostNotFound)
		}
		p.logger.Error("Post service: failed to get post", "user_id", userID, "post_id", id, "error", err.Error())
		return model.Post{}, model.NewInternalError(err)
	}
	return post, nil
}

func (p *Posts) checkCategory(ctx context.Context, id int64) error {
	if _, err := p.categories.GetCategory(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewNotFoundError(msgCategoryNotFound)
		}
		p.logger.Error("Post service: failed to get category", "category_id", id, "error", err.Error())
		return model.NewInternalError(err)
	}
	return nil
}

// parsePostID treats anything that is not a positive integer as a missing post.
func parsePostID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewNotFoundError(msgPostNotFound)
	}
	return id, nil
}
