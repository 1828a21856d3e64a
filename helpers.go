package inkpost

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/inkpost/model"
)

type registerRequest struct {
	Name     string `json:"name" form:"name" validate:"required,max=100" msg:"Name must be between 1 and 100 characters"`
	Email    string `json:"email" form:"email" validate:"required,email" msg:"Email must be a valid email address"`
	Password string `json:"password" form:"password" validate:"required,min=6,max=72" msg:"Password must be between 6 and 72 characters"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email" validate:"required" msg:"Email is required"`
	Password string `json:"password" form:"password" validate:"required" msg:"Password is required"`
}

// postRequest holds the post fields of a create or update body. Nil means the
// field was not supplied.
type postRequest struct {
	Title      *string `json:"title" validate:"omitnil,min=3,max=100" msg:"Title must be between 3 and 100 characters"`
	Content    *string `json:"content" validate:"omitnil,min=3,max=1000" msg:"Content must be between 3 and 1000 characters"`
	CategoryID *int64  `json:"category_id" validate:"omitnil,gt=0" msg:"Category not found"`
	Published  *bool   `json:"published"`

	image *multipart.FileHeader
}

// bindRequest binds c's body into req and validates it.
func bindRequest(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return model.NewValidationError("Invalid request body")
	}
	return c.Validate(req)
}

// bindPost reads a post body from JSON, urlencoded, or multipart input.
// Only multipart bodies may carry an image. When create is true, title and
// content are mandatory.
func bindPost(c echo.Context, create bool) (postRequest, error) {
	var req postRequest
	ctype := c.Request().Header.Get(echo.HeaderContentType)

	switch {
	case strings.HasPrefix(ctype, echo.MIMEApplicationJSON):
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return postRequest{}, model.NewValidationError("Invalid request body")
		}
	case strings.HasPrefix(ctype, echo.MIMEMultipartForm), strings.HasPrefix(ctype, echo.MIMEApplicationForm):
		if _, err := c.FormParams(); err != nil {
			return postRequest{}, model.NewValidationError("Invalid request body")
		}
		// PostForm holds body fields only; query values are ignored.
		if err := req.fromForm(c.Request().PostForm); err != nil {
			return postRequest{}, err
		}
		if strings.HasPrefix(ctype, echo.MIMEMultipartForm) {
			fh, err := c.FormFile("image")
			if err != nil && !errors.Is(err, http.ErrMissingFile) {
				return postRequest{}, model.NewValidationError("Invalid image upload")
			}
			req.image = fh
		}
	case c.Request().ContentLength == 0 && !create:
	default:
		return postRequest{}, model.NewValidationError("Unsupported content type")
	}

	if create {
		if req.Title == nil {
			req.Title = new(string)
		}
		if req.Content == nil {
			req.Content = new(string)
		}
	}
	if err := c.Validate(&req); err != nil {
		return postRequest{}, err
	}
	return req, nil
}

func (r *postRequest) fromForm(form map[string][]string) error {
	if v, ok := formValue(form, "title"); ok {
		r.Title = &v
	}
	if v, ok := formValue(form, "content"); ok {
		r.Content = &v
	}
	if v, ok := formValue(form, "category_id"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return model.NewValidationError("Category must be a numeric id")
		}
		r.CategoryID = &id
	}
	if v, ok := formValue(form, "published"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return model.NewValidationError("Published must be true or false")
		}
		r.Published = &b
	}
	return nil
}

func formValue(form map[string][]string, key string) (string, bool) {
	vs, ok := form[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// upload opens the attached image, if any. The caller closes the returned file.
func (r postRequest) upload() (*model.Upload, multipart.File, error) {
	if r.image == nil {
		return nil, nil, nil
	}
	f, err := r.image.Open()
	if err != nil {
		return nil, nil, model.NewInternalError(err)
	}
	return &model.Upload{Name: r.image.Filename, Size: r.image.Size, Reader: f}, f, nil
}
