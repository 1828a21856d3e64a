package inkpost

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/inkpost/model"
)

func (a *App) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}
	user, err := a.Auth.Register(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return Render(c, "Register success", user)
}

func (a *App) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}
	sess, err := a.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	a.setAuthCookie(c, sess.Token)
	return c.JSON(http.StatusOK, loginEnvelope{
		envelope:    envelope{Success: true, Message: "Login success", Data: sess.User},
		TokenType:   "Bearer",
		AccessToken: sess.Token,
	})
}

func (a *App) handleLogout(c echo.Context) error {
	a.clearAuthCookie(c)
	return Render(c, "Logout success", nil)
}

func (a *App) handleMe(c echo.Context) error {
	user, err := a.Auth.Me(c.Request().Context(), sessionClaims(c))
	if err != nil {
		return err
	}
	return Render(c, "Get Data User!", user)
}

func (a *App) handleListCategories(c echo.Context) error {
	categories, err := a.Posts.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, "List Data Categories!", categories)
}

func (a *App) handleListPosts(c echo.Context) error {
	posts, err := a.Posts.List(c.Request().Context(), sessionClaims(c).ID)
	if err != nil {
		return err
	}
	return Render(c, "List Data Posts!", posts)
}

func (a *App) handleGetPost(c echo.Context) error {
	post, err := a.Posts.Get(c.Request().Context(), sessionClaims(c).ID, c.Param("id"))
	if err != nil {
		return err
	}
	return Render(c, "Get Data Post!", post)
}

func (a *App) handleCreatePost(c echo.Context) error {
	req, err := bindPost(c, true)
	if err != nil {
		return err
	}
	image, f, err := req.upload()
	if err != nil {
		return err
	}
	if f != nil {
		defer f.Close()
	}
	post, err := a.Posts.Create(c.Request().Context(), sessionClaims(c).ID, model.PostInput{
		Title:      *req.Title,
		Content:    *req.Content,
		Image:      image,
		CategoryID: req.CategoryID,
		Published:  req.Published,
	})
	if err != nil {
		return err
	}
	return Render(c, "Create Data Post!", post)
}

func (a *App) handleUpdatePost(c echo.Context) error {
	req, err := bindPost(c, false)
	if err != nil {
		return err
	}
	image, f, err := req.upload()
	if err != nil {
		return err
	}
	if f != nil {
		defer f.Close()
	}
	post, err := a.Posts.Update(c.Request().Context(), sessionClaims(c).ID, c.Param("id"), model.PostPatch{
		Title:      req.Title,
		Content:    req.Content,
		Image:      image,
		CategoryID: req.CategoryID,
		Published:  req.Published,
	})
	if err != nil {
		return err
	}
	return Render(c, "Update Data Post!", post)
}

func (a *App) handleDeletePost(c echo.Context) error {
	post, err := a.Posts.Delete(c.Request().Context(), sessionClaims(c).ID, c.Param("id"))
	if err != nil {
		return err
	}
	return Render(c, "Delete Data Post!", post)
}

// handleUpload streams a stored image. Unknown names get a plain 404.
func (a *App) handleUpload(c echo.Context) error {
	rc, contentType, err := a.Images.Open(c.Request().Context(), c.Param("filename"))
	if err != nil {
		if model.KindOf(err) == model.KindNotFound {
			return c.String(http.StatusNotFound, "File not found")
		}
		return err
	}
	defer rc.Close()
	return c.Stream(http.StatusOK, contentType, rc)
}

func (a *App) handleHealth(c echo.Context) error {
	if err := a.Store.Ping(c.Request().Context()); err != nil {
		return model.NewInternalError(err)
	}
	return Render(c, "OK", nil)
}
