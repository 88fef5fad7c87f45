package blog_test

import (
	"net/http"
	"testing"

	"github.com/goliatone/go-blog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postBody struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Content  string `json:"content"`
	AuthorID string `json:"author_id"`
	Tags     []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

type postPage struct {
	Items   []postBody `json:"items"`
	Total   int        `json:"total"`
	Pages   int        `json:"pages"`
	Page    int        `json:"page"`
	PerPage int        `json:"per_page"`
	HasNext bool       `json:"has_next"`
	HasPrev bool       `json:"has_prev"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

func TestPostRoutesLifecycle(t *testing.T) {
	s := newTestServer(t)
	author, authorToken := s.tokenFor(t, "author@example.com", blog.RoleUser)
	_, otherToken := s.tokenFor(t, "other@example.com", blog.RoleUser)
	_, editorToken := s.tokenFor(t, "editor@example.com", blog.RoleEditor)

	t.Run("create needs a token", func(t *testing.T) {
		res := s.doJSON(t, http.MethodPost, "/posts", "", map[string]any{"title": "Nope"})
		requireError(t, res, http.StatusUnauthorized, "UNAUTHENTICATED")
	})

	res := s.doJSON(t, http.MethodPost, "/posts", authorToken, map[string]any{
		"title":   "First Post",
		"content": "the very first post",
		"tags":    []string{"Go", "http", "go"},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	created := decode[postBody](t, res)
	assert.Equal(t, "first-post", created.Slug)
	assert.Equal(t, author.ID.String(), created.AuthorID)
	require.Len(t, created.Tags, 2)
	assert.Equal(t, "go", created.Tags[0].Name)
	assert.Equal(t, "http", created.Tags[1].Name)

	path := "/posts/" + created.ID

	t.Run("show", func(t *testing.T) {
		res := s.doJSON(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "the very first post", decode[postBody](t, res).Content)
	})

	t.Run("show without content", func(t *testing.T) {
		res := s.doJSON(t, http.MethodGet, path+"?include_content=false", "", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
		body := decode[map[string]any](t, res)
		assert.Equal(t, "First Post", body["title"])
		assert.NotContains(t, body, "content")
		assert.NotContains(t, body, "tags")
	})

	t.Run("duplicate title", func(t *testing.T) {
		res := s.doJSON(t, http.MethodPost, "/posts", otherToken, map[string]any{"title": "First Post"})
		requireError(t, res, http.StatusConflict, "POST_TITLE_TAKEN")
	})

	t.Run("invalid payload", func(t *testing.T) {
		res := s.doJSON(t, http.MethodPost, "/posts", authorToken, map[string]any{
			"title":   "",
			"content": "short",
			"tags":    []string{"x"},
		})
		body := requireError(t, res, http.StatusBadRequest, "BAD_REQUEST")
		assert.Contains(t, body.Validation, "title")
		assert.Contains(t, body.Validation, "content")
		assert.Contains(t, body.Validation, "tags")
	})

	t.Run("other users cannot update", func(t *testing.T) {
		res := s.doJSON(t, http.MethodPut, path, otherToken, map[string]any{"title": "Hijacked"})
		requireError(t, res, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("author updates", func(t *testing.T) {
		res := s.doJSON(t, http.MethodPut, path, authorToken, map[string]any{
			"title": "First Post Revised",
			"tags":  []string{"release"},
		})
		require.Equal(t, http.StatusAccepted, res.StatusCode)
		body := decode[postBody](t, res)
		assert.Equal(t, "first-post-revised", body.Slug)
		assert.Equal(t, "the very first post", body.Content)
		require.Len(t, body.Tags, 1)
		assert.Equal(t, "release", body.Tags[0].Name)
	})

	t.Run("editors update any post", func(t *testing.T) {
		res := s.doJSON(t, http.MethodPut, path, editorToken, map[string]any{"content": "edited by the editor"})
		require.Equal(t, http.StatusAccepted, res.StatusCode)
		assert.Equal(t, "edited by the editor", decode[postBody](t, res).Content)
	})

	t.Run("other users cannot delete", func(t *testing.T) {
		res := s.doJSON(t, http.MethodDelete, path, otherToken, nil)
		requireError(t, res, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("author deletes", func(t *testing.T) {
		res := s.doJSON(t, http.MethodDelete, path, authorToken, nil)
		require.Equal(t, http.StatusAccepted, res.StatusCode)

		res = s.doJSON(t, http.MethodGet, path, "", nil)
		requireError(t, res, http.StatusNotFound, "POST_NOT_FOUND")

		res = s.doJSON(t, http.MethodDelete, path, authorToken, nil)
		requireError(t, res, http.StatusNotFound, "POST_NOT_FOUND")
	})

	t.Run("invalid id", func(t *testing.T) {
		res := s.doJSON(t, http.MethodGet, "/posts/123", "", nil)
		requireError(t, res, http.StatusBadRequest, "INVALID_ID")
	})
}

func TestPostRoutesList(t *testing.T) {
	s := newTestServer(t)
	author, _ := s.tokenFor(t, "lister@example.com", blog.RoleUser)

	for _, title := range []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo"} {
		createPost(t, s.repo, author, blog.PostInput{Title: title, Tags: []string{"go"}})
	}
	createPost(t, s.repo, author, blog.PostInput{Title: "Foxtrot", Tags: []string{"http"}})

	t.Run("page and order", func(t *testing.T) {
		res := s.doJSON(t, http.MethodGet, "/posts?per_page=2&page=2&order_by=title&direction=desc", "", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)

		page := decode[postPage](t, res)
		assert.Equal(t, 6, page.Total)
		assert.Equal(t, 3, page.Pages)
		assert.True(t, page.HasNext)
		assert.True(t, page.HasPrev)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "Delta", page.Items[0].Title)
		assert.Equal(t, "Charlie", page.Items[1].Title)
	})

	t.Run("limit and offset", func(t *testing.T) {
		res := s.doJSON(t, http.MethodGet, "/posts?limit=4&offset=4&order_by=title", "", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)

		page := decode[postPage](t, res)
		assert.Equal(t, 4, page.Limit)
		assert.Equal(t, 4, page.Offset)
		assert.Equal(t, 2, page.Page)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "Echo", page.Items[0].Title)
	})

	t.Run("search", func(t *testing.T) {
		res := s.doJSON(t, http.MethodGet, "/posts?q=ALP", "", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)

		page := decode[postPage](t, res)
		require.Equal(t, 1, page.Total)
		assert.Equal(t, "Alpha", page.Items[0].Title)
	})

	t.Run("by tags", func(t *testing.T) {
		res := s.doJSON(t, http.MethodGet, "/posts/by-tags?tags=HTTP", "", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)

		posts := decode[[]postBody](t, res)
		require.Len(t, posts, 1)
		assert.Equal(t, "Foxtrot", posts[0].Title)

		res = s.doJSON(t, http.MethodGet, "/posts/by-tags?tags=go&tags=http", "", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Len(t, decode[[]postBody](t, res), 6)
	})

	t.Run("by tags needs a tag", func(t *testing.T) {
		res := s.doJSON(t, http.MethodGet, "/posts/by-tags", "", nil)
		body := requireError(t, res, http.StatusBadRequest, "BAD_REQUEST")
		assert.Contains(t, body.Validation, "tags")
	})
}
