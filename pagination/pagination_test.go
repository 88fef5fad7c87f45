package pagination_test

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/goliatone/go-blog/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    int
	Title string
}

// sliceSource is an in memory Source used to check the engine math
type sliceSource struct {
	items      []item
	filter     string
	countCalls int
	sliceCalls int
	lastOrder  pagination.Order
	countErr   error
}

func (s *sliceSource) OrderKeys() []string { return []string{"id", "title"} }

func (s *sliceSource) filtered() []item {
	out := []item{}
	for _, it := range s.items {
		if s.filter == "" || strings.Contains(strings.ToLower(it.Title), strings.ToLower(s.filter)) {
			out = append(out, it)
		}
	}
	return out
}

func (s *sliceSource) Count(ctx context.Context) (int, error) {
	s.countCalls++
	if s.countErr != nil {
		return 0, s.countErr
	}
	return len(s.filtered()), nil
}

func (s *sliceSource) Slice(ctx context.Context, order pagination.Order, offset, limit int) ([]item, error) {
	s.sliceCalls++
	s.lastOrder = order

	items := s.filtered()
	slices.SortStableFunc(items, func(a, b item) int {
		c := 0
		switch order.Key {
		case "title":
			c = cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if order.Direction == pagination.Desc {
			return -c
		}
		return c
	})

	if offset >= len(items) {
		return []item{}, nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end], nil
}

func makeItems(n int) []item {
	out := make([]item, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, item{ID: i, Title: fmt.Sprintf("Post %03d", i)})
	}
	return out
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name        string
		page        int
		perPage     int
		wantPage    int
		wantPerPage int
	}{
		{"zero values use defaults", 0, 0, 1, pagination.DefaultPerPage},
		{"negative values use defaults", -3, -7, 1, pagination.DefaultPerPage},
		{"per page above max is capped", 2, 9999, 2, pagination.MaxPerPage},
		{"valid values are kept", 4, 25, 4, 25},
		{"per page of one is valid", 1, 1, 1, 1},
		{"max per page is valid", 1, 100, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, perPage := pagination.Sanitize(tt.page, tt.perPage)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPerPage, perPage)
		})
	}
}

func TestParseDirection(t *testing.T) {
	assert.Equal(t, pagination.Desc, pagination.ParseDirection("desc"))
	assert.Equal(t, pagination.Desc, pagination.ParseDirection(" DESC "))
	assert.Equal(t, pagination.Asc, pagination.ParseDirection("asc"))
	assert.Equal(t, pagination.Asc, pagination.ParseDirection(""))
	assert.Equal(t, pagination.Asc, pagination.ParseDirection("descending"))
	assert.Equal(t, "DESC", pagination.Desc.SQL())
	assert.Equal(t, "ASC", pagination.Direction("sideways").SQL())
}

func TestResolveOrder(t *testing.T) {
	allowed := []string{"id", "title"}

	assert.Equal(t, pagination.Order{Key: "title", Direction: pagination.Desc},
		pagination.ResolveOrder("title", allowed, "desc"))
	assert.Equal(t, pagination.Order{Key: "title", Direction: pagination.Asc},
		pagination.ResolveOrder(" Title ", allowed, "up"))
	assert.Equal(t, pagination.Order{Key: "id", Direction: pagination.Asc},
		pagination.ResolveOrder("password_hash", allowed, ""))
	assert.Equal(t, pagination.Order{Key: "id", Direction: pagination.Asc},
		pagination.ResolveOrder("", allowed, ""))
}

func TestPaginate_EmptySource(t *testing.T) {
	src := &sliceSource{}

	page, err := pagination.Paginate(context.Background(), src, pagination.Request{Page: 3, PerPage: 5, OrderBy: "title"})
	require.NoError(t, err)

	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 0, page.Pages)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNext)
	assert.False(t, page.HasPrev)
	assert.Equal(t, 1, src.countCalls)
	assert.Equal(t, 0, src.sliceCalls, "empty sources must not be ordered or sliced")
}

func TestPaginate_PageBeyondEnd(t *testing.T) {
	src := &sliceSource{items: makeItems(5)}

	page, err := pagination.Paginate(context.Background(), src, pagination.Request{Page: 3, PerPage: 10})
	require.NoError(t, err)

	assert.Empty(t, page.Items)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 1, page.Pages)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)
	assert.Equal(t, 3, page.Page)
}

func TestPaginate_PerPageLargerThanTotal(t *testing.T) {
	src := &sliceSource{items: makeItems(7)}

	page, err := pagination.Paginate(context.Background(), src, pagination.Request{PerPage: 50})
	require.NoError(t, err)

	assert.Len(t, page.Items, 7)
	assert.Equal(t, 1, page.Pages)
	assert.False(t, page.HasPrev)
	assert.False(t, page.HasNext)
}

func TestPaginate_Metadata(t *testing.T) {
	src := &sliceSource{items: makeItems(25)}

	page, err := pagination.Paginate(context.Background(), src, pagination.Request{Page: 2, PerPage: 10, Direction: "desc"})
	require.NoError(t, err)

	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.Pages)
	assert.True(t, page.HasPrev)
	assert.True(t, page.HasNext)
	assert.Equal(t, 10, page.Offset())
	assert.Equal(t, "id", page.OrderBy)
	assert.Equal(t, pagination.Desc, page.Direction)
	require.Len(t, page.Items, 10)
	assert.Equal(t, 15, page.Items[0].ID)
	assert.Equal(t, 6, page.Items[9].ID)

	last, err := pagination.Paginate(context.Background(), src, pagination.Request{Page: 3, PerPage: 10})
	require.NoError(t, err)
	assert.Len(t, last.Items, 5)
	assert.False(t, last.HasNext)
}

func TestPaginate_UnknownOrderFallsBackToID(t *testing.T) {
	src := &sliceSource{items: makeItems(3)}

	page, err := pagination.Paginate(context.Background(), src, pagination.Request{OrderBy: "nope"})
	require.NoError(t, err)

	assert.Equal(t, "id", page.OrderBy)
	assert.Equal(t, "id", src.lastOrder.Key)
}

func TestPaginate_Search(t *testing.T) {
	src := &sliceSource{
		items: []item{
			{ID: 1, Title: "Hello Go"},
			{ID: 2, Title: "Goodbye"},
			{ID: 3, Title: "Rust notes"},
			{ID: 4, Title: "go generics"},
		},
		filter: "go",
	}

	page, err := pagination.Paginate(context.Background(), src, pagination.Request{OrderBy: "title", Search: " go "})
	require.NoError(t, err)

	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "go", page.Search)
	require.Len(t, page.Items, 3)
	assert.Equal(t, []int{4, 2, 1}, []int{page.Items[0].ID, page.Items[1].ID, page.Items[2].ID})
}

func TestPaginate_PagesPartitionTheOrderedSet(t *testing.T) {
	for _, total := range []int{1, 9, 10, 11, 37, 100} {
		for _, perPage := range []int{1, 3, 10, 33, 100} {
			for _, dir := range []string{"asc", "desc"} {
				t.Run(fmt.Sprintf("total=%d/per_page=%d/%s", total, perPage, dir), func(t *testing.T) {
					src := &sliceSource{items: makeItems(total)}

					full, err := src.Slice(context.Background(), pagination.Order{Key: "title", Direction: pagination.ParseDirection(dir)}, 0, total)
					require.NoError(t, err)

					first, err := pagination.Paginate(context.Background(), src, pagination.Request{PerPage: perPage, OrderBy: "title", Direction: dir})
					require.NoError(t, err)

					var joined []item
					for p := 1; p <= first.Pages; p++ {
						page, err := pagination.Paginate(context.Background(), src, pagination.Request{Page: p, PerPage: perPage, OrderBy: "title", Direction: dir})
						require.NoError(t, err)
						joined = append(joined, page.Items...)
					}

					assert.Len(t, joined, total)
					assert.Equal(t, full, joined)
				})
			}
		}
	}
}

func TestPaginate_CountError(t *testing.T) {
	boom := errors.New("boom")
	src := &sliceSource{countErr: boom}

	page, err := pagination.Paginate(context.Background(), src, pagination.Request{})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, page)
}

func TestPaginate_NilSource(t *testing.T) {
	_, err := pagination.Paginate[item](context.Background(), nil, pagination.Request{})
	assert.Error(t, err)
}

func TestMap(t *testing.T) {
	src := &sliceSource{items: makeItems(3)}

	page, err := pagination.Paginate(context.Background(), src, pagination.Request{PerPage: 2})
	require.NoError(t, err)

	titles := pagination.Map(page, func(it item) string { return it.Title })
	assert.Equal(t, []string{"Post 001", "Post 002"}, titles.Items)
	assert.Equal(t, page.Total, titles.Total)
	assert.Equal(t, page.Pages, titles.Pages)
	assert.True(t, titles.HasNext)
}
