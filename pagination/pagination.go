// Package pagination turns page, per_page, order_by, direction and a
// filter into a bounded, deterministic page of results.
package pagination

import (
	"context"
	"slices"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// DefaultPage is used when page is absent or non positive
	DefaultPage = 1
	// DefaultPerPage is used when per_page is absent or non positive
	DefaultPerPage = 10
	// MaxPerPage caps per_page
	MaxPerPage = 100
	// DefaultOrderBy is the fallback ordering key
	DefaultOrderBy = "id"
)

// Direction is the ordering direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection returns Desc only for "desc" (case insensitive),
// anything else sorts ascending.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// SQL returns the SQL keyword for the direction
func (d Direction) SQL() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Sanitize clamps page and perPage into their valid ranges
func Sanitize(page, perPage int) (int, int) {
	if page <= 0 {
		page = DefaultPage
	}

	switch {
	case perPage <= 0:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}

	return page, perPage
}

// Offset returns the slice offset of page
func Offset(page, perPage int) int {
	page, perPage = Sanitize(page, perPage)
	return (page - 1) * perPage
}

// Request holds raw list parameters as received from the client
type Request struct {
	Page      int    `json:"page" query:"page"`
	PerPage   int    `json:"per_page" query:"per_page"`
	OrderBy   string `json:"order_by" query:"order_by"`
	Direction string `json:"direction" query:"direction"`
	Search    string `json:"search" query:"search"`
}

// Order is a resolved ordering
type Order struct {
	Key       string
	Direction Direction
}

// Page is the computed view over a filtered, ordered and sliced collection
type Page[T any] struct {
	Items     []T       `json:"items"`
	Total     int       `json:"total"`
	Pages     int       `json:"pages"`
	Page      int       `json:"page"`
	PerPage   int       `json:"per_page"`
	HasPrev   bool      `json:"has_prev"`
	HasNext   bool      `json:"has_next"`
	OrderBy   string    `json:"order_by"`
	Direction Direction `json:"direction"`
	Search    string    `json:"search,omitempty"`
}

// Offset of the first item in the page
func (p *Page[T]) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Source is a filtered collection that can be counted and sliced in a
// given order. Count and Slice must apply the same filter.
type Source[T any] interface {
	// OrderKeys is the allow list of sortable keys, it should contain DefaultOrderBy
	OrderKeys() []string
	Count(ctx context.Context) (int, error)
	Slice(ctx context.Context, order Order, offset, limit int) ([]T, error)
}

// ResolveOrder matches key against the allow list. Unknown keys fall
// back to DefaultOrderBy.
func ResolveOrder(key string, allowed []string, direction string) Order {
	key = strings.ToLower(strings.TrimSpace(key))
	if !slices.Contains(allowed, key) {
		key = DefaultOrderBy
	}
	return Order{Key: key, Direction: ParseDirection(direction)}
}

// Paginate counts the filtered source before slicing it, empty
// sources short circuit without ordering. Pages past the end return
// no items but keep total and pages.
func Paginate[T any](ctx context.Context, src Source[T], req Request) (*Page[T], error) {
	if src == nil {
		return nil, errors.New("pagination source is nil", errors.CategoryInternal)
	}

	page, perPage := Sanitize(req.Page, req.PerPage)
	order := ResolveOrder(req.OrderBy, src.OrderKeys(), req.Direction)

	out := &Page[T]{
		Items:     []T{},
		Page:      page,
		PerPage:   perPage,
		OrderBy:   order.Key,
		Direction: order.Direction,
		Search:    strings.TrimSpace(req.Search),
	}

	total, err := src.Count(ctx)
	if err != nil {
		return nil, err
	}

	out.Total = total
	if total == 0 {
		return out, nil
	}

	offset := (page - 1) * perPage
	out.Pages = (total + perPage - 1) / perPage
	out.HasPrev = offset > 0
	out.HasNext = offset+perPage < total

	if offset >= total {
		return out, nil
	}

	items, err := src.Slice(ctx, order, offset, perPage)
	if err != nil {
		return nil, err
	}

	if items != nil {
		out.Items = items
	}

	return out, nil
}

// Map converts the items of a page keeping its metadata
func Map[T, R any](p *Page[T], fn func(T) R) *Page[R] {
	out := &Page[R]{
		Items:     make([]R, 0, len(p.Items)),
		Total:     p.Total,
		Pages:     p.Pages,
		Page:      p.Page,
		PerPage:   p.PerPage,
		HasPrev:   p.HasPrev,
		HasNext:   p.HasNext,
		OrderBy:   p.OrderBy,
		Direction: p.Direction,
		Search:    p.Search,
	}
	for _, item := range p.Items {
		out.Items = append(out.Items, fn(item))
	}
	return out
}
