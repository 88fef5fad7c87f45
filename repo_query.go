package blog

import (
	"context"
	"slices"
	"strings"

	"github.com/goliatone/go-blog/pagination"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// listSource adapts a repository to pagination.Source. Count and Slice
// share the same filter criteria so totals always match the slices.
type listSource[T any] struct {
	repo      repository.Repository[T]
	db        bun.IDB
	orderings map[string]string
	filter    []repository.SelectCriteria
	relations []repository.SelectCriteria
}

var _ pagination.Source[*Post] = (*listSource[*Post])(nil)

func (s *listSource[T]) OrderKeys() []string {
	keys := make([]string, 0, len(s.orderings))
	for k := range s.orderings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s *listSource[T]) Count(ctx context.Context) (int, error) {
	return s.repo.CountTx(ctx, s.db, s.filter...)
}

func (s *listSource[T]) Slice(ctx context.Context, order pagination.Order, offset, limit int) ([]T, error) {
	expr, ok := s.orderings[order.Key]
	if !ok {
		expr = s.orderings[pagination.DefaultOrderBy]
	}
	dir := order.Direction.SQL()

	criteria := make([]repository.SelectCriteria, 0, len(s.filter)+len(s.relations)+2)
	criteria = append(criteria, s.filter...)
	criteria = append(criteria, s.relations...)
	criteria = append(criteria,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.OrderExpr(expr + " " + dir)
			if order.Key != pagination.DefaultOrderBy {
				q = q.OrderExpr("?TableAlias.id " + dir)
			}
			return q
		}),
		repository.SelectPaginate(limit, offset),
	)

	items, _, err := s.repo.ListTx(ctx, s.db, criteria...)
	return items, err
}

// likeEscape is the escape character used by searchCriteria
const likeEscape = "!"

// searchCriteria matches column case insensitively against a substring.
// An empty term matches everything.
func searchCriteria(column, term string) []repository.SelectCriteria {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}

	pattern := "%" + escapeLike(term) + "%"
	return []repository.SelectCriteria{
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("lower(?TableAlias.?) LIKE ? ESCAPE '"+likeEscape+"'", bun.Ident(column), pattern)
		}),
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return r.Replace(s)
}
