package graph

import (
	"context"

	"github.com/samber/lo"
	"github.com/vvakame/bookshelf/internal/graph/model"
	"github.com/vvakame/bookshelf/internal/log"
)

// Books is the resolver for the books field.
func (r *queryResolver) Books(ctx context.Context) ([]*model.Book, error) {
	return copyBooks(r.books), nil
}

// BookByID is the resolver for the bookById field.
// Every match is returned even though ids are unique in the catalog.
func (r *queryResolver) BookByID(ctx context.Context, bookID int) ([]*model.Book, error) {
	log.FromContext(ctx).V(1).Info("resolve bookById", "bookID", bookID)

	matched := lo.Filter(r.books, func(book *model.Book, _ int) bool {
		return book.ID == bookID
	})
	return copyBooks(matched), nil
}

// BookByName is the resolver for the bookByName field.
// It returns nil when no title matches; the field is non-null, so that surfaces as a field error.
func (r *queryResolver) BookByName(ctx context.Context, bookName string) (*model.Book, error) {
	log.FromContext(ctx).V(1).Info("resolve bookByName", "bookName", bookName)

	book, ok := lo.Find(r.books, func(book *model.Book) bool {
		return book.Title == bookName
	})
	if !ok {
		return nil, nil
	}
	copied := *book
	return &copied, nil
}

// BookByFormat is the resolver for the bookByFormat field.
func (r *queryResolver) BookByFormat(ctx context.Context, bookFormat model.Format) ([]*model.Book, error) {
	log.FromContext(ctx).V(1).Info("resolve bookByFormat", "bookFormat", bookFormat)

	matched := lo.Filter(r.books, func(book *model.Book, _ int) bool {
		return book.Format == bookFormat
	})
	return copyBooks(matched), nil
}

// Query returns QueryResolver implementation.
func (r *Resolver) Query() QueryResolver { return &queryResolver{r} }

type queryResolver struct{ *Resolver }
