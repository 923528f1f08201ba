package graph

import (
	"github.com/samber/lo"
	"github.com/vvakame/bookshelf/internal/graph/model"
)

// This file serves as dependency injection for the resolvers.

type Resolver struct {
	books []*model.Book
}

// NewResolver builds the fixed catalog. It is never mutated afterwards.
func NewResolver() *Resolver {
	books := []*model.Book{
		{
			ID:     1,
			Title:  "The Awakening",
			Author: "Kate Chopin",
			Format: model.FormatAudiobook,
		},
		{
			ID:     2,
			Title:  "City of Glass",
			Author: "Paul Auster",
			Format: model.FormatHardcover,
		},
		{
			ID:     3,
			Title:  "The Eagle Has Landed",
			Author: "Jack Higgins",
			Format: model.FormatPaperback,
		},
	}

	return &Resolver{
		books: books,
	}
}

// copyBooks hands out copies so callers can't reach the shared records.
func copyBooks(books []*model.Book) []*model.Book {
	return lo.Map(books, func(book *model.Book, _ int) *model.Book {
		copied := *book
		return &copied
	})
}
