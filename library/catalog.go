package library

import (
	"path/filepath"
	"strings"
)

// BooksResource is the catalog file: title,author.
var BooksResource = Resource{Name: "books", Arity: 2}

// DefaultBooks seeds a freshly created catalog.
var DefaultBooks = []BookEntry{
	{Title: "Python Basics", Author: "John Smith"},
	{Title: "Data Science 101", Author: "Jane Doe"},
}

// Catalog is the ordered list of books. Titles need not be unique.
type Catalog struct {
	store RecordStore
}

func NewCatalog(store RecordStore) *Catalog { return &Catalog{store: store} }

// ListAll returns the books in insertion order.
func (c *Catalog) ListAll() ([]BookEntry, error) {
	rows, err := c.store.ReadAll(BooksResource)
	if err != nil {
		return nil, err
	}
	books := make([]BookEntry, 0, len(rows))
	for _, row := range rows {
		books = append(books, BookEntry{Title: row[0], Author: row[1]})
	}
	return books, nil
}

// Search returns books whose title contains keyword, ignoring case. The author
// is not searched. An empty keyword matches everything.
func (c *Catalog) Search(keyword string) ([]BookEntry, error) {
	books, err := c.ListAll()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(keyword)
	results := make([]BookEntry, 0, len(books))
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Title), needle) {
			results = append(results, b)
		}
	}
	return results, nil
}

// Contains reports whether some book's title equals title, ignoring case.
func (c *Catalog) Contains(title string) (bool, error) {
	books, err := c.ListAll()
	if err != nil {
		return false, err
	}
	for _, b := range books {
		if titleEqual(b.Title, title) {
			return true, nil
		}
	}
	return false, nil
}

// Add appends a book and rewrites the catalog. Duplicate titles are allowed.
func (c *Catalog) Add(title, author string) error {
	return c.AddAll([]BookEntry{{Title: title, Author: author}})
}

// AddAll appends books in order with a single rewrite.
func (c *Catalog) AddAll(books []BookEntry) error {
	current, err := c.ListAll()
	if err != nil {
		return err
	}
	current = append(current, books...)
	return c.store.OverwriteAll(BooksResource, bookRecords(current))
}

// Remove drops every book whose whole title equals title, ignoring case, and
// returns how many were dropped. The remaining books keep their order.
func (c *Catalog) Remove(title string) (int, error) {
	books, err := c.ListAll()
	if err != nil {
		return 0, err
	}
	kept := books[:0:0]
	for _, b := range books {
		if !titleEqual(b.Title, title) {
			kept = append(kept, b)
		}
	}
	if err := c.store.OverwriteAll(BooksResource, bookRecords(kept)); err != nil {
		return 0, err
	}
	return len(books) - len(kept), nil
}

// ReadBookList parses a standalone title,author file in catalog format.
func ReadBookList(path string) ([]BookEntry, error) {
	store := &FileStore{
		Dir:   filepath.Dir(path),
		Files: map[string]string{BooksResource.Name: filepath.Base(path)},
	}
	return NewCatalog(store).ListAll()
}

// Seed returns the initial catalog content.
func (c *Catalog) Seed() []Record { return bookRecords(DefaultBooks) }

func bookRecords(books []BookEntry) []Record {
	rows := make([]Record, 0, len(books))
	for _, b := range books {
		rows = append(rows, Record{b.Title, b.Author})
	}
	return rows
}

func titleEqual(a, b string) bool { return strings.ToLower(a) == strings.ToLower(b) }
