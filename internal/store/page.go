package store

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageRequest selects a 1-based page of results.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the request to sane bounds.
func (r PageRequest) Normalize() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 {
		r.Limit = DefaultPageLimit
	}
	if r.Limit > MaxPageLimit {
		r.Limit = MaxPageLimit
	}
	return r
}

// Offset is the number of rows to skip.
func (r PageRequest) Offset() int {
	n := r.Normalize()
	return (n.Page - 1) * n.Limit
}

// Page is one page of results sorted newest first.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasNext bool `json:"isNext"`
	HasPrev bool `json:"isPrev"`
}

// NewPage builds page metadata from the total match count.
func NewPage[T any](items []T, total int, req PageRequest) *Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:   items,
		Total:   total,
		Page:    req.Page,
		Limit:   req.Limit,
		HasNext: total > req.Page*req.Limit,
		HasPrev: req.Page > 1,
	}
}
