package pagination

// Pagination selects one page of a listing. Page is 1-based.
type Pagination struct {
	Page  int `form:"page,default=1" validate:"gte=1"`
	Limit int `form:"limit" validate:"gte=0"`
}

// Offset is the number of rows skipped before the page starts.
func (p Pagination) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Normalize applies the default limit and caps it at max.
func (p Pagination) Normalize(defaultLimit, max int) Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if max > 0 && p.Limit > max {
		p.Limit = max
	}
	return p
}

type Metadata struct {
	Count      int   `json:"count"`
	Page       int   `json:"page"`
	TotalCount int64 `json:"total_count"`
	TotalPage  int   `json:"total_page"`
}

// NewMetadata describes a served page of count items out of totalCount.
func NewMetadata(p Pagination, count int, totalCount int64) Metadata {
	totalPage := 0
	if p.Limit > 0 {
		totalPage = int((totalCount + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Metadata{
		Count:      count,
		Page:       p.Page,
		TotalCount: totalCount,
		TotalPage:  totalPage,
	}
}

// Window returns the [start, end) bounds of the page inside a list of n items.
// A page past the end yields an empty window.
func Window(p Pagination, n int) (int, int) {
	start := p.Offset()
	if start >= n {
		return n, n
	}
	end := n
	if p.Limit > 0 && start+p.Limit < n {
		end = start + p.Limit
	}
	return start, end
}
