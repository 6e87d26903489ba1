package utils

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination ?page=&limit=，page 从 1 开始
type Pagination struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// PageResult 分页响应
type PageResult struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// GetPageOffset 补齐默认值并返回 offset, limit，limit 上限 100
func (p *Pagination) GetPageOffset() (int, int) {
	if p.Page <= 0 {
		p.Page = 1
	}
	switch {
	case p.Limit <= 0:
		p.Limit = defaultPageSize
	case p.Limit > maxPageSize:
		p.Limit = maxPageSize
	}
	return (p.Page - 1) * p.Limit, p.Limit
}

// Result 需先调用 GetPageOffset
func (p *Pagination) Result(list interface{}, total int64) PageResult {
	return PageResult{List: list, Total: total, Page: p.Page, Limit: p.Limit}
}
