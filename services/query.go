package services

import (
	"context"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cmarket/permalink/models"
)

// Sort keys accepted by the admin listing. Each maps 1:1 to a stored column.
const (
	SortByPerformance = "performance"
	SortByViews       = "views"
	SortByClicks      = "clicks"
	SortByRotations   = "rotations"
)

// LinkQuery is the admin tooling projection: status/date/search filters plus
// sorting and pagination.
type LinkQuery struct {
	Status       string // all | active | available
	Search       string // substring over slot path and product title
	SortBy       string
	SortDir      string // asc | desc
	Page         int
	PerPage      int
	AssignedFrom *time.Time
	AssignedTo   *time.Time
}

// LinkPage is one page of results. An empty page is a valid answer, not an
// error, however the filters combine.
type LinkPage struct {
	Links       []models.PermanentLink `json:"links"`
	TotalCount  int64                  `json:"total_count"`
	CurrentPage int                    `json:"current_page"`
	TotalPages  int                    `json:"total_pages"`
	PerPage     int                    `json:"per_page"`
}

// NormalizeLinkQuery fills defaults and discards values outside the accepted
// vocabulary, falling back rather than failing.
func NormalizeLinkQuery(q LinkQuery) LinkQuery {
	switch q.Status {
	case models.LinkStatusActive, models.LinkStatusAvailable:
	default:
		q.Status = "all"
	}
	if sortColumn(q.SortBy) == "" {
		q.SortBy = SortByPerformance
	}
	if q.SortDir != "asc" {
		q.SortDir = "desc"
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 20
	}
	if q.PerPage > 100 {
		q.PerPage = 100
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

func sortColumn(sortBy string) string {
	switch sortBy {
	case SortByPerformance:
		return "performance_score"
	case SortByViews:
		return "views_count"
	case SortByClicks:
		return "whatsapp_clicks"
	case SortByRotations:
		return "rotation_count"
	}
	return ""
}

// QueryService is the pure read path behind the admin links screens.
type QueryService struct {
	db *gorm.DB
}

// NewQueryService wraps a gorm DB handle.
func NewQueryService(db *gorm.DB) *QueryService {
	return &QueryService{db: db}
}

// ListLinks applies the normalized filters and returns one page of slots with
// their product summaries.
func (s *QueryService) ListLinks(ctx context.Context, q LinkQuery) (*LinkPage, error) {
	q = NormalizeLinkQuery(q)

	query := s.db.WithContext(ctx).Model(&models.PermanentLink{}).Preload("Product")

	if q.Status != "all" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where(
			"path LIKE ? OR product_id IN (SELECT id FROM products WHERE title LIKE ?)",
			like, like,
		)
	}
	if q.AssignedFrom != nil {
		query = query.Where("last_assigned >= ?", *q.AssignedFrom)
	}
	if q.AssignedTo != nil {
		query = query.Where("last_assigned <= ?", *q.AssignedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var links []models.PermanentLink
	offset := (q.Page - 1) * q.PerPage
	err := query.
		Order(sortColumn(q.SortBy) + " " + strings.ToUpper(q.SortDir)).
		Order("slot_number ASC").
		Offset(offset).
		Limit(q.PerPage).
		Find(&links).Error
	if err != nil {
		return nil, err
	}

	return &LinkPage{
		Links:       links,
		TotalCount:  total,
		CurrentPage: q.Page,
		TotalPages:  int(math.Ceil(float64(total) / float64(q.PerPage))),
		PerPage:     q.PerPage,
	}, nil
}
