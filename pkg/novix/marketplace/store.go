package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	DefaultMaxResults = 10
	MaxResultsLimit   = 100
)

// Store persists marketplace listings
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema. Postgres URLs and key/value
// DSNs use the postgres driver; anything else is treated as a SQLite DSN.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, apperrors.New(apperrors.ErrCodeCatalog, "catalog DSN is required", nil)
	}

	db, err := gorm.Open(dialector(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCatalog, "failed to open catalog database", err)
	}

	return NewStore(db)
}

func dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// NewStore wraps an open database and migrates the schema
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Listing{}); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCatalog, "failed to migrate catalog schema", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create inserts listings in one transaction
func (s *Store) Create(ctx context.Context, listings ...*Listing) error {
	if len(listings) == 0 {
		return nil
	}
	for _, l := range listings {
		if err := l.Validate(); err != nil {
			return err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range listings {
			if err := tx.Create(l).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCatalog, "failed to create listings", err)
	}
	return nil
}

// Get returns the listing with id
func (s *Store) Get(ctx context.Context, id uint) (*Listing, error) {
	var l Listing
	if err := s.db.WithContext(ctx).First(&l, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeListingNotFound, fmt.Sprintf("Listing not found: %d", id), err)
		}
		return nil, apperrors.New(apperrors.ErrCodeCatalog, "failed to load listing", err)
	}
	return &l, nil
}

// Count returns the number of listings
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Listing{}).Count(&n).Error; err != nil {
		return 0, apperrors.New(apperrors.ErrCodeCatalog, "failed to count listings", err)
	}
	return n, nil
}

// Search runs a keyword and filter query and returns one page of results
func (s *Store) Search(ctx context.Context, q Query) (*SearchResult, error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}

	scope := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&Listing{})
		return applyFilters(applyKeywords(tx, q.Query), q.Filters)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCatalog, "failed to count search results", err)
	}

	var listings []Listing
	err = scope().Order(orderBy(q.Sort)).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: q.Sort.Order == OrderDesc}).
		Offset(q.Skip).
		Limit(q.MaxResults).
		Find(&listings).Error
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCatalog, "failed to search listings", err)
	}
	if listings == nil {
		listings = []Listing{}
	}

	return &SearchResult{
		Results:    listings,
		Count:      len(listings),
		TotalCount: total,
	}, nil
}

// keyword terms match any of the text columns
func applyKeywords(tx *gorm.DB, query string) *gorm.DB {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return tx
	}

	var (
		conds []string
		args  []interface{}
	)
	for _, term := range terms {
		pattern := "%" + escapeLike(term) + "%"
		for _, col := range []string{"name", "summary", "description", "topics"} {
			conds = append(conds, fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '\\'", col))
			args = append(args, pattern)
		}
	}
	return tx.Where("("+strings.Join(conds, " OR ")+")", args...)
}

func applyFilters(tx *gorm.DB, f Filters) *gorm.DB {
	tx = applyRange(tx, "price", f.Price)
	tx = applyRange(tx, "credits", f.Credits)

	if len(f.Topics) > 0 {
		conds := make([]string, 0, len(f.Topics))
		args := make([]interface{}, 0, len(f.Topics))
		for _, topic := range f.Topics {
			conds = append(conds, "topics LIKE ? ESCAPE '\\'")
			args = append(args, `%"`+escapeLike(topic)+`"%`)
		}
		tx = tx.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	if f.AgentType != "" {
		tx = tx.Where("agent_type = ?", f.AgentType)
	}
	if f.PricingModel != "" {
		tx = tx.Where("pricing_model = ?", f.PricingModel)
	}
	if f.Owner != "" {
		tx = tx.Where("owner = ?", f.Owner)
	}
	return tx
}

func applyRange(tx *gorm.DB, column string, r *Range) *gorm.DB {
	if r == nil {
		return tx
	}
	if r.Min != nil {
		tx = tx.Where(clause.Gte{Column: clause.Column{Name: column}, Value: *r.Min})
	}
	if r.Max != nil {
		tx = tx.Where(clause.Lte{Column: clause.Column{Name: column}, Value: *r.Max})
	}
	return tx
}

// score has no ranking model behind it and orders by recency
func orderBy(s Sort) clause.OrderByColumn {
	column := "created_at"
	switch s.Field {
	case SortPrice:
		column = "price"
	case SortCredits:
		column = "credits"
	}
	return clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: s.Order == OrderDesc}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
