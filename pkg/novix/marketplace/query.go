package marketplace

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
)

// Validate checks the fields required to publish a listing
func (l *Listing) Validate() error {
	var result *multierror.Error
	if l.Name == "" {
		result = multierror.Append(result, fmt.Errorf("name is required"))
	}
	if l.Summary == "" {
		result = multierror.Append(result, fmt.Errorf("summary is required"))
	}
	if l.Description == "" {
		result = multierror.Append(result, fmt.Errorf("description is required"))
	}
	if l.Price < 0 {
		result = multierror.Append(result, fmt.Errorf("price must be non-negative"))
	}
	if l.Credits < 0 {
		result = multierror.Append(result, fmt.Errorf("credits must be non-negative"))
	}
	if l.AgentType != "" && l.AgentType != AgentTypeCustom && l.AgentType != AgentTypeEliza {
		result = multierror.Append(result, fmt.Errorf("agentType must be %q or %q", AgentTypeCustom, AgentTypeEliza))
	}
	if err := result.ErrorOrNil(); err != nil {
		return apperrors.New(apperrors.ErrCodeInvalidInput, fmt.Sprintf("invalid listing %q", l.Name), err)
	}
	return nil
}

// normalize applies defaults and rejects inconsistent queries
func (q Query) normalize() (Query, error) {
	var result *multierror.Error

	if q.MaxResults == 0 {
		q.MaxResults = DefaultMaxResults
	}
	if q.MaxResults < 1 {
		result = multierror.Append(result, fmt.Errorf("maxResults must be at least 1"))
	}
	if q.MaxResults > MaxResultsLimit {
		q.MaxResults = MaxResultsLimit
	}
	if q.Skip < 0 {
		result = multierror.Append(result, fmt.Errorf("skip must be non-negative"))
	}

	if err := checkRange("price", q.Filters.Price); err != nil {
		result = multierror.Append(result, err)
	}
	if err := checkRange("credits", q.Filters.Credits); err != nil {
		result = multierror.Append(result, err)
	}
	if t := q.Filters.AgentType; t != "" && t != AgentTypeCustom && t != AgentTypeEliza {
		result = multierror.Append(result, fmt.Errorf("agentType must be %q or %q", AgentTypeCustom, AgentTypeEliza))
	}

	switch q.Sort.Field {
	case "":
		q.Sort.Field = SortScore
	case SortScore, SortPrice, SortCredits:
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported sort field %q", q.Sort.Field))
	}
	switch q.Sort.Order {
	case "":
		q.Sort.Order = OrderDesc
	case OrderAsc, OrderDesc:
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported sort order %q", q.Sort.Order))
	}

	if err := result.ErrorOrNil(); err != nil {
		return q, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid search query", err)
	}
	return q, nil
}

func checkRange(name string, r *Range) error {
	if r == nil {
		return nil
	}
	if r.Min != nil && *r.Min < 0 {
		return fmt.Errorf("minimum %s must be non-negative", name)
	}
	if r.Max != nil && *r.Max < 0 {
		return fmt.Errorf("maximum %s must be non-negative", name)
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Errorf("minimum %s must not exceed maximum %s", name, name)
	}
	return nil
}
