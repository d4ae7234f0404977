package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/vendwatch/vendwatch/internal/reporting/bucket"
	reportingdomain "github.com/vendwatch/vendwatch/internal/reporting/domain"
	"github.com/vendwatch/vendwatch/internal/reporting/filter"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
)

const dateOnlyLayout = "2006-01-02"

func parseSnowflakeID(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid_id")
	}
	return parsed, nil
}

func parseOptionalInt64(value string) (*int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 0, time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}

func parseIDList(values []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := parseSnowflakeID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// idFilterParams are the query parameters that compile to IN predicates.
var idFilterParams = []string{"geography_id", "machine_id", "product_id", "category_id"}

// stringFilterParams compile to equality predicates.
var stringFilterParams = []string{"source_system_id", "source_system_name", "device_number", "type"}

// bindFilterInput assembles the report filter from query parameters. The
// filter compiler validates field names per report family, so a parameter a
// family does not support comes back as a field error, not a silent no-op.
func bindFilterInput(c *gin.Context) (filter.Input, error) {
	var in filter.Input

	dateFrom, err := parseOptionalTime(c.Query("date_from"), false)
	if err != nil {
		return in, newValidationError("date_from", "invalid_date_from", "invalid date_from")
	}
	dateTo, err := parseOptionalTime(c.Query("date_to"), true)
	if err != nil {
		return in, newValidationError("date_to", "invalid_date_to", "invalid date_to")
	}
	in.DateFrom = dateFrom
	in.DateTo = dateTo
	in.Search = strings.TrimSpace(c.Query("search"))
	in.Sort = splitSortParams(c.QueryArray("sort"))

	for _, field := range idFilterParams {
		ids, err := parseIDList(c.QueryArray(field))
		if err != nil {
			return in, newValidationError(field, "invalid_"+field, "invalid "+field)
		}
		if len(ids) == 0 {
			continue
		}
		in.Predicates = append(in.Predicates, filter.Predicate{
			Field: field,
			Op:    filter.OpIn,
			Value: ids,
		})
	}

	for _, field := range stringFilterParams {
		value := strings.TrimSpace(c.Query(field))
		if value == "" {
			continue
		}
		in.Predicates = append(in.Predicates, filter.Predicate{
			Field: field,
			Op:    filter.OpEq,
			Value: value,
		})
	}

	return in, nil
}

func splitSortParams(values []string) []string {
	var sort []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				sort = append(sort, part)
			}
		}
	}
	return sort
}

func bindRangeRequest(c *gin.Context) (reportingdomain.RangeRequest, error) {
	frame, err := bucket.ParseTimeFrame(c.DefaultQuery("time_frame", string(bucket.Day)))
	if err != nil {
		return reportingdomain.RangeRequest{}, err
	}
	in, err := bindFilterInput(c)
	if err != nil {
		return reportingdomain.RangeRequest{}, err
	}
	return reportingdomain.RangeRequest{TimeFrame: frame, Filter: in}, nil
}

func bindFilterRequest(c *gin.Context) (reportingdomain.FilterRequest, error) {
	in, err := bindFilterInput(c)
	if err != nil {
		return reportingdomain.FilterRequest{}, err
	}
	return reportingdomain.FilterRequest{Filter: in}, nil
}

func bindPagination(c *gin.Context) (pagination.Pagination, error) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		return pagination.Pagination{}, invalidRequestError()
	}
	return p.Normalize(), nil
}
