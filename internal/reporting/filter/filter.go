// Package filter compiles declarative report filters into query predicates.
// Construction is two-phase: raw input is validated and normalized by
// Compile, which returns an immutable Compiled value; nothing mutates the
// caller's input after that point.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/internal/reporting/bucket"
	"github.com/vendwatch/vendwatch/internal/reporting/query"
	"gorm.io/gorm"
)

var (
	ErrInvalidDateRange   = errors.New("invalid_date_range")
	ErrUnknownFilterField = errors.New("unknown_filter_field")
	ErrInvalidFilterValue = errors.New("invalid_filter_value")
	ErrSortNotAllowed     = errors.New("sort_not_allowed")
	ErrSortListConflict   = errors.New("sort_list_conflict")
)

// Op is a predicate operator.
type Op string

const (
	OpEq    Op = "eq"
	OpIn    Op = "in"
	OpILike Op = "ilike"
	OpGte   Op = "gte"
	OpLte   Op = "lte"
)

// GeographyField is the logical field name the scope resolver consumes
// before compilation. See ExtractGeography.
const GeographyField = "geography_id"

// Predicate is one typed condition against a logical field.
type Predicate struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// Join names a related table plus the clause that reaches it. Joins are
// deduplicated by name across the whole composed query.
type Join struct {
	Name   string
	Clause string
}

// Field declares how a logical filter field maps onto the schema.
type Field struct {
	// Column is the qualified physical column.
	Column string
	// CaseInsensitive rewrites equality input to a case-insensitive
	// partial match; the caller keeps passing equality-looking values.
	CaseInsensitive bool
	// Join, when set, is required for predicates on this field.
	Join *Join
}

// Spec declares the filterable surface of one report family.
type Spec struct {
	// DateColumn backs the date_from/date_to pair.
	DateColumn string
	// DateGrained marks DateColumn as a bare date column. The lower bound
	// is then compared from the start of its day, so an intraday
	// date_from cannot exclude facts stored at midnight. Sub-day
	// precision is restored by the bucket merge.
	DateGrained bool
	// Fields maps logical names to physical columns.
	Fields map[string]Field
	// SearchColumns fan the free-text search out as an OR of
	// case-insensitive partial matches.
	SearchColumns []string
	// SortAllow and SortDeny are mutually exclusive; configuring both is
	// an error surfaced by Compile.
	SortAllow []string
	SortDeny  []string
}

// Input is the raw, caller-supplied filter.
type Input struct {
	DateFrom   *time.Time  `json:"date_from,omitempty"`
	DateTo     *time.Time  `json:"date_to,omitempty"`
	Search     string      `json:"search,omitempty"`
	Predicates []Predicate `json:"predicates,omitempty"`
	// Sort fields, "-" prefix for descending.
	Sort []string `json:"sort,omitempty"`
}

type cond struct {
	sql  string
	args []any
}

type orderTerm struct {
	column string
	desc   bool
}

// Compiled is the validated, normalized form of an Input against a Spec.
type Compiled struct {
	dateColumn  string
	dateGrained bool
	from, to    time.Time
	hasFrom     bool
	hasTo       bool
	conds       []cond
	joins       []Join
	order       []orderTerm
}

// Compile validates and normalizes in against the Spec.
//
// A missing date_from is left unbounded. A date_to carrying no time of day
// is pushed to 23:59:59 of that date so "date_to = today" includes all of
// today. date_from after date_to is rejected here, before any query runs.
func (s Spec) Compile(in Input) (Compiled, error) {
	if len(s.SortAllow) > 0 && len(s.SortDeny) > 0 {
		return Compiled{}, ErrSortListConflict
	}

	c := Compiled{dateColumn: s.DateColumn, dateGrained: s.DateGrained}

	if in.DateFrom != nil {
		c.from = in.DateFrom.UTC()
		c.hasFrom = true
	}
	if in.DateTo != nil {
		c.to = normalizeEndOfDay(in.DateTo.UTC())
		c.hasTo = true
	}
	if c.hasFrom && c.hasTo && c.from.After(c.to) {
		return Compiled{}, ErrInvalidDateRange
	}

	if search := strings.TrimSpace(in.Search); search != "" && len(s.SearchColumns) > 0 {
		parts := make([]string, 0, len(s.SearchColumns))
		args := make([]any, 0, len(s.SearchColumns))
		for _, col := range s.SearchColumns {
			parts = append(parts, fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", col))
			args = append(args, "%"+search+"%")
		}
		c.conds = append(c.conds, cond{sql: strings.Join(parts, " OR "), args: args})
	}

	for _, p := range in.Predicates {
		field, ok := s.Fields[p.Field]
		if !ok {
			return Compiled{}, fmt.Errorf("%w: %s", ErrUnknownFilterField, p.Field)
		}
		built, err := buildCond(field, p)
		if err != nil {
			return Compiled{}, err
		}
		c.conds = append(c.conds, built)
		if field.Join != nil {
			c.addJoin(*field.Join)
		}
	}

	for _, raw := range in.Sort {
		name := strings.TrimSpace(raw)
		desc := strings.HasPrefix(name, "-")
		name = strings.TrimPrefix(name, "-")
		if name == "" {
			continue
		}
		if err := s.checkSortable(name); err != nil {
			return Compiled{}, err
		}
		field, ok := s.Fields[name]
		if !ok {
			return Compiled{}, fmt.Errorf("%w: %s", ErrSortNotAllowed, name)
		}
		c.order = append(c.order, orderTerm{column: field.Column, desc: desc})
		if field.Join != nil {
			c.addJoin(*field.Join)
		}
	}

	return c, nil
}

func (s Spec) checkSortable(name string) error {
	if len(s.SortAllow) > 0 {
		for _, allowed := range s.SortAllow {
			if allowed == name {
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrSortNotAllowed, name)
	}
	for _, denied := range s.SortDeny {
		if denied == name {
			return fmt.Errorf("%w: %s", ErrSortNotAllowed, name)
		}
	}
	return nil
}

func buildCond(field Field, p Predicate) (cond, error) {
	switch p.Op {
	case OpEq:
		if field.CaseInsensitive {
			value, ok := p.Value.(string)
			if !ok {
				return cond{}, fmt.Errorf("%w: %s", ErrInvalidFilterValue, p.Field)
			}
			return cond{
				sql:  fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", field.Column),
				args: []any{"%" + value + "%"},
			}, nil
		}
		return cond{sql: field.Column + " = ?", args: []any{p.Value}}, nil
	case OpILike:
		value, ok := p.Value.(string)
		if !ok {
			return cond{}, fmt.Errorf("%w: %s", ErrInvalidFilterValue, p.Field)
		}
		return cond{
			sql:  fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", field.Column),
			args: []any{"%" + value + "%"},
		}, nil
	case OpIn:
		return cond{sql: field.Column + " IN ?", args: []any{p.Value}}, nil
	case OpGte:
		return cond{sql: field.Column + " >= ?", args: []any{p.Value}}, nil
	case OpLte:
		return cond{sql: field.Column + " <= ?", args: []any{p.Value}}, nil
	default:
		return cond{}, fmt.Errorf("%w: %s %s", ErrInvalidFilterValue, p.Field, p.Op)
	}
}

func (c *Compiled) addJoin(j Join) {
	for _, existing := range c.joins {
		if existing.Name == j.Name {
			return
		}
	}
	c.joins = append(c.joins, j)
}

// normalizeEndOfDay pushes a bare date to its final second.
func normalizeEndOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Second)
	}
	return t
}

// DateRange reports the normalized bounds. A false flag means that side is
// unbounded.
func (c Compiled) DateRange() (from time.Time, hasFrom bool, to time.Time, hasTo bool) {
	return c.from, c.hasFrom, c.to, c.hasTo
}

// Apply composes every predicate and required join onto st. Joins already
// present in st (the scope resolver adds some first) are not repeated.
func (c Compiled) Apply(st *query.State) {
	for _, j := range c.joins {
		st.Join(j.Name, j.Clause)
	}
	if c.hasFrom {
		from := c.from
		if c.dateGrained {
			from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		}
		st.Where(c.dateColumn+" >= ?", from)
	}
	if c.hasTo {
		st.Where(c.dateColumn+" <= ?", c.to)
	}
	for _, cd := range c.conds {
		st.Where(cd.sql, cd.args...)
	}
}

// ApplySort appends the validated ORDER BY terms.
func (c Compiled) ApplySort(db *gorm.DB) *gorm.DB {
	for _, term := range c.order {
		direction := " ASC"
		if term.desc {
			direction = " DESC"
		}
		db = db.Order(term.column + direction)
	}
	return db
}

// SortColumns returns the physical sort columns, reusable as GROUP BY
// dimensions for aggregating reports.
func (c Compiled) SortColumns() []string {
	cols := make([]string, 0, len(c.order))
	for _, term := range c.order {
		cols = append(cols, term.column)
	}
	return cols
}

// ExtractGeography pulls the geography predicate out of in and returns the
// remaining filter without it. The scope resolver applies the extracted ids
// itself, so leaving the predicate in place would apply it a second time
// through naive field filtering. A value that does not parse as an id is a
// validation error; dropping it would silently widen the query to every
// geography. The caller's input is not mutated.
func ExtractGeography(in Input) ([]snowflake.ID, Input, error) {
	var ids []snowflake.ID
	remaining := in
	remaining.Predicates = nil
	for _, p := range in.Predicates {
		if p.Field != GeographyField {
			remaining.Predicates = append(remaining.Predicates, p)
			continue
		}
		parsed, err := geographyIDs(p.Value)
		if err != nil {
			return nil, Input{}, err
		}
		ids = append(ids, parsed...)
	}
	return ids, remaining, nil
}

// geographyIDs also accepts float64, string and []any because stored
// schedule filters round-trip through JSON, where snowflake ids marshal as
// strings.
func geographyIDs(value any) ([]snowflake.ID, error) {
	switch v := value.(type) {
	case snowflake.ID:
		return []snowflake.ID{v}, nil
	case int64:
		return []snowflake.ID{snowflake.ID(v)}, nil
	case float64:
		return []snowflake.ID{snowflake.ID(int64(v))}, nil
	case string:
		parsed, err := snowflake.ParseString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFilterValue, GeographyField)
		}
		return []snowflake.ID{parsed}, nil
	case []snowflake.ID:
		return v, nil
	case []int64:
		ids := make([]snowflake.ID, 0, len(v))
		for _, id := range v {
			ids = append(ids, snowflake.ID(id))
		}
		return ids, nil
	case []string:
		ids := make([]snowflake.ID, 0, len(v))
		for _, raw := range v {
			parsed, err := geographyIDs(raw)
			if err != nil {
				return nil, err
			}
			ids = append(ids, parsed...)
		}
		return ids, nil
	case []any:
		var ids []snowflake.ID
		for _, item := range v {
			parsed, err := geographyIDs(item)
			if err != nil {
				return nil, err
			}
			ids = append(ids, parsed...)
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFilterValue, GeographyField)
	}
}

// ShiftToPreviousMonth derives a filter covering the calendar month before
// the input's range, preserving every other field. The returned value is a
// copy; the original input is untouched.
func ShiftToPreviousMonth(in Input) Input {
	anchor := time.Now().UTC()
	if in.DateFrom != nil {
		anchor = in.DateFrom.UTC()
	} else if in.DateTo != nil {
		anchor = in.DateTo.UTC()
	}

	from, to := bucket.PreviousCalendarMonth(anchor, anchor)

	shifted := in
	shifted.DateFrom = &from
	shifted.DateTo = &to
	shifted.Predicates = append([]Predicate(nil), in.Predicates...)
	shifted.Sort = append([]string(nil), in.Sort...)
	return shifted
}
