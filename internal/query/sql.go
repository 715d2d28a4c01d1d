// ABOUTME: Renders plans as parameterized SQL for the embedded analytical database.
// ABOUTME: User values are always bound; only allowlisted identifiers are inlined.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/healthx/internal/models"
)

// SQL renders the plan as a statement with positional ? parameters.
func (p *Plan) SQL() (string, []any, error) {
	var b sqlBuilder
	switch p.Op {
	case OpSearch, OpValueSearch:
		b.selectColumns("", p.Columns)
		b.from(p.Table, "")
		b.where("", p.Filters)
		b.newestFirst("", p.Table)
		b.write(` LIMIT ?`)
		b.args = append(b.args, p.Limit)

	case OpWorkoutStats:
		b.selectColumns("s", p.Columns)
		b.from(p.Table, "s")
		b.write(fmt.Sprintf(` JOIN %s w ON s."workoutId" = w."workoutId"`, p.Join))
		b.where("w", p.Filters)
		b.newestFirst("s", p.Table)
		b.write(` LIMIT ?`)
		b.args = append(b.args, p.Limit)

	case OpStatistics:
		b.write(fmt.Sprintf(`SELECT "type", %s AS "unit", `, quote(models.UnitColumn(p.Table))))
		b.aggregates(models.NumericColumn(p.Table))
		b.from(p.Table, "")
		b.where("", p.Filters)
		b.write(` GROUP BY 1, 2 ORDER BY 1, 2`)

	case OpTrend:
		if _, err := models.ParseInterval(string(p.Interval)); err != nil {
			return "", nil, err
		}
		b.write(fmt.Sprintf(`SELECT "type", date_trunc('%s', "startDate") AS "bucket", `, p.Interval))
		b.aggregates(models.NumericColumn(p.Table))
		b.from(p.Table, "")
		b.where("", p.Filters)
		b.write(` GROUP BY 1, 2 ORDER BY 2, 1`)

	case OpSummary:
		if len(p.Parts) == 0 {
			return "", nil, fmt.Errorf("%w: summary plan has no tables", models.ErrInvalidParams)
		}
		for i, part := range p.Parts {
			if i > 0 {
				b.write(" UNION ALL ")
			}
			b.write(fmt.Sprintf(`SELECT '%s' AS "table", "type", COUNT(*) AS "count"`, part.Table))
			b.from(part.Table, "")
			b.where("", part.Filters)
			b.write(` GROUP BY "type"`)
		}
		b.write(` ORDER BY "table", "count" DESC, "type"`)

	default:
		return "", nil, fmt.Errorf("%w: unknown operation %q", models.ErrInvalidParams, p.Op)
	}
	return b.sb.String(), b.args, nil
}

type sqlBuilder struct {
	sb   strings.Builder
	args []any
}

func (b *sqlBuilder) write(s string) { b.sb.WriteString(s) }

func (b *sqlBuilder) selectColumns(alias string, cols []string) {
	b.write("SELECT ")
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.write(qualified(alias, c))
	}
}

func (b *sqlBuilder) aggregates(col string) {
	c := quote(col)
	b.write(fmt.Sprintf(`COUNT(*) AS "count", AVG(%[1]s) AS "average", SUM(%[1]s) AS "sum", MIN(%[1]s) AS "min", MAX(%[1]s) AS "max"`, c))
}

func (b *sqlBuilder) newestFirst(alias string, t models.Table) {
	b.write(" ORDER BY " + qualified(alias, "startDate") + " DESC")
	for _, c := range tieBreakers[t] {
		b.write(", " + qualified(alias, c))
	}
}

func (b *sqlBuilder) from(t models.Table, alias string) {
	b.write(" FROM " + string(t))
	if alias != "" {
		b.write(" " + alias)
	}
}

func (b *sqlBuilder) where(alias string, preds []Predicate) {
	for i, pr := range preds {
		if i == 0 {
			b.write(" WHERE ")
		} else {
			b.write(" AND ")
		}
		col := qualified(alias, pr.Column)
		switch v := pr.Value.(type) {
		case time.Time:
			b.write(fmt.Sprintf("%s %s CAST(? AS TIMESTAMP)", col, pr.Cmp))
			b.args = append(b.args, timeLiteral(v))
		default:
			b.write(fmt.Sprintf("%s %s ?", col, pr.Cmp))
			b.args = append(b.args, v)
		}
	}
}

// quote double-quotes an identifier. Column names come from the fixed table layouts.
func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func qualified(alias, col string) string {
	if alias == "" {
		return quote(col)
	}
	return alias + "." + quote(col)
}
