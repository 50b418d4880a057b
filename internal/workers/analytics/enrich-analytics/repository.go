package enrichanalytics

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"banking-command-workers/internal/derivation/filters"
	"banking-command-workers/internal/models"
)

// Repository loads the aggregates behind one analytics command.
type Repository interface {
	Load(ctx context.Context, userID string, filterMap models.FilterMap) (*Aggregates, error)
}

type PostgresRepository struct {
	db       *sql.DB
	rowLimit int
}

func NewPostgresRepository(db *sql.DB, rowLimit int) *PostgresRepository {
	if rowLimit <= 0 {
		rowLimit = 500
	}
	return &PostgresRepository{db: db, rowLimit: rowLimit}
}

// equality filters in the order their placeholders are assigned
var columnFilters = []struct {
	key    string
	column string
}{
	{filters.KeyCategory, "category"},
	{filters.KeyTransactionType, "transaction_type"},
	{filters.KeyAccountID, "account_id"},
	{filters.KeyAccountType, "account_type"},
	{filters.KeyCardID, "card_id"},
	{filters.KeyCardType, "card_type"},
	{filters.KeyMerchant, "merchant"},
}

var rangeFilters = []struct {
	key  string
	expr string
}{
	{filters.KeyMinAmount, "amount >= $%d"},
	{filters.KeyMaxAmount, "amount <= $%d"},
	{filters.KeyStartDate, "transaction_date >= $%d"},
	{filters.KeyEndDate, "transaction_date < ($%d::date + 1)"},
}

// distributionColumns maps a distribution type to the SQL expression it
// groups by. Unlisted types group by category.
var distributionColumns = map[string]string{
	"category":         "category",
	"transaction_type": "transaction_type",
	"payment_method":   "transaction_type",
	"merchant":         "merchant",
	"location":         "location",
	"month":            "to_char(transaction_date, 'YYYY-MM')",
	"day_of_week":      "trim(to_char(transaction_date, 'Day'))",
	"time_of_day": `CASE
		WHEN extract(hour FROM transaction_date) BETWEEN 5 AND 11 THEN 'morning'
		WHEN extract(hour FROM transaction_date) BETWEEN 12 AND 16 THEN 'afternoon'
		WHEN extract(hour FROM transaction_date) BETWEEN 17 AND 20 THEN 'evening'
		ELSE 'night' END`,
	"amount_range": `CASE
		WHEN amount <= 50 THEN '0-50'
		WHEN amount <= 100 THEN '51-100'
		WHEN amount <= 500 THEN '101-500'
		ELSE '500+' END`,
}

// whereClause always scopes to the user ($1) and adds one placeholder per
// scalar filter present.
func whereClause(userID string, filterMap models.FilterMap) (string, []interface{}) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}

	for _, f := range columnFilters {
		v, ok := scalar(filterMap[f.key])
		if !ok {
			continue
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}
	for _, f := range rangeFilters {
		v, ok := scalar(filterMap[f.key])
		if !ok {
			continue
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(f.expr, len(args)))
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func scalar(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, false
		}
		return t, true
	case int, int32, int64, float32, float64, bool:
		return t, true
	default:
		return nil, false
	}
}

func distributionExpr(filterMap models.FilterMap) string {
	if dt, ok := filterMap[filters.KeyDistributionType].(string); ok {
		if expr, ok := distributionColumns[dt]; ok {
			return expr
		}
	}
	return distributionColumns["category"]
}

func (r *PostgresRepository) Load(ctx context.Context, userID string, filterMap models.FilterMap) (*Aggregates, error) {
	where, args := whereClause(userID, filterMap)
	agg := &Aggregates{}

	trends, err := r.db.QueryContext(ctx, `
		SELECT to_char(date_trunc('month', transaction_date), 'YYYY-MM') AS month, COALESCE(SUM(amount), 0)
		FROM transactions `+where+`
		GROUP BY 1 ORDER BY 1`, args...)
	if err != nil {
		return nil, fmt.Errorf("monthly trends: %w", err)
	}
	for trends.Next() {
		var m MonthlyTotal
		if err := trends.Scan(&m.Month, &m.Total); err != nil {
			trends.Close()
			return nil, fmt.Errorf("monthly trends: %w", err)
		}
		agg.MonthlyTrends = append(agg.MonthlyTrends, m)
	}
	if err := closeRows(trends); err != nil {
		return nil, fmt.Errorf("monthly trends: %w", err)
	}

	if agg.Distribution, err = r.totalsBy(ctx, distributionExpr(filterMap), where, args); err != nil {
		return nil, fmt.Errorf("distribution: %w", err)
	}
	if agg.ByType, err = r.totalsBy(ctx, "transaction_type", where, args); err != nil {
		return nil, fmt.Errorf("totals by type: %w", err)
	}
	if agg.Rows, err = r.recentRows(ctx, where, args); err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	return agg, nil
}

func (r *PostgresRepository) totalsBy(ctx context.Context, expr, where string, args []interface{}) (map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(`+expr+`, 'uncategorized') AS bucket, COALESCE(SUM(amount), 0)
		FROM transactions `+where+`
		GROUP BY 1`, args...)
	if err != nil {
		return nil, err
	}

	out := map[string]float64{}
	for rows.Next() {
		var bucket string
		var total float64
		if err := rows.Scan(&bucket, &total); err != nil {
			rows.Close()
			return nil, err
		}
		out[bucket] = total
	}
	return out, closeRows(rows)
}

func (r *PostgresRepository) recentRows(ctx context.Context, where string, args []interface{}) ([]TransactionRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_date, COALESCE(description, ''), COALESCE(category, ''), transaction_type, amount
		FROM transactions `+where+`
		ORDER BY transaction_date DESC
		LIMIT `+strconv.Itoa(r.rowLimit), args...)
	if err != nil {
		return nil, err
	}

	var out []TransactionRow
	for rows.Next() {
		var row TransactionRow
		if err := rows.Scan(&row.Date, &row.Description, &row.Category, &row.Type, &row.Amount); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, row)
	}
	return out, closeRows(rows)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
