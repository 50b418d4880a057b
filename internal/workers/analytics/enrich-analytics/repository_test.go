package enrichanalytics

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"banking-command-workers/internal/derivation/filters"
	"banking-command-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhereClause(t *testing.T) {
	tests := []struct {
		name      string
		filters   models.FilterMap
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:      "user only",
			filters:   nil,
			wantWhere: "WHERE user_id = $1",
			wantArgs:  []interface{}{"u-1"},
		},
		{
			name: "equality before ranges",
			filters: models.FilterMap{
				filters.KeyEndDate:   "2024-03-31",
				filters.KeyCategory:  "groceries",
				filters.KeyStartDate: "2024-01-01",
				filters.KeyMinAmount: 10.0,
			},
			wantWhere: "WHERE user_id = $1 AND category = $2 AND amount >= $3 AND transaction_date >= $4 AND transaction_date < ($5::date + 1)",
			wantArgs:  []interface{}{"u-1", "groceries", 10.0, "2024-01-01", "2024-03-31"},
		},
		{
			name: "non scalar and blank values skipped",
			filters: models.FilterMap{
				filters.KeyMerchant:           "  ",
				filters.KeyAmountRangeBuckets: []interface{}{"0-50"},
				filters.KeyCardType:           "credit",
			},
			wantWhere: "WHERE user_id = $1 AND card_type = $2",
			wantArgs:  []interface{}{"u-1", "credit"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := whereClause("u-1", tt.filters)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestDistributionExpr(t *testing.T) {
	assert.Equal(t, "category", distributionExpr(nil))
	assert.Equal(t, "merchant", distributionExpr(models.FilterMap{filters.KeyDistributionType: "merchant"}))
	assert.Equal(t, "category", distributionExpr(models.FilterMap{filters.KeyDistributionType: "zodiac"}))
	assert.Contains(t, distributionExpr(models.FilterMap{filters.KeyDistributionType: "time_of_day"}), "'morning'")
}

func TestPostgresRepository_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepository(db, 25)
	filterMap := models.FilterMap{
		filters.KeyStartDate: "2024-01-01",
		filters.KeyEndDate:   "2024-03-31",
	}
	where := regexp.QuoteMeta("FROM transactions WHERE user_id = $1 AND transaction_date >= $2 AND transaction_date < ($3::date + 1)")

	mock.ExpectQuery("SELECT to_char\\(date_trunc\\('month'.*" + where + " GROUP BY 1 ORDER BY 1").
		WithArgs("u-1", "2024-01-01", "2024-03-31").
		WillReturnRows(sqlmock.NewRows([]string{"month", "total"}).
			AddRow("2024-01", 120.5).
			AddRow("2024-02", 80.0))
	mock.ExpectQuery("SELECT COALESCE\\(category, 'uncategorized'\\).*" + where).
		WithArgs("u-1", "2024-01-01", "2024-03-31").
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "total"}).
			AddRow("groceries", 150.5).
			AddRow("uncategorized", 50.0))
	mock.ExpectQuery("SELECT COALESCE\\(transaction_type, 'uncategorized'\\).*" + where).
		WithArgs("u-1", "2024-01-01", "2024-03-31").
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "total"}).
			AddRow("debit", 200.5))
	mock.ExpectQuery("SELECT transaction_date.*" + where + " ORDER BY transaction_date DESC LIMIT 25").
		WithArgs("u-1", "2024-01-01", "2024-03-31").
		WillReturnRows(sqlmock.NewRows([]string{"transaction_date", "description", "category", "transaction_type", "amount"}).
			AddRow(time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC), "Market", "groceries", "debit", 42.0))

	agg, err := repo.Load(context.Background(), "u-1", filterMap)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []MonthlyTotal{{"2024-01", 120.5}, {"2024-02", 80.0}}, agg.MonthlyTrends)
	assert.Equal(t, map[string]float64{"groceries": 150.5, "uncategorized": 50.0}, agg.Distribution)
	assert.Equal(t, map[string]float64{"debit": 200.5}, agg.ByType)
	require.Len(t, agg.Rows, 1)
	assert.Equal(t, "Market", agg.Rows[0].Description)

	payload := agg.Payload()
	rows := payload["data"].([]interface{})
	assert.Equal(t, "2024-02-10", rows[0].(map[string]interface{})["date"])
	trends := payload["monthlyTrends"].([]interface{})
	assert.Equal(t, map[string]interface{}{"x": "2024-01", "y": 120.5}, trends[0])
}

func TestPostgresRepository_LoadPropagatesErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT to_char").
		WillReturnRows(sqlmock.NewRows([]string{"month", "total"}))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnError(errors.New("relation \"transactions\" does not exist"))

	_, err = NewPostgresRepository(db, 0).Load(context.Background(), "u-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distribution")
	assert.Contains(t, err.Error(), "does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}
