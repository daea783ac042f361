package app

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RentMonth struct {
	Period  string          `json:"period"`
	Due     decimal.Decimal `json:"due"`
	Paid    decimal.Decimal `json:"paid"`
	Balance decimal.Decimal `json:"balance"`
}

type RentSummary struct {
	Year        int             `json:"year"`
	MonthlyRent decimal.Decimal `json:"monthly_rent"`
	Due         decimal.Decimal `json:"due"`
	Paid        decimal.Decimal `json:"paid"`
	Balance     decimal.Decimal `json:"balance"`
	Months      []RentMonth     `json:"months"`
}

// monthsElapsed counts the months of year that have started by now.
func monthsElapsed(year int, now time.Time) int {
	switch {
	case year < now.Year():
		return 12
	case year > now.Year():
		return 0
	default:
		return int(now.Month())
	}
}

// computeRentSummary charges monthlyRent for every started month of year and
// matches payments to months by period. A positive balance is still owed.
func computeRentSummary(year int, monthlyRent decimal.Decimal, payments []RentPayment, now time.Time) RentSummary {
	paid := map[string]decimal.Decimal{}
	for _, p := range payments {
		paid[p.Period] = paid[p.Period].Add(p.Amount)
	}
	elapsed := monthsElapsed(year, now)
	s := RentSummary{Year: year, MonthlyRent: monthlyRent}
	for m := 1; m <= 12; m++ {
		period := fmt.Sprintf("%04d-%02d", year, m)
		month := RentMonth{Period: period, Due: decimal.Zero, Paid: paid[period]}
		if m <= elapsed {
			month.Due = monthlyRent
		}
		month.Balance = month.Due.Sub(month.Paid)
		s.Months = append(s.Months, month)
	}
	s.Due = sumField(s.Months, func(m RentMonth) decimal.Decimal { return m.Due })
	s.Paid = sumField(s.Months, func(m RentMonth) decimal.Decimal { return m.Paid })
	s.Balance = s.Due.Sub(s.Paid)
	return s
}

func sumField(months []RentMonth, field func(RentMonth) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, m := range months {
		total = total.Add(field(m))
	}
	return total
}

func (a *App) yearParam(c *gin.Context) (int, bool) {
	s := c.Query("year")
	if s == "" {
		return a.Now().Year(), true
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 2000 || year > 9999 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return 0, false
	}
	return year, true
}

// GET /api/rent/payments?year=YYYY
func (a *App) ListRentPaymentsHandler(c *gin.Context) {
	year, ok := a.yearParam(c)
	if !ok {
		return
	}
	list, err := a.Store.ListRentPayments(c.Request.Context(), year)
	if err != nil {
		a.fail(c, err)
		return
	}
	if list == nil {
		list = []RentPayment{}
	}
	c.JSON(http.StatusOK, list)
}

type rentPaymentReq struct {
	Period string          `json:"period" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
	Note   string          `json:"note"`
	PaidAt *time.Time      `json:"paid_at"`
}

// POST /api/rent/payments
func (a *App) CreateRentPaymentHandler(c *gin.Context) {
	var req rentPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	period := strings.TrimSpace(req.Period)
	if _, err := time.Parse("2006-01", period); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must be YYYY-MM"})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	now := a.Now()
	p := RentPayment{
		ID:        uuid.NewString(),
		Period:    period,
		Amount:    req.Amount,
		Method:    req.Method,
		Note:      req.Note,
		PaidAt:    now,
		CreatedAt: now,
	}
	if req.PaidAt != nil {
		p.PaidAt = *req.PaidAt
	}
	if err := a.Store.CreateRentPayment(c.Request.Context(), &p); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// DELETE /api/rent/payments/:id
func (a *App) DeleteRentPaymentHandler(c *gin.Context) {
	if err := a.Store.DeleteRentPayment(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/rent/summary?year=YYYY
func (a *App) RentSummaryHandler(c *gin.Context) {
	year, ok := a.yearParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	settings, err := a.Store.GetSettings(ctx)
	if err != nil {
		a.fail(c, err)
		return
	}
	payments, err := a.Store.ListRentPayments(ctx, year)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, computeRentSummary(year, settings.MonthlyRent, payments, a.Now()))
}
