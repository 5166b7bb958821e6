package models_test

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/username/spendwise/backend/src/database"
	"github.com/username/spendwise/backend/src/models"
)

type ExpenseTestSuite struct {
	suite.Suite
	db     *sql.DB
	userID int64
}

func (s *ExpenseTestSuite) SetupTest() {
	db, err := database.OpenAndMigrate(":memory:")
	require.NoError(s.T(), err, "failed to open test database")
	s.db = db
	s.userID = createTestUser(s.T(), db, "alice@example.com")
}

func (s *ExpenseTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *ExpenseTestSuite) TestCreateWithNewCategory() {
	name := "Food"
	note := "lunch"
	expense, err := models.CreateExpense(s.db, s.userID, models.ExpenseInput{
		AmountCents:  1050,
		Date:         "2025-01-15",
		Note:         &note,
		CategoryName: &name,
	})
	s.Require().NoError(err)

	s.Equal("10.50", expense.Amount)
	s.Equal("2025-01-15", expense.Date)
	s.Require().NotNil(expense.Category)
	s.Equal("Food", expense.Category.Name)
	s.Require().NotNil(expense.Note)
	s.Equal("lunch", *expense.Note)

	// A second expense with the same category name reuses the category.
	second, err := models.CreateExpense(s.db, s.userID, models.ExpenseInput{
		AmountCents:  2000,
		Date:         "2025-01-16",
		CategoryName: &name,
	})
	s.Require().NoError(err)
	s.Equal(*expense.CategoryID, *second.CategoryID)

	count, err := models.CountCategories(s.db, s.userID)
	s.Require().NoError(err)
	s.EqualValues(1, count)
}

func (s *ExpenseTestSuite) TestCreateWithoutCategory() {
	expense, err := models.CreateExpense(s.db, s.userID, models.ExpenseInput{
		AmountCents: 500,
		Date:        "2025-02-01",
	})
	s.Require().NoError(err)
	s.Nil(expense.CategoryID)
	s.Nil(expense.Category)
}

func (s *ExpenseTestSuite) TestGetEnforcesOwnership() {
	expense, err := models.CreateExpense(s.db, s.userID, models.ExpenseInput{
		AmountCents: 500,
		Date:        "2025-02-01",
	})
	s.Require().NoError(err)

	otherUser := createTestUser(s.T(), s.db, "bob@example.com")
	_, err = models.GetExpense(s.db, otherUser, expense.ID)
	s.ErrorIs(err, models.ErrExpenseNotFound, "another user's expense must look missing")

	got, err := models.GetExpense(s.db, s.userID, expense.ID)
	s.Require().NoError(err)
	s.Equal(expense.ID, got.ID)
}

func (s *ExpenseTestSuite) TestPagination() {
	for i := 0; i < 15; i++ {
		_, err := models.CreateExpense(s.db, s.userID, models.ExpenseInput{
			AmountCents: int64(100 * (i + 1)),
			Date:        fmt.Sprintf("2025-01-%02d", i+1),
		})
		s.Require().NoError(err)
	}

	page1, err := models.ListExpensesPage(s.db, s.userID, 1, 10)
	s.Require().NoError(err)
	s.Len(page1.Data, 10)
	s.EqualValues(15, page1.Total)
	s.Equal(2, page1.LastPage)
	s.Require().NotNil(page1.NextPageURL)
	s.Nil(page1.PrevPageURL)

	page2, err := models.ListExpensesPage(s.db, s.userID, 2, 10)
	s.Require().NoError(err)
	s.Len(page2.Data, 5, "page 2 of 15 rows at size 10 has exactly 5 items")
	s.Nil(page2.NextPageURL)
	s.Require().NotNil(page2.PrevPageURL)

	// Newest date first across the page boundary.
	s.Equal("2025-01-15", page1.Data[0].Date)
	s.Equal("2025-01-05", page2.Data[0].Date)
	s.Equal("2025-01-01", page2.Data[4].Date)
}

func (s *ExpenseTestSuite) TestOrderingTiesBrokenByID() {
	first, err := models.CreateExpense(s.db, s.userID, models.ExpenseInput{
		AmountCents: 100, Date: "2025-03-01",
	})
	s.Require().NoError(err)
	second, err := models.CreateExpense(s.db, s.userID, models.ExpenseInput{
		AmountCents: 200, Date: "2025-03-01",
	})
	s.Require().NoError(err)

	page, err := models.ListExpensesPage(s.db, s.userID, 1, 10)
	s.Require().NoError(err)
	s.Require().Len(page.Data, 2)
	s.Equal(second.ID, page.Data[0].ID, "same date orders by id descending")
	s.Equal(first.ID, page.Data[1].ID)
}

func (s *ExpenseTestSuite) TestUpdateEnforcesOwnership() {
	expense, err := models.CreateExpense(s.db, s.userID, models.ExpenseInput{
		AmountCents: 100, Date: "2025-03-01",
	})
	s.Require().NoError(err)

	otherUser := createTestUser(s.T(), s.db, "bob@example.com")
	_, err = models.UpdateExpense(s.db, otherUser, expense.ID, models.ExpenseInput{
		AmountCents: 999, Date: "2025-03-02",
	})
	s.ErrorIs(err, models.ErrExpenseNotFound)

	name := "Bills"
	updated, err := models.UpdateExpense(s.db, s.userID, expense.ID, models.ExpenseInput{
		AmountCents:  999,
		Date:         "2025-03-02",
		CategoryName: &name,
	})
	s.Require().NoError(err)
	s.Equal("9.99", updated.Amount)
	s.Equal("2025-03-02", updated.Date)
	s.Require().NotNil(updated.Category)
	s.Equal("Bills", updated.Category.Name)
}

func (s *ExpenseTestSuite) TestDeleteEnforcesOwnership() {
	expense, err := models.CreateExpense(s.db, s.userID, models.ExpenseInput{
		AmountCents: 100, Date: "2025-03-01",
	})
	s.Require().NoError(err)

	otherUser := createTestUser(s.T(), s.db, "bob@example.com")
	s.ErrorIs(models.DeleteExpense(s.db, otherUser, expense.ID), models.ErrExpenseNotFound)

	s.Require().NoError(models.DeleteExpense(s.db, s.userID, expense.ID))
	s.ErrorIs(models.DeleteExpense(s.db, s.userID, expense.ID), models.ErrExpenseNotFound)
}

func (s *ExpenseTestSuite) TestListInRangeInclusive() {
	for _, d := range []string{"2024-12-31", "2025-01-01", "2025-01-31", "2025-02-01"} {
		_, err := models.CreateExpense(s.db, s.userID, models.ExpenseInput{
			AmountCents: 100, Date: d,
		})
		s.Require().NoError(err)
	}

	expenses, err := models.ListExpensesInRange(s.db, s.userID, "2025-01-01", "2025-01-31")
	s.Require().NoError(err)
	s.Require().Len(expenses, 2, "range boundaries are inclusive")
	s.Equal("2025-01-31", expenses[0].Date)
	s.Equal("2025-01-01", expenses[1].Date)
}

func TestExpenseTestSuite(t *testing.T) {
	suite.Run(t, new(ExpenseTestSuite))
}
