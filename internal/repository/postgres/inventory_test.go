package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/database"
	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

func newInventoryRepo(t *testing.T) (*InventoryRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewInventoryRepository(mock), mock
}

// --- Reserve Tests ---

func TestInventoryRepository_Reserve_Success(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectExec("UPDATE product_variants").
		WithArgs(3, "var-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Reserve(context.Background(), "var-001", 3)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_Reserve_InsufficientStock(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectExec("UPDATE product_variants").
		WithArgs(5, "var-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT v.stock_quantity, p.name").
		WithArgs("var-001").
		WillReturnRows(pgxmock.NewRows([]string{"stock_quantity", "name"}).AddRow(2, "Ao thun"))

	err := repo.Reserve(context.Background(), "var-001", 5)
	require.Error(t, err)

	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, "Ao thun", stockErr.ProductName)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_Reserve_VariantNotFound(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectExec("UPDATE product_variants").
		WithArgs(1, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT v.stock_quantity, p.name").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"stock_quantity", "name"}))

	err := repo.Reserve(context.Background(), "missing", 1)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_Reserve_NonPositiveQuantity(t *testing.T) {
	repo, _ := newInventoryRepo(t)

	err := repo.Reserve(context.Background(), "var-001", 0)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

// --- Release Tests ---

func TestInventoryRepository_Release_Success(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectExec("UPDATE product_variants").
		WithArgs(3, "var-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Release(context.Background(), "var-001", 3)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_Release_VariantNotFound(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectExec("UPDATE product_variants").
		WithArgs(3, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Release(context.Background(), "missing", 3)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- IncrementPurchaseCount Tests ---

func TestInventoryRepository_IncrementPurchaseCount_Success(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectExec("UPDATE product_variants").
		WithArgs(2, "var-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.IncrementPurchaseCount(context.Background(), "var-001", 2)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
