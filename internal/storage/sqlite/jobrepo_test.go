package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eGGnogSC/fsserver/internal/customer"
	"github.com/eGGnogSC/fsserver/internal/job"
)

func seedCustomer(t *testing.T, repo *CustomerRepo, name string) *customer.Customer {
	t.Helper()
	c := &customer.Customer{Name: name}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func TestJobRepoCreateAndGetWithLineItems(t *testing.T) {
	db := setupTestDB(t)
	customers := NewCustomerRepo(db)
	jobs := NewJobRepo(db)
	ctx := context.Background()

	c := seedCustomer(t, customers, "Ada Lovelace")

	j := &job.Job{
		CustomerID:  c.ID,
		JobType:     "repair",
		Description: "Replace compressor",
		LineItems: []job.LineItem{
			{Description: "Compressor", MaterialCost: 180, LaborHours: 2, LaborCost: 120},
			{Description: "Refrigerant", MaterialCost: 50},
		},
	}
	require.NoError(t, jobs.Create(ctx, j))

	got, err := jobs.GetByID(ctx, j.ID)
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", got.CustomerName)
	assert.Equal(t, job.StatusQuoted, got.Status)
	require.Len(t, got.LineItems, 2)
	assert.Equal(t, 300.0, got.LineItems[0].Total())
	assert.Equal(t, 350.0, got.TotalCost())
}

func TestJobRepoGetUnknown(t *testing.T) {
	db := setupTestDB(t)
	jobs := NewJobRepo(db)

	_, err := jobs.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, job.ErrNotFound)
}

func TestJobRepoListByCustomer(t *testing.T) {
	db := setupTestDB(t)
	customers := NewCustomerRepo(db)
	jobs := NewJobRepo(db)
	ctx := context.Background()

	ada := seedCustomer(t, customers, "Ada")
	grace := seedCustomer(t, customers, "Grace")

	require.NoError(t, jobs.Create(ctx, &job.Job{CustomerID: ada.ID, Description: "job A"}))
	require.NoError(t, jobs.Create(ctx, &job.Job{CustomerID: ada.ID, Description: "job B"}))
	require.NoError(t, jobs.Create(ctx, &job.Job{CustomerID: grace.ID, Description: "job C"}))

	got, err := jobs.ListByCustomer(ctx, ada.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
