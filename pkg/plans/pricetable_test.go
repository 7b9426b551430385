package plans_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingd/pkg/plans"
)

func TestParsePriceTable(t *testing.T) {
	t.Parallel()

	table, err := plans.ParsePriceTable("price_starter_m:STARTER, price_starter_y:starter,price_pro:PRO,")
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	p, ok := table.PlanForPrice("price_starter_y")
	assert.True(t, ok)
	assert.Equal(t, plans.Starter, p)

	_, ok = table.PlanForPrice("price_unknown")
	assert.False(t, ok)

	id, ok := table.PriceForPlan(plans.Starter)
	assert.True(t, ok)
	assert.Equal(t, "price_starter_m", id)

	_, ok = table.PriceForPlan(plans.Enterprise)
	assert.False(t, ok)
}

func TestParsePriceTable_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"price_a",
		"price_a:GOLD",
		":PRO",
		"price_free:FREE",
		"price_a:PRO,price_a:STARTER",
	} {
		_, err := plans.ParsePriceTable(in)
		assert.ErrorIs(t, err, plans.ErrInvalidPriceMap, in)
	}
}

func TestNilPriceTable(t *testing.T) {
	t.Parallel()

	var table *plans.PriceTable
	_, ok := table.PlanForPrice("price_a")
	assert.False(t, ok)
	assert.Zero(t, table.Len())
}

func TestLoadPriceTable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "prices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prices:\n  price_pro_m: PRO\n  price_ent: ENTERPRISE\n"), 0o600))

	fromFile, err := plans.LoadPriceTableFile(path)
	require.NoError(t, err)
	p, _ := fromFile.PlanForPrice("price_ent")
	assert.Equal(t, plans.Enterprise, p)

	merged, err := plans.LoadPriceTable(plans.Config{PriceTableFile: path, PriceTable: "price_st:STARTER"})
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Len())

	empty, err := plans.LoadPriceTable(plans.Config{})
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	_, err = plans.LoadPriceTableFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, plans.ErrInvalidPriceMap)
}
