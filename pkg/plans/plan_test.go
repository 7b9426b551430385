package plans_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingd/pkg/plans"
)

func TestParsePlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    plans.Plan
		wantErr bool
	}{
		{in: "FREE", want: plans.Free},
		{in: "starter", want: plans.Starter},
		{in: " Pro ", want: plans.Pro},
		{in: "ENTERPRISE", want: plans.Enterprise},
		{in: "GOLD", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := plans.ParsePlan(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, plans.ErrUnknownPlan)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLimits_Ordering(t *testing.T) {
	t.Parallel()

	free, starter, pro := plans.Limits(plans.Free), plans.Limits(plans.Starter), plans.Limits(plans.Pro)
	assert.Greater(t, pro.MaxServices, starter.MaxServices)
	assert.Greater(t, starter.MaxServices, free.MaxServices)

	for _, r := range plans.Resources {
		f, _ := free.Get(r)
		s, _ := starter.Get(r)
		p, _ := pro.Get(r)
		assert.LessOrEqual(t, f, s, r)
		assert.LessOrEqual(t, s, p, r)
	}
}

func TestLimits_Values(t *testing.T) {
	t.Parallel()

	assert.Equal(t, plans.ResourceLimits{MaxServices: 1, MaxMemoryMB: 512, MaxCPUCores: 1, MaxBandwidthGB: 10, MaxStorageGB: 1}, plans.Limits(plans.Free))
	assert.Equal(t, plans.ResourceLimits{MaxServices: 5, MaxMemoryMB: 2048, MaxCPUCores: 2, MaxBandwidthGB: 100, MaxStorageGB: 10}, plans.Limits(plans.Starter))

	ent := plans.Limits(plans.Enterprise)
	for _, r := range plans.Resources {
		v, err := ent.Get(r)
		require.NoError(t, err)
		assert.Equal(t, plans.Unlimited, v, r)
	}
}

func TestLimits_UnknownPlanPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { plans.Limits("GOLD") })
}

func TestCheck(t *testing.T) {
	t.Parallel()

	free := plans.Limits(plans.Free)
	assert.NoError(t, plans.Check(free, plans.ResourceServices, 0, 1))
	assert.ErrorIs(t, plans.Check(free, plans.ResourceServices, 1, 1), plans.ErrLimitExceeded)
	assert.NoError(t, plans.Check(free, plans.ResourceMemoryMB, 256, 256))
	assert.ErrorIs(t, plans.Check(free, "gpus", 0, 1), plans.ErrUnknownResource)

	ent := plans.Limits(plans.Enterprise)
	assert.NoError(t, plans.Check(ent, plans.ResourceServices, 1_000_000, 1))
}

func TestCompare(t *testing.T) {
	t.Parallel()

	up := plans.Compare(plans.Free, plans.Pro)
	assert.False(t, up.IsDowngrade())
	assert.Len(t, up.Increased, len(plans.Resources))

	down := plans.Compare(plans.Enterprise, plans.Starter)
	assert.True(t, down.IsDowngrade())
	assert.Equal(t, plans.Change{From: plans.Unlimited, To: 5}, down.Decreased[plans.ResourceServices])
	assert.Len(t, down.DecreasedResources(), len(plans.Resources))

	same := plans.Compare(plans.Pro, plans.Pro)
	assert.Empty(t, same.Increased)
	assert.Empty(t, same.Decreased)
}
