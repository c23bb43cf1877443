package credit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostFor(t *testing.T) {
	tests := []struct {
		name        string
		kind        string
		extraImages int
		want        float64
		wantErr     bool
	}{
		{name: "generate base cost", kind: "generate", want: 10},
		{name: "rewrite base cost", kind: "rewrite", want: 5},
		{name: "review base cost", kind: "review", want: 15},
		{name: "extra images add surcharge", kind: "generate", extraImages: 3, want: 16},
		{name: "negative extras ignored", kind: "rewrite", extraImages: -2, want: 5},
		{name: "unknown kind", kind: "translate", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CostFor(tt.kind, tt.extraImages)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "no cost defined")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSplitDebit(t *testing.T) {
	tests := []struct {
		name          string
		subscription  float64
		topUp         float64
		cost          float64
		wantSub       float64
		wantTopUp     float64
		wantOK        bool
	}{
		{
			name:         "subscription covers the whole cost",
			subscription: 100, topUp: 50, cost: 30,
			wantSub: 70, wantTopUp: 50, wantOK: true,
		},
		{
			name:         "subscription drained before top-up",
			subscription: 10, topUp: 50, cost: 30,
			wantSub: 0, wantTopUp: 30, wantOK: true,
		},
		{
			name:         "empty subscription pool",
			subscription: 0, topUp: 50, cost: 30,
			wantSub: 0, wantTopUp: 20, wantOK: true,
		},
		{
			name:         "exact combined balance",
			subscription: 10, topUp: 20, cost: 30,
			wantSub: 0, wantTopUp: 0, wantOK: true,
		},
		{
			name:         "insufficient combined balance leaves pools untouched",
			subscription: 10, topUp: 10, cost: 30,
			wantSub: 10, wantTopUp: 10, wantOK: false,
		},
		{
			name:         "zero cost",
			subscription: 10, topUp: 10, cost: 0,
			wantSub: 10, wantTopUp: 10, wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subAfter, topUpAfter, ok := SplitDebit(tt.subscription, tt.topUp, tt.cost)

			assert.Equal(t, tt.wantSub, subAfter)
			assert.Equal(t, tt.wantTopUp, topUpAfter)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
