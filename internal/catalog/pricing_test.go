package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestUnitPrice(t *testing.T) {
	cases := []struct {
		name   string
		base   string
		markup string
		want   string
	}{
		{name: "no markup", base: "450.00", markup: "0", want: "450"},
		{name: "ten percent", base: "450.00", markup: "10", want: "495"},
		{name: "rounds half up", base: "99.99", markup: "5", want: "104.99"},
		{name: "half cent rounds up", base: "0.10", markup: "5", want: "0.11"},
		{name: "fractional markup", base: "333.33", markup: "7.5", want: "358.33"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := UnitPrice(decimal.RequireFromString(tc.base), decimal.RequireFromString(tc.markup))
			require.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}
