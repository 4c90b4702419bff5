package ledger

import "testing"

func TestNotional(t *testing.T) {
	tests := []struct {
		price  float64
		shares int64
		want   float64
	}{
		{100, 3, 300},
		{0.1, 3, 0.3},
		{19.99, 7, 139.93},
		{33.335, 2, 66.67},
	}
	for _, tc := range tests {
		if got := Notional(tc.price, tc.shares); got != tc.want {
			t.Fatalf("Notional(%v, %d) = %v, want %v", tc.price, tc.shares, got, tc.want)
		}
	}
}

func TestClampPrice(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, MinPrice},
		{-3, MinPrice},
		{0.994, MinPrice},
		{1.005, 1.01},
		{101.555, 101.56},
	}
	for _, tc := range tests {
		if got := ClampPrice(tc.in); got != tc.want {
			t.Fatalf("ClampPrice(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
