package util

import (
	"reflect"
	"testing"
)

func TestSplitList(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"usd_rate", []string{"USD_RATE"}},
		{"USD_RATE, wti,,USD_RATE ,LAND_SMP", []string{"USD_RATE", "WTI", "LAND_SMP"}},
	}
	for _, c := range cases {
		if got := SplitList(c.in); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("SplitList(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
