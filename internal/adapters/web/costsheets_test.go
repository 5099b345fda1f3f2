package web

import (
	"reflect"
	"testing"
)

func TestParseScenarioQuantities(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []int64
		wantErr bool
	}{
		{name: "simple list", raw: "50,100,500", want: []int64{50, 100, 500}},
		{name: "whitespace tolerated", raw: " 50 , 100 ", want: []int64{50, 100}},
		{name: "duplicates dropped", raw: "100,50,100,50", want: []int64{100, 50}},
		{name: "zero and negative dropped", raw: "0,-5,200", want: []int64{200}},
		{name: "empty parameter", raw: "", want: nil},
		{name: "only unusable values", raw: "0,-1", want: nil},
		{name: "trailing comma", raw: "50,", want: []int64{50}},
		{name: "non-numeric token", raw: "50,lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScenarioQuantities(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseScenarioQuantities(%q) expected error, got %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseScenarioQuantities(%q) failed: %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseScenarioQuantities(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
