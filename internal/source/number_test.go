package source

import (
	"encoding/json"
	"testing"
)

func TestNumberUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{`123`, 123, false},
		{`45.5`, 45.5, false},
		{`"67.25"`, 67.25, false},
		{`"1000000"`, 1000000, false},
		{`" 12.5 "`, 12.5, false},
		{`null`, 0, false},
		{`""`, 0, false},
		{`-3.5`, -3.5, false},
		{`"abc"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		var n Number
		err := json.Unmarshal([]byte(tt.in), &n)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Unmarshal(%s) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unmarshal(%s): %v", tt.in, err)
			continue
		}
		if n.Float() != tt.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, n.Float(), tt.want)
		}
	}
}

func TestNumberInStruct(t *testing.T) {
	var v struct {
		TVL    Number `json:"tvlUSD"`
		Volume Number `json:"dailyVolumeUSD"`
	}
	raw := `{"tvlUSD": "1500000.75", "dailyVolumeUSD": 320000}`
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.TVL.Float() != 1500000.75 {
		t.Errorf("TVL = %v, want 1500000.75", v.TVL.Float())
	}
	if v.Volume.Int() != 320000 {
		t.Errorf("Volume = %v, want 320000", v.Volume.Int())
	}
}
