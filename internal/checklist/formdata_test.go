package checklist

import (
	"encoding/json"
	"testing"
)

func TestFormDataJSONContract(t *testing.T) {
	fd := FormData{
		"date":        Scalar("2024-05-01"),
		"Brake_Fluid": Item(ItemRecord{Status: StatusDEF, Arr: "08:15"}),
		"Horn":        Item(ItemRecord{Status: StatusOK}),
	}
	raw, err := json.Marshal(fd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"Brake_Fluid":{"Status":"DEF","Arr":"08:15"},"Horn":{"Status":"OK"},"date":"2024-05-01"}`
	if string(raw) != want {
		t.Fatalf("unexpected JSON\n got: %s\nwant: %s", raw, want)
	}
}

func TestEntryDecodesLooseScalars(t *testing.T) {
	var fd FormData
	if err := json.Unmarshal([]byte(`{"odo":1200,"ratio":0.5,"ok":true,"none":null,"tags":["a","b"]}`), &fd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	cases := map[string]string{"odo": "1200", "ratio": "0.5", "ok": "true", "none": "", "tags": `["a","b"]`}
	for key, want := range cases {
		if got := fd.Scalar(key); got != want {
			t.Fatalf("%s: got %q, want %q", key, got, want)
		}
	}
}

func TestStatusOfAndArrivalOf(t *testing.T) {
	fd := FormData{
		"Brake_Fluid": Item(ItemRecord{Status: StatusDEF, Arr: "08:15"}),
		"Horn":        Item(ItemRecord{Arr: "09:00"}),
		"legacyText":  Scalar("Y"),
	}
	cases := []struct {
		key         string
		wantStatus  string
		wantArrival string
	}{
		{key: "Brake_Fluid", wantStatus: "DEF", wantArrival: "08:15"},
		{key: "Horn", wantStatus: NoStatus, wantArrival: "09:00"},
		{key: "legacyText", wantStatus: "Y", wantArrival: NoArrival},
		{key: "Missing", wantStatus: NoStatus, wantArrival: NoArrival},
	}
	for _, tc := range cases {
		if got := StatusOf(fd, tc.key); got != tc.wantStatus {
			t.Fatalf("StatusOf(%s) = %q, want %q", tc.key, got, tc.wantStatus)
		}
		if got := ArrivalOf(fd, tc.key); got != tc.wantArrival {
			t.Fatalf("ArrivalOf(%s) = %q, want %q", tc.key, got, tc.wantArrival)
		}
	}
}

func TestStatusOfRoundTripsParsedValues(t *testing.T) {
	fields := []Field{
		{Key: "Brake_Fluid", Value: "DEF"},
		{Key: "Horn", Value: "OK"},
		{Key: "Fire_Extinguisher", Value: "N"},
		{Key: "License_Disc", Value: "N/A"},
	}
	for _, schema := range []Schema{nil, DefaultCatalog().Schema()} {
		parsed := Parse(fields, schema)
		raw, err := json.Marshal(parsed.Data)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var stored FormData
		if err := json.Unmarshal(raw, &stored); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		for _, field := range fields {
			if got := StatusOf(stored, field.Key); got != field.Value {
				t.Fatalf("StatusOf(%s) = %q, want %q", field.Key, got, field.Value)
			}
		}
	}
}
