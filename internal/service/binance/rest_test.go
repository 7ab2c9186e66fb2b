package binance

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseKlineRow(t *testing.T) {
	raw := `[1717200000000,"68000.1","68100.5","67900.0","68050.2","123.456",1717200059999,"8400000.0",1500,"60.0","4100000.0","0"]`
	var row []interface{}
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	c, err := parseKlineRow("BTCUSDT", row)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Symbol != "BTCUSDT" {
		t.Fatalf("symbol = %q", c.Symbol)
	}
	want := time.UnixMilli(1717200000000).UTC()
	if !c.Bucket.Equal(want) {
		t.Fatalf("bucket = %v, want %v", c.Bucket, want)
	}
	if c.Open != 68000.1 || c.High != 68100.5 || c.Low != 67900.0 || c.Close != 68050.2 {
		t.Fatalf("unexpected OHLC: %+v", c)
	}
	if c.Volume != 123.456 {
		t.Fatalf("volume = %v", c.Volume)
	}
}

func TestParseKlineRowRejectsMalformed(t *testing.T) {
	if _, err := parseKlineRow("BTCUSDT", []interface{}{1.0, "1"}); err == nil {
		t.Fatal("expected error for short row")
	}
	if _, err := parseKlineRow("BTCUSDT", []interface{}{"notnum", "1", "1", "1", "1", "1"}); err == nil {
		t.Fatal("expected error for non-numeric open time")
	}
	if _, err := parseKlineRow("BTCUSDT", []interface{}{1.0, "x", "1", "1", "1", "1"}); err == nil {
		t.Fatal("expected error for unparsable price")
	}
}
