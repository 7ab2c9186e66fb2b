package binance

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseKline(t *testing.T) {
	raw := `{"stream":"btcusdt@kline_1m","data":{"e":"kline","s":"BTCUSDT","k":{"t":1767225600000,"s":"BTCUSDT","o":"50000.1","h":"50100.5","l":"49900.0","c":"50050.2","v":"12.5","x":true}}}`
	var f wsFrame
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatal(err)
	}
	if f.Data.Type != "kline" || !f.Data.Kline.Final {
		t.Fatalf("frame not decoded: %+v", f)
	}
	c, err := parseKline(f.Data.Kline)
	if err != nil {
		t.Fatal(err)
	}
	if c.Symbol != "BTCUSDT" || c.Open != 50000.1 || c.Close != 50050.2 {
		t.Fatalf("candle %+v", c)
	}
	if c.High != 50100.5 || c.Low != 49900.0 || c.Volume != 12.5 {
		t.Fatalf("candle %+v", c)
	}
	if !c.Bucket.Equal(time.UnixMilli(1767225600000).UTC()) {
		t.Fatalf("bucket %v", c.Bucket)
	}
}

func TestParseKlineRejectsBadNumbers(t *testing.T) {
	if _, err := parseKline(wsKline{Open: "x", High: "1", Low: "1", Close: "1", Volume: "1"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStreamNames(t *testing.T) {
	c := &Client{symbols: []string{"BTCUSDT", "ETHUSDT"}, interval: "1m"}
	names := c.streamNames()
	if len(names) != 2 || names[0] != "btcusdt@kline_1m" || names[1] != "ethusdt@kline_1m" {
		t.Fatalf("stream names %v", names)
	}
}
