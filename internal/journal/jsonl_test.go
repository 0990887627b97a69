package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gridLadder/internal/model"
)

func TestJsonlSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades", "journal.jsonl")
	sink := NewJsonlSink(path)

	first := model.TradeRecord{
		InstanceID:  "inst-1",
		Side:        model.SideBuy,
		Caller:      "0xabc",
		BaseAmount:  "1.000000000000000000",
		QuoteAmount: "2000.000000",
		Cursor:      1,
	}
	second := model.TradeRecord{
		InstanceID:  "inst-1",
		Side:        model.SideSell,
		Caller:      "0xabc",
		BaseAmount:  "1.000000000000000000",
		QuoteAmount: "1960.000000",
		LadderReset: true,
	}

	if err := sink.PutTradeBatch([]model.TradeRecord{first}); err != nil {
		t.Fatalf("put first batch: %v", err)
	}
	if err := sink.PutTradeBatch([]model.TradeRecord{second}); err != nil {
		t.Fatalf("put second batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()

	var got []model.TradeRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var tr model.TradeRecord
		if err := json.Unmarshal(scanner.Bytes(), &tr); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		got = append(got, tr)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("record count mismatch: %d != 2", len(got))
	}
	if got[0] != first || got[1] != second {
		t.Fatalf("records mismatch: %+v", got)
	}
}

func TestJsonlSinkEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	sink := NewJsonlSink(path)

	if err := sink.PutTradeBatch(nil); err != nil {
		t.Fatalf("empty batch must be a no-op: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch must not create the file")
	}
}
