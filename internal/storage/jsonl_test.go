package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"derivpool/internal/model"
)

func TestJsonlSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.jsonl")
	sink := NewJsonlSink(path)

	pools := []model.PoolRecord{
		{
			Kind:          model.KindRootPool,
			PoolID:        "0x01",
			Currency0:     "0x0000000000000000000000000000000000000000",
			Currency1:     "0x0000000000000000000000000000000000000aaa",
			Fee:           3000,
			TickSpacing:   60,
			Hooks:         "0x00000000000000000000000000000000000ff00c",
			TotalFeeBps:   1000,
			ChildShareBps: 1000,
			RegisteredAt:  "2026-01-02T03:04:05Z",
		},
		{
			Kind:          model.KindChildPool,
			PoolID:        "0x02",
			ParentPoolID:  "0x01",
			TotalFeeBps:   1000,
			ChildShareBps: 750,
			RegisteredAt:  "2026-01-02T03:04:06Z",
		},
	}
	if err := sink.PutPoolRecords(pools); err != nil {
		t.Fatalf("put pool records: %v", err)
	}
	if err := sink.PutDerivativeRecords([]model.DerivativeRecord{{
		Token:     "0x0000000000000000000000000000000000000bbb",
		PoolID:    "0x02",
		Liquidity: "123456",
		CreatedAt: "2026-01-02T03:04:07Z",
	}}); err != nil {
		t.Fatalf("put derivative records: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan output: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	var root model.PoolRecord
	if err := json.Unmarshal([]byte(lines[0]), &root); err != nil {
		t.Fatalf("unmarshal root record: %v", err)
	}
	if root != pools[0] {
		t.Fatalf("root record mismatch: %+v", root)
	}

	var child model.PoolRecord
	if err := json.Unmarshal([]byte(lines[1]), &child); err != nil {
		t.Fatalf("unmarshal child record: %v", err)
	}
	if child.ParentPoolID != "0x01" || child.ChildShareBps != 750 {
		t.Fatalf("child record mismatch: %+v", child)
	}

	var deriv model.DerivativeRecord
	if err := json.Unmarshal([]byte(lines[2]), &deriv); err != nil {
		t.Fatalf("unmarshal derivative record: %v", err)
	}
	if deriv.PoolID != "0x02" || deriv.Liquidity != "123456" {
		t.Fatalf("derivative record mismatch: %+v", deriv)
	}
}

func TestJsonlSinkEmptyBatchWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	sink := NewJsonlSink(path)

	if err := sink.PutPoolRecords(nil); err != nil {
		t.Fatalf("put empty batch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch must not create the file, stat err: %v", err)
	}
}
