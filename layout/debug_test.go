package layout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteDebugJSON(t *testing.T) {
	res := &Result{
		Pages: []Page{{Face: FaceBack, Width: 120, Height: 120}},
		Fit:   &FitReport{AutoShrink: true, Outcome: "fit", FinalPt: 10.5, FinalLH: 1.35},
	}
	path := filepath.Join(t.TempDir(), "debug", "card.layout.json")
	if err := WriteDebugJSON(res, path); err != nil {
		t.Fatalf("WriteDebugJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var back Result
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Fit == nil || back.Fit.Outcome != "fit" || back.Pages[0].Face != FaceBack {
		t.Fatalf("unexpected round trip: %+v", back)
	}
	if err := WriteDebugJSON(nil, path); err != nil {
		t.Fatalf("nil result should be a no-op, got %v", err)
	}
}
