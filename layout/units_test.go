package layout

import (
	"math"
	"testing"
)

// TestPtMmRoundTrip 验证 pt↔mm 换算的往返精度（允许极小的浮点误差）。
func TestPtMmRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 8, 10.5, 72, 96, 144, 1000}
	for _, pt := range samples {
		mm := pt * PtToMm
		back := mm * MmToPt
		if diff := math.Abs(back - pt); diff > 1e-9 {
			t.Fatalf("pt→mm→pt 往返误差过大: in=%gpt mm=%g back=%g diff=%g", pt, mm, back, diff)
		}
	}
}

// TestLengthToConversions 覆盖 Length 在常见单位上的转换正确性（到 mm/pt）。
func TestLengthToConversions(t *testing.T) {
	cases := []struct {
		in     Length
		target Unit
		want   float64
	}{
		{Length{1, UnitIN}, UnitMM, 25.4},
		{Length{2.54, UnitCM}, UnitMM, 25.4},
		{Length{12, UnitPT}, UnitMM, 12 * PtToMm},
		{Length{12, UnitPT}, UnitPT, 12},
		{Length{10, UnitMM}, UnitPT, 10 * MmToPt},
		{Length{96, UnitPX}, UnitMM, 25.4},
		{Length{8, UnitPX}, UnitMM, 8 * 25.4 / 96},
		{Length{1.35, UnitNone}, UnitMM, 1.35},
	}
	for _, c := range cases {
		if got := c.in.To(c.target); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("%+v → %s: got %g want %g", c.in, UnitToString(c.target), got, c.want)
		}
	}
}

// TestLineHeightResolve 验证行高解析：倍数与绝对值两种语义在目标单位（mm）下的解析结果。
func TestLineHeightResolve(t *testing.T) {
	fontSizePT := Length{Value: 10.5, Unit: UnitPT}
	gotMM := Factor(1.35).Resolve(fontSizePT, UnitMM)
	wantMM := 10.5 * 1.35 * PtToMm
	if diff := math.Abs(gotMM - wantMM); diff > 1e-9 {
		t.Fatalf("1.35 解析为 mm 错误: got=%g want=%g diff=%g", gotMM, wantMM, diff)
	}
	absSpec := LineHeightSpec{Kind: LineHeightAbsolute, Len: Length{Value: 6, Unit: UnitMM}}
	if got := absSpec.Resolve(fontSizePT, UnitMM); math.Abs(got-6) > 1e-9 {
		t.Fatalf("6mm 行高解析为 mm 错误: got=%g", got)
	}
	if raw := absSpec.Raw(); raw.Kind != "absolute" || raw.Unit != "mm" || raw.Value != 6 {
		t.Fatalf("raw absolute = %+v", raw)
	}
	if raw := Factor(1.2).Raw(); raw.Kind != "factor" || raw.Factor != 1.2 {
		t.Fatalf("raw factor = %+v", raw)
	}
}
