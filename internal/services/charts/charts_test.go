package charts

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"cmgvisor/internal/models"
)

func at(hh, mm int) time.Time {
	return time.Date(2024, 1, 1, hh, mm, 0, 0, time.UTC)
}

func TestCostChartTraces(t *testing.T) {
	pdo := models.NewCostSeries([]models.CostRecord{
		{DateTime: at(0, 0), Barra: "Santa Rosa", Valor: 1},
		{DateTime: at(0, 30), Barra: "Santa Rosa", Valor: 2},
		{DateTime: at(0, 0), Barra: "Chavarria", Valor: 3},
	})
	cos := models.NewCostSeries([]models.CostRecord{
		{DateTime: at(0, 0), Barra: "Santa Rosa", Valor: 4},
	})

	resp := CostChart(pdo, cos, []string{"Santa Rosa", "Chavarria"})

	wantNames := []string{"Santa Rosa – PDO", "Santa Rosa – COS", "Chavarria – PDO"}
	if len(resp.Data) != len(wantNames) {
		t.Fatalf("got %d traces, want %d", len(resp.Data), len(wantNames))
	}
	for i, name := range wantNames {
		if resp.Data[i].Name != name {
			t.Errorf("trace %d name = %q, want %q", i, resp.Data[i].Name, name)
		}
	}

	if resp.Data[0].Line.Color != Palette[0] || resp.Data[1].Line.Color != Palette[0] {
		t.Error("PDO and COS of one barra must share a colour")
	}
	if resp.Data[2].Line.Color != Palette[1] {
		t.Errorf("second barra colour = %s, want %s", resp.Data[2].Line.Color, Palette[1])
	}
	if resp.Data[0].Line.Dash != "solid" || resp.Data[1].Line.Dash != "dash" {
		t.Errorf("dash styles = %q/%q", resp.Data[0].Line.Dash, resp.Data[1].Line.Dash)
	}

	x := resp.Data[0].X.([]string)
	if len(x) != 2 || x[1] != "2024-01-01 00:30:00" {
		t.Errorf("x = %v", x)
	}
	if resp.Layout.YAxis.Title != "CMg (PEN/MWh)" || resp.Layout.Height != 430 {
		t.Errorf("layout = %+v", resp.Layout)
	}
}

func TestCostChartPaletteCycles(t *testing.T) {
	var recs []models.CostRecord
	var barras []string
	for i := 0; i < 8; i++ {
		b := string(rune('A' + i))
		barras = append(barras, b)
		recs = append(recs, models.CostRecord{DateTime: at(0, 0), Barra: b, Valor: float64(i)})
	}
	resp := CostChart(models.NewCostSeries(recs), &models.CostSeries{}, barras)
	if len(resp.Data) != 8 {
		t.Fatalf("got %d traces, want 8", len(resp.Data))
	}
	if resp.Data[6].Line.Color != Palette[0] || resp.Data[7].Line.Color != Palette[1] {
		t.Error("palette should wrap after six barras")
	}
}

func TestCostChartEmptyEncodesAsArray(t *testing.T) {
	resp := CostChart(nil, nil, nil)
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"data":[]`) {
		t.Errorf("empty chart should encode data as [], got %s", b)
	}
}

func TestFlowChartLastMeasuredMarker(t *testing.T) {
	measured := models.NewFlowSeries([]models.FlowRecord{
		{DateTime: at(10, 0), Valor: 12.5},
		{DateTime: at(11, 0), Valor: 13},
	})
	forecast := models.NewFlowSeries([]models.FlowRecord{
		{DateTime: at(12, 0), Valor: 14},
	})

	resp := FlowChart(measured, forecast, at(11, 0), true)

	if len(resp.Data) != 2 || resp.Data[0].Name != "Medido" || resp.Data[1].Name != "Proyección" {
		t.Fatalf("traces = %+v", resp.Data)
	}
	if resp.Data[1].Line.Dash != "dash" || resp.Data[1].Line.Color != "#d62728" {
		t.Errorf("forecast line = %+v", resp.Data[1].Line)
	}
	if len(resp.Layout.Shapes) != 1 || resp.Layout.Shapes[0].X0 != "2024-01-01 11:00:00" {
		t.Errorf("shapes = %+v", resp.Layout.Shapes)
	}
	if resp.Layout.Shapes[0].Line.Dash != "dot" || resp.Layout.Shapes[0].YRef != "paper" {
		t.Errorf("marker line = %+v", resp.Layout.Shapes[0])
	}
	if len(resp.Layout.Annotations) != 1 || resp.Layout.Annotations[0].Text != LastMeasuredLabel {
		t.Errorf("annotations = %+v", resp.Layout.Annotations)
	}
}

func TestFlowChartWithoutMeasurements(t *testing.T) {
	resp := FlowChart(&models.FlowSeries{}, nil, time.Time{}, false)
	if len(resp.Layout.Shapes) != 0 || len(resp.Layout.Annotations) != 0 {
		t.Error("no marker expected without a last measurement")
	}
	if x := resp.Data[0].X.([]string); len(x) != 0 {
		t.Errorf("measured x = %v, want empty", x)
	}
}
