package analytics

import (
	"math/rand"
	"reflect"
	"testing"
)

func feed(d *Detector, values ...float64) {
	for _, v := range values {
		d.Evaluate(v)
		d.UpdateAnomalyRatio()
	}
}

func TestDetector_BaselineBuildAndClassify(t *testing.T) {
	d := NewDetector("press-1", 3, 2, nil)
	d.SetThreshold(2.0)

	feed(d, 10, 10)
	if d.IsModelComplete() {
		t.Fatal("model should still be building after 2 of 3 points")
	}
	if d.ZScore() != 0 || d.ModelMean() != 0 || d.ModelStdDev() != 0 {
		t.Error("statistics must stay zero while building")
	}

	feed(d, 10)
	if !d.IsModelComplete() {
		t.Fatal("model should be complete after 3 points")
	}

	feed(d, 10)
	if d.ModelMean() != 10 {
		t.Errorf("expected mean 10, got %v", d.ModelMean())
	}
	if d.ModelStdDev() != 0.001 {
		t.Errorf("expected std dev clamped to 0.001, got %v", d.ModelStdDev())
	}
	if d.ZScore() != 0 {
		t.Errorf("expected z-score 0, got %v", d.ZScore())
	}
	if d.IsAnomaly() {
		t.Error("10 should not be anomalous")
	}
	if got := d.modelValues(); !reflect.DeepEqual(got, []float64{10, 10, 10}) {
		t.Errorf("unexpected model window %v", got)
	}

	feed(d, 100)
	if d.ZScore() != 90000 {
		t.Errorf("expected z-score 90000, got %v", d.ZScore())
	}
	if !d.IsAnomaly() {
		t.Error("100 should be anomalous")
	}
	if got := d.modelValues(); !reflect.DeepEqual(got, []float64{10, 10, 10}) {
		t.Errorf("anomaly must not enter the model window, got %v", got)
	}
}

func TestDetector_SlidingWindowEvictsOldest(t *testing.T) {
	d := NewDetector("temp-1", 3, 3, nil)
	d.SetThreshold(100)

	feed(d, 1, 2, 3, 4, 5)

	if got := d.modelValues(); !reflect.DeepEqual(got, []float64{3, 4, 5}) {
		t.Errorf("expected [3 4 5], got %v", got)
	}
}

func TestDetector_RepeatedMeanValueStaysNormal(t *testing.T) {
	d := NewDetector("flow-1", 3, 3, nil)
	d.SetThreshold(2.0)
	feed(d, 9, 10, 11)

	feed(d, 10)
	if d.ZScore() != 0 {
		t.Errorf("expected z-score 0 for the baseline mean, got %v", d.ZScore())
	}

	for i := 0; i < 20; i++ {
		feed(d, 10)
		if d.IsAnomaly() {
			t.Fatalf("iteration %d: repeated value classified as anomaly (z=%v)", i, d.ZScore())
		}
	}
	if d.ZScore() != 0 {
		t.Errorf("expected z-score 0 once the window converged, got %v", d.ZScore())
	}
}

func TestDetector_SampleStdDev(t *testing.T) {
	d := NewDetector("flow-1", 3, 3, nil)
	d.SetThreshold(2.0)
	feed(d, 9, 10, 11, 12)

	if d.ModelStdDev() != 1 {
		t.Errorf("expected sample std dev 1, got %v", d.ModelStdDev())
	}
	if d.ZScore() != 2 {
		t.Errorf("expected z-score 2, got %v", d.ZScore())
	}
	if d.IsAnomaly() {
		t.Error("z-score equal to the threshold is not an anomaly")
	}
}

func TestDetector_MagnitudeOnly(t *testing.T) {
	d := NewDetector("signed-1", 3, 3, nil)
	d.SetThreshold(2.0)
	feed(d, -10, -10, -10)

	feed(d, -10)
	if d.ModelMean() != 10 {
		t.Errorf("expected |mean| 10, got %v", d.ModelMean())
	}
	if d.ZScore() != 0 {
		t.Errorf("expected z-score 0, got %v", d.ZScore())
	}

	feed(d, 10)
	if d.ZScore() != 0 || d.IsAnomaly() {
		t.Errorf("sign is discarded: expected z-score 0 and normal, got %v anomaly=%v", d.ZScore(), d.IsAnomaly())
	}
}

func TestDetector_SetThreshold(t *testing.T) {
	d := NewDetector("s", 3, 3, nil)

	d.SetThreshold(0)
	if d.Threshold() != DefaultZScoreThreshold {
		t.Errorf("expected default %v for zero, got %v", DefaultZScoreThreshold, d.Threshold())
	}

	d.SetThreshold(3.5)
	if d.Threshold() != 3.5 {
		t.Errorf("expected 3.5, got %v", d.Threshold())
	}

	d.SetThreshold(-1)
	if d.Threshold() != -1 {
		t.Errorf("negative threshold must be accepted verbatim, got %v", d.Threshold())
	}
}

func TestDetector_NegativeThresholdStallsBaseline(t *testing.T) {
	d := NewDetector("s", 3, 3, nil)
	d.SetThreshold(-1)
	feed(d, 1, 2, 3)

	feed(d, 2, 2, 2)
	if !d.IsAnomaly() {
		t.Error("every point is an anomaly with a negative threshold")
	}
	if got := d.modelValues(); !reflect.DeepEqual(got, []float64{1, 2, 3}) {
		t.Errorf("baseline should be frozen, got %v", got)
	}
}

func TestDetector_AnomalyRatioLag(t *testing.T) {
	d := NewDetector("s", 3, 2, nil)
	d.SetThreshold(2.0)

	feed(d, 10, 10, 10)
	if got := d.anomalyFlags(); len(got) != 0 {
		t.Fatalf("no classification yet, anomaly window should be empty, got %v", got)
	}

	feed(d, 100)
	if got := d.anomalyFlags(); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("expected [1], got %v", got)
	}
	if d.AnomalyRatio() != 0 {
		t.Errorf("ratio must stay 0 until the window is full, got %v", d.AnomalyRatio())
	}

	feed(d, 10)
	if got := d.anomalyFlags(); !reflect.DeepEqual(got, []int{1, 0}) {
		t.Errorf("expected [1 0], got %v", got)
	}
	if d.AnomalyRatio() != 0.5 {
		t.Errorf("expected ratio 0.5, got %v", d.AnomalyRatio())
	}

	feed(d, 10)
	if got := d.anomalyFlags(); !reflect.DeepEqual(got, []int{0, 0}) {
		t.Errorf("expected [0 0], got %v", got)
	}
	if d.AnomalyRatio() != 0 {
		t.Errorf("expected ratio 0, got %v", d.AnomalyRatio())
	}
}

func TestDetector_AnomalyRatioRounding(t *testing.T) {
	d := NewDetector("s", 2, 3, nil)
	d.SetThreshold(2.0)
	feed(d, 10, 10)

	feed(d, 100, 10, 10)
	if d.AnomalyRatio() != 0.333 {
		t.Errorf("expected 0.333, got %v", d.AnomalyRatio())
	}
}

func TestDetector_WindowBounds(t *testing.T) {
	const modelSize, anomalySize = 5, 4
	d := NewDetector("s", modelSize, anomalySize, nil)
	d.SetThreshold(1.5)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		v := rng.NormFloat64()*3 + 20
		if i%37 == 0 {
			v *= 10
		}
		feed(d, v)

		if n := len(d.modelWindow); n > modelSize {
			t.Fatalf("step %d: model window length %d exceeds %d", i, n, modelSize)
		}
		if n := len(d.anomalyWindow); n > anomalySize {
			t.Fatalf("step %d: anomaly window length %d exceeds %d", i, n, anomalySize)
		}
	}
}

func TestDetector_TransitionOncePerLifeSegment(t *testing.T) {
	d := NewDetector("s", 4, 4, nil)
	d.SetThreshold(2.0)

	countTransitions := func(values []float64) int {
		transitions := 0
		for _, v := range values {
			before := d.IsModelComplete()
			feed(d, v)
			if !before && d.IsModelComplete() {
				transitions++
				if len(d.modelWindow) != 4 {
					t.Errorf("transition must happen exactly at model size, len=%d", len(d.modelWindow))
				}
			}
		}
		return transitions
	}

	values := []float64{1, 2, 3, 4, 500, 2, 3, 1000, 2, 3}
	if n := countTransitions(values); n != 1 {
		t.Errorf("expected one transition, got %d", n)
	}

	d.Reset()
	if n := countTransitions(values); n != 1 {
		t.Errorf("expected one transition after reset, got %d", n)
	}
}

func TestDetector_Reset(t *testing.T) {
	d := NewDetector("vib-7", 3, 2, nil)
	d.SetThreshold(2.5)
	feed(d, 10, 10, 10, 100, 10)

	d.Reset()

	snap := d.Snapshot()
	if snap.Name != "vib-7" {
		t.Errorf("name must survive reset, got %s", snap.Name)
	}
	if snap.ZScoreThreshold != 2.5 {
		t.Errorf("threshold must survive reset, got %v", snap.ZScoreThreshold)
	}
	if snap.ModelLen != 0 || snap.AnomalyLen != 0 {
		t.Errorf("windows must be empty, got %d/%d", snap.ModelLen, snap.AnomalyLen)
	}
	if snap.IsAnomaly || snap.AnomalyRatio != 0 || snap.ModelMean != 0 || snap.ModelStdDev != 0 || snap.ZScore != 0 {
		t.Errorf("derived statistics must be zero, got %+v", snap)
	}
	if d.modelSize != 3 || d.anomalyWindowSize != 2 {
		t.Error("window sizes must survive reset")
	}
}

func TestDetector_ModelCompleteness(t *testing.T) {
	d := NewDetector("s", 3, 3, nil)
	if d.ModelCompleteness() != 0 {
		t.Errorf("expected 0, got %d", d.ModelCompleteness())
	}
	d.Evaluate(1)
	if d.ModelCompleteness() != 33 {
		t.Errorf("expected 33, got %d", d.ModelCompleteness())
	}
	d.Evaluate(1)
	d.Evaluate(1)
	if d.ModelCompleteness() != 100 {
		t.Errorf("expected 100, got %d", d.ModelCompleteness())
	}
}

func TestDetector_SinglePointModel(t *testing.T) {
	d := NewDetector("s", 0, 0, nil)
	d.SetThreshold(2.0)

	feed(d, 5)
	if !d.IsModelComplete() {
		t.Fatal("model size is clamped to 1")
	}

	feed(d, 5)
	if d.ZScore() != 0 || d.ModelStdDev() != 0.001 {
		t.Errorf("expected z 0 and clamped std dev, got %v / %v", d.ZScore(), d.ModelStdDev())
	}

	feed(d, 6)
	if !d.IsAnomaly() || d.ZScore() != 1000 {
		t.Errorf("expected anomaly with z 1000, got %v anomaly=%v", d.ZScore(), d.IsAnomaly())
	}
	if d.AnomalyRatio() != 1 {
		t.Errorf("expected ratio 1 with a one-slot window, got %v", d.AnomalyRatio())
	}
}
