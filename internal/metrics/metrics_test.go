package metrics

import "testing"

func TestNew_CountersStartAtZero(t *testing.T) {
	m := New()
	if v := testCounterValue(t, m.FilesDownloaded); v != 0 {
		t.Errorf("FilesDownloaded = %v, want 0", v)
	}
}

func TestNew_IncrementIsObservable(t *testing.T) {
	m := New()
	m.FilesDownloaded.Inc()
	m.BytesDownloaded.Add(1024)
	if v := testCounterValue(t, m.FilesDownloaded); v != 1 {
		t.Errorf("FilesDownloaded = %v, want 1", v)
	}
}

func TestNew_RegistryGatherable(t *testing.T) {
	m := New()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Error("expected at least one registered metric family")
	}
}
