package tuning

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad(t *testing.T) {
	tn, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tn.ProtocolVersion != "0.3" {
		t.Fatalf("protocol version %q", tn.ProtocolVersion)
	}
	if tn.TickRateHz != 5 || tn.MaxSources != 64 || tn.SpawnThreshold != 400 {
		t.Fatalf("unexpected values: %+v", tn)
	}
	if !tn.AirContactRequired() {
		t.Fatal("require_air_contact not read")
	}
	if tn.SaturationThreshold != 0.65 || tn.RegenerationHours != 2.0 {
		t.Fatalf("float fields not read: %+v", tn)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("no_such_file.yaml"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDefaults_MatchShippedTuning(t *testing.T) {
	tn, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(Defaults(), tn) {
		t.Fatalf("Defaults drifted from configs/tuning.yaml:\n%+v\nvs\n%+v", Defaults(), tn)
	}
}

func TestAirContact_OmittedKeepsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tn, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tn.RequireAirContact != nil {
		t.Fatal("omitted key must stay unset")
	}
	if !tn.AirContactRequired() {
		t.Fatal("omitted key must keep air contact required")
	}
}

func TestAirContact_ExplicitFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("require_air_contact: false\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tn, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tn.RequireAirContact == nil || *tn.RequireAirContact {
		t.Fatal("explicit false not read")
	}
	if tn.AirContactRequired() {
		t.Fatal("explicit false must disable air contact")
	}
}
