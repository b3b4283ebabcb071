package state

import (
	"errors"
	"testing"
	"time"
)

func TestSelectVehicleCopiesByValue(t *testing.T) {
	t.Parallel()

	results := []Vehicle{
		{"make": "Honda", "model": "Civic", "features": map[string]any{"sunroof": true}},
	}
	sess := NewSession("s1", "", time.Now())
	sess.SelectVehicle(results[0])

	results[0]["make"] = "Changed"
	results[0]["features"].(map[string]any)["sunroof"] = false

	if sess.SelectedVehicle.Str("make") != "Honda" {
		t.Fatalf("selected make mutated: %v", sess.SelectedVehicle["make"])
	}
	if sess.SelectedVehicle["features"].(map[string]any)["sunroof"] != true {
		t.Fatal("nested selected vehicle field mutated")
	}
	if sess.Stage != StageVehicleSelected || sess.Awaiting != AwaitingAddress {
		t.Fatalf("stage/awaiting = %q/%q", sess.Stage, sess.Awaiting)
	}
}

func TestCollectIgnoresEmpty(t *testing.T) {
	t.Parallel()

	sess := NewSession("s1", "", time.Now())
	sess.Collect(FieldAddress, "12 Main St")
	if sess.Collect(FieldAddress, "   ") {
		t.Fatal("Collect() accepted an empty value")
	}
	if sess.Field(FieldAddress) != "12 Main St" {
		t.Fatalf("address = %q", sess.Field(FieldAddress))
	}
}

func TestMarkOrdered(t *testing.T) {
	t.Parallel()

	sess := NewSession("s1", "", time.Now())
	sess.SelectVehicle(Vehicle{"make": "Kia"})
	sess.MarkOrdered("o-1", time.Now())
	if !sess.HasOrder() || sess.Stage != StageOrdered || sess.Awaiting != "" {
		t.Fatalf("session after order = %+v", sess)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	sess := NewSession("s1", "", time.Now())
	if err := sess.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	sess.OrderID = "o-1"
	if err := sess.Validate(); !errors.Is(err, ErrOrderNoVehicle) {
		t.Fatalf("Validate() error = %v, want ErrOrderNoVehicle", err)
	}

	sess.Stage = "bogus"
	if err := sess.Validate(); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("Validate() error = %v, want ErrInvalidStage", err)
	}
}

func TestCloneIsDetached(t *testing.T) {
	t.Parallel()

	sess := NewSession("s1", "a@b.com", time.Now())
	sess.Collect(FieldName, "Ann")
	sess.AppendTurn(Turn{User: "hi", Assistant: "hello", Agent: "supervisor"})

	cp := sess.Clone()
	cp.Collected[FieldName] = "Bob"
	cp.Messages[0].User = "changed"

	if sess.Field(FieldName) != "Ann" || sess.Messages[0].User != "hi" {
		t.Fatal("Clone() shares state with the original")
	}
}

func TestVehicleTitle(t *testing.T) {
	t.Parallel()

	v := Vehicle{"make": "Toyota", "model": "Corolla", "year": 2021}
	if got := v.Title(); got != "Toyota Corolla (2021)" {
		t.Fatalf("Title() = %q", got)
	}
	if got := (Vehicle{"make": "Ford"}).Title(); got != "Ford" {
		t.Fatalf("Title() = %q", got)
	}
}

func TestParseStage(t *testing.T) {
	t.Parallel()

	if ParseStage("ordered") != StageOrdered {
		t.Fatal("ParseStage(ordered)")
	}
	if ParseStage("") != StageInit || ParseStage("weird") != StageInit {
		t.Fatal("ParseStage default")
	}
}
