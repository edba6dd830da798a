package fabric

import "testing"

func TestFabricIndexIsValid(t *testing.T) {
	if FabricIndexInvalid.IsValid() {
		t.Error("FabricIndexInvalid should not be valid")
	}
	if !FabricIndexMin.IsValid() || !FabricIndexMax.IsValid() {
		t.Error("FabricIndexMin and FabricIndexMax should be valid")
	}
	if FabricIndex(255).IsValid() {
		t.Error("FabricIndex(255) should not be valid")
	}
}

func TestFabricIDIsValid(t *testing.T) {
	if FabricIDInvalid.IsValid() {
		t.Error("FabricIDInvalid should not be valid")
	}
	if !FabricID(1).IsValid() {
		t.Error("FabricID(1) should be valid")
	}
}

func TestNodeIDIsOperational(t *testing.T) {
	if NodeIDUnspecified.IsOperational() {
		t.Error("NodeIDUnspecified should not be operational")
	}
	if !NodeIDMinOperational.IsOperational() || !NodeIDMaxOperational.IsOperational() {
		t.Error("NodeIDMinOperational and NodeIDMaxOperational should be operational")
	}
}
