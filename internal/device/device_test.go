package device

import (
	"testing"

	"github.com/google/uuid"

	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
)

func TestNewDevice(t *testing.T) {
	id := "test-id"
	engine := &greenhouse.Engine{}
	device := New(id, engine)

	if device.ID != id {
		t.Errorf("Expected device ID to be %s, got %s", id, device.ID)
	}
	if device.E != engine {
		t.Error("Expected engine to be kept")
	}
	if device.RunID == uuid.Nil {
		t.Error("Expected a run id")
	}
	if other := New(id, engine); other.RunID == device.RunID {
		t.Error("Expected a fresh run id per device")
	}
}
