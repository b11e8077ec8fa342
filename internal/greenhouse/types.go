package greenhouse

import (
	"fmt"
	"time"
)

// Subsystem is an integer enum.
type Subsystem int

const (
	SubsystemUnknown Subsystem = iota
	SubsystemUV
	SubsystemCO2Lift
	SubsystemIR
)

// Subsystems lists every valid subsystem in display order.
var Subsystems = []Subsystem{SubsystemUV, SubsystemCO2Lift, SubsystemIR}

func (s Subsystem) Valid() bool {
	return s == SubsystemUV || s == SubsystemCO2Lift || s == SubsystemIR
}

func (s Subsystem) String() string {
	switch s {
	case SubsystemUV:
		return "uv"
	case SubsystemCO2Lift:
		return "co2"
	case SubsystemIR:
		return "ir"
	default:
		return "unknown"
	}
}

func ParseSubsystem(s string) (Subsystem, error) {
	switch s {
	case "uv":
		return SubsystemUV, nil
	case "co2":
		return SubsystemCO2Lift, nil
	case "ir":
		return SubsystemIR, nil
	default:
		return SubsystemUnknown, fmt.Errorf("invalid subsystem: %q", s)
	}
}

// SubsystemState is the on/off flag plus a 0..100 display progress.
type SubsystemState struct {
	Active   bool
	Progress float64
}

// Snapshot is a copy of the simulation state after a transition.
type Snapshot struct {
	Time          time.Time // simulated
	Minutes       uint32    // simulated minutes elapsed since initialization
	CO2Level      int       // ppm
	StartCO2Level int       // CO2 level when the lift last started
	Cloudiness    int       // percent
	Running       bool

	UV      SubsystemState
	CO2Lift SubsystemState
	IR      SubsystemState

	LastIRActivation   time.Time
	LastIRConsumption  float64 // kWh reported by the most recent IR shutdown
	TotalIRConsumption float64 // kWh reported since initialization
}

func (s Snapshot) Subsystem(sub Subsystem) SubsystemState {
	switch sub {
	case SubsystemUV:
		return s.UV
	case SubsystemCO2Lift:
		return s.CO2Lift
	case SubsystemIR:
		return s.IR
	default:
		return SubsystemState{}
	}
}

// Daytime reports whether the simulated hour lies in the IR heating window.
func (s Snapshot) Daytime() bool {
	h := s.Time.Hour()
	return h >= DayStartHour && h < DayEndHour
}

// IRCooldownElapsed reports whether IR may be switched on again.
func (s Snapshot) IRCooldownElapsed() bool {
	return s.Time.Sub(s.LastIRActivation) > IRCooldown
}

// Renderer is a display collaborator fed after every tick.
type Renderer interface {
	Render(Snapshot)
}

type RendererFunc func(Snapshot)

func (f RendererFunc) Render(s Snapshot) { f(s) }
