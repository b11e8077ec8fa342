package greenhouse

import "time"

const (
	MinCO2    = 300
	MaxCO2    = 1300
	CO2Target = 1200

	// CO2LiftStep is added per tick while the lift runs.
	CO2LiftStep = 10

	MinCloudiness = 0
	MaxCloudiness = 100

	InitialCO2Min        = 300
	InitialCO2Max        = 800
	InitialCloudinessMin = 35
	InitialCloudinessMax = 65

	// PerturbEvery is the period, in simulated minutes, of random drift.
	PerturbEvery     = 20
	CO2Jitter        = 50.0
	CloudinessJitter = 13.0

	UVOnHour  = 6
	UVOffHour = 7

	DayStartHour    = 6
	DayEndHour      = 20
	CloudyThreshold = 50

	IRCooldown = time.Hour

	timeStep = time.Minute

	IRMinKWh       = 5.0
	IRMaxKWh       = 15.0
	IRManualMinKWh = 3.0
	IRManualMaxKWh = 10.0

	MaxProgress = 100.0
)

// Params configures a new engine.
type Params struct {
	// TickInterval is the real time between ticks; each tick is one simulated minute.
	TickInterval time.Duration

	// StartOfDay is the simulated clock offset from midnight at initialization.
	StartOfDay time.Duration

	// Pinned initial values; nil draws them at random.
	InitialCO2        *int
	InitialCloudiness *int

	// Seed for the default random source, 0 picks one at random.
	Seed uint64
}

func DefaultParams() Params {
	return Params{
		TickInterval: time.Second,
		StartOfDay:   5*time.Hour + 30*time.Minute,
	}
}

func (p *Params) Validate() error {
	if p.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}
	if p.StartOfDay < 0 || p.StartOfDay >= 24*time.Hour {
		return ErrInvalidStartOfDay
	}
	if p.InitialCO2 != nil && (*p.InitialCO2 < MinCO2 || *p.InitialCO2 > MaxCO2) {
		return ErrCO2OutOfRange
	}
	if p.InitialCloudiness != nil && (*p.InitialCloudiness < MinCloudiness || *p.InitialCloudiness > MaxCloudiness) {
		return ErrCloudinessOutOfRange
	}
	return nil
}
