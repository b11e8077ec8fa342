package greenhouse

// stepLocked is one simulated minute. The caller holds e.mu.
func (e *Engine) stepLocked() Snapshot {
	s := &e.s

	s.Time = s.Time.Add(timeStep)
	s.Minutes++

	if s.Minutes%PerturbEvery == 0 {
		// The lift owns the CO2 level while UV runs.
		if !s.UV.Active {
			s.CO2Level = drift(s.CO2Level, jitter(e.src, CO2Jitter), MinCO2, MaxCO2)
		}
		s.Cloudiness = drift(s.Cloudiness, jitter(e.src, CloudinessJitter), MinCloudiness, MaxCloudiness)
	}

	hour := s.Time.Hour()
	if hour == UVOnHour && !s.UV.Active {
		s.UV = SubsystemState{Active: true}
		s.CO2Lift.Active = true
		s.StartCO2Level = s.CO2Level
		e.logLocked("UV irradiation system enabled.")
		e.logLocked("CO₂ lift system enabled.")
	} else if hour == UVOffHour && s.UV.Active {
		s.UV = SubsystemState{}
		e.logLocked("UV irradiation system disabled.")
	}

	if s.UV.Active {
		s.UV.Progress = advance(s.UV.Progress)
	}

	if s.CO2Lift.Active {
		s.CO2Lift.Progress = liftProgress(s.CO2Level, s.StartCO2Level)
		s.CO2Level += CO2LiftStep
		if s.CO2Level > CO2Target {
			s.CO2Level = CO2Target
			s.CO2Lift = SubsystemState{}
			e.logLocked("CO₂ lift system disabled.")
		}
	}

	cloudy := s.Cloudiness > CloudyThreshold
	if s.Daytime() && cloudy && s.IRCooldownElapsed() && !s.IR.Active {
		s.IR = SubsystemState{Active: true}
		// Armed one hour ahead; the shutdown check below compares against it.
		s.LastIRActivation = s.Time.Add(IRCooldown)
		e.logLocked("IR heating enabled.")
	}

	if s.IR.Active && !s.Time.Before(s.LastIRActivation) {
		used := kWh(e.src, IRMinKWh, IRMaxKWh)
		s.IR = SubsystemState{}
		e.recordConsumptionLocked(used)
		e.logLocked("IR heating disabled. Consumed: " + formatKWh(used) + " kWh")
	}

	if s.IR.Active {
		s.IR.Progress = advance(s.IR.Progress)
	}

	return *s
}

// liftProgress maps the CO2 level onto 0..100 between the start level and the target.
func liftProgress(level, start int) float64 {
	span := float64(CO2Target - start)
	if span <= 0 {
		return MaxProgress
	}
	p := float64(level-start) / span * 100
	if p < 0 {
		return 0
	}
	if p > MaxProgress {
		return MaxProgress
	}
	return p
}

func advance(p float64) float64 {
	if p+1 > MaxProgress {
		return MaxProgress
	}
	return p + 1
}
