package greenhouse

import "errors"

var (
	ErrInvalidSubsystem     = errors.New("invalid subsystem")
	ErrCO2OutOfRange        = errors.New("co2 level out of range")
	ErrCloudinessOutOfRange = errors.New("cloudiness out of range")
	ErrInvalidTickInterval  = errors.New("tick interval must be positive")
	ErrInvalidStartOfDay    = errors.New("start of day must be within [00:00, 24:00)")
)
