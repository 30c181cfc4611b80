package types

// ResultCode classifies the outcome of a precompiled contract invocation.
// Recoverable failures are reported through these codes; internal invariant
// breaches travel as ordinary Go errors alongside the result.
type ResultCode uint8

const (
	Success ResultCode = iota
	Failure
	OutOfEnergy
	InvalidEnergyLimit
	InsufficientBalance
)

func (c ResultCode) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	case OutOfEnergy:
		return "OUT_OF_NRG"
	case InvalidEnergyLimit:
		return "INVALID_NRG_LIMIT"
	case InsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess reports whether the code denotes a committed state transition.
func (c ResultCode) IsSuccess() bool { return c == Success }

// PrecompiledResult carries the outcome of a precompile execution back to the
// virtual machine: the result code, the energy left for the caller and any
// return data.
type PrecompiledResult struct {
	Code            ResultCode
	EnergyRemaining uint64
	Output          []byte
}

// Succeed builds a successful result with the given remaining energy and
// return data.
func Succeed(energyRemaining uint64, output []byte) *PrecompiledResult {
	return &PrecompiledResult{Code: Success, EnergyRemaining: energyRemaining, Output: output}
}

// Fail builds a non-success result. Remaining energy defaults to zero; codes
// that let the caller keep energy set it explicitly.
func Fail(code ResultCode, energyRemaining uint64) *PrecompiledResult {
	return &PrecompiledResult{Code: code, EnergyRemaining: energyRemaining}
}
