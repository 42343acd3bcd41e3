//go:build !darwin || !cgo

package monitor

// unavailableOracle is the build-time stub for platforms without the
// Window Server. Available() is false, which makes engine startup fail
// with a clear error instead of running a monitor that can never detect
// a hang.
type unavailableOracle struct{}

func (unavailableOracle) Available() bool { return false }

func (unavailableOracle) IsUnresponsive(int32) (bool, bool) { return false, false }

// NewPlatform returns the stub oracle, the portable enumerator, and no
// push channel.
func NewPlatform() (Oracle, Enumerator, PushChannel) {
	return unavailableOracle{}, newPlatformEnumerator(), nil
}
