//go:build !darwin

package monitor

func newPlatformEnumerator() Enumerator {
	return FallbackEnumerator{}
}
