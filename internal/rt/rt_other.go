//go:build !linux

package rt

func apply(Config) error {
	return ErrUnsupported
}
