//go:build !windows

package mouse

func NewReader() (ButtonReader, error) {
	return nil, ErrUnsupported
}
