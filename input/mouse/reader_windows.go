//go:build windows

package mouse

import "golang.org/x/sys/windows"

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

// Virtual key codes in button order.
var virtualKeys = [ButtonCount]uintptr{0x01, 0x04, 0x02, 0x05, 0x06}

type asyncKeyReader struct{}

// NewReader returns a reader backed by GetAsyncKeyState.
func NewReader() (ButtonReader, error) {
	if err := procGetAsyncKeyState.Find(); err != nil {
		return nil, err
	}
	return asyncKeyReader{}, nil
}

func (asyncKeyReader) Buttons() ([ButtonCount]bool, error) {
	var out [ButtonCount]bool
	for i, vk := range virtualKeys {
		r, _, _ := procGetAsyncKeyState.Call(vk)
		out[i] = r&0x8000 != 0
	}
	return out, nil
}
