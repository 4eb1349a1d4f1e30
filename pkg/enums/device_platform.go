package enums

import "fmt"

// DevicePlatform identifies where a push token was registered.
type DevicePlatform string

const (
	DevicePlatformIOS     DevicePlatform = "ios"
	DevicePlatformAndroid DevicePlatform = "android"
	DevicePlatformWeb     DevicePlatform = "web"
)

var validDevicePlatforms = []DevicePlatform{
	DevicePlatformIOS,
	DevicePlatformAndroid,
	DevicePlatformWeb,
}

// String implements fmt.Stringer.
func (d DevicePlatform) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DevicePlatform.
func (d DevicePlatform) IsValid() bool {
	for _, candidate := range validDevicePlatforms {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDevicePlatform converts raw input into a DevicePlatform.
func ParseDevicePlatform(value string) (DevicePlatform, error) {
	for _, candidate := range validDevicePlatforms {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid device platform %q", value)
}
