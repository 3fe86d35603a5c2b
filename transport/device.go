package transport

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"runtime"
	"strings"
)

// DeviceInfo describes the client to the Identity Service, which derives the
// device name and session type shown in its session list from it.
type DeviceInfo struct {
	Platform   string `json:"platform"`
	Arch       string `json:"arch"`
	UserAgent  string `json:"user_agent"`
	Language   string `json:"language,omitempty"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name,omitempty"`
}

func NewDeviceInfo(deviceID, deviceName, userAgent string) DeviceInfo {
	if deviceName == "" {
		deviceName, _ = os.Hostname()
	}
	return DeviceInfo{
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
		UserAgent:  userAgent,
		Language:   language(),
		DeviceID:   deviceID,
		DeviceName: deviceName,
	}
}

// Header encodes the blob for the X-Device-Info header.
func (d DeviceInfo) Header() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func language() string {
	for _, v := range []string{"LC_ALL", "LANG"} {
		if l := os.Getenv(v); l != "" {
			return strings.SplitN(l, ".", 2)[0]
		}
	}
	return ""
}
