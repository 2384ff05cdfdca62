package nalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	sourceTypeWeb    = "WEB"
	appVersion       = "1.0.0"
	defaultUserAgent = "npd-client/1.0 (+https://github.com/pigeonworks-llc/npd-client)"
	deviceIDLength   = 21
)

// DeviceInfo identifies this client to the auth endpoints. The server binds
// refresh tokens to SourceDeviceID, so it must stay stable across runs.
type DeviceInfo struct {
	SourceDeviceID string      `json:"sourceDeviceId"`
	SourceType     string      `json:"sourceType"`
	AppVersion     string      `json:"appVersion"`
	MetaDetails    MetaDetails `json:"metaDetails"`
}

// MetaDetails carries the user agent.
type MetaDetails struct {
	UserAgent string `json:"userAgent"`
}

func newDeviceInfo(deviceID, userAgent string) DeviceInfo {
	if deviceID == "" {
		deviceID = NewDeviceID()
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return DeviceInfo{
		SourceDeviceID: deviceID,
		SourceType:     sourceTypeWeb,
		AppVersion:     appVersion,
		MetaDetails:    MetaDetails{UserAgent: userAgent},
	}
}

// NewDeviceID returns a random 21-character device identifier.
func NewDeviceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:deviceIDLength]
}

// LoadOrCreateDeviceID reads a device ID from path, creating the file with a
// fresh ID when it does not exist.
func LoadOrCreateDeviceID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read device id file: %w", err)
	}

	id := NewDeviceID()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("failed to create device id directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to write device id file: %w", err)
	}
	return id, nil
}
