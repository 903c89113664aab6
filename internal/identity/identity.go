// Package identity 为每台设备生成一个可读的标识
// 形如 Windows_A3F9K2，前缀来自 User-Agent
package identity

import (
	"strings"

	"github.com/google/uuid"
)

const shortCodeLength = 6

// 短码去掉连字符后取前六位，足够在玩家文档里不撞车
const shortCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DeviceName 从 User-Agent 猜一个平台名，猜不出用 Device
func DeviceName(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return "iOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "mac"):
		return "Mac"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "Device"
	}
}

// NewPlayerID 生成 平台名_短码 形式的设备标识
func NewPlayerID(userAgent string) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))

	code := make([]byte, 0, shortCodeLength)
	for i := 0; i < len(raw) && len(code) < shortCodeLength; i++ {
		if strings.IndexByte(shortCodeAlphabet, raw[i]) >= 0 {
			code = append(code, raw[i])
		}
	}

	return DeviceName(userAgent) + "_" + string(code)
}
