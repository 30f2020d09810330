package ddbload

import (
	"fmt"
)

const (
	kbUnit = 1000
	mbUnit = 1000 * kbUnit
	gbUnit = 1000 * mbUnit
)

func PrettyPrintBytes(size int) string {
	switch {
	case size >= gbUnit:
		return fmt.Sprintf("%.2f GB", float64(size)/gbUnit)
	case size >= mbUnit:
		return fmt.Sprintf("%.2f MB", float64(size)/mbUnit)
	case size >= kbUnit:
		return fmt.Sprintf("%.2f KB", float64(size)/kbUnit)
	default:
		return fmt.Sprintf("%.2f B", float64(size))
	}
}
