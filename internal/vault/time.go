package vault

import "time"

func nowFloat() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
