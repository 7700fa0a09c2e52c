package common

import (
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner
func PrintBanner(appName string) {
	banner.PrintSimple(appName, GetVersion())
}
