package build

import "strings"

var (
	Version = "dev"
	AppName = "FECSync"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
