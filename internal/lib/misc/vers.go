package misc

import (
	"runtime/debug"
	"slices"
)

func GetVersionInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(unknown)"
	}
	if fnd := slices.IndexFunc(info.Settings, func(v debug.BuildSetting) bool { return v.Key == "vcs.revision" }); fnd != -1 {
		return info.Settings[fnd].Value[0:7]
	}
	return "(unknown)"
}
