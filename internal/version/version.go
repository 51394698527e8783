package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Заполняются через -ldflags "-X .../internal/version.version=...".
// Без ldflags commit и date берутся из VCS-метаданных сборки, если они есть.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var resolveOnce sync.Once

func resolve() {
	resolveOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		commit, date = fromBuildSettings(info.Settings, commit, date)
	})
}

// fromBuildSettings подставляет vcs.revision и vcs.time вместо значений по умолчанию.
func fromBuildSettings(settings []debug.BuildSetting, c, d string) (string, string) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if c == "unknown" && s.Value != "" {
				c = s.Value
				if len(c) > 12 {
					c = c[:12]
				}
			}
		case "vcs.time":
			if d == "unknown" && s.Value != "" {
				d = s.Value
			}
		}
	}
	return c, d
}

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) {
	resolve()
	return version, commit, date
}

func GetVersion() string { return version }

func GetCommit() string { resolve(); return commit }

func GetDate() string { resolve(); return date }

// String форматирует сборку для стартового лога fulfillment-сервиса.
func String() string {
	v, c, d := Info()
	return fmt.Sprintf("fulfillment %s (commit=%s, built=%s)", v, c, d)
}
