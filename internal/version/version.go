// Package version хранит сведения о сборке, которые проставляются через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/restaurant/internal/version.version=1.2.0"
package version

import "fmt"

// ServiceName имя сервиса в логах, health-ответах и трассировке.
const ServiceName = "restaurant-service"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хэш коммита сборки.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

func String() string {
	return fmt.Sprintf("service=%s version=%s commit=%s date=%s", ServiceName, version, commit, date)
}
