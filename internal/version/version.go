// Package version хранит сведения о сборке fulfillment-сервиса.
package version

import "fmt"

// ServiceName — имя сервиса в логах и health-ответах.
const ServiceName = "fulfillment-service"

// Заполняются при сборке через -ldflags "-X ...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build описывает конкретную сборку бинаря.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Current возвращает сведения о текущей сборке.
func Current() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

// Info возвращает версию, коммит и дату сборки по отдельности.
func Info() (v, c, d string) { return version, commit, date }

// String — однострочное представление для стартового лога.
func String() string {
	return fmt.Sprintf("%s version=%s commit=%s date=%s", ServiceName, version, commit, date)
}
