package cx

import (
	"fmt"
	"log"
)

// Logger is the minimal logging surface used across the client.
// Install a custom implementation through the client options.
type Logger interface {
	Log(message interface{})
	Logf(format string, v ...interface{})
}

type defaultLogger struct{}

// NewDefaultLogger returns a Logger implementation over the standard log package
func NewDefaultLogger() Logger {
	d := &defaultLogger{}
	return d
}

func (d *defaultLogger) Log(message interface{}) {
	log.Printf("[TABLET CLIENT] %s \n", message)
}

func (d *defaultLogger) Logf(message string, v ...interface{}) {
	d.Log(fmt.Sprintf(message, v...))
}
