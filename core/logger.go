package core

// Person identifies the user on whose behalf something is logged.
type Person struct {
	ID    string
	Name  string
	Email string
}

// Logger is any structured logger.
// expected args: error, map[string]interface{}, Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
