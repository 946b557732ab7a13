package cmd

import (
	"fmt"
	"testing"
)

// exitMocks patches the fatal globals so commands under test return to the
// caller instead of terminating the test binary.
type exitMocks struct {
	fatals []string
	codes  []int
}

func (m *exitMocks) Fatalf(format string, v ...interface{}) {
	m.fatals = append(m.fatals, fmt.Sprintf(format, v...))
	m.codes = append(m.codes, 1)
}

func (m *exitMocks) Fatalln(v ...interface{}) {
	m.fatals = append(m.fatals, fmt.Sprintln(v...))
	m.codes = append(m.codes, 1)
}

func (m *exitMocks) Exit(code int) {
	m.codes = append(m.codes, code)
}

func interceptFatals(t *testing.T) *exitMocks {
	mocks := &exitMocks{}
	savedFatalln, savedFatalf, savedExit := logFatalln, logFatalf, osExit
	logFatalln = mocks.Fatalln
	logFatalf = mocks.Fatalf
	osExit = mocks.Exit
	t.Cleanup(func() {
		logFatalln, logFatalf, osExit = savedFatalln, savedFatalf, savedExit
	})
	return mocks
}
