package logflags

import (
	"io"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var cubin = false
var oracle = false
var cli = false

var logOut io.WriteCloser

var textFormatterInstance = &logrus.TextFormatter{
	DisableTimestamp: true,
}

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New()
	logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Out = logOut
	} else {
		logger.Out = os.Stderr
	}
	logger.Level = logrus.DebugLevel
	if !flag {
		logger.Level = logrus.ErrorLevel
	}
	return logger.WithFields(fields)
}

// Cubin returns true if the cubin loader should log.
func Cubin() bool {
	return cubin
}

// CubinLogger returns a logger for the cubin loader.
func CubinLogger() *logrus.Entry {
	return makeLogger(cubin, logrus.Fields{"layer": "cubin"})
}

// Oracle returns true if the reference disassembler adapter should log.
func Oracle() bool {
	return oracle
}

// OracleLogger returns a logger for the reference disassembler adapter.
func OracleLogger() *logrus.Entry {
	return makeLogger(oracle, logrus.Fields{"layer": "oracle"})
}

// CLI returns true if the command line front end should log.
func CLI() bool {
	return cli
}

// CLILogger returns a logger for the command line front end.
func CLILogger() *logrus.Entry {
	return makeLogger(cli, logrus.Fields{"layer": "cli"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the log flags based on the contents of logstr. If logDest is
// not empty logs are written to it: a number is taken as a file
// descriptor, anything else as a file path.
func Setup(logFlag bool, logstr string, logDest string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "nvdis-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return errors.Wrapf(err, "could not create log file")
			}
			logOut = fh
		}
		log.SetOutput(logOut)
	}
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "cli"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		switch logcmd {
		case "cubin":
			cubin = true
		case "oracle":
			oracle = true
		case "cli":
			cli = true
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
		logOut = nil
	}
}
