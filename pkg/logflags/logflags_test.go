package logflags

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func resetFlags() {
	cubin, oracle, cli = false, false, false
}

func TestMakeLogger_withFlagFalse(t *testing.T) {
	logOut = &bufferWriter{}
	defer func() {
		logOut = nil
	}()

	actual := makeLogger(false, logrus.Fields{"foo": "bar"})
	if actual.Logger.Level != logrus.ErrorLevel {
		t.Fatalf("expected actual.Logger.Level to be <%v>; but was <%v>", logrus.ErrorLevel, actual.Logger.Level)
	}
	if len(actual.Data) != 1 || actual.Data["foo"] != "bar" {
		t.Fatalf("expected actual.Data to be {'foo':'bar'}; but was <%v>", actual.Data)
	}
}

func TestMakeLogger_withFlagTrue(t *testing.T) {
	out := &bufferWriter{}
	logOut = out
	defer func() {
		logOut = nil
	}()

	actual := makeLogger(true, logrus.Fields{"layer": "cubin"})
	if actual.Logger.Level != logrus.DebugLevel {
		t.Fatalf("expected actual.Logger.Level to be <%v>; but was <%v>", logrus.DebugLevel, actual.Logger.Level)
	}
	if actual.Logger.Formatter != textFormatterInstance {
		t.Fatalf("expected actual.Logger.Formatter to be <%v>; but was <%v>", textFormatterInstance, actual.Logger.Formatter)
	}
	actual.Debugf("decoded %d instructions", 3)
	if got := out.String(); !strings.Contains(got, "decoded 3 instructions") || !strings.Contains(got, "layer=cubin") {
		t.Fatalf("unexpected log output %q", got)
	}
}

func TestSetup(t *testing.T) {
	defer resetFlags()

	if err := Setup(false, "cubin", ""); err != errLogstrWithoutLog {
		t.Fatalf("expected errLogstrWithoutLog, got %v", err)
	}
	if err := Setup(false, "", ""); err != nil {
		t.Fatal(err)
	}
	if Cubin() || Oracle() || CLI() {
		t.Fatal("no layer should be enabled without --log")
	}

	if err := Setup(true, "", ""); err != nil {
		t.Fatal(err)
	}
	if !CLI() || Cubin() || Oracle() {
		t.Fatalf("expected only cli logging by default, got cubin=%v oracle=%v cli=%v", Cubin(), Oracle(), CLI())
	}

	resetFlags()
	if err := Setup(true, "cubin,oracle", ""); err != nil {
		t.Fatal(err)
	}
	if !Cubin() || !Oracle() || CLI() {
		t.Fatalf("unexpected flags cubin=%v oracle=%v cli=%v", Cubin(), Oracle(), CLI())
	}
}

type bufferWriter struct {
	bytes.Buffer
}

func (bw *bufferWriter) Close() error {
	return nil
}
