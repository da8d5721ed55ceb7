package signalhandler

import (
	"context"
	"runtime"
	"syscall"
	"testing"
	"time"
)

func TestGetOptimalProcs(t *testing.T) {
	got := GetOptimalProcs()
	if got < 1 || got > runtime.NumCPU() {
		t.Errorf("GetOptimalProcs() = %d with %d CPUs", got, runtime.NumCPU())
	}
}

func TestSetupHandlerCancelsOnSignal(t *testing.T) {
	ctx, stop := SetupHandler(context.Background())
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled by SIGINT")
	}
}

func TestStopReleasesContext(t *testing.T) {
	ctx, stop := SetupHandler(context.Background())
	stop()
	if ctx.Err() == nil {
		t.Error("stop should cancel the context")
	}
}
