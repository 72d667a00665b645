//go:build unix

package serial

import (
	"os"
	"syscall"
	"testing"
	"time"

	"go.viam.com/test"
)

// A file descriptor in blocking mode, like an inherited stdin, is not interrupted by Close.
func TestPumpCloseBlockingFile(t *testing.T) {
	fds := make([]int, 2)
	test.That(t, syscall.Pipe(fds), test.ShouldBeNil)
	r := os.NewFile(uintptr(fds[0]), "pipe-r")
	w := os.NewFile(uintptr(fds[1]), "pipe-w")
	defer w.Close()

	pump := NewPump(r, 4)
	// give the pump goroutine time to block in read
	time.Sleep(50 * time.Millisecond)

	closed := make(chan error, 1)
	go func() {
		closed <- pump.Close()
	}()
	select {
	case err := <-closed:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a reader with no input")
	}

	buf := make([]byte, 1)
	n, err := pump.Read(buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 0)
}
