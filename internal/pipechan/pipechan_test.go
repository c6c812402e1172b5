package pipechan

import (
	"errors"
	"io"
	"testing"

	"golang.org/x/sys/unix"
)

// link returns a parent Channel and a child Channel connected in-process.
func link(t *testing.T) (parent, child *Channel) {
	t.Helper()
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	files := p.ChildFiles()
	child = FromFiles(files[0], files[1])
	parent = FromFiles(p.parentRead, p.parentWrite)
	t.Cleanup(func() {
		parent.Close()
		child.Close()
	})
	return parent, child
}

func TestSendAndReadAcrossChunks(t *testing.T) {
	parent, child := link(t)

	go func() {
		child.Printf("%s: ", "/tmp/x")
		child.Send("Delete?\n")
		child.Close()
	}()

	data, err := io.ReadAll(parent.Reader())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "/tmp/x: Delete?\n" {
		t.Fatalf("got %q", data)
	}
}

func TestReceiveByte(t *testing.T) {
	parent, child := link(t)

	if err := parent.Send("YN"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []byte("YN") {
		b, err := child.ReceiveByte()
		if err != nil || b != want {
			t.Fatalf("ReceiveByte = %q, %v; want %q", b, err, want)
		}
	}

	parent.Close()
	if _, err := child.ReceiveByte(); err == nil {
		t.Fatal("expected error once the parent is gone")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	parent, _ := link(t)
	first := parent.Close()
	if second := parent.Close(); second != first {
		t.Fatalf("second Close = %v, first = %v", second, first)
	}
	if err := parent.Send("Y"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestParentClosesChildEnds(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}
	parent := p.Parent()
	defer parent.Close()

	// Both child ends are closed in this process, so the report pipe has
	// no writer left and reads see EOF.
	data, err := io.ReadAll(parent.Reader())
	if err != nil || len(data) != 0 {
		t.Fatalf("ReadAll = %q, %v", data, err)
	}
	if err := parent.Send("Y"); err == nil {
		t.Fatal("expected write to a pipe without reader to fail")
	}
}

func TestChildDescriptorsCloseOnExec(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	// dup clears FD_CLOEXEC, as the fork does for ExtraFiles.
	inFD, err := unix.Dup(int(p.childRead.Fd()))
	if err != nil {
		t.Fatal(err)
	}
	outFD, err := unix.Dup(int(p.childWrite.Fd()))
	if err != nil {
		t.Fatal(err)
	}
	for _, fd := range []int{inFD, outFD} {
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
		if err != nil || flags&unix.FD_CLOEXEC != 0 {
			t.Fatalf("fd %d before: flags=%#x err=%v", fd, flags, err)
		}
	}

	ch, err := childFromFDs(inFD, outFD)
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()
	for _, fd := range []int{inFD, outFD} {
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
		if err != nil {
			t.Fatal(err)
		}
		if flags&unix.FD_CLOEXEC == 0 {
			t.Errorf("fd %d is inherited by exec'd programs", fd)
		}
	}
}
