package clipboard

import (
	"runtime"
	"testing"
)

func TestCopyRead(t *testing.T) {
	if !Available() {
		t.Skip("no clipboard utility")
	}
	if err := Copy("hello world"); err != nil {
		t.Skipf("clipboard not reachable: %v", err)
	}
	got, err := Read()
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello world" {
		t.Errorf("Read() = %q, want %q", got, "hello world")
	}
}

func TestSystemUsesCopy(t *testing.T) {
	if Available() {
		t.Skip("only checks the unsupported path")
	}
	if err := (System{}).Copy("x"); err != ErrUnsupported {
		t.Errorf("Copy() = %v, want ErrUnsupported", err)
	}
}

func TestPasteCombo(t *testing.T) {
	want := "Ctrl+V"
	if runtime.GOOS == "darwin" {
		want = "Cmd+V"
	}
	if got := PasteCombo(); got != want {
		t.Errorf("PasteCombo() = %q, want %q", got, want)
	}
}
