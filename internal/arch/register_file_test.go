package arch

import (
	"testing"

	"github.com/tinyrange/rtkernel/internal/mpu"
)

func TestWriteSubRegionDisableRoundTrip(t *testing.T) {
	rf := NewRegisterFile()
	rf.WriteSubRegionDisable(2, 0xAA)
	if got := rf.SubRegionDisable(2); got != 0xAA {
		t.Fatalf("got %#x, want 0xaa", got)
	}
}

func TestWriteStaticRegionRejectsContradiction(t *testing.T) {
	rf := NewRegisterFile()
	err := rf.WriteStaticRegion(mpu.StaticRegion{Name: "bad", Executable: true, DenyAll: true})
	if err == nil {
		t.Fatal("expected an error for an executable deny-all region")
	}
}

func TestWriteStaticRegionRecordsProgramming(t *testing.T) {
	rf := NewRegisterFile()
	if err := rf.WriteStaticRegion(mpu.StaticRegion{Name: "flash", Executable: true}); err != nil {
		t.Fatalf("WriteStaticRegion: %v", err)
	}
	got, ok := rf.StaticRegion("flash")
	if !ok || !got.Executable {
		t.Fatalf("got %+v ok=%v, want an executable flash region", got, ok)
	}
}
