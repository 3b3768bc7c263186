package mpu

import "testing"

type fakeSink struct {
	written [RegionCount]uint8
}

func (f *fakeSink) WriteSubRegionDisable(region int, srd uint8) {
	f.written[region] = srd
}

func TestSetWindow(t *testing.T) {
	mask, err := SetWindow(0x20001000, 1024)
	if err != nil {
		t.Fatalf("SetWindow: %v", err)
	}
	// region 4K1 occupies bits 0-7; a 1024-byte window at the region base
	// covers the first two 512-byte sub-regions, bits 0 and 1.
	if mask != 0b11 {
		t.Fatalf("mask = %#x, want 0b11", mask)
	}
}

func TestAddWindowMisaligned(t *testing.T) {
	if _, err := AddWindow(0, 0x20001000+256, 512); err == nil {
		t.Fatalf("expected error for misaligned base")
	}
}

func TestAddWindowUnknownAddress(t *testing.T) {
	if _, err := AddWindow(0, 0xDEADBEEF, 512); err == nil {
		t.Fatalf("expected error for address outside any region")
	}
}

func TestAddWindowOverrunsRegion(t *testing.T) {
	if _, err := AddWindow(0, 0x20002000, 9*1024); err == nil {
		t.Fatalf("expected error for window exceeding region size")
	}
}

func TestApplyMaskInversion(t *testing.T) {
	sink := &fakeSink{}
	c := NewConfigurator(sink)

	// Grant every sub-region of region 0 (4K1) except the last.
	mask := Mask(0b01111111)
	disable := c.ApplyMask(mask)

	if disable[0] != 0b10000000 {
		t.Fatalf("region 0 disable byte = %#b, want %#b", disable[0], 0b10000000)
	}
	if sink.written[0] != disable[0] {
		t.Fatalf("sink did not observe the disable byte it was given")
	}
	for region := 1; region < RegionCount; region++ {
		if disable[region] != 0xFF {
			t.Fatalf("region %d disable byte = %#x, want 0xff (no access granted)", region, disable[region])
		}
	}
}

func TestSubRegionIndex(t *testing.T) {
	idx, size, err := SubRegionIndex(0x20004000 + 512*3)
	if err != nil {
		t.Fatalf("SubRegionIndex: %v", err)
	}
	if idx != 16+3 {
		t.Fatalf("index = %d, want %d", idx, 16+3)
	}
	if size != 512 {
		t.Fatalf("sub-region size = %d, want 512", size)
	}
}

func TestMaskUnionAndWithout(t *testing.T) {
	a := Mask(0b0011)
	b := Mask(0b0110)
	if got := a.Union(b); got != 0b0111 {
		t.Fatalf("Union = %#b, want 0b0111", got)
	}
	if got := a.Union(b).Without(b); got != 0b0001 {
		t.Fatalf("Without = %#b, want 0b0001", got)
	}
}
