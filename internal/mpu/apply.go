package mpu

import "fmt"

// DisableMask is the hardware-facing encoding: one byte per region, bit set
// means that sub-region is DISABLED. This is the inverse of Mask, and the
// only place the inversion between the two should ever happen (spec.md §9).
type DisableMask [RegionCount]uint8

// RegisterSink is the narrow surface the MPU configurator needs from the
// register/assembly shim: programming one region's sub-region-disable byte.
// A real target backs this with MMIO writes to NVIC_MPU_*; the host harness
// backs it with a simulated register file (internal/arch).
type RegisterSink interface {
	WriteSubRegionDisable(region int, srd uint8)
}

// Configurator programs the static background/flash/peripheral regions once
// at boot and applies a per-task sub-region mask on every context switch.
//
// Grounded on original_source/mm.c's BackgroundRules/allowFlashAccess/
// setupSramAccess (static program) and applySramAccessMask (per-task
// apply), restructured as a small stateless type in the manner of
// internal/chipset.Chipset.
type Configurator struct {
	sink RegisterSink
}

// NewConfigurator returns a Configurator that programs regions through sink.
func NewConfigurator(sink RegisterSink) *Configurator {
	return &Configurator{sink: sink}
}

// ApplyMask programs all five RAM regions' sub-region-disable bytes from a
// task's permission mask, inverting each 8-bit slice as it goes: a
// permission bit set means the disable bit must be clear.
//
// spec.md §4.2 requires this to complete before the exception return
// fetches any user-mode instruction; callers (internal/kernel's PendSV
// handler) must invoke this synchronously inside the privileged switch path.
func (c *Configurator) ApplyMask(mask Mask) DisableMask {
	var disable DisableMask
	for region := 0; region < RegionCount; region++ {
		permission := uint8(mask >> uint(region*SubRegionsPerRegion))
		srd := ^permission
		disable[region] = srd
		c.sink.WriteSubRegionDisable(region, srd)
	}
	return disable
}

// StaticRegion describes a background/flash/peripheral region programmed
// once at boot, outside the five per-task RAM windows.
type StaticRegion struct {
	Name       string
	Base       uint32
	Executable bool
	DenyAll    bool
}

// DefaultStaticRegions mirrors the fixed program in original_source/mm.c:
// a deny-all background region, an executable/readable flash region, and
// (left to the board package, per spec.md §1) peripheral access.
func DefaultStaticRegions() []StaticRegion {
	return []StaticRegion{
		{Name: "background", Base: 0x00000000, DenyAll: true},
		{Name: "flash", Base: 0x00000000, Executable: true},
	}
}

// StaticSink is the subset of register programming needed for the
// once-at-boot static regions.
type StaticSink interface {
	WriteStaticRegion(region StaticRegion) error
}

// ProgramStatic writes the fixed background/flash/peripheral program.
func (c *Configurator) ProgramStatic(sink StaticSink, regions []StaticRegion) error {
	for _, r := range regions {
		if err := sink.WriteStaticRegion(r); err != nil {
			return fmt.Errorf("mpu: program static region %q: %w", r.Name, err)
		}
	}
	return nil
}
