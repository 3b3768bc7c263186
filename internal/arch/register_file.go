package arch

import (
	"fmt"
	"sync"

	"github.com/tinyrange/rtkernel/internal/mpu"
)

// RegisterFile is a simulated MPU register bank: the host-harness backing
// for internal/mpu's RegisterSink and StaticSink interfaces. A real port
// replaces this with direct MMIO writes to the Cortex-M MPU's region
// registers; this type just remembers the last programmed values so tests
// can assert on them.
type RegisterFile struct {
	mu     sync.Mutex
	srd    [mpu.RegionCount]uint8
	static map[string]mpu.StaticRegion
}

// NewRegisterFile returns an empty simulated register file.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{static: make(map[string]mpu.StaticRegion)}
}

// WriteSubRegionDisable implements mpu.RegisterSink.
func (r *RegisterFile) WriteSubRegionDisable(region int, srd uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.srd[region] = srd
}

// SubRegionDisable returns the last programmed disable byte for region.
func (r *RegisterFile) SubRegionDisable(region int) uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.srd[region]
}

// WriteStaticRegion implements mpu.StaticSink by recording the region's
// programming. A region claiming to be both executable and deny-all is a
// contradiction no real register encoding can express.
func (r *RegisterFile) WriteStaticRegion(region mpu.StaticRegion) error {
	if region.Executable && region.DenyAll {
		return fmt.Errorf("arch: static region %q cannot be both executable and deny-all", region.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[region.Name] = region
	return nil
}

// StaticRegion returns what was last programmed for name, if anything.
func (r *RegisterFile) StaticRegion(name string) (mpu.StaticRegion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.static[name]
	return e, ok
}
