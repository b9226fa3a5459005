package mem

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/copyengine/sim"
)

var _ = Describe("InterleavedAddressPortMapper", func() {
	var mapper *InterleavedAddressPortMapper

	BeforeEach(func() {
		mapper = NewInterleavedAddressPortMapper(4096)
		mapper.UseAddressSpaceLimitation = true
		mapper.LowAddress = 0
		mapper.HighAddress = 4 * GB

		for i := 0; i < 6; i++ {
			mapper.LowModules = append(mapper.LowModules,
				sim.RemotePort(fmt.Sprintf("LowModule[%d].Port", i)))
		}

		mapper.ModuleForOtherAddresses = sim.RemotePort("LowModuleOther.Port")
	})

	It("should find low module if address is in-space", func() {
		Expect(mapper.Find(0)).To(Equal(mapper.LowModules[0]))
		Expect(mapper.Find(4096)).To(Equal(mapper.LowModules[1]))
		Expect(mapper.Find(4097)).To(Equal(mapper.LowModules[1]))
		Expect(mapper.Find(6 * 4096)).To(Equal(mapper.LowModules[0]))
	})

	It("should use a special module for out-of-space addresses", func() {
		Expect(mapper.Find(4 * GB)).To(Equal(mapper.ModuleForOtherAddresses))
	})

	It("should interleave relative to the low address", func() {
		mapper.LowAddress = 4096
		Expect(mapper.Find(4096)).To(Equal(mapper.LowModules[0]))
		Expect(mapper.Find(0)).To(Equal(mapper.ModuleForOtherAddresses))
	})
})

var _ = Describe("SinglePortMapper", func() {
	It("should always return the same port", func() {
		mapper := &SinglePortMapper{Port: "Mem.Port"}

		Expect(mapper.Find(0)).To(Equal(sim.RemotePort("Mem.Port")))
		Expect(mapper.Find(1 << 40)).To(Equal(sim.RemotePort("Mem.Port")))
	})
})
