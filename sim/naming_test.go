package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Naming", func() {
	It("should accept hierarchical names", func() {
		Expect(func() { NameMustBeValid("GPU[0].CE.HostPort") }).NotTo(Panic())
		Expect(func() { NameMustBeValid("Agent[1][2]") }).NotTo(Panic())
	})

	It("should panic if the name is empty", func() {
		Expect(func() { NameMustBeValid("") }).To(Panic())
	})

	It("should panic if an element is empty", func() {
		Expect(func() { NameMustBeValid("GPU..CE") }).To(Panic())
	})

	It("should panic if name include underscore", func() {
		Expect(func() { NameMustBeValid("GPU_0") }).To(Panic())
	})

	It("should panic if name include dash", func() {
		Expect(func() { NameMustBeValid("GPU-0") }).To(Panic())
	})

	It("should panic if name is not capitalized", func() {
		Expect(func() { NameMustBeValid("gpu0") }).To(Panic())
	})

	It("should panic if brackets do not match", func() {
		Expect(func() { NameMustBeValid("GPU[0") }).To(Panic())
		Expect(func() { NameMustBeValid("GPU]0[") }).To(Panic())
	})

	It("should build names", func() {
		Expect(BuildName("GPU", "CE")).To(Equal("GPU.CE"))
		Expect(BuildName("", "CE")).To(Equal("CE"))
	})
})
