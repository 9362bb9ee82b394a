package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r32sim/emu"
)

var _ = Describe("BranchUnit", func() {
	var branchUnit *emu.BranchUnit

	BeforeEach(func() {
		branchUnit = emu.NewBranchUnit()
	})

	It("should take the branch on any non-zero condition", func() {
		Expect(branchUnit.Taken(1)).To(BeTrue())
		Expect(branchUnit.Taken(0x80000000)).To(BeTrue())
		Expect(branchUnit.Taken(0)).To(BeFalse())
	})

	It("should branch forward", func() {
		Expect(branchUnit.Target(0x1004, 100)).To(Equal(uint32(0x1004 + 100)))
	})

	It("should branch backward", func() {
		Expect(branchUnit.Target(0x1004, -100)).To(Equal(uint32(0x1004 - 100)))
	})

	It("should wrap around the address space", func() {
		Expect(branchUnit.Target(4, -8)).To(Equal(uint32(0xFFFFFFFC)))
	})
})
