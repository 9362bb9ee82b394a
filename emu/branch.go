package emu

// BranchUnit resolves R32 control transfers. Targets are relative to the
// next program counter, the address following the branch or jump.
type BranchUnit struct{}

// NewBranchUnit creates a new BranchUnit.
func NewBranchUnit() *BranchUnit {
	return &BranchUnit{}
}

// Taken reports whether a conditional branch with the given condition value
// redirects fetch. Any non-zero value takes the branch.
func (b *BranchUnit) Taken(cond uint32) bool {
	return cond != 0
}

// Target computes nextPC + offset with wrap-around.
func (b *BranchUnit) Target(nextPC uint32, offset int32) uint32 {
	return nextPC + uint32(offset)
}
