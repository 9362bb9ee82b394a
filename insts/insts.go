// Package insts provides R32 instruction definitions, decoding and encoding.
//
// Every instruction is one 32-bit big-endian word. Fields sit at fixed bit
// ranges regardless of the opcode:
//   - opcode: bits [31:26]
//   - rs:     bits [25:21]
//   - rt:     bits [20:16]
//   - rd:     bits [15:11]
//   - shamt:  bits [10:6]
//   - funct:  bits [4:0]
//   - imm16:  bits [15:0]
//   - imm26:  bits [25:0]
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x080100FF) // slo $1, 255
//	if err != nil {
//		return err
//	}
//	fmt.Printf("Op: %v, Rt: %d, Imm: %d\n", inst.Op, inst.Rt, inst.Imm)
package insts
