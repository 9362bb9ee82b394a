package pipeline_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/r32sim/emu"
	"github.com/sarchlab/r32sim/insts"
	"github.com/sarchlab/r32sim/timing/cache"
	"github.com/sarchlab/r32sim/timing/pipeline"
)

var _ = Describe("Pipeline", func() {
	var (
		regFile *emu.RegFile
		data    *emu.Memory
		pipe    *pipeline.Pipeline
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		data = emu.NewMemory(emu.DataStore, 64)
	})

	load := func(prog *emu.Memory, opts ...pipeline.PipelineOption) {
		var err error
		pipe, err = pipeline.New(prog, data, regFile, 0, opts...)
		Expect(err).NotTo(HaveOccurred())
	}

	tick := func(n int) {
		for i := 0; i < n; i++ {
			Expect(pipe.Tick()).To(Succeed())
		}
	}

	Describe("New", func() {
		It("should start empty at the entry point", func() {
			prog := program(insts.EncodeHalt())
			p, err := pipeline.New(prog, data, regFile, 8)
			Expect(err).NotTo(HaveOccurred())

			Expect(p.PC()).To(Equal(uint32(8)))
			Expect(p.Entry()).To(Equal(uint32(8)))
			Expect(p.Halted()).To(BeFalse())
			Expect(p.GetIFID().Valid).To(BeFalse())
			Expect(p.GetIDEX().Valid).To(BeFalse())
			Expect(p.GetEXMEM().Valid).To(BeFalse())
			Expect(p.GetMEMWB().Valid).To(BeFalse())
			Expect(p.Program()).To(BeIdenticalTo(prog))
			Expect(p.Data()).To(BeIdenticalTo(data))
			Expect(p.RegFile()).To(BeIdenticalTo(regFile))
		})

		It("should reject an entry point outside the program store", func() {
			prog := emu.NewMemoryFromWords(emu.ProgramStore, nops(2), 0)
			_, err := pipeline.New(prog, data, regFile, 8)

			var entryErr *pipeline.EntryOutOfBoundsError
			Expect(errors.As(err, &entryErr)).To(BeTrue())
			Expect(entryErr.Size).To(Equal(uint32(8)))
		})
	})

	Describe("End-to-end", func() {
		BeforeEach(func() {
			words := []uint32{insts.EncodeSetLow(1, 0xFF)}
			words = append(words, nops(5)...)
			// STORE 0($z), $1 under opcode 0x04.
			words = append(words, insts.EncodeI(insts.Op(0x04), 1, insts.RegZero, 0))
			load(program(words...))
		})

		It("should store 0xFF to data address 0 within 12 ticks", func() {
			tick(9)
			Expect(data.Read8(0)).To(Equal(uint8(0)))

			tick(3)
			Expect(data.Read8(0)).To(Equal(uint8(0xFF)))
			Expect(data.Read8(1)).To(BeZero())
			Expect(data.Read8(3)).To(BeZero())
			Expect(regFile.ReadReg(1)).To(Equal(uint32(0xFF)))
		})

		It("should count pipeline activity", func() {
			tick(12)

			stats := pipe.Stats()
			Expect(stats.Cycles).To(Equal(uint64(12)))
			Expect(stats.Fetched).To(Equal(uint64(12)))
			Expect(stats.Retired).To(Equal(uint64(10)))
			Expect(stats.Bubbles).To(Equal(uint64(4)))
			Expect(stats.Stores).To(Equal(uint64(1)))
			Expect(stats.Loads).To(BeZero())
			Expect(stats.CPI()).To(BeNumerically("~", 1.2))
		})

		It("should return to the entry point on Reset", func() {
			tick(12)
			pipe.Reset()

			Expect(pipe.PC()).To(Equal(uint32(0)))
			Expect(pipe.Stats()).To(Equal(pipeline.Statistics{}))
			Expect(pipe.GetIFID().Valid).To(BeFalse())
			Expect(pipe.GetMEMWB().Valid).To(BeFalse())
			Expect(data.Read8(0)).To(Equal(uint8(0xFF)))
		})
	})

	Describe("Data hazards", func() {
		BeforeEach(func() {
			Expect(data.Write32(0, 0x12345678)).To(Succeed())
		})

		It("should expose a loaded value to an instruction fetched four ticks later", func() {
			words := []uint32{insts.EncodeLoad(insts.OpLoad, 1, insts.RegZero, 0)}
			words = append(words, nops(3)...)
			words = append(words, insts.EncodeALU(insts.FuncAdd, 2, 1, insts.RegZero))
			load(program(words...))

			tick(4)
			Expect(regFile.ReadReg(1)).To(BeZero())
			tick(1)
			Expect(regFile.ReadReg(1)).To(Equal(uint32(0x12345678)))

			tick(3)
			Expect(regFile.ReadReg(2)).To(BeZero())
			tick(1)
			Expect(regFile.ReadReg(2)).To(Equal(uint32(0x12345678)))
		})

		It("should read the stale value with only two fillers", func() {
			words := []uint32{insts.EncodeLoad(insts.OpLoad, 1, insts.RegZero, 0)}
			words = append(words, nops(2)...)
			words = append(words, insts.EncodeALU(insts.FuncAdd, 2, 1, insts.RegZero))
			load(program(words...))

			tick(12)
			Expect(regFile.ReadReg(1)).To(Equal(uint32(0x12345678)))
			Expect(regFile.ReadReg(2)).To(BeZero())
		})

		It("should patch half-words of the value read in Decode", func() {
			words := []uint32{insts.EncodeSetHigh(1, 0x1234)}
			words = append(words, nops(3)...)
			words = append(words, insts.EncodeSetLow(1, 0x5678))
			load(program(words...))

			tick(12)
			Expect(regFile.ReadReg(1)).To(Equal(uint32(0x12345678)))
		})

		It("should lose the high half-word without fillers", func() {
			load(program(
				insts.EncodeSetHigh(1, 0x1234),
				insts.EncodeSetLow(1, 0x5678),
			))

			tick(8)
			Expect(regFile.ReadReg(1)).To(Equal(uint32(0x00005678)))
		})
	})

	Describe("Memory access", func() {
		It("should extend narrow loads", func() {
			Expect(data.Write32(0, 0xFFFF8001)).To(Succeed())
			load(program(
				insts.EncodeLoad(insts.OpLoadHalf, 1, insts.RegZero, 2),
				insts.EncodeLoad(insts.OpLoadHalfUnsigned, 2, insts.RegZero, 2),
				insts.EncodeLoad(insts.OpLoadByte, 3, insts.RegZero, 2),
				insts.EncodeLoad(insts.OpLoadByteUnsigned, 4, insts.RegZero, 3),
				insts.EncodeLoad(insts.OpLoad, 5, insts.RegZero, 0),
			))

			tick(12)
			Expect(regFile.ReadReg(1)).To(Equal(uint32(0xFFFF8001)))
			Expect(regFile.ReadReg(2)).To(Equal(uint32(0x00008001)))
			Expect(regFile.ReadReg(3)).To(Equal(uint32(0xFFFFFF80)))
			Expect(regFile.ReadReg(4)).To(Equal(uint32(0x00000001)))
			Expect(regFile.ReadReg(5)).To(Equal(uint32(0xFFFF8001)))
			Expect(pipe.Stats().Loads).To(Equal(uint64(5)))
		})

		It("should truncate stores to the access width", func() {
			words := []uint32{insts.EncodeSetLow(1, 0xBEEF)}
			words = append(words, nops(3)...)
			words = append(words,
				insts.EncodeStore(insts.OpStore, 1, insts.RegZero, 4),
				insts.EncodeStore(insts.OpStoreHalf, 1, insts.RegZero, 10),
				insts.EncodeStore(insts.OpStoreByte, 1, insts.RegZero, 15),
			)
			load(program(words...))

			tick(14)
			Expect(data.Read32(4)).To(Equal(uint32(0x0000BEEF)))
			Expect(data.Read16(10)).To(Equal(uint16(0xBEEF)))
			Expect(data.Read8(15)).To(Equal(uint8(0xEF)))
			Expect(pipe.Stats().Stores).To(Equal(uint64(3)))
		})

		It("should profile data accesses when a data cache is attached", func() {
			load(program(
				insts.EncodeLoad(insts.OpLoad, 1, insts.RegZero, 0),
				insts.EncodeLoad(insts.OpLoad, 2, insts.RegZero, 4),
			), pipeline.WithDCache(cache.DefaultConfig()))

			tick(6)
			stats, ok := pipe.DCacheStats()
			Expect(ok).To(BeTrue())
			Expect(stats.Reads).To(Equal(uint64(2)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
		})

		It("should report no data cache by default", func() {
			load(program())
			_, ok := pipe.DCacheStats()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Control flow", func() {
		// Layout shared by the branch tests:
		//   0  slo $7, cond
		//   4  nop x3
		//  16  br $7, 16      -> 36
		//  20  slo $2, 2      delay slot
		//  24  slo $3, 3      delay slot
		//  28  slo $4, 4      delay slot
		//  32  slo $5, 5      skipped when taken
		//  36  slo $6, 6
		branchProgram := func(cond uint16) *emu.Memory {
			words := []uint32{insts.EncodeSetLow(7, cond)}
			words = append(words, nops(3)...)
			words = append(words,
				insts.EncodeBranch(7, 16),
				insts.EncodeSetLow(2, 2),
				insts.EncodeSetLow(3, 3),
				insts.EncodeSetLow(4, 4),
				insts.EncodeSetLow(5, 5),
				insts.EncodeSetLow(6, 6),
			)
			return program(words...)
		}

		It("should redirect fetch three ticks after a taken branch", func() {
			load(branchProgram(1))

			tick(7)
			Expect(pipe.PC()).To(Equal(uint32(28)))
			tick(1)
			Expect(pipe.PC()).To(Equal(uint32(36)))
			tick(1)
			Expect(pipe.GetIFID().PC).To(Equal(uint32(36)))

			tick(7)
			Expect(regFile.ReadReg(2)).To(Equal(uint32(2)))
			Expect(regFile.ReadReg(3)).To(Equal(uint32(3)))
			Expect(regFile.ReadReg(4)).To(Equal(uint32(4)))
			Expect(regFile.ReadReg(5)).To(BeZero())
			Expect(regFile.ReadReg(6)).To(Equal(uint32(6)))
			Expect(pipe.Stats().BranchesTaken).To(Equal(uint64(1)))
		})

		It("should fall through when the condition is zero", func() {
			load(branchProgram(0))

			tick(8)
			Expect(pipe.PC()).To(Equal(uint32(32)))

			tick(8)
			Expect(regFile.ReadReg(4)).To(Equal(uint32(4)))
			Expect(regFile.ReadReg(5)).To(Equal(uint32(5)))
			Expect(regFile.ReadReg(6)).To(Equal(uint32(6)))
			Expect(pipe.Stats().BranchesTaken).To(BeZero())
		})

		It("should jump relative to the next PC", func() {
			load(program(
				insts.EncodeJump(16), // -> 20
				insts.EncodeSetLow(1, 1),
				insts.EncodeSetLow(2, 2),
				insts.EncodeSetLow(3, 3),
				insts.EncodeSetLow(4, 4),
				insts.EncodeSetLow(5, 5),
			))

			tick(12)
			Expect(regFile.ReadReg(1)).To(Equal(uint32(1)))
			Expect(regFile.ReadReg(2)).To(Equal(uint32(2)))
			Expect(regFile.ReadReg(3)).To(Equal(uint32(3)))
			Expect(regFile.ReadReg(4)).To(BeZero())
			Expect(regFile.ReadReg(5)).To(Equal(uint32(5)))
			Expect(pipe.Stats().Jumps).To(Equal(uint64(1)))
		})

		It("should jump to the register value read in Decode", func() {
			words := []uint32{insts.EncodeSetLow(9, 40)}
			words = append(words, nops(3)...)
			words = append(words,
				insts.EncodeJumpRegister(9),
				insts.EncodeSetLow(1, 1),
				insts.EncodeSetLow(2, 2),
				insts.EncodeSetLow(3, 3),
				insts.EncodeSetLow(4, 4),
				insts.EncodeSetLow(5, 5),
				insts.EncodeSetLow(6, 6),
			)
			load(program(words...))

			tick(16)
			Expect(regFile.ReadReg(3)).To(Equal(uint32(3)))
			Expect(regFile.ReadReg(4)).To(BeZero())
			Expect(regFile.ReadReg(5)).To(BeZero())
			Expect(regFile.ReadReg(6)).To(Equal(uint32(6)))
			Expect(pipe.Stats().Jumps).To(Equal(uint64(1)))
		})
	})

	Describe("Halt", func() {
		BeforeEach(func() {
			load(program(
				insts.EncodeSetLow(1, 5),
				insts.EncodeHalt(),
				insts.EncodeSetLow(2, 7),
			))
		})

		It("should halt when the halt instruction reaches Memory", func() {
			Expect(pipe.Run()).To(Succeed())

			Expect(pipe.Halted()).To(BeTrue())
			Expect(pipe.Stats().Cycles).To(Equal(uint64(5)))
			Expect(regFile.ReadReg(1)).To(Equal(uint32(5)))
			Expect(regFile.ReadReg(2)).To(BeZero())
		})

		It("should stay halted and only drain on further ticks", func() {
			Expect(pipe.Run()).To(Succeed())
			fetched := pipe.Stats().Fetched

			tick(3)
			Expect(pipe.Halted()).To(BeTrue())
			Expect(pipe.Stats().Fetched).To(Equal(fetched))
			Expect(regFile.ReadReg(2)).To(Equal(uint32(7)))
		})

		It("should stop RunCycles at the halt", func() {
			running, err := pipe.RunCycles(100)
			Expect(err).NotTo(HaveOccurred())
			Expect(running).To(BeFalse())
			Expect(pipe.Stats().Cycles).To(Equal(uint64(5)))
		})
	})

	Describe("Faults", func() {
		It("should fault in Decode on an invalid opcode and keep the old state", func() {
			load(program(0x40000000))
			tick(1)

			err := pipe.Tick()
			var stageErr *pipeline.StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(pipeline.StageDecode))
			Expect(stageErr.PC).To(Equal(uint32(0)))

			var opErr *insts.InvalidOpcodeError
			Expect(errors.As(err, &opErr)).To(BeTrue())

			Expect(pipe.Stats().Cycles).To(Equal(uint64(1)))
			Expect(pipe.PC()).To(Equal(uint32(4)))
			Expect(pipe.GetIFID().Valid).To(BeTrue())
			Expect(pipe.GetIFID().PC).To(Equal(uint32(0)))
		})

		It("should fault in Fetch past the end of the program store", func() {
			load(emu.NewMemoryFromWords(emu.ProgramStore, nops(1), 0))
			tick(1)

			err := pipe.Tick()
			var stageErr *pipeline.StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(pipeline.StageFetch))
			Expect(stageErr.PC).To(Equal(uint32(4)))

			var boundsErr *emu.AddressOutOfBoundsError
			Expect(errors.As(err, &boundsErr)).To(BeTrue())
			Expect(boundsErr.Store).To(Equal(emu.ProgramStore))
		})

		It("should fault in Memory on an out-of-bounds load", func() {
			load(program(insts.EncodeLoad(insts.OpLoad, 1, insts.RegZero, -4)))
			tick(3)

			err := pipe.Tick()
			var stageErr *pipeline.StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(pipeline.StageMemory))

			var boundsErr *emu.AddressOutOfBoundsError
			Expect(errors.As(err, &boundsErr)).To(BeTrue())
			Expect(boundsErr.Store).To(Equal(emu.DataStore))
			Expect(boundsErr.Address).To(Equal(uint32(0xFFFFFFFC)))
		})

		It("should fault in Writeback on a write to the zero register", func() {
			load(program(insts.EncodeSetLow(insts.RegZero, 1)))
			tick(4)

			err := pipe.Tick()
			var stageErr *pipeline.StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(pipeline.StageWriteback))
			Expect(stageErr.Cycle).To(Equal(uint64(5)))

			var regErr *emu.InvalidRegisterWriteError
			Expect(errors.As(err, &regErr)).To(BeTrue())
			Expect(regFile.ReadReg(insts.RegZero)).To(BeZero())
		})

		It("should keep a store made earlier in a tick that faults in Writeback", func() {
			Expect(data.Write8(0, 0xAA)).To(Succeed())
			load(program(
				insts.EncodeSetLow(insts.RegZero, 1),
				insts.EncodeStore(insts.OpStoreByte, insts.RegZero, insts.RegZero, 0),
			))
			tick(4)

			Expect(pipe.Tick()).NotTo(Succeed())
			Expect(data.Read8(0)).To(Equal(uint8(0)))
			Expect(pipe.Stats().Stores).To(BeZero())
			Expect(pipe.Stats().Cycles).To(Equal(uint64(4)))
		})

		It("should not count a data cache access in a tick that faults in Writeback", func() {
			load(program(
				insts.EncodeSetLow(insts.RegZero, 1),
				insts.EncodeLoad(insts.OpLoad, 2, insts.RegZero, 0),
			), pipeline.WithDCache(cache.DefaultConfig()))
			tick(4)

			Expect(pipe.Tick()).NotTo(Succeed())
			stats, ok := pipe.DCacheStats()
			Expect(ok).To(BeTrue())
			Expect(stats.Reads).To(BeZero())
			Expect(stats.Misses).To(BeZero())
			Expect(pipe.Stats().Loads).To(BeZero())
		})

		It("should protect the constant-one register under the extended profile", func() {
			opts, err := emu.ProfileExtended.Options(data.Size())
			Expect(err).NotTo(HaveOccurred())
			regFile = emu.NewRegFile(opts...)
			load(program(insts.EncodeSetLow(insts.RegOne, 9)))

			tick(4)
			Expect(pipe.Tick()).NotTo(Succeed())
			Expect(regFile.ReadReg(insts.RegOne)).To(Equal(uint32(1)))
		})

		It("should surface the fault from Run", func() {
			load(program(0x40000000))
			err := pipe.Run()

			var stageErr *pipeline.StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Error()).To(ContainSubstring("decode stage fault at pc 0x00000000"))
		})
	})

	Describe("Independent instances", func() {
		It("should not share state", func() {
			regsA, regsB := emu.NewRegFile(), emu.NewRegFile()
			dataA := emu.NewMemory(emu.DataStore, 16)
			dataB := emu.NewMemory(emu.DataStore, 16)

			a, err := pipeline.New(program(insts.EncodeSetLow(1, 1)), dataA, regsA, 0)
			Expect(err).NotTo(HaveOccurred())
			b, err := pipeline.New(program(insts.EncodeSetLow(1, 2)), dataB, regsB, 0)
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 5; i++ {
				Expect(a.Tick()).To(Succeed())
			}
			Expect(b.Tick()).To(Succeed())

			Expect(regsA.ReadReg(1)).To(Equal(uint32(1)))
			Expect(regsB.ReadReg(1)).To(BeZero())
			Expect(a.Stats().Cycles).To(Equal(uint64(5)))
			Expect(b.Stats().Cycles).To(Equal(uint64(1)))
		})
	})

	Describe("Logging", func() {
		It("should trace each stage and log each tick", func() {
			logger, hook := test.NewNullLogger()
			logger.SetLevel(logrus.TraceLevel)
			load(program(insts.EncodeSetLow(1, 3)), pipeline.WithLogger(logger))

			tick(5)

			ticks := 0
			wrote := false
			fetched := false
			for _, entry := range hook.AllEntries() {
				switch entry.Message {
				case "tick":
					ticks++
				case "fetched":
					if entry.Data["pc"] == "0x00000000" {
						fetched = true
						Expect(entry.Data["word"]).To(Equal("0x08010003"))
					}
				case "wrote":
					wrote = true
					Expect(entry.Data["reg"]).To(Equal("$1"))
				}
			}
			Expect(ticks).To(Equal(5))
			Expect(wrote).To(BeTrue())
			Expect(fetched).To(BeTrue())
		})

		It("should stay quiet at info level", func() {
			logger, hook := test.NewNullLogger()
			load(program(insts.EncodeSetLow(1, 3)), pipeline.WithLogger(logger))

			tick(5)
			Expect(hook.AllEntries()).To(BeEmpty())
		})
	})
})
