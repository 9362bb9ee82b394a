package debugger_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/r32sim/debugger"
	"github.com/sarchlab/r32sim/emu"
	"github.com/sarchlab/r32sim/insts"
	"github.com/sarchlab/r32sim/timing/core"
	"github.com/sarchlab/r32sim/timing/pipeline"
)

func newCore(words ...uint32) *core.Core {
	for i := 0; i < 8; i++ {
		words = append(words, insts.EncodeNoOp())
	}
	prog := emu.NewMemoryFromWords(emu.ProgramStore, words, 0)
	data := emu.NewMemory(emu.DataStore, 64)

	pipe, err := pipeline.New(prog, data, emu.NewRegFile(), 0)
	Expect(err).NotTo(HaveOccurred())
	return core.NewCore(pipe)
}

var _ = Describe("Debugger", func() {
	var (
		c   *core.Core
		out *bytes.Buffer
		dbg *debugger.Debugger
	)

	BeforeEach(func() {
		c = newCore(
			insts.EncodeSetLow(1, 1), // 0
			insts.EncodeSetLow(2, 2), // 4
			insts.EncodeSetLow(3, 3), // 8
			insts.EncodeHalt(),       // 12
		)
		out = &bytes.Buffer{}
		dbg = debugger.New(c, strings.NewReader(""), out)
	})

	exec := func(line string) {
		quit, err := dbg.Execute(line)
		Expect(err).NotTo(HaveOccurred())
		Expect(quit).To(BeFalse())
	}

	It("should ignore blank lines", func() {
		exec("   ")
		Expect(out.Len()).To(BeZero())
	})

	It("should quit on quit, exit and q", func() {
		for _, line := range []string{"quit", "exit", "q", "QUIT"} {
			quit, err := dbg.Execute(line)
			Expect(err).NotTo(HaveOccurred())
			Expect(quit).To(BeTrue())
		}
	})

	It("should reject unknown commands", func() {
		_, err := dbg.Execute("frobnicate")
		Expect(errors.Is(err, debugger.ErrUnknownCommand)).To(BeTrue())
	})

	Describe("step", func() {
		It("should advance one cycle by default", func() {
			exec("step")
			Expect(c.Stats().Cycles).To(Equal(uint64(1)))
			Expect(out.String()).To(ContainSubstring("cycle 1"))
		})

		It("should advance n cycles", func() {
			exec("s 3")
			Expect(c.Stats().Cycles).To(Equal(uint64(3)))
		})

		It("should reject a bad count", func() {
			_, err := dbg.Execute("step zero")
			Expect(err).To(HaveOccurred())
			_, err = dbg.Execute("step 0")
			Expect(err).To(HaveOccurred())
			Expect(c.Stats().Cycles).To(BeZero())
		})
	})

	Describe("breakpoints", func() {
		It("should stop run at a breakpoint and resume with continue", func() {
			exec("addbp 0x8")
			exec("run")
			Expect(out.String()).To(ContainSubstring("breakpoint at 0x00000008 (cycle 3)"))

			exec("continue")
			Expect(c.Halted()).To(BeTrue())
			Expect(out.String()).To(ContainSubstring("halted at cycle 7"))
		})

		It("should list and remove breakpoints", func() {
			exec("addbp c")
			exec("addbp 4")
			out.Reset()

			exec("bps")
			Expect(out.String()).To(Equal("0x00000004\n0x0000000C\n"))

			exec("rmbp 4")
			exec("rmbp C")
			out.Reset()
			exec("bps")
			Expect(out.String()).To(Equal("no breakpoints\n"))
		})

		It("should reject malformed addresses", func() {
			_, err := dbg.Execute("addbp")
			Expect(err).To(HaveOccurred())
			_, err = dbg.Execute("addbp xyz")
			Expect(err).To(HaveOccurred())
			Expect(c.Breakpoints()).To(BeEmpty())
		})
	})

	Describe("dump", func() {
		It("should print every register", func() {
			exec("run")
			out.Reset()

			exec("dump")
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			Expect(lines).To(HaveLen(insts.NumRegisters))
			Expect(lines[0]).To(Equal("$z   0x00000000 0"))
			Expect(lines[3]).To(Equal("$3   0x00000003 3"))
			Expect(lines[31]).To(HavePrefix("$sp "))
		})
	})

	Describe("pipe", func() {
		It("should show empty latches before the first tick", func() {
			exec("pipe")
			Expect(out.String()).To(ContainSubstring("IF/ID  -"))
			Expect(out.String()).To(ContainSubstring("MEM/WB -"))
		})

		It("should show the fetched instruction", func() {
			exec("step 2")
			out.Reset()

			exec("pipe")
			Expect(out.String()).To(ContainSubstring("IF/ID  0x00000004"))
			Expect(out.String()).To(ContainSubstring("ID/EX  0x00000000"))
		})
	})

	Describe("mem", func() {
		It("should print 16 bytes by default", func() {
			exec("mem 0")
			Expect(out.String()).To(Equal(
				"00000000: 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00\n"))
		})

		It("should clamp to the end of the data store", func() {
			exec("mem 3C 100")
			Expect(out.String()).To(Equal("0000003C: 00 00 00 00\n"))
		})

		It("should reject an address outside the data store", func() {
			_, err := dbg.Execute("mem 40")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("stats", func() {
		It("should report cycles and CPI", func() {
			exec("run")
			out.Reset()

			exec("stats")
			Expect(out.String()).To(ContainSubstring("cycles          7"))
			Expect(out.String()).To(ContainSubstring("retired         5"))
			Expect(out.String()).To(ContainSubstring("cpi             1.400"))
		})
	})

	Describe("graph", func() {
		It("should write a graphviz file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "state.dot")
			exec("step")
			exec("graph " + path)

			content, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(ContainSubstring("digraph"))
		})

		It("should require a file name", func() {
			_, err := dbg.Execute("graph")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("reset", func() {
		It("should rewind and keep breakpoints", func() {
			exec("addbp 8")
			exec("run")
			exec("reset")

			Expect(c.Stats().Cycles).To(BeZero())
			Expect(c.Breakpoints()).To(Equal([]uint32{8}))
		})
	})

	Describe("Loop", func() {
		It("should run a scripted session until quit", func() {
			script := "addbp 8\nrun\nbogus\ncontinue\nquit\nstep\n"
			dbg = debugger.New(c, strings.NewReader(script), out)

			Expect(dbg.Loop()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("error: unknown command"))
			Expect(out.String()).To(ContainSubstring("halted at cycle 7"))
			Expect(c.Stats().Cycles).To(Equal(uint64(7)))
		})

		It("should stop at end of input and print prompts when asked", func() {
			dbg = debugger.New(c, strings.NewReader("step\n"), out, debugger.WithPrompt(true))

			Expect(dbg.Loop()).To(Succeed())
			Expect(strings.Count(out.String(), debugger.Prompt)).To(Equal(2))
		})

		It("should report faults and keep going", func() {
			c = newCore(0x40000000)
			dbg = debugger.New(c, strings.NewReader("run\nstats\n"), out)

			Expect(dbg.Loop()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("decode stage fault"))
			Expect(out.String()).To(ContainSubstring("cycles"))
		})

		It("should log command failures only to the configured logger", func() {
			std := logrus.StandardLogger()
			var buf bytes.Buffer
			stdOut, level := std.Out, std.GetLevel()
			std.SetOutput(&buf)
			std.SetLevel(logrus.DebugLevel)
			DeferCleanup(func() {
				std.SetOutput(stdOut)
				std.SetLevel(level)
			})

			dbg = debugger.New(c, strings.NewReader("bogus\n"), out)
			Expect(dbg.Loop()).To(Succeed())
			Expect(buf.String()).To(BeEmpty())

			logger, hook := test.NewNullLogger()
			logger.SetLevel(logrus.DebugLevel)
			dbg = debugger.New(c, strings.NewReader("bogus\n"), out, debugger.WithLogger(logger))
			Expect(dbg.Loop()).To(Succeed())
			Expect(hook.LastEntry()).NotTo(BeNil())
			Expect(hook.LastEntry().Message).To(Equal("command failed"))
		})
	})

	Describe("help", func() {
		It("should list commands", func() {
			exec("help")
			Expect(out.String()).To(ContainSubstring("addbp <hex-addr>"))
			Expect(out.String()).To(ContainSubstring("quit"))
		})
	})
})
