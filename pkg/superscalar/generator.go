// Package superscalar generates SuperscalarHash programs: random sequences
// of integer instructions scheduled on a simulated Intel-like pipeline
// (16-byte decoder, ports P0/P1/P5) so that they take a fixed number of
// cycles to run on a real out-of-order CPU.
package superscalar

import (
	"log"

	"mythra/pkg/constants"
)

type options struct {
	trace *log.Logger
}

// Option configures Generate.
type Option func(*options)

// WithTrace logs every decode cycle, instruction choice, stall and
// throw-away to l.
func WithTrace(l *log.Logger) Option {
	return func(o *options) {
		o.trace = l
	}
}

func (o *options) tracef(format string, args ...interface{}) {
	if o.trace != nil {
		o.trace.Printf(format, args...)
	}
}

// Generate builds one program from gen. The result depends only on the
// bytes drawn from gen.
//
// Instructions are decoded for at most SuperscalarLatency cycles, until an
// execution port is saturated, or until the program reaches
// SuperscalarMaxSize instructions. A decode cycle produces on average 3.45
// macro-ops against 3 ALU ports, so the ports saturate first; the cycle
// limit only guarantees termination.
func Generate(gen ByteSource, opts ...Option) *Program {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	b := newBuilder(gen, o)
	for b.decodeCycle < constants.SuperscalarLatency && !b.portsSaturated && b.prog.Size() < constants.SuperscalarMaxSize {
		b.decodeWindow()
	}
	return b.finish()
}

// builder is the simulated pipeline state of one Generate call.
type builder struct {
	gen ByteSource
	o   options

	ports portBusy
	regs  [constants.RegisterCount]registerInfo
	prog  *Program

	current        candidate
	macroOpIndex   int
	cycle          int
	depCycle       int
	retireCycle    int
	portsSaturated bool
	throwAwayCount int
	decodeCycle    int
}

func newBuilder(gen ByteSource, o options) *builder {
	return &builder{
		gen:     gen,
		o:       o,
		regs:    newRegisterFile(),
		prog:    &Program{},
		current: nopCandidate(),
	}
}

// decodeWindow fills one 16-byte fetch window and advances the issue cycle.
func (b *builder) decodeWindow() {
	buffer := fetchNext(b.current.kind(), b.decodeCycle, b.prog.MulCount, b.gen)
	b.o.tracef("; ------------- fetch cycle %d (%s)", b.cycle, buffer.Name)
	window := DecodeCycle{Buffer: buffer}

	bufferIndex := 0
	for bufferIndex < len(buffer.Slots) {
		topCycle := b.cycle

		// all macro-ops of the current instruction are issued, start a
		// new one whose first macro-op fits this slot
		if b.macroOpIndex >= len(b.current.info.Ops) {
			if b.portsSaturated || b.prog.Size() >= constants.SuperscalarMaxSize {
				break
			}
			b.current.createForSlot(b.gen, buffer.Slots[bufferIndex], buffer.Index, bufferIndex+1 == len(buffer.Slots))
			b.macroOpIndex = 0
			b.o.tracef("; %s", b.current.info.Name)
		}
		mop := b.current.info.Ops[b.macroOpIndex]

		// earliest cycle at which all uops of mop could execute
		scheduleCycle, _ := b.ports.scheduleMop(mop, b.cycle, b.depCycle, false)
		if scheduleCycle < 0 {
			b.o.tracef("unable to map operation '%s' to execution port (cycle %d)", mop.Name, b.cycle)
			b.portsSaturated = true
			break
		}

		if b.macroOpIndex == b.current.info.SrcOp {
			forward := 0
			for ; forward < constants.LookForwardCycles && !b.current.selectSource(scheduleCycle, &b.regs, b.gen); forward++ {
				b.o.tracef("; src STALL at cycle %d", b.cycle)
				scheduleCycle++
				b.cycle++
			}
			if forward == constants.LookForwardCycles {
				if b.throwAway() {
					continue
				}
				b.o.tracef("aborting at cycle %d with decode buffer %s: no source register for %s", b.cycle, buffer.Name, b.current.info.Name)
				b.current = nopCandidate()
				break
			}
			b.o.tracef("; src = r%d", b.current.src)
		}

		if b.macroOpIndex == b.current.info.DstOp {
			forward := 0
			for ; forward < constants.LookForwardCycles && !b.current.selectDestination(scheduleCycle, b.throwAwayCount > 0, &b.regs, b.gen); forward++ {
				b.o.tracef("; dst STALL at cycle %d", b.cycle)
				scheduleCycle++
				b.cycle++
			}
			if forward == constants.LookForwardCycles {
				if b.throwAway() {
					continue
				}
				b.o.tracef("aborting at cycle %d with decode buffer %s: no destination register", b.cycle, buffer.Name)
				b.current = nopCandidate()
				break
			}
			b.o.tracef("; dst = r%d", b.current.dst)
		}
		b.throwAwayCount = 0

		// operands are known, schedule for real
		scheduleCycle, used := b.ports.scheduleMop(mop, scheduleCycle, scheduleCycle, true)
		if scheduleCycle < 0 {
			b.o.tracef("unable to map operation '%s' to execution port (cycle %d)", mop.Name, scheduleCycle)
			b.portsSaturated = true
			break
		}

		b.depCycle = scheduleCycle + mop.Latency

		if b.macroOpIndex == b.current.info.ResultOp {
			ri := &b.regs[b.current.dst]
			b.retireCycle = b.depCycle
			ri.latency = b.retireCycle
			ri.lastOpGroup = b.current.opGroup
			ri.lastOpPar = b.current.opGroupPar
			b.o.tracef("; RETIRED at cycle %d", b.retireCycle)
		}

		window.Ops = append(window.Ops, ScheduledOp{
			Instruction: b.current.kind(),
			Op:          mop,
			SlotSize:    buffer.Slots[bufferIndex],
			Cycle:       scheduleCycle,
			Ports:       used,
		})
		b.prog.CodeSize += mop.Size
		b.prog.MacroOps++
		bufferIndex++
		b.macroOpIndex++

		if scheduleCycle >= constants.SuperscalarLatency {
			b.portsSaturated = true
		}
		b.cycle = topCycle

		if b.macroOpIndex >= len(b.current.info.Ops) {
			b.prog.Instructions = append(b.prog.Instructions, b.current.toInstruction())
			if b.current.kind().IsMultiplication() {
				b.prog.MulCount++
			}
		}
	}

	b.prog.Schedule = append(b.prog.Schedule, window)
	b.cycle++
	b.decodeCycle++
}

// throwAway drops the current instruction so another one is picked for the
// same slot. It reports false once MaxThrowAwayCount consecutive
// instructions have been dropped.
func (b *builder) throwAway() bool {
	if b.throwAwayCount >= constants.MaxThrowAwayCount {
		return false
	}
	b.throwAwayCount++
	b.macroOpIndex = len(b.current.info.Ops)
	b.o.tracef("; THROW away %s", b.current.info.Name)
	return true
}

// finish records the schedule metrics.
func (b *builder) finish() *Program {
	prog := b.prog
	prog.DecodeCycles = b.decodeCycle
	prog.CPULatency = b.retireCycle
	if b.retireCycle > 0 {
		prog.IPC = float64(prog.MacroOps) / float64(b.retireCycle)
	}
	for reg := range b.regs {
		prog.CPULatencies[reg] = b.regs[reg].latency
	}
	prog.ComputeASICLatencies()
	return prog
}
