package superscalar

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"testing"

	"mythra/pkg/constants"
)

// scriptedSource replays fixed bytes and words and fails the test when it
// runs dry.
type scriptedSource struct {
	t     *testing.T
	bytes []byte
	words []uint32
}

func (s *scriptedSource) GetByte() byte {
	if len(s.bytes) == 0 {
		s.t.Fatalf("scripted source ran out of bytes")
	}
	b := s.bytes[0]
	s.bytes = s.bytes[1:]
	return b
}

func (s *scriptedSource) GetUint32() uint32 {
	if len(s.words) == 0 {
		s.t.Fatalf("scripted source ran out of words")
	}
	w := s.words[0]
	s.words = s.words[1:]
	return w
}

func TestInstructionTable(t *testing.T) {
	tests := []struct {
		typ     InstructionType
		latency int
		ops     int
		src     int
	}{
		{ISubR, 1, 1, 0},
		{IXorR, 1, 1, 0},
		{IAddRS, 1, 1, 0},
		{IMulR, 3, 1, 0},
		{IRorC, 1, 1, -1},
		{IAddC8, 1, 1, -1},
		{IXorC9, 1, 1, -1},
		{IMulhR, 4, 3, 1},
		{ISmulhR, 4, 3, 1},
		{IMulRcp, 4, 2, -1},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			info := Instructions[tt.typ]
			if info.Type != tt.typ {
				t.Fatalf("table entry holds %s", info.Type)
			}
			if info.Latency != tt.latency || len(info.Ops) != tt.ops || info.SrcOp != tt.src {
				t.Errorf("got latency %d ops %d src %d, want %d %d %d", info.Latency, len(info.Ops), info.SrcOp, tt.latency, tt.ops, tt.src)
			}
		})
	}

	if !Instructions[IMulRcp].Ops[1].Dependent {
		t.Errorf("IMUL_RCP multiplication must depend on the constant load")
	}
	if Instructions[IMulhR].Ops[1].IsSimple() {
		t.Errorf("mul r must decode to two uops")
	}
	if !MacroOpMovRR.IsEliminated() {
		t.Errorf("mov r,r must be eliminated")
	}

	// the termination bound is stated in terms of the longest macro-op
	longest := 0
	for _, info := range Instructions {
		for _, op := range info.Ops {
			longest = max(longest, op.Latency)
		}
	}
	if longest != MaxMacroOpLatency {
		t.Errorf("longest macro-op latency is %d, MaxMacroOpLatency is %d", longest, MaxMacroOpLatency)
	}
}

func TestDecoderBuffersSpanWindow(t *testing.T) {
	for i, b := range DecoderBuffers {
		if b.Index != i {
			t.Errorf("%s has index %d, listed at %d", b.Name, b.Index, i)
		}
		total := 0
		for _, s := range b.Slots {
			total += s
		}
		if total != DecodeWindow {
			t.Errorf("%s spans %d bytes", b.Name, total)
		}
	}
}

func TestFetchNext(t *testing.T) {
	tests := []struct {
		name     string
		prev     InstructionType
		cycle    int
		mulCount int
		bytes    []byte
		want     *DecoderBuffer
	}{
		{"after IMULH_R", IMulhR, 10, 0, nil, &Decoder3310},
		{"after ISMULH_R", ISmulhR, 10, 50, nil, &Decoder3310},
		{"multiplier idle", IXorR, 10, 10, nil, &Decoder4444},
		{"first cycle", Invalid, 0, 0, nil, &Decoder4444},
		{"after IMUL_RCP odd", IMulRcp, 10, 11, []byte{1}, &Decoder484},
		{"after IMUL_RCP even", IMulRcp, 10, 11, []byte{2}, &Decoder493},
		{"random 0", ISubR, 10, 11, []byte{4}, &Decoder484},
		{"random 1", ISubR, 10, 11, []byte{5}, &Decoder7333},
		{"random 2", ISubR, 10, 11, []byte{6}, &Decoder3733},
		{"random 3", ISubR, 10, 11, []byte{7}, &Decoder493},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &scriptedSource{t: t, bytes: tt.bytes}
			if got := fetchNext(tt.prev, tt.cycle, tt.mulCount, src); got != tt.want {
				t.Errorf("got %s, want %s", got.Name, tt.want.Name)
			}
			if len(src.bytes) != 0 {
				t.Errorf("%d selector bytes left unread", len(src.bytes))
			}
		})
	}
}

func TestCreateForSlot(t *testing.T) {
	tests := []struct {
		name   string
		slot   int
		buffer int
		last   bool
		bytes  []byte
		words  []uint32
		want   InstructionType
	}{
		{"3 even", 3, Decoder7333.Index, false, []byte{0}, nil, ISubR},
		{"3 odd", 3, Decoder7333.Index, false, []byte{1}, nil, IXorR},
		{"3 last mulh", 3, Decoder7333.Index, true, []byte{2}, []uint32{9}, IMulhR},
		{"3 last smulh", 3, Decoder7333.Index, true, []byte{3}, []uint32{9}, ISmulhR},
		{"4 in 4444", 4, Decoder4444.Index, false, nil, nil, IMulR},
		{"4 last in 4444", 4, Decoder4444.Index, true, []byte{0, 5}, nil, IRorC},
		{"4 lea", 4, Decoder484.Index, false, []byte{1, 0x0c}, nil, IAddRS},
		{"7", 7, Decoder7333.Index, false, []byte{1}, []uint32{0xdead}, IAddC7},
		{"8", 8, Decoder484.Index, false, []byte{0}, []uint32{0xbeef}, IXorC8},
		{"9", 9, Decoder493.Index, false, []byte{1}, []uint32{1}, IAddC9},
		{"10", 10, Decoder3310.Index, true, nil, []uint32{7}, IMulRcp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &scriptedSource{t: t, bytes: tt.bytes, words: tt.words}
			c := nopCandidate()
			c.createForSlot(src, tt.slot, tt.buffer, tt.last)
			if c.kind() != tt.want {
				t.Errorf("got %s, want %s", c.kind(), tt.want)
			}
			if len(src.bytes) != 0 || len(src.words) != 0 {
				t.Errorf("operands left unread: %d bytes %d words", len(src.bytes), len(src.words))
			}
		})
	}
}

func TestCreateRedrawsImmediates(t *testing.T) {
	src := &scriptedSource{t: t, bytes: []byte{64, 128, 0, 3}}
	c := nopCandidate()
	c.create(IRorC, src)
	if c.imm32 != 3 {
		t.Errorf("rotation %d, want 3 after skipping zero rotations", c.imm32)
	}

	src = &scriptedSource{t: t, words: []uint32{0, 1, 1 << 20, 6}}
	c.create(IMulRcp, src)
	if c.imm32 != 6 {
		t.Errorf("divisor %d, want 6 after skipping zero and powers of two", c.imm32)
	}
	if c.opGroupPar != -1 {
		t.Errorf("constant instructions use group parameter -1")
	}
}

func TestSelectDestinationRules(t *testing.T) {
	regs := newRegisterFile()
	regs[0].latency = 10 // not ready

	src := &scriptedSource{t: t}
	c := nopCandidate()
	c.create(IAddRS, &scriptedSource{t: t, bytes: []byte{0}})
	c.src = 1
	c.opGroupPar = 1

	// candidates: r2, r3, r4, r6, r7 (r0 busy, r1 source, r5 lea)
	src.words = []uint32{2}
	if !c.selectDestination(0, false, &regs, src) {
		t.Fatalf("no destination selected")
	}
	if c.dst != 4 {
		t.Errorf("dst r%d, want r4", c.dst)
	}

	// the same group and parameter blocks a register
	regs[2].lastOpGroup, regs[2].lastOpPar = IAddRS, 1
	src.words = []uint32{1}
	c.selectDestination(0, false, &regs, src)
	if c.dst != 4 {
		t.Errorf("dst r%d, want r4 with r2 excluded", c.dst)
	}

	// chained multiplication
	mul := nopCandidate()
	mul.create(IMulR, src)
	mul.src = 0
	mul.opGroupPar = 0
	for i := range regs {
		regs[i] = registerInfo{lastOpGroup: IMulR, lastOpPar: 7}
	}
	if mul.selectDestination(0, false, &regs, src) {
		t.Errorf("multiplying a just-multiplied register must be refused")
	}
	src.words = []uint32{0}
	if !mul.selectDestination(0, true, &regs, src) || mul.dst != 1 {
		t.Errorf("chained multiplication should pick r1, got r%d", mul.dst)
	}
}

func TestSelectSourceDisplacementRegister(t *testing.T) {
	regs := newRegisterFile()
	for i := range regs {
		regs[i].latency = 100
	}
	regs[2].latency = 0
	regs[constants.RegisterNeedsDisplacement].latency = 0

	c := nopCandidate()
	c.create(IAddRS, &scriptedSource{t: t, bytes: []byte{0}})
	if !c.selectSource(0, &regs, &scriptedSource{t: t}) {
		t.Fatalf("no source selected")
	}
	if c.src != constants.RegisterNeedsDisplacement || c.opGroupPar != c.src {
		t.Errorf("src r%d par %d, want r5 for both", c.src, c.opGroupPar)
	}

	regs[2].latency = 100
	regs[5].latency = 100
	if c.selectSource(0, &regs, &scriptedSource{t: t}) {
		t.Errorf("select must fail when nothing is ready")
	}
}

func TestScheduleMop(t *testing.T) {
	var pb portBusy

	// generic uops fill P5, P0, then P1
	for i, want := range []ExecutionPort{PortP5, PortP0, PortP1} {
		cycle, port := pb.scheduleMop(MacroOpAddRI, 0, 0, true)
		if cycle != 0 || port != want {
			t.Errorf("uop %d: cycle %d port %s, want 0 %s", i, cycle, port, want)
		}
	}
	cycle, _ := pb.scheduleMop(MacroOpAddRI, 0, 0, true)
	if cycle != 1 {
		t.Errorf("fourth uop in cycle %d, want 1", cycle)
	}

	// mul r needs P1 and P5 in the same cycle; cycle 1 has P5 taken
	cycle, ports := pb.scheduleMop(MacroOpMulR, 1, 0, true)
	if cycle != 2 || ports != PortP1|PortP5 {
		t.Errorf("mul r at cycle %d on %s, want 2 on P15", cycle, ports)
	}

	// dependent ops wait for depCycle
	cycle, _ = pb.scheduleMop(Instructions[IMulRcp].Ops[1], 0, 7, false)
	if cycle != 7 {
		t.Errorf("dependent op at cycle %d, want 7", cycle)
	}

	// eliminated ops take no port
	cycle, ports = pb.scheduleMop(MacroOpMovRR, 3, 0, true)
	if cycle != 3 || ports != PortNull {
		t.Errorf("mov r,r at %d on %s, want 3 on -", cycle, ports)
	}

	// an exhausted map reports -1
	if cycle, _ := pb.scheduleMop(MacroOpImulRR, constants.CycleMapSize, 0, false); cycle != -1 {
		t.Errorf("schedule past the map returned %d", cycle)
	}
}

func TestVMOpcode(t *testing.T) {
	for typ := InstructionType(0); int(typ) < InstructionTypeCount; typ++ {
		op, ok := typ.VMOpcode()
		if !ok {
			switch typ {
			case IRorC, IAddC7, IXorC7, IAddC8, IXorC8, IAddC9, IXorC9:
			default:
				t.Errorf("%s has no VM opcode", typ)
			}
			continue
		}
		if op.String() != typ.String() {
			t.Errorf("%s maps to %s", typ, op)
		}
	}
}

func TestDefaultDecoderBuffer(t *testing.T) {
	if DecoderDefault.Index != -1 || len(DecoderDefault.Slots) != 0 {
		t.Errorf("default buffer %+v", DecoderDefault)
	}
}

// stalledBuilder returns a builder whose registers never become ready,
// after a run of MaxThrowAwayCount consecutive throw-aways.
func stalledBuilder(t *testing.T, trace *log.Logger) *builder {
	b := newBuilder(&scriptedSource{t: t}, options{trace: trace})
	for i := range b.regs {
		b.regs[i].latency = 1 << 20
	}
	b.throwAwayCount = constants.MaxThrowAwayCount
	return b
}

func TestThrowAwayLimit(t *testing.T) {
	b := newBuilder(&scriptedSource{t: t}, options{})
	b.current.create(IMulR, b.gen)
	b.throwAwayCount = constants.MaxThrowAwayCount - 1

	if !b.throwAway() {
		t.Fatalf("throw-away refused below the limit")
	}
	if b.throwAwayCount != constants.MaxThrowAwayCount || b.macroOpIndex != len(b.current.info.Ops) {
		t.Errorf("count %d macro-op index %d after throw-away", b.throwAwayCount, b.macroOpIndex)
	}
	if b.throwAway() {
		t.Errorf("throw-away accepted past the limit")
	}
}

func TestAbortedWindow(t *testing.T) {
	var traceBuf bytes.Buffer
	b := stalledBuilder(t, log.New(&traceBuf, "", 0))

	b.decodeWindow()

	if b.current.kind() != Invalid {
		t.Errorf("current instruction is %s, want NOP", b.current.kind())
	}
	if len(b.prog.Schedule) != 1 || b.decodeCycle != 1 {
		t.Fatalf("%d windows after %d decode cycles, want 1", len(b.prog.Schedule), b.decodeCycle)
	}
	if w := b.prog.Schedule[0]; w.Buffer != &Decoder4444 || len(w.Ops) != 0 {
		t.Errorf("aborted window holds buffer %s and %d ops", w.Buffer.Name, len(w.Ops))
	}
	// look-forward stalls plus the per-window advance
	if b.cycle != constants.LookForwardCycles+1 {
		t.Errorf("issue cycle %d after the aborted window", b.cycle)
	}
	want := fmt.Sprintf("aborting at cycle %d with decode buffer 4,4,4,4: no source register for IMUL_R", constants.LookForwardCycles)
	if !strings.Contains(traceBuf.String(), want) {
		t.Errorf("trace does not report the abort:\n%s", traceBuf.String())
	}
}

func TestAbortedWindowsTerminate(t *testing.T) {
	b := stalledBuilder(t, nil)

	for windows := 0; b.decodeCycle < constants.SuperscalarLatency && !b.portsSaturated && b.prog.Size() < constants.SuperscalarMaxSize; windows++ {
		if windows > constants.SuperscalarLatency {
			t.Fatalf("generation did not terminate")
		}
		b.decodeWindow()
	}
	p := b.finish()

	if !b.portsSaturated {
		t.Errorf("generation ended without saturating the ports")
	}
	if p.Size() != 0 || p.MacroOps != 0 {
		t.Errorf("stalled generation produced %d instructions, %d macro-ops", p.Size(), p.MacroOps)
	}
	if p.DecodeCycles != len(p.Schedule) {
		t.Errorf("%d decode cycles but %d windows", p.DecodeCycles, len(p.Schedule))
	}
}
