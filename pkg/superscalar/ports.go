package superscalar

import "strings"

// ExecutionPort is a set of execution ports, one bit per port.
type ExecutionPort uint8

const (
	PortNull ExecutionPort = 0
	PortP0   ExecutionPort = 1
	PortP1   ExecutionPort = 2
	PortP5   ExecutionPort = 4
	PortP01  ExecutionPort = PortP0 | PortP1
	PortP05  ExecutionPort = PortP0 | PortP5
	PortP015 ExecutionPort = PortP0 | PortP1 | PortP5
)

// Physical ports in the column order of the port busy map.
var physicalPorts = [3]ExecutionPort{PortP0, PortP1, PortP5}

func (p ExecutionPort) String() string {
	if p == PortNull {
		return "-"
	}
	var sb strings.Builder
	sb.WriteByte('P')
	if p&PortP0 != 0 {
		sb.WriteByte('0')
	}
	if p&PortP1 != 0 {
		sb.WriteByte('1')
	}
	if p&PortP5 != 0 {
		sb.WriteByte('5')
	}
	return sb.String()
}

// portColumn maps a single physical port to its column in the busy map.
func portColumn(p ExecutionPort) int {
	switch p {
	case PortP0:
		return 0
	case PortP1:
		return 1
	case PortP5:
		return 2
	}
	return -1
}

// MacroOp is one x86 macro-operation of the simulated Intel pipeline. A
// macro-op decodes into at most two uops; a macro-op without uops is
// eliminated at rename (mov r,r).
type MacroOp struct {
	Name      string
	Size      int
	Latency   int
	Uop1      ExecutionPort
	Uop2      ExecutionPort
	Dependent bool // starts no earlier than the previous macro-op result
}

func (m MacroOp) IsSimple() bool {
	return m.Uop2 == PortNull
}

func (m MacroOp) IsEliminated() bool {
	return m.Uop1 == PortNull
}

// dependent returns a copy of m chained to the preceding macro-op.
func (m MacroOp) dependent() MacroOp {
	m.Dependent = true
	return m
}

// 3-byte
var (
	MacroOpAddRR = MacroOp{Name: "add r,r", Size: 3, Latency: 1, Uop1: PortP015}
	MacroOpSubRR = MacroOp{Name: "sub r,r", Size: 3, Latency: 1, Uop1: PortP015}
	MacroOpXorRR = MacroOp{Name: "xor r,r", Size: 3, Latency: 1, Uop1: PortP015}
	MacroOpImulR = MacroOp{Name: "imul r", Size: 3, Latency: 4, Uop1: PortP1, Uop2: PortP5}
	MacroOpMulR  = MacroOp{Name: "mul r", Size: 3, Latency: 4, Uop1: PortP1, Uop2: PortP5}
	MacroOpMovRR = MacroOp{Name: "mov r,r", Size: 3}
)

// 4-byte
var (
	MacroOpLeaSIB = MacroOp{Name: "lea r,r+r*s", Size: 4, Latency: 1, Uop1: PortP01}
	MacroOpImulRR = MacroOp{Name: "imul r,r", Size: 4, Latency: 3, Uop1: PortP1}
	MacroOpRorRI  = MacroOp{Name: "ror r,i", Size: 4, Latency: 1, Uop1: PortP05}
)

// 7-byte, padded with nops to 8 or 9 bytes when the slot is wider
var (
	MacroOpAddRI = MacroOp{Name: "add r,i", Size: 7, Latency: 1, Uop1: PortP015}
	MacroOpXorRI = MacroOp{Name: "xor r,i", Size: 7, Latency: 1, Uop1: PortP015}
)

// 10-byte
var MacroOpMovRI64 = MacroOp{Name: "mov rax,i64", Size: 10, Latency: 1, Uop1: PortP015}

// MaxMacroOpLatency is the longest latency of any macro-op in the table.
const MaxMacroOpLatency = 4
