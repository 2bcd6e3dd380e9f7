package superscalar

import "mythra/pkg/constants"

// portBusy records, per cycle and physical port, the uop occupying it.
type portBusy [constants.CycleMapSize][3]ExecutionPort

// scheduleUop finds the first cycle >= cycle with a free port for uop and
// returns it, or -1. Ports are tried P5, P0, P1 so that uops which can go
// anywhere leave the multiplier (P1) alone. With commit the port is taken.
func (pb *portBusy) scheduleUop(uop ExecutionPort, cycle int, commit bool) (int, ExecutionPort) {
	for ; cycle < constants.CycleMapSize; cycle++ {
		for _, port := range [...]ExecutionPort{PortP5, PortP0, PortP1} {
			col := portColumn(port)
			if uop&port != 0 && pb[cycle][col] == PortNull {
				if commit {
					pb[cycle][col] = uop
				}
				return cycle, port
			}
		}
	}
	return -1, PortNull
}

// scheduleMop returns the cycle at which every uop of mop can execute, or
// -1 when the cycle map is exhausted. Dependent macro-ops start no earlier
// than depCycle. Two-uop macro-ops are scheduled conservatively: both uops
// must issue in the same cycle. The returned port set is what was (or
// would be) occupied.
func (pb *portBusy) scheduleMop(mop MacroOp, cycle, depCycle int, commit bool) (int, ExecutionPort) {
	if mop.Dependent {
		cycle = max(cycle, depCycle)
	}

	if mop.IsEliminated() {
		return cycle, PortNull
	}
	if mop.IsSimple() {
		return pb.scheduleUop(mop.Uop1, cycle, commit)
	}

	for ; cycle < constants.CycleMapSize; cycle++ {
		cycle1, port1 := pb.scheduleUop(mop.Uop1, cycle, false)
		cycle2, port2 := pb.scheduleUop(mop.Uop2, cycle, false)

		if cycle1 >= 0 && cycle1 == cycle2 {
			if commit {
				pb.scheduleUop(mop.Uop1, cycle1, true)
				pb.scheduleUop(mop.Uop2, cycle2, true)
			}
			return cycle1, port1 | port2
		}
	}
	return -1, PortNull
}
