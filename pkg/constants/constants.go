package constants

// Superscalar generation parameters (RandomX configuration)

const SuperscalarLatency int = 170

const SuperscalarMaxSize int = 3*SuperscalarLatency + 2

const CycleMapSize int = SuperscalarLatency + 4

const LookForwardCycles int = 4

const MaxThrowAwayCount int = 256

const RegisterCount int = 8

// x86 lea cannot encode r13 (r5) as a base without a displacement
const RegisterNeedsDisplacement int = 5

// Blake2 generator

const GeneratorDataSize int = 64

const GeneratorMaxSeedSize int = GeneratorDataSize - 4
