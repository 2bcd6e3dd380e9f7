package superscalar

// DecoderBuffer is one way of splitting a 16-byte fetch window into 3 or 4
// x86 instructions of 3, 4, 7, 8, 9 or 10 bytes.
type DecoderBuffer struct {
	Name  string
	Index int
	Slots []int
}

// DecodeWindow is the number of bytes decoded per cycle.
const DecodeWindow = 16

var (
	Decoder484     = DecoderBuffer{Name: "4,8,4", Index: 0, Slots: []int{4, 8, 4}}
	Decoder7333    = DecoderBuffer{Name: "7,3,3,3", Index: 1, Slots: []int{7, 3, 3, 3}}
	Decoder3733    = DecoderBuffer{Name: "3,7,3,3", Index: 2, Slots: []int{3, 7, 3, 3}}
	Decoder493     = DecoderBuffer{Name: "4,9,3", Index: 3, Slots: []int{4, 9, 3}}
	Decoder4444    = DecoderBuffer{Name: "4,4,4,4", Index: 4, Slots: []int{4, 4, 4, 4}}
	Decoder3310    = DecoderBuffer{Name: "3,3,10", Index: 5, Slots: []int{3, 3, 10}}
	DecoderDefault = DecoderBuffer{Name: "Default", Index: -1}
)

// DecoderBuffers lists every real configuration by index.
var DecoderBuffers = [...]*DecoderBuffer{
	&Decoder484, &Decoder7333, &Decoder3733, &Decoder493, &Decoder4444, &Decoder3310,
}

// randomDecoderBuffers are the configurations picked by a selector byte.
var randomDecoderBuffers = [4]*DecoderBuffer{
	&Decoder484, &Decoder7333, &Decoder3733, &Decoder493,
}

// fetchNext picks the configuration for the next decode cycle given the
// instruction that was being decoded when the previous window ended.
func fetchNext(prev InstructionType, decodeCycle, mulCount int, gen ByteSource) *DecoderBuffer {
	// mul/imul r is 3 bytes and 2 uops; with the 4-uop decode limit that
	// forces a 3-3-10 window.
	if prev == IMulhR || prev == ISmulhR {
		return &Decoder3310
	}

	// Keep the multiplier saturated.
	if mulCount < decodeCycle+1 {
		return &Decoder4444
	}

	// The dependent imul r,r of IMUL_RCP needs a leading 4-byte slot.
	if prev == IMulRcp {
		if gen.GetByte()&1 != 0 {
			return &Decoder484
		}
		return &Decoder493
	}

	return randomDecoderBuffers[gen.GetByte()&3]
}
