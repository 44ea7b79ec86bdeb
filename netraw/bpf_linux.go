package netraw

import (
	"fmt"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// acceptEtherTypes builds the classic BPF program this package attaches
// to every RX socket: accept frames whose ethertype/TPI is one of
// etherTypes, drop everything else.
func acceptEtherTypes(etherTypes ...uint16) ([]bpf.Instruction, error) {
	if len(etherTypes) == 0 {
		return nil, fmt.Errorf("netraw: at least one ethertype is required")
	}
	insns := []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
	}
	n := len(etherTypes)
	for i, et := range etherTypes {
		remaining := n - i - 1
		insns = append(insns, bpf.JumpIf{
			Cond:      bpf.JumpEqual,
			Val:       uint32(et),
			SkipTrue:  uint8(remaining + 1),
			SkipFalse: 0,
		})
	}
	insns = append(insns, bpf.RetConstant{Val: 0})
	insns = append(insns, bpf.RetConstant{Val: 0x40000})
	return insns, nil
}

// attachFilter assembles prog and attaches it to fd via SO_ATTACH_FILTER.
func attachFilter(fd int, prog []bpf.Instruction) error {
	raw, err := bpf.Assemble(prog)
	if err != nil {
		return fmt.Errorf("netraw: assemble BPF program: %w", err)
	}
	filter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		filter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	fprog := unix.SockFprog{Len: uint16(len(filter)), Filter: &filter[0]}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog); err != nil {
		return fmt.Errorf("netraw: SO_ATTACH_FILTER: %w", err)
	}
	return nil
}
