package cancomm

// CAN FD only carries payloads of 0..8, 12, 16, 20, 24, 32, 48 or 64 bytes.
// Lengths are mapped through the 4-bit data length code.

var dlcToLen = [16]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

var lenToDLC = [MaxFDDataLen + 1]uint8{
	0, 1, 2, 3, 4, 5, 6, 7, 8, // 0..8
	9, 9, 9, 9, // 9..12
	10, 10, 10, 10, // 13..16
	11, 11, 11, 11, // 17..20
	12, 12, 12, 12, // 21..24
	13, 13, 13, 13, 13, 13, 13, 13, // 25..32
	14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, // 33..48
	15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 15, // 49..64
}

// LenToDLC returns the data length code for a payload of n bytes. Values
// outside [0, 64] are clamped.
func LenToDLC(n int) uint8 {
	switch {
	case n < 0:
		n = 0
	case n > MaxFDDataLen:
		n = MaxFDDataLen
	}
	return lenToDLC[n]
}

// DLCToLen returns the payload length encoded by dlc. Codes above 15 are
// treated as 15.
func DLCToLen(dlc uint8) uint8 {
	if dlc > 15 {
		dlc = 15
	}
	return dlcToLen[dlc]
}

// NormalizeLen returns the smallest length that can be sent on the wire and
// is not below n.
func NormalizeLen(n int) uint8 {
	return DLCToLen(LenToDLC(n))
}
