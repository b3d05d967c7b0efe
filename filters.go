package cancomm

// FrameFilter decides whether a frame should be delivered to a subscriber or
// logged.
type FrameFilter func(Frame) bool

// ByID matches data frames with the exact identifier.
func ByID(id uint32) FrameFilter {
	return func(f Frame) bool { return !f.IsError() && f.ID == id }
}

// ByIDs matches data frames with any of the identifiers.
func ByIDs(ids ...uint32) FrameFilter {
	set := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(f Frame) bool {
		if f.IsError() {
			return false
		}
		_, ok := set[f.ID]
		return ok
	}
}

// ByRange matches data frames whose ID is within [minID, maxID].
func ByRange(minID, maxID uint32) FrameFilter {
	if maxID < minID {
		minID, maxID = maxID, minID
	}
	return func(f Frame) bool { return !f.IsError() && f.ID >= minID && f.ID <= maxID }
}

// ByMask matches data frames where (ID & mask) == (id & mask), the way
// struct can_filter works.
func ByMask(id, mask uint32) FrameFilter {
	want := id & mask
	return func(f Frame) bool { return !f.IsError() && f.ID&mask == want }
}

// StandardOnly matches data frames with 11-bit identifiers.
func StandardOnly() FrameFilter {
	return func(f Frame) bool { return !f.IsError() && !f.Extended }
}

// ExtendedOnly matches data frames with 29-bit identifiers.
func ExtendedOnly() FrameFilter {
	return func(f Frame) bool { return !f.IsError() && f.Extended }
}

// FDOnly matches CAN FD frames.
func FDOnly() FrameFilter {
	return func(f Frame) bool { return f.IsFD() }
}

// DataOnly drops error notifications.
func DataOnly() FrameFilter {
	return func(f Frame) bool { return !f.IsError() }
}

// ErrorOnly matches error notifications.
func ErrorOnly() FrameFilter {
	return func(f Frame) bool { return f.IsError() }
}

// LenAtMost matches frames with at most n data bytes.
func LenAtMost(n uint8) FrameFilter {
	return func(f Frame) bool { return f.Len <= n }
}

// LenExactly matches frames with exactly n data bytes.
func LenExactly(n uint8) FrameFilter {
	return func(f Frame) bool { return f.Len == n }
}

// And matches when both filters match. A nil filter matches everything.
func And(a, b FrameFilter) FrameFilter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return func(f Frame) bool { return a(f) && b(f) }
	}
}

// Or matches when either filter matches.
func Or(a, b FrameFilter) FrameFilter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return func(f Frame) bool { return a(f) || b(f) }
	}
}

// Not inverts a filter.
func Not(a FrameFilter) FrameFilter {
	if a == nil {
		return func(Frame) bool { return false }
	}
	return func(f Frame) bool { return !a(f) }
}
