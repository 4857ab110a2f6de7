package domain

// ByteRange describes the two regions of a signed container covered by the
// digest: everything before the signature placeholder and everything after it.
// The placeholder itself is excluded so it can be filled in after hashing
// without breaking the signature.
type ByteRange struct {
	Start1 int64 `json:"start1"`
	Len1   int64 `json:"len1"`
	Start2 int64 `json:"start2"`
	Len2   int64 `json:"len2"`
}

// PlaceholderStart and PlaceholderEnd bound the region the ranges flank.
func (br ByteRange) PlaceholderStart() int64 { return br.Start1 + br.Len1 }
func (br ByteRange) PlaceholderEnd() int64   { return br.Start2 }

func (br ByteRange) Total() int64 {
	return br.Start2 + br.Len2
}
