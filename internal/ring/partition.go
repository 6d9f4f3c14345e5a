package ring

import "fmt"

// Range is the half-open interval [Start, End) of input indices owned by one
// rank.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// Partition splits [0, total) into size contiguous ranges and returns the one
// owned by rank. The first total%size ranks receive one extra element.
func Partition(size, rank, total int) Range {
	q, rem := total/size, total%size
	return Range{
		Start: rank*q + min(rank, rem),
		End:   (rank+1)*q + min(rank+1, rem),
	}
}

// Partitions returns the ranges of every rank in rank order.
func Partitions(size, total int) []Range {
	out := make([]Range, size)
	for rank := range out {
		out[rank] = Partition(size, rank, total)
	}
	return out
}
