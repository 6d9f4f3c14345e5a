// Package ring implements the ring-exchange force computation.
//
// The particle set is split by [Partition] into one contiguous slice per rank.
// Each rank wraps its slice in a [Process]. One iteration consists of Size
// calls to [Process.Step], each followed by a global barrier, and then one call
// to [Process.CompleteIteration]:
//
//	for it := 0; it < iterations; it++ {
//	    for r := 0; r < comm.Size(); r++ {
//	        proc.Step(ctx)
//	        comm.Barrier(ctx)
//	    }
//	    comm.Barrier(ctx)
//	    proc.CompleteIteration()
//	}
//
// During the Size steps the circulating buffer visits every rank once, so each
// resident particle accumulates a contribution from every particle in the
// system exactly once.
package ring
